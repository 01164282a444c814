// Package handles maps Go values to integer handles that can travel through
// native code as a callback context pointer.
//
// libcblite calls listener callbacks with the void* context given at
// registration. A Go pointer may not be stored in native memory, so the
// binding registers the listener and passes the handle instead. The
// trampoline resolves it with Get.
package handles

import (
	"sync"
)

var (
	mu      sync.RWMutex
	handles = make(map[uintptr]any)
	nextID  uintptr = 1
)

// Register stores v and returns its handle. Handles are never zero and are
// not reused.
func Register(v any) uintptr {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handles[id] = v
	return id
}

// Lookup returns the value for id, or nil if it is not registered.
func Lookup(id uintptr) any {
	mu.RLock()
	defer mu.RUnlock()
	return handles[id]
}

// Get returns the value for id if it is registered and holds a T.
func Get[T any](id uintptr) (T, bool) {
	v, ok := Lookup(id).(T)
	return v, ok
}

// Unregister removes a handle. A callback already running keeps the value it
// resolved; later lookups miss.
func Unregister(id uintptr) {
	mu.Lock()
	defer mu.Unlock()
	delete(handles, id)
}

// Count returns the number of registered handles.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(handles)
}
