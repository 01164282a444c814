package cblgo

import (
	"github.com/obinnaokechukwu/cblgo/ref"
)

// ListenerToken identifies a registered change listener.
type ListenerToken struct {
	r *ref.Ref
}

// Remove stops callbacks at once and releases the token. The native
// listener goes away with the token's last reference.
func (t *ListenerToken) Remove() error {
	if t == nil {
		return ErrNilArgument
	}
	h, err := t.r.Borrow()
	if err != nil {
		return err
	}
	t.r.Library().RemoveListener(h.Ptr())
	return t.r.Release()
}

// Release releases the token, which also unregisters the listener.
func (t *ListenerToken) Release() error {
	if t == nil {
		return ErrNilArgument
	}
	return t.r.Release()
}
