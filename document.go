package cblgo

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/obinnaokechukwu/cblgo/native"
	"github.com/obinnaokechukwu/cblgo/ref"
)

// Document is a mutable document. It owns one native reference.
type Document struct {
	r  *ref.Ref
	id string
}

// NewDocument creates an unsaved document. An empty id asks the library to
// generate one.
func NewDocument(id string) (*Document, error) {
	lib, err := Library()
	if err != nil {
		return nil, err
	}
	r, err := ref.Acquire(lib, native.KindDocument, "CBLDocument_CreateWithID", func(*native.Status) native.Ptr {
		return lib.NewDocument(id)
	})
	if err != nil {
		return nil, err
	}
	return &Document{r: r, id: id}, nil
}

func (d *Document) borrow(op string) (native.Library, native.Ptr, error) {
	if d == nil {
		return nil, 0, ErrNilArgument
	}
	h, err := d.r.Borrow()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return d.r.Library(), h.Ptr(), nil
}

// ID returns the document id.
func (d *Document) ID() (string, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("id")
	if err != nil {
		return "", err
	}
	if id := lib.DocumentID(p); id != "" {
		return id, nil
	}
	return d.id, nil
}

// RevisionID returns the current revision id, empty if never saved.
func (d *Document) RevisionID() (string, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("revision id")
	if err != nil {
		return "", err
	}
	return lib.DocumentRevisionID(p), nil
}

// Sequence returns the database sequence of the last save, 0 if never saved.
func (d *Document) Sequence() (uint64, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("sequence")
	if err != nil {
		return 0, err
	}
	return lib.DocumentSequence(p), nil
}

// JSON returns the document properties as JSON.
func (d *Document) JSON() (string, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("json")
	if err != nil {
		return "", err
	}
	return native.CallValue("CBLDocument_CreateJSON", lib, func(st *native.Status) string {
		return lib.DocumentJSON(p, st)
	})
}

// SetJSON replaces the document properties. data must be a JSON object.
func (d *Document) SetJSON(data string) error {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("set json")
	if err != nil {
		return err
	}
	return native.Call("CBLDocument_SetJSON", lib, func(st *native.Status) bool {
		return lib.SetDocumentJSON(p, data, st)
	})
}

// Properties decodes the document properties.
func (d *Document) Properties() (map[string]any, error) {
	data, err := d.JSON()
	if err != nil {
		return nil, err
	}
	props := map[string]any{}
	if err := json.Unmarshal([]byte(data), &props); err != nil {
		return nil, fmt.Errorf("cblgo: decoding document properties: %w", err)
	}
	return props, nil
}

// SetProperties replaces the document properties.
func (d *Document) SetProperties(props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("cblgo: encoding document properties: %w", err)
	}
	return d.SetJSON(string(data))
}

// Retain returns a second wrapper owning its own reference.
func (d *Document) Retain() (*Document, error) {
	if d == nil {
		return nil, ErrNilArgument
	}
	r, err := d.r.Retain()
	if err != nil {
		return nil, err
	}
	return &Document{r: r, id: d.id}, nil
}

// Release gives back the wrapper's reference. Only the first call has an
// effect; later calls return ErrReleased.
func (d *Document) Release() error {
	if d == nil {
		return ErrNilArgument
	}
	return d.r.Release()
}

// Handle returns the raw native handle without transferring ownership.
func (d *Document) Handle() (ref.Handle, error) {
	if d == nil {
		return ref.Handle{}, ErrNilArgument
	}
	return d.r.Borrow()
}
