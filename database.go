package cblgo

import (
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
	"github.com/obinnaokechukwu/cblgo/ref"
)

// Concurrency selects conflict handling when saving or deleting a document.
type Concurrency = native.Concurrency

// Concurrency modes.
const (
	LastWriteWins  = native.LastWriteWins
	FailOnConflict = native.FailOnConflict
)

// Database is an open database connection. It owns one native reference.
type Database struct {
	r    *ref.Ref
	name string
}

// DatabaseOption configures OpenDatabase.
type DatabaseOption func(*native.DatabaseConfig)

// WithDirectory sets the parent directory of the database. The default is
// chosen by the native library.
func WithDirectory(dir string) DatabaseOption {
	return func(c *native.DatabaseConfig) {
		c.Directory = dir
	}
}

// WithEncryptionKey sets the encryption key. Community Edition libraries
// reject it with CodeUnsupportedEncryption.
func WithEncryptionKey(key []byte) DatabaseOption {
	return func(c *native.DatabaseConfig) {
		c.EncryptionKey = key
	}
}

// OpenDatabase opens or creates the database called name.
func OpenDatabase(name string, opts ...DatabaseOption) (*Database, error) {
	lib, err := Library()
	if err != nil {
		return nil, err
	}
	var cfg native.DatabaseConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	r, err := ref.Acquire(lib, native.KindDatabase, "CBLDatabase_Open", func(st *native.Status) native.Ptr {
		return lib.OpenDatabase(name, cfg, st)
	})
	if err != nil {
		return nil, err
	}
	Logger().Debug("database opened", zap.String("name", name), zap.String("dir", cfg.Directory))
	return &Database{r: r, name: name}, nil
}

// DatabaseExists reports whether a database called name exists in dir.
func DatabaseExists(name, dir string) (bool, error) {
	lib, err := Library()
	if err != nil {
		return false, err
	}
	return lib.DatabaseExists(name, dir), nil
}

// DeleteDatabaseFile deletes the database called name in dir. It fails with
// ErrBusy while the database is open.
func DeleteDatabaseFile(name, dir string) error {
	lib, err := Library()
	if err != nil {
		return err
	}
	return native.Call("CBL_DeleteDatabase", lib, func(st *native.Status) bool {
		return lib.DeleteDatabaseFile(name, dir, st)
	})
}

func (d *Database) borrow(op string) (native.Library, native.Ptr, error) {
	if d == nil {
		return nil, 0, ErrNilArgument
	}
	h, err := d.r.Borrow()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return d.r.Library(), h.Ptr(), nil
}

// Name returns the database name.
func (d *Database) Name() (string, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("name")
	if err != nil {
		return "", err
	}
	if name := lib.DatabaseName(p); name != "" {
		return name, nil
	}
	return d.name, nil
}

// Path returns the database's file system path. It may be empty when the
// backend cannot report it.
func (d *Database) Path() (string, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("path")
	if err != nil {
		return "", err
	}
	return lib.DatabasePath(p), nil
}

// Count returns the number of documents.
func (d *Database) Count() (uint64, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("count")
	if err != nil {
		return 0, err
	}
	return lib.DatabaseCount(p), nil
}

// Close closes the connection. The wrapper must still be released.
func (d *Database) Close() error {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("close")
	if err != nil {
		return err
	}
	return native.Call("CBLDatabase_Close", lib, func(st *native.Status) bool {
		return lib.CloseDatabase(p, st)
	})
}

// Delete closes the connection and deletes the database files. The wrapper
// must still be released.
func (d *Database) Delete() error {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("delete")
	if err != nil {
		return err
	}
	return native.Call("CBLDatabase_Delete", lib, func(st *native.Status) bool {
		return lib.DeleteDatabase(p, st)
	})
}

// InTransaction runs fn inside a transaction. The transaction commits if fn
// returns nil and aborts otherwise, including when fn panics.
func (d *Database) InTransaction(fn func(*Database) error) (err error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("transaction")
	if err != nil {
		return err
	}
	if err := native.Call("CBLDatabase_BeginTransaction", lib, func(st *native.Status) bool {
		return lib.BeginTransaction(p, st)
	}); err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		abortErr := native.Call("CBLDatabase_EndTransaction", lib, func(st *native.Status) bool {
			return lib.EndTransaction(p, false, st)
		})
		if abortErr != nil {
			Logger().Warn("transaction abort failed", zap.String("db", d.name), zap.Error(abortErr))
			err = errors.Join(err, abortErr)
		}
	}()

	if err := fn(d); err != nil {
		return err
	}
	committed = true
	return native.Call("CBLDatabase_EndTransaction", lib, func(st *native.Status) bool {
		return lib.EndTransaction(p, true, st)
	})
}

// GetDocument returns a mutable copy of the document with the given id. A
// missing or deleted document fails with ErrNotFound.
func (d *Database) GetDocument(id string) (*Document, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("get document")
	if err != nil {
		return nil, err
	}
	r, err := ref.AcquireLookup(lib, native.KindDocument, "CBLDatabase_GetMutableDocument", func(st *native.Status) native.Ptr {
		return lib.GetDocument(p, id, st)
	})
	if err != nil {
		return nil, err
	}
	return &Document{r: r, id: id}, nil
}

// SaveDocument saves doc. With FailOnConflict a concurrent change fails with
// ErrConflict.
func (d *Database) SaveDocument(doc *Document, cc Concurrency) error {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("save document")
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(doc)
	_, dp, err := doc.borrow("save document")
	if err != nil {
		return err
	}
	return native.Call("CBLDatabase_SaveDocument", lib, func(st *native.Status) bool {
		return lib.SaveDocument(p, dp, cc, st)
	})
}

// DeleteDocument deletes doc, leaving a tombstone.
func (d *Database) DeleteDocument(doc *Document, cc Concurrency) error {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("delete document")
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(doc)
	_, dp, err := doc.borrow("delete document")
	if err != nil {
		return err
	}
	return native.Call("CBLDatabase_DeleteDocument", lib, func(st *native.Status) bool {
		return lib.DeleteDocument(p, dp, cc, st)
	})
}

// PurgeDocumentByID removes every trace of a document.
func (d *Database) PurgeDocumentByID(id string) error {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("purge document")
	if err != nil {
		return err
	}
	return native.Call("CBLDatabase_PurgeDocumentByID", lib, func(st *native.Status) bool {
		return lib.PurgeDocument(p, id, st)
	})
}

// AddChangeListener registers fn for change notifications. fn receives a
// borrowed *Database valid only during the call; use Retain to keep it.
// The listener stays registered until the token is removed or released.
func (d *Database) AddChangeListener(fn func(db *Database, docIDs []string)) (*ListenerToken, error) {
	if fn == nil {
		return nil, ErrNilArgument
	}
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("add listener")
	if err != nil {
		return nil, err
	}
	name := d.name
	r, err := ref.Acquire(lib, native.KindListenerToken, "CBLDatabase_AddChangeListener", func(*native.Status) native.Ptr {
		return lib.AddChangeListener(p, func(db native.Ptr, ids []string) {
			view := &Database{r: ref.Borrowed(lib, ref.NewHandle(db, native.KindDatabase)), name: name}
			defer view.r.Release()
			fn(view, ids)
		})
	})
	if err != nil {
		return nil, err
	}
	return &ListenerToken{r: r}, nil
}

// Retain returns a second wrapper owning its own reference.
func (d *Database) Retain() (*Database, error) {
	if d == nil {
		return nil, ErrNilArgument
	}
	r, err := d.r.Retain()
	if err != nil {
		return nil, err
	}
	return &Database{r: r, name: d.name}, nil
}

// Release gives back the wrapper's reference. Only the first call has an
// effect; later calls return ErrReleased.
func (d *Database) Release() error {
	if d == nil {
		return ErrNilArgument
	}
	return d.r.Release()
}

// Handle returns the raw native handle without transferring ownership.
func (d *Database) Handle() (ref.Handle, error) {
	if d == nil {
		return ref.Handle{}, ErrNilArgument
	}
	return d.r.Borrow()
}

// String formats the database for logs.
func (d *Database) String() string {
	return fmt.Sprintf("Database(%q %s)", d.name, d.r)
}
