// Package memlite is a pure-Go implementation of native.Library.
//
// It keeps the reference-counting contract of libcblite: every constructor
// returns an object carrying one reference, Retain and Release adjust the
// count, and the object is freed when it reaches zero. Live objects are
// counted per kind, so leak audits can tell which kind leaked. Object ids are
// never reused, which makes a release of a freed object detectable; it panics
// with a *native.DefectError.
//
// The database side is deliberately small: documents are stored in memory or
// in a bbolt file, queries support a single-table SELECT with one optional
// comparison, and replication only works between two local databases.
package memlite

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

// StorageKind selects where documents are kept.
type StorageKind uint8

const (
	// StorageInMemory keeps documents in process memory, shared by every
	// connection to the same directory and name until the database is
	// deleted.
	StorageInMemory StorageKind = iota
	// StorageBolt keeps documents in <dir>/<name>.cblite2/db.bolt.
	StorageBolt
)

// String returns the storage name.
func (s StorageKind) String() string {
	if s == StorageBolt {
		return "bolt"
	}
	return "memory"
}

// Option configures a Library.
type Option func(*Library)

// WithStorage selects the document storage.
func WithStorage(s StorageKind) Option {
	return func(l *Library) {
		l.storage = s
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Library) {
		if log != nil {
			l.log = log
		}
	}
}

// WithDefaultDirectory sets the directory used when a database is opened
// without one. Defaults to the working directory.
func WithDefaultDirectory(dir string) Option {
	return func(l *Library) {
		l.defaultDir = dir
	}
}

// Library is the memlite backend. The zero value is not usable; call New.
type Library struct {
	storage    StorageKind
	defaultDir string
	log        *zap.Logger

	objects objectTable

	// mu guards everything below and the state of every database, document,
	// query and replicator object. It is never held while calling Release or
	// a listener.
	mu     sync.Mutex
	stores map[string]*sharedStore
	memory map[string]*memStore
}

var _ native.Library = (*Library)(nil)

// New returns an empty Library.
func New(opts ...Option) *Library {
	l := &Library{
		defaultDir: ".",
		log:        zap.NewNop(),
		stores:     make(map[string]*sharedStore),
		memory:     make(map[string]*memStore),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.objects.init()
	return l
}

// Name implements native.Library.
func (l *Library) Name() string { return "memlite" }

// Version implements native.Library. It reports the libcblite release whose
// behavior it follows.
func (l *Library) Version() native.Version {
	return native.Version{Major: 3, Minor: 0, Patch: 1, Build: 7, SourceID: "memlite"}
}

// Storage returns the configured storage.
func (l *Library) Storage() StorageKind { return l.storage }

// ErrorMessage implements native.Messenger.
func (l *Library) ErrorMessage(st native.Status) string {
	return native.DefaultMessage(st)
}

func (l *Library) dir(d string) string {
	if d == "" {
		return l.defaultDir
	}
	return d
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
