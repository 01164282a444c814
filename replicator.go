package cblgo

import (
	"fmt"
	"runtime"

	"github.com/obinnaokechukwu/cblgo/native"
	"github.com/obinnaokechukwu/cblgo/ref"
)

// Endpoint is the location of a database to replicate with.
type Endpoint struct {
	r *ref.Ref
}

// NewURLEndpoint returns an endpoint for a ws:// or wss:// URL.
func NewURLEndpoint(url string) (*Endpoint, error) {
	lib, err := Library()
	if err != nil {
		return nil, err
	}
	r, err := ref.Acquire(lib, native.KindEndpoint, "CBLEndpoint_CreateWithURL", func(st *native.Status) native.Ptr {
		return lib.NewURLEndpoint(url, st)
	})
	if err != nil {
		return nil, err
	}
	return &Endpoint{r: r}, nil
}

// NewDatabaseEndpoint returns an endpoint for another local database.
func NewDatabaseEndpoint(db *Database) (*Endpoint, error) {
	defer runtime.KeepAlive(db)
	lib, p, err := db.borrow("database endpoint")
	if err != nil {
		return nil, err
	}
	r, err := ref.Acquire(lib, native.KindEndpoint, "CBLEndpoint_CreateWithLocalDB", func(*native.Status) native.Ptr {
		return lib.NewDatabaseEndpoint(p)
	})
	if err != nil {
		return nil, err
	}
	return &Endpoint{r: r}, nil
}

// Release gives back the wrapper's reference.
func (e *Endpoint) Release() error {
	if e == nil {
		return ErrNilArgument
	}
	return e.r.Release()
}

// Authenticator supplies replication credentials.
type Authenticator struct {
	r *ref.Ref
}

// NewPasswordAuthenticator returns an HTTP Basic authenticator.
func NewPasswordAuthenticator(user, password string) (*Authenticator, error) {
	return newAuthenticator("CBLAuth_CreatePassword", func(lib native.Library) native.Ptr {
		return lib.NewPasswordAuthenticator(user, password)
	})
}

// NewSessionAuthenticator returns a session cookie authenticator. An empty
// cookieName selects the Sync Gateway default.
func NewSessionAuthenticator(sessionID, cookieName string) (*Authenticator, error) {
	return newAuthenticator("CBLAuth_CreateSession", func(lib native.Library) native.Ptr {
		return lib.NewSessionAuthenticator(sessionID, cookieName)
	})
}

func newAuthenticator(op string, create func(native.Library) native.Ptr) (*Authenticator, error) {
	lib, err := Library()
	if err != nil {
		return nil, err
	}
	r, err := ref.Acquire(lib, native.KindAuthenticator, op, func(*native.Status) native.Ptr {
		return create(lib)
	})
	if err != nil {
		return nil, err
	}
	return &Authenticator{r: r}, nil
}

// Release gives back the wrapper's reference.
func (a *Authenticator) Release() error {
	if a == nil {
		return ErrNilArgument
	}
	return a.r.Release()
}

// ReplicatorType is the direction of replication.
type ReplicatorType = native.ReplicatorType

// Replication directions.
const (
	PushAndPull = native.PushAndPull
	Push        = native.Push
	Pull        = native.Pull
)

// ReplicatorActivity is the activity level of a replicator.
type ReplicatorActivity = native.ReplicatorActivity

// Activity levels.
const (
	ActivityStopped    = native.ActivityStopped
	ActivityOffline    = native.ActivityOffline
	ActivityConnecting = native.ActivityConnecting
	ActivityIdle       = native.ActivityIdle
	ActivityBusy       = native.ActivityBusy
)

// ReplicatorConfig configures NewReplicator. Database and Endpoint are
// required. The replicator takes its own references; the caller still
// releases what it passed.
type ReplicatorConfig struct {
	Database      *Database
	Endpoint      *Endpoint
	Authenticator *Authenticator
	Type          ReplicatorType
	Continuous    bool
	Channels      []string
	DocumentIDs   []string
}

// ReplicatorStatus is a snapshot of a replicator's state. Err is the last
// replication error, nil if none.
type ReplicatorStatus struct {
	Activity      ReplicatorActivity
	Complete      float32
	DocumentCount uint64
	Err           error
}

// Replicator synchronizes a database with an endpoint.
type Replicator struct {
	r *ref.Ref
}

// NewReplicator creates a stopped replicator.
func NewReplicator(cfg ReplicatorConfig) (*Replicator, error) {
	if cfg.Database == nil || cfg.Endpoint == nil {
		return nil, fmt.Errorf("replicator needs a database and an endpoint: %w", ErrNilArgument)
	}
	defer runtime.KeepAlive(cfg.Database)
	lib, db, err := cfg.Database.borrow("new replicator")
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(cfg.Endpoint)
	ep, err := cfg.Endpoint.r.Borrow()
	if err != nil {
		return nil, err
	}
	nc := native.ReplicatorConfig{
		Database:    db,
		Endpoint:    ep.Ptr(),
		Type:        cfg.Type,
		Continuous:  cfg.Continuous,
		Channels:    cfg.Channels,
		DocumentIDs: cfg.DocumentIDs,
	}
	if cfg.Authenticator != nil {
		defer runtime.KeepAlive(cfg.Authenticator)
		auth, err := cfg.Authenticator.r.Borrow()
		if err != nil {
			return nil, err
		}
		nc.Authenticator = auth.Ptr()
	}
	r, err := ref.Acquire(lib, native.KindReplicator, "CBLReplicator_Create", func(st *native.Status) native.Ptr {
		return lib.NewReplicator(nc, st)
	})
	if err != nil {
		return nil, err
	}
	return &Replicator{r: r}, nil
}

func (r *Replicator) borrow(op string) (native.Library, native.Ptr, error) {
	if r == nil {
		return nil, 0, ErrNilArgument
	}
	h, err := r.r.Borrow()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return r.r.Library(), h.Ptr(), nil
}

// Start starts replicating. resetCheckpoint replays from the beginning.
func (r *Replicator) Start(resetCheckpoint bool) error {
	defer runtime.KeepAlive(r)
	lib, p, err := r.borrow("start")
	if err != nil {
		return err
	}
	lib.StartReplicator(p, resetCheckpoint)
	return nil
}

// Stop stops replicating.
func (r *Replicator) Stop() error {
	defer runtime.KeepAlive(r)
	lib, p, err := r.borrow("stop")
	if err != nil {
		return err
	}
	lib.StopReplicator(p)
	return nil
}

// Status returns the current status.
func (r *Replicator) Status() (ReplicatorStatus, error) {
	defer runtime.KeepAlive(r)
	lib, p, err := r.borrow("status")
	if err != nil {
		return ReplicatorStatus{}, err
	}
	s := lib.ReplicatorStatus(p)
	return ReplicatorStatus{
		Activity:      s.Activity,
		Complete:      s.Progress.Complete,
		DocumentCount: s.Progress.DocumentCount,
		Err:           native.NewError("CBLReplicator_Status", native.ClassCall, s.Error, lib.ErrorMessage),
	}, nil
}

// Release gives back the wrapper's reference.
func (r *Replicator) Release() error {
	if r == nil {
		return ErrNilArgument
	}
	return r.r.Release()
}
