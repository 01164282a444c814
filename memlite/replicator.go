package memlite

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

// urlEndpoint is a remote endpoint. memlite has no network stack, so
// replicating to it always fails.
type urlEndpoint struct {
	url string
}

func (e *urlEndpoint) describe() string { return e.url }

// dbEndpoint is a local database endpoint. It holds a reference on the
// database.
type dbEndpoint struct {
	db native.Ptr
}

func (e *dbEndpoint) describe() string { return fmt.Sprintf("db=%s", e.db) }

func (e *dbEndpoint) free(l *Library) { l.Release(e.db) }

type passwordAuth struct {
	user     string
	password string
}

func (a *passwordAuth) describe() string { return "password user=" + a.user }

type sessionAuth struct {
	sessionID  string
	cookieName string
}

func (a *sessionAuth) describe() string { return "session cookie=" + a.cookieName }

// NewURLEndpoint implements native.Library. The URL must use the ws or wss
// scheme and name a host.
func (l *Library) NewURLEndpoint(rawURL string, st *native.Status) native.Ptr {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		st.Set(native.DomainNetwork, native.NetworkInvalidURL)
		return 0
	}
	return l.newObject(native.KindEndpoint, &urlEndpoint{url: u.String()})
}

// NewDatabaseEndpoint implements native.Library.
func (l *Library) NewDatabaseEndpoint(db native.Ptr) native.Ptr {
	l.get("CBLEndpoint_CreateWithLocalDB", db, native.KindDatabase)
	l.Retain(db)
	return l.newObject(native.KindEndpoint, &dbEndpoint{db: db})
}

// NewPasswordAuthenticator implements native.Library.
func (l *Library) NewPasswordAuthenticator(user, password string) native.Ptr {
	return l.newObject(native.KindAuthenticator, &passwordAuth{user: user, password: password})
}

// NewSessionAuthenticator implements native.Library.
func (l *Library) NewSessionAuthenticator(sessionID, cookieName string) native.Ptr {
	if cookieName == "" {
		cookieName = "SyncGatewaySession"
	}
	return l.newObject(native.KindAuthenticator, &sessionAuth{sessionID: sessionID, cookieName: cookieName})
}

// replicator is the value of a KindReplicator object. It holds references
// on every pointer of its configuration.
type replicator struct {
	cfg    native.ReplicatorConfig
	status native.ReplicatorStatus

	// Sequences already transferred, per direction.
	pushed uint64
	pulled uint64
}

func (r *replicator) describe() string {
	return fmt.Sprintf("%s %s", r.cfg.Type, r.status.Activity)
}

func (r *replicator) free(l *Library) {
	l.Release(r.cfg.Database)
	l.Release(r.cfg.Endpoint)
	l.Release(r.cfg.Authenticator)
}

// NewReplicator implements native.Library.
func (l *Library) NewReplicator(cfg native.ReplicatorConfig, st *native.Status) native.Ptr {
	if cfg.Database.IsNil() || cfg.Endpoint.IsNil() {
		st.Set(native.DomainCBL, native.CodeInvalidParameter)
		return 0
	}
	l.get("CBLReplicator_Create", cfg.Database, native.KindDatabase)
	l.get("CBLReplicator_Create", cfg.Endpoint, native.KindEndpoint)
	if !cfg.Authenticator.IsNil() {
		l.get("CBLReplicator_Create", cfg.Authenticator, native.KindAuthenticator)
	}
	cfg.Channels = append([]string(nil), cfg.Channels...)
	cfg.DocumentIDs = append([]string(nil), cfg.DocumentIDs...)

	l.Retain(cfg.Database)
	l.Retain(cfg.Endpoint)
	if !cfg.Authenticator.IsNil() {
		l.Retain(cfg.Authenticator)
	}
	return l.newObject(native.KindReplicator, &replicator{cfg: cfg})
}

// StartReplicator implements native.Library. A local replication runs to
// completion before returning. A one-shot replicator then stops; a
// continuous one goes idle.
func (l *Library) StartReplicator(r native.Ptr, resetCheckpoint bool) {
	l.mu.Lock()
	rp := l.get("CBLReplicator_Start", r, native.KindReplicator).(*replicator)
	if resetCheckpoint {
		rp.pushed, rp.pulled = 0, 0
	}
	rp.status = native.ReplicatorStatus{Activity: native.ActivityBusy}

	var ns []notification
	switch ep := l.get("CBLReplicator_Start", rp.cfg.Endpoint, native.KindEndpoint).(type) {
	case *urlEndpoint:
		rp.status.Error.Set(native.DomainNetwork, native.NetworkUnknownHost)
		if rp.cfg.Continuous {
			rp.status.Activity = native.ActivityOffline
		} else {
			rp.status.Activity = native.ActivityStopped
		}
		l.log.Info("replicator offline", zap.String("url", ep.url))
	case *dbEndpoint:
		ns, rp.status.Error = l.replicateLocked(rp, ep.db)
		rp.status.Progress.Complete = 1
		if rp.cfg.Continuous && !rp.status.Error.Failed() {
			rp.status.Activity = native.ActivityIdle
		} else {
			rp.status.Activity = native.ActivityStopped
		}
	}
	status := rp.status
	l.mu.Unlock()

	l.log.Debug("replicator finished", zap.Stringer("ptr", r),
		zap.Stringer("activity", status.Activity),
		zap.Uint64("documents", status.Progress.DocumentCount))
	deliver(ns)
}

// replicateLocked copies changes between the replicator's database and
// target. The revision with the higher generation wins; equal generations
// are broken by comparing revision ids.
func (l *Library) replicateLocked(rp *replicator, target native.Ptr) ([]notification, native.Status) {
	var st native.Status
	src := l.openDB("CBLReplicator_Start", rp.cfg.Database, &st)
	if src == nil {
		return nil, st
	}
	dst := l.openDB("CBLReplicator_Start", target, &st)
	if dst == nil {
		return nil, st
	}
	if src.ss == dst.ss {
		return nil, st
	}

	var ns []notification
	if rp.cfg.Type != native.Pull {
		n, changed, last, err := l.transferLocked(src.ss, dst.ss, rp.pushed, rp.cfg.DocumentIDs)
		if err != nil {
			st.Set(native.DomainCBL, native.CodeIOError)
			return nil, st
		}
		rp.pushed = last
		rp.status.Progress.DocumentCount += n
		ns = append(ns, dst.ss.notifications(changed)...)
	}
	if rp.cfg.Type != native.Push {
		n, changed, last, err := l.transferLocked(dst.ss, src.ss, rp.pulled, rp.cfg.DocumentIDs)
		if err != nil {
			st.Set(native.DomainCBL, native.CodeIOError)
			return nil, st
		}
		rp.pulled = last
		rp.status.Progress.DocumentCount += n
		ns = append(ns, src.ss.notifications(changed)...)
	}
	return ns, st
}

// transferLocked copies records of from with a sequence above since into
// to. It returns the count of records written, their ids and the highest
// sequence seen.
func (l *Library) transferLocked(from, to *sharedStore, since uint64, docIDs []string) (uint64, []string, uint64, error) {
	var filter map[string]bool
	if len(docIDs) > 0 {
		filter = make(map[string]bool, len(docIDs))
		for _, id := range docIDs {
			filter[id] = true
		}
	}

	last := since
	var candidates []*record
	err := from.store.scan(func(rec *record) error {
		if rec.Sequence > last {
			last = rec.Sequence
		}
		if rec.Sequence <= since || (filter != nil && !filter[rec.ID]) {
			return nil
		}
		candidates = append(candidates, rec)
		return nil
	})
	if err != nil {
		return 0, nil, since, err
	}

	var ids []string
	for _, rec := range candidates {
		cur, err := to.store.get(rec.ID)
		if err != nil {
			return 0, nil, since, err
		}
		if cur != nil && !newerRevision(rec.RevID, cur.RevID) {
			continue
		}
		seq, err := to.store.nextSequence()
		if err != nil {
			return 0, nil, since, err
		}
		rec.Sequence = seq
		if err := to.store.put(rec); err != nil {
			return 0, nil, since, err
		}
		ids = append(ids, rec.ID)
	}
	return uint64(len(ids)), ids, last, nil
}

func newerRevision(a, b string) bool {
	ga, gb := revGeneration(a), revGeneration(b)
	if ga != gb {
		return ga > gb
	}
	return a > b
}

// StopReplicator implements native.Library.
func (l *Library) StopReplicator(r native.Ptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rp := l.get("CBLReplicator_Stop", r, native.KindReplicator).(*replicator)
	rp.status.Activity = native.ActivityStopped
}

// ReplicatorStatus implements native.Library.
func (l *Library) ReplicatorStatus(r native.Ptr) native.ReplicatorStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get("CBLReplicator_Status", r, native.KindReplicator).(*replicator).status
}
