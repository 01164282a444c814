//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"runtime"
	"unsafe"

	"github.com/obinnaokechukwu/cblgo/native"
)

// NewURLEndpoint implements native.Library.
func (l *Library) NewURLEndpoint(url string, st *native.Status) native.Ptr {
	p, n := flStr(url)
	ep := native.Ptr(cblEndpointCreateWithURL(p, n, st))
	if ep.IsNil() || st.Failed() {
		return ep
	}
	l.track(ep, native.KindEndpoint, 0, func() { cblEndpointFree(uintptr(ep)) })
	return ep
}

// NewDatabaseEndpoint implements native.Library. It returns 0 on Community
// Edition builds, which cannot replicate between local databases.
func (l *Library) NewDatabaseEndpoint(db native.Ptr) native.Ptr {
	if cblEndpointCreateLocalDB == nil {
		return 0
	}
	ep := native.Ptr(cblEndpointCreateLocalDB(uintptr(db)))
	if ep.IsNil() {
		return 0
	}
	l.track(ep, native.KindEndpoint, 0, func() { cblEndpointFree(uintptr(ep)) })
	return ep
}

// NewPasswordAuthenticator implements native.Library.
func (l *Library) NewPasswordAuthenticator(user, password string) native.Ptr {
	up, un := flStr(user)
	pp, pn := flStr(password)
	return l.trackAuth(cblAuthCreatePassword(up, un, pp, pn))
}

// NewSessionAuthenticator implements native.Library.
func (l *Library) NewSessionAuthenticator(sessionID, cookieName string) native.Ptr {
	sp, sn := flStr(sessionID)
	cp, cn := flStr(cookieName)
	return l.trackAuth(cblAuthCreateSession(sp, sn, cp, cn))
}

func (l *Library) trackAuth(p uintptr) native.Ptr {
	auth := native.Ptr(p)
	if auth.IsNil() {
		return 0
	}
	l.track(auth, native.KindAuthenticator, 0, func() { cblAuthFree(p) })
	return auth
}

// NewReplicator implements native.Library. The replicator copies its
// endpoint, authenticator and filter arrays, so they may be released after
// this returns.
func (l *Library) NewReplicator(cfg native.ReplicatorConfig, st *native.Status) native.Ptr {
	if cfg.Database.IsNil() || cfg.Endpoint.IsNil() {
		st.Set(native.DomainCBL, native.CodeInvalidParameter)
		return 0
	}

	conf := &replicatorConfiguration{
		database:       uintptr(cfg.Database),
		endpoint:       uintptr(cfg.Endpoint),
		replicatorType: uint8(cfg.Type),
		continuous:     cfg.Continuous,
		authenticator:  uintptr(cfg.Authenticator),
		channels:       newStringArray(cfg.Channels),
		documentIDs:    newStringArray(cfg.DocumentIDs),
	}
	defer func() {
		if conf.channels != 0 {
			flValueRelease(conf.channels)
		}
		if conf.documentIDs != 0 {
			flValueRelease(conf.documentIDs)
		}
	}()

	r := cblReplicatorCreate(unsafe.Pointer(conf), st)
	runtime.KeepAlive(conf)
	return native.Ptr(r)
}

// StartReplicator implements native.Library.
func (l *Library) StartReplicator(r native.Ptr, resetCheckpoint bool) {
	cblReplicatorStart(uintptr(r), resetCheckpoint)
}

// StopReplicator implements native.Library.
func (l *Library) StopReplicator(r native.Ptr) {
	cblReplicatorStop(uintptr(r))
}

// ReplicatorStatus implements native.Library. Where struct returns are
// unavailable the status carries CBL/Unimplemented.
func (l *Library) ReplicatorStatus(r native.Ptr) native.ReplicatorStatus {
	if cblReplicatorStatus == nil {
		var out native.ReplicatorStatus
		unimplemented(&out.Error)
		return out
	}
	s := cblReplicatorStatus(uintptr(r))
	return native.ReplicatorStatus{
		Activity: native.ReplicatorActivity(s.activity),
		Progress: native.ReplicatorProgress{Complete: s.complete, DocumentCount: s.docCount},
		Error:    s.err,
	}
}
