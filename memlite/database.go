package memlite

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

// database is one open connection. ss is nil once closed.
type database struct {
	self native.Ptr
	name string
	dir  string
	ss   *sharedStore

	txDepth   int
	txAborted bool
	// pending holds encoded records written inside a transaction; a nil
	// value is a purge.
	pending      map[string][]byte
	pendingOrder []string
}

func (d *database) describe() string {
	return fmt.Sprintf("name=%q open=%v", d.name, d.ss != nil)
}

func (d *database) free(l *Library) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d.ss != nil {
		d.txDepth = 0
		d.pending = nil
		d.pendingOrder = nil
		l.closeLocked(d)
	}
}

// listener is the value of a KindListenerToken object.
type listener struct {
	token native.Ptr
	db    native.Ptr
	fn    native.ChangeFunc
	ss    *sharedStore
}

func (ln *listener) describe() string {
	return fmt.Sprintf("db=%s", ln.db)
}

func (ln *listener) free(l *Library) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.detach()
}

func (ln *listener) detach() {
	if ln.ss == nil {
		return
	}
	for i, other := range ln.ss.listeners {
		if other == ln {
			ln.ss.listeners = append(ln.ss.listeners[:i], ln.ss.listeners[i+1:]...)
			break
		}
	}
	ln.ss = nil
}

// notification is a pending change callback, delivered with no lock held.
type notification struct {
	fn  native.ChangeFunc
	db  native.Ptr
	ids []string
}

func (ss *sharedStore) notifications(ids []string) []notification {
	if len(ids) == 0 || len(ss.listeners) == 0 {
		return nil
	}
	out := make([]notification, len(ss.listeners))
	for i, ln := range ss.listeners {
		out[i] = notification{fn: ln.fn, db: ln.db, ids: append([]string(nil), ids...)}
	}
	return out
}

func deliver(ns []notification) {
	for _, n := range ns {
		n.fn(n.db, n.ids)
	}
}

// openDB returns the open database behind p, or sets NotOpen.
func (l *Library) openDB(op string, p native.Ptr, st *native.Status) *database {
	d := l.get(op, p, native.KindDatabase).(*database)
	if d.ss == nil {
		st.Set(native.DomainCBL, native.CodeNotOpen)
		return nil
	}
	return d
}

// OpenDatabase implements native.Library.
func (l *Library) OpenDatabase(name string, cfg native.DatabaseConfig, st *native.Status) native.Ptr {
	if name == "" {
		st.Set(native.DomainCBL, native.CodeInvalidParameter)
		return 0
	}
	if len(cfg.EncryptionKey) > 0 {
		st.Set(native.DomainCBL, native.CodeUnsupportedEncryption)
		return 0
	}
	dir := l.dir(cfg.Directory)

	l.mu.Lock()
	defer l.mu.Unlock()
	ss, err := l.openStore(dir, name)
	if err != nil {
		l.log.Warn("open database failed", zap.String("name", name), zap.String("dir", dir), zap.Error(err))
		st.Set(native.DomainCBL, native.CodeCantOpenFile)
		return 0
	}
	d := &database{name: name, dir: dir, ss: ss}
	d.self = l.newObject(native.KindDatabase, d)
	l.log.Debug("database opened", zap.String("name", name), zap.String("path", ss.path),
		zap.Stringer("storage", l.storage), zap.Int("connections", ss.conns))
	return d.self
}

// closeLocked detaches d from its store. Caller holds l.mu.
func (l *Library) closeLocked(d *database) error {
	ss := d.ss
	d.ss = nil
	kept := ss.listeners[:0]
	for _, ln := range ss.listeners {
		if ln.db == d.self {
			ln.ss = nil
			continue
		}
		kept = append(kept, ln)
	}
	ss.listeners = kept
	return l.closeStore(ss)
}

// CloseDatabase implements native.Library. Closing a closed database is a
// no-op.
func (l *Library) CloseDatabase(db native.Ptr, st *native.Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.get("CBLDatabase_Close", db, native.KindDatabase).(*database)
	if d.ss == nil {
		return true
	}
	if d.txDepth > 0 {
		st.Set(native.DomainCBL, native.CodeTransactionNotClosed)
		return false
	}
	if err := l.closeLocked(d); err != nil {
		l.log.Warn("close database failed", zap.String("name", d.name), zap.Error(err))
		st.Set(native.DomainCBL, native.CodeIOError)
		return false
	}
	return true
}

// DeleteDatabase implements native.Library. It closes db and removes its
// storage. Other open connections make it fail with Busy.
func (l *Library) DeleteDatabase(db native.Ptr, st *native.Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.openDB("CBLDatabase_Delete", db, st)
	if d == nil {
		return false
	}
	if d.txDepth > 0 {
		st.Set(native.DomainCBL, native.CodeTransactionNotClosed)
		return false
	}
	if d.ss.conns > 1 {
		st.Set(native.DomainCBL, native.CodeBusy)
		return false
	}
	path := d.ss.path
	if err := l.closeLocked(d); err != nil {
		st.Set(native.DomainCBL, native.CodeIOError)
		return false
	}
	if err := l.destroyStore(path); err != nil {
		st.Set(native.DomainCBL, native.CodeIOError)
		return false
	}
	return true
}

// DeleteDatabaseFile implements native.Library.
func (l *Library) DeleteDatabaseFile(name, dir string, st *native.Status) bool {
	path := dbPath(l.dir(dir), name)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, open := l.stores[path]; open {
		st.Set(native.DomainCBL, native.CodeBusy)
		return false
	}
	if !l.storeExists(path) {
		st.Set(native.DomainCBL, native.CodeNotFound)
		return false
	}
	if err := l.destroyStore(path); err != nil {
		st.Set(native.DomainCBL, native.CodeIOError)
		return false
	}
	return true
}

// DatabaseExists implements native.Library.
func (l *Library) DatabaseExists(name, dir string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storeExists(dbPath(l.dir(dir), name))
}

// DatabaseName implements native.Library.
func (l *Library) DatabaseName(db native.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get("CBLDatabase_Name", db, native.KindDatabase).(*database).name
}

// DatabasePath implements native.Library.
func (l *Library) DatabasePath(db native.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.get("CBLDatabase_Path", db, native.KindDatabase).(*database)
	return dbPath(d.dir, d.name)
}

// DatabaseCount implements native.Library. A closed database counts zero.
func (l *Library) DatabaseCount(db native.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.get("CBLDatabase_Count", db, native.KindDatabase).(*database)
	if d.ss == nil {
		return 0
	}
	recs, err := l.liveRecordsLocked(d)
	if err != nil {
		l.log.Warn("count failed", zap.String("name", d.name), zap.Error(err))
		return 0
	}
	return uint64(len(recs))
}

// BeginTransaction implements native.Library. Transactions nest; writes are
// applied when the outermost one commits.
func (l *Library) BeginTransaction(db native.Ptr, st *native.Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.openDB("CBLDatabase_BeginTransaction", db, st)
	if d == nil {
		return false
	}
	if d.txDepth == 0 {
		d.pending = make(map[string][]byte)
		d.pendingOrder = nil
		d.txAborted = false
	}
	d.txDepth++
	return true
}

// EndTransaction implements native.Library. Aborting any level aborts the
// outermost transaction.
func (l *Library) EndTransaction(db native.Ptr, commit bool, st *native.Status) bool {
	l.mu.Lock()
	d := l.openDB("CBLDatabase_EndTransaction", db, st)
	if d == nil {
		l.mu.Unlock()
		return false
	}
	if d.txDepth == 0 {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeNotInTransaction)
		return false
	}
	if !commit {
		d.txAborted = true
	}
	d.txDepth--
	if d.txDepth > 0 {
		l.mu.Unlock()
		return true
	}

	pending, order := d.pending, d.pendingOrder
	d.pending, d.pendingOrder = nil, nil
	if d.txAborted {
		l.mu.Unlock()
		return true
	}
	ns, err := l.flushLocked(d, pending, order)
	l.mu.Unlock()
	if err != nil {
		st.Set(native.DomainCBL, native.CodeIOError)
		return false
	}
	deliver(ns)
	return true
}

func (l *Library) flushLocked(d *database, pending map[string][]byte, order []string) ([]notification, error) {
	var recs []*record
	for _, id := range order {
		data := pending[id]
		if data == nil {
			if err := d.ss.store.purge(id); err != nil {
				return nil, err
			}
			continue
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if len(recs) > 0 {
		if err := d.ss.store.put(recs...); err != nil {
			return nil, err
		}
	}
	return d.ss.notifications(order), nil
}

// lookupLocked returns the current record for id, seen through d's open
// transaction.
func (l *Library) lookupLocked(d *database, id string) (*record, error) {
	if d.pending != nil {
		if data, ok := d.pending[id]; ok {
			if data == nil {
				return nil, nil
			}
			return decodeRecord(data)
		}
	}
	return d.ss.store.get(id)
}

// writeLocked stores rec, or purges id when rec is nil. Outside a
// transaction the change is applied at once and its notifications returned.
func (l *Library) writeLocked(d *database, id string, rec *record) ([]notification, error) {
	if d.txDepth > 0 {
		var data []byte
		if rec != nil {
			var err error
			if data, err = encodeRecord(rec); err != nil {
				return nil, err
			}
		}
		if _, seen := d.pending[id]; !seen {
			d.pendingOrder = append(d.pendingOrder, id)
		}
		d.pending[id] = data
		return nil, nil
	}
	var err error
	if rec == nil {
		err = d.ss.store.purge(id)
	} else {
		err = d.ss.store.put(rec)
	}
	if err != nil {
		return nil, err
	}
	return d.ss.notifications([]string{id}), nil
}

// liveRecordsLocked returns every non-deleted record, in id order.
func (l *Library) liveRecordsLocked(d *database) ([]*record, error) {
	byID := make(map[string]*record)
	err := d.ss.store.scan(func(rec *record) error {
		byID[rec.ID] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	for id, data := range d.pending {
		if data == nil {
			delete(byID, id)
			continue
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		byID[id] = rec
	}
	out := make([]*record, 0, len(byID))
	for _, rec := range byID {
		if !rec.Deleted {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddChangeListener implements native.Library. fn runs synchronously after
// each committed change, on the goroutine that made it. A listener added to
// a closed database never fires.
func (l *Library) AddChangeListener(db native.Ptr, fn native.ChangeFunc) native.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.get("CBLDatabase_AddChangeListener", db, native.KindDatabase).(*database)
	ln := &listener{db: db, fn: fn, ss: d.ss}
	if d.ss != nil {
		d.ss.listeners = append(d.ss.listeners, ln)
	}
	ln.token = l.newObject(native.KindListenerToken, ln)
	return ln.token
}

// RemoveListener implements native.Library. It stops callbacks; the token
// itself is still released by its owner.
func (l *Library) RemoveListener(token native.Ptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get("CBLListener_Remove", token, native.KindListenerToken).(*listener).detach()
}
