package memlite

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

// document is the value of a KindDocument object. It is a detached copy;
// it does not reference its database.
type document struct {
	id      string
	revID   string
	seq     uint64
	deleted bool
	props   map[string]any
}

func (doc *document) describe() string {
	if doc.revID == "" {
		return fmt.Sprintf("id=%q", doc.id)
	}
	return fmt.Sprintf("id=%q rev=%s", doc.id, doc.revID)
}

func newDocID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return "-" + base64.RawURLEncoding.EncodeToString(b[:])
}

func revGeneration(rev string) int {
	i := strings.IndexByte(rev, '-')
	if i <= 0 {
		return 0
	}
	n, err := strconv.Atoi(rev[:i])
	if err != nil {
		return 0
	}
	return n
}

// newRevID derives a revision id from its parent and content, the way
// Couchbase Lite digests revisions.
func newRevID(parent string, deleted bool, body []byte) string {
	h := sha1.New()
	h.Write([]byte(parent))
	if deleted {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write(body)
	return fmt.Sprintf("%d-%x", revGeneration(parent)+1, h.Sum(nil))
}

// NewDocument implements native.Library. An empty id gets a generated one.
func (l *Library) NewDocument(id string) native.Ptr {
	if id == "" {
		id = newDocID()
	}
	return l.newObject(native.KindDocument, &document{id: id, props: map[string]any{}})
}

func (l *Library) doc(op string, p native.Ptr) *document {
	return l.get(op, p, native.KindDocument).(*document)
}

// GetDocument implements native.Library. A missing or deleted document
// yields a null pointer with a clean status.
func (l *Library) GetDocument(db native.Ptr, id string, st *native.Status) native.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.openDB("CBLDatabase_GetMutableDocument", db, st)
	if d == nil {
		return 0
	}
	rec, err := l.lookupLocked(d, id)
	if err != nil {
		l.log.Warn("read document failed", zap.String("id", id), zap.Error(err))
		st.Set(native.DomainCBL, native.CodeCorruptData)
		return 0
	}
	if rec == nil || rec.Deleted {
		return 0
	}
	props := rec.Body
	if props == nil {
		props = map[string]any{}
	}
	return l.newObject(native.KindDocument, &document{
		id:    rec.ID,
		revID: rec.RevID,
		seq:   rec.Sequence,
		props: props,
	})
}

// SaveDocument implements native.Library.
func (l *Library) SaveDocument(db, doc native.Ptr, cc native.Concurrency, st *native.Status) bool {
	l.mu.Lock()
	d := l.openDB("CBLDatabase_SaveDocument", db, st)
	if d == nil {
		l.mu.Unlock()
		return false
	}
	dc := l.doc("CBLDatabase_SaveDocument", doc)
	cur, err := l.lookupLocked(d, dc.id)
	if err != nil {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeCorruptData)
		return false
	}
	if cc == native.FailOnConflict && conflicts(cur, dc) {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeConflict)
		return false
	}
	ns, ok := l.storeRevisionLocked(d, dc, cur, false, st)
	l.mu.Unlock()
	if ok {
		deliver(ns)
	}
	return ok
}

// DeleteDocument implements native.Library. It writes a tombstone.
func (l *Library) DeleteDocument(db, doc native.Ptr, cc native.Concurrency, st *native.Status) bool {
	l.mu.Lock()
	d := l.openDB("CBLDatabase_DeleteDocument", db, st)
	if d == nil {
		l.mu.Unlock()
		return false
	}
	dc := l.doc("CBLDatabase_DeleteDocument", doc)
	cur, err := l.lookupLocked(d, dc.id)
	if err != nil {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeCorruptData)
		return false
	}
	if dc.revID == "" || cur == nil || cur.Deleted {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeNotFound)
		return false
	}
	if cc == native.FailOnConflict && cur.RevID != dc.revID {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeConflict)
		return false
	}
	ns, ok := l.storeRevisionLocked(d, dc, cur, true, st)
	l.mu.Unlock()
	if ok {
		deliver(ns)
	}
	return ok
}

// conflicts reports whether saving doc over cur loses someone else's write.
func conflicts(cur *record, doc *document) bool {
	if cur == nil {
		return false
	}
	if cur.Deleted && doc.revID == "" {
		return false
	}
	return cur.RevID != doc.revID
}

func (l *Library) storeRevisionLocked(d *database, dc *document, cur *record, deleted bool, st *native.Status) ([]notification, bool) {
	parent := ""
	if cur != nil {
		parent = cur.RevID
	}
	rec := &record{ID: dc.id, Deleted: deleted}
	if !deleted {
		rec.Body = dc.props
	}
	body, err := encodeRecord(&record{ID: dc.id, Body: rec.Body})
	if err != nil {
		st.Set(native.DomainFleece, native.FleeceEncodeError)
		return nil, false
	}
	rec.RevID = newRevID(parent, deleted, body)
	if rec.Sequence, err = d.ss.store.nextSequence(); err != nil {
		st.Set(native.DomainCBL, native.CodeIOError)
		return nil, false
	}
	ns, err := l.writeLocked(d, dc.id, rec)
	if err != nil {
		l.log.Warn("write document failed", zap.String("id", dc.id), zap.Error(err))
		st.Set(native.DomainCBL, native.CodeIOError)
		return nil, false
	}
	dc.revID = rec.RevID
	dc.seq = rec.Sequence
	dc.deleted = deleted
	return ns, true
}

// PurgeDocument implements native.Library.
func (l *Library) PurgeDocument(db native.Ptr, id string, st *native.Status) bool {
	l.mu.Lock()
	d := l.openDB("CBLDatabase_PurgeDocumentByID", db, st)
	if d == nil {
		l.mu.Unlock()
		return false
	}
	cur, err := l.lookupLocked(d, id)
	if err != nil {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeCorruptData)
		return false
	}
	if cur == nil {
		l.mu.Unlock()
		st.Set(native.DomainCBL, native.CodeNotFound)
		return false
	}
	ns, err := l.writeLocked(d, id, nil)
	l.mu.Unlock()
	if err != nil {
		st.Set(native.DomainCBL, native.CodeIOError)
		return false
	}
	deliver(ns)
	return true
}

// DocumentID implements native.Library.
func (l *Library) DocumentID(doc native.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc("CBLDocument_ID", doc).id
}

// DocumentRevisionID implements native.Library. It is empty until saved.
func (l *Library) DocumentRevisionID(doc native.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc("CBLDocument_RevisionID", doc).revID
}

// DocumentSequence implements native.Library. It is zero until saved.
func (l *Library) DocumentSequence(doc native.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc("CBLDocument_Sequence", doc).seq
}

// DocumentJSON implements native.Library.
func (l *Library) DocumentJSON(doc native.Ptr, st *native.Status) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := json.Marshal(l.doc("CBLDocument_CreateJSON", doc).props)
	if err != nil {
		st.Set(native.DomainFleece, native.FleeceEncodeError)
		return ""
	}
	return string(data)
}

// SetDocumentJSON implements native.Library. The JSON must be an object.
func (l *Library) SetDocumentJSON(doc native.Ptr, text string, st *native.Status) bool {
	var props map[string]any
	if err := json.Unmarshal([]byte(text), &props); err != nil || props == nil {
		st.Set(native.DomainFleece, native.FleeceJSONError)
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc("CBLDocument_SetJSON", doc).props = props
	return true
}
