package native

// Concurrency selects conflict handling when saving or deleting a document.
type Concurrency uint8

const (
	LastWriteWins Concurrency = iota
	FailOnConflict
)

// QueryLanguage selects the syntax of a query string.
type QueryLanguage uint32

const (
	QueryJSON QueryLanguage = iota
	QueryN1QL
)

// ReplicatorType is the direction of replication.
type ReplicatorType uint8

const (
	PushAndPull ReplicatorType = iota
	Push
	Pull
)

// String returns the direction name.
func (t ReplicatorType) String() string {
	switch t {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return "push-and-pull"
	}
}

// ReplicatorActivity is the activity level of a replicator.
type ReplicatorActivity uint8

const (
	ActivityStopped ReplicatorActivity = iota
	ActivityOffline
	ActivityConnecting
	ActivityIdle
	ActivityBusy
)

// String returns the activity name.
func (a ReplicatorActivity) String() string {
	switch a {
	case ActivityStopped:
		return "stopped"
	case ActivityOffline:
		return "offline"
	case ActivityConnecting:
		return "connecting"
	case ActivityIdle:
		return "idle"
	case ActivityBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// ReplicatorProgress reports how far a replicator got.
type ReplicatorProgress struct {
	Complete      float32
	DocumentCount uint64
}

// ReplicatorStatus is a snapshot of a replicator's state.
type ReplicatorStatus struct {
	Activity ReplicatorActivity
	Progress ReplicatorProgress
	Error    Status
}

// DatabaseConfig configures OpenDatabase.
type DatabaseConfig struct {
	Directory     string
	EncryptionKey []byte
}

// ReplicatorConfig configures NewReplicator. Pointers are borrowed: the
// native side retains what it keeps.
type ReplicatorConfig struct {
	Database      Ptr
	Endpoint      Ptr
	Authenticator Ptr
	Type          ReplicatorType
	Continuous    bool
	Channels      []string
	DocumentIDs   []string
}

// ChangeFunc receives database change notifications. db is borrowed for the
// duration of the call.
type ChangeFunc func(db Ptr, docIDs []string)

// Library is the native API surface the binding needs. Every method that can
// fail takes a *Status out-parameter, mirroring the C convention; callers go
// through the call adapter rather than reading it directly.
//
// Constructors (Open*, New*, Get*, Create*, Execute*, Add*) return a pointer
// carrying one reference owned by the caller.
type Library interface {
	Messenger

	// Name identifies the backend, e.g. "libcblite" or "memlite".
	Name() string
	Version() Version

	// Retain increments the object's reference count and returns it.
	Retain(p Ptr) Ptr
	// Release decrements the reference count, freeing the object at zero.
	Release(p Ptr)
	// InstanceCounts returns the live object counters of the process.
	InstanceCounts() Counts
	// DumpInstances lists live objects. It may return nil when unsupported.
	DumpInstances() []Instance

	OpenDatabase(name string, cfg DatabaseConfig, st *Status) Ptr
	CloseDatabase(db Ptr, st *Status) bool
	DeleteDatabase(db Ptr, st *Status) bool
	DeleteDatabaseFile(name, dir string, st *Status) bool
	DatabaseExists(name, dir string) bool
	DatabaseName(db Ptr) string
	DatabasePath(db Ptr) string
	DatabaseCount(db Ptr) uint64
	BeginTransaction(db Ptr, st *Status) bool
	EndTransaction(db Ptr, commit bool, st *Status) bool
	AddChangeListener(db Ptr, fn ChangeFunc) Ptr
	RemoveListener(token Ptr)

	NewDocument(id string) Ptr
	GetDocument(db Ptr, id string, st *Status) Ptr
	SaveDocument(db, doc Ptr, cc Concurrency, st *Status) bool
	DeleteDocument(db, doc Ptr, cc Concurrency, st *Status) bool
	PurgeDocument(db Ptr, id string, st *Status) bool
	DocumentID(doc Ptr) string
	DocumentRevisionID(doc Ptr) string
	DocumentSequence(doc Ptr) uint64
	DocumentJSON(doc Ptr, st *Status) string
	SetDocumentJSON(doc Ptr, json string, st *Status) bool

	CreateQuery(db Ptr, lang QueryLanguage, text string, errPos *int32, st *Status) Ptr
	QueryColumnCount(q Ptr) int
	QueryColumnName(q Ptr, col int) string
	ExecuteQuery(q Ptr, st *Status) Ptr
	ResultSetNext(rs Ptr) bool
	ResultSetRowJSON(rs Ptr, st *Status) string

	NewURLEndpoint(url string, st *Status) Ptr
	NewDatabaseEndpoint(db Ptr) Ptr
	NewPasswordAuthenticator(user, password string) Ptr
	NewSessionAuthenticator(sessionID, cookieName string) Ptr
	NewReplicator(cfg ReplicatorConfig, st *Status) Ptr
	StartReplicator(r Ptr, resetCheckpoint bool)
	StopReplicator(r Ptr)
	ReplicatorStatus(r Ptr) ReplicatorStatus
}
