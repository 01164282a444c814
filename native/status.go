package native

import "fmt"

// Domain is the error domain of a native status record.
type Domain uint8

// Error domains (CBLErrorDomain values).
const (
	DomainNone      Domain = 0
	DomainCBL       Domain = 1
	DomainPOSIX     Domain = 2
	DomainSQLite    Domain = 3
	DomainFleece    Domain = 4
	DomainNetwork   Domain = 5
	DomainWebSocket Domain = 6
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case DomainNone:
		return "none"
	case DomainCBL:
		return "CouchbaseLite"
	case DomainPOSIX:
		return "POSIX"
	case DomainSQLite:
		return "SQLite"
	case DomainFleece:
		return "Fleece"
	case DomainNetwork:
		return "Network"
	case DomainWebSocket:
		return "WebSocket"
	default:
		return fmt.Sprintf("Domain(%d)", uint8(d))
	}
}

// Couchbase Lite domain error codes.
const (
	CodeAssertionFailed int32 = iota + 1
	CodeUnimplemented
	CodeUnsupportedEncryption
	CodeBadRevisionID
	CodeCorruptRevisionData
	CodeNotOpen
	CodeNotFound
	CodeConflict
	CodeInvalidParameter
	CodeUnexpectedError
	CodeCantOpenFile
	CodeIOError
	CodeMemoryError
	CodeNotWriteable
	CodeCorruptData
	CodeBusy
	CodeNotInTransaction
	CodeTransactionNotClosed
	CodeUnsupported
	CodeNotADatabaseFile
	CodeWrongFormat
	CodeCrypto
	CodeInvalidQuery
	CodeMissingIndex
	CodeInvalidQueryParam
	CodeRemoteError
	CodeDatabaseTooOld
	CodeDatabaseTooNew
	CodeBadDocID
	CodeCantUpgradeDatabase

	// CodeUntranslatable is used for a status whose domain or code is unknown.
	CodeUntranslatable int32 = 1000
)

// Fleece domain error codes.
const (
	FleeceMemoryError int32 = iota + 1
	FleeceOutOfRange
	FleeceInvalidData
	FleeceEncodeError
	FleeceJSONError
	FleeceUnknownValue
	FleeceInternalError
	FleeceNotFound
	FleeceSharedKeysStateError
	FleecePOSIXError
	FleeceUnsupported
)

// Network domain error codes.
const (
	NetworkDNSFailure int32 = iota + 1
	NetworkUnknownHost
	NetworkTimeout
	NetworkInvalidURL
	NetworkTooManyRedirects
	NetworkTLSHandshakeFailed
	NetworkTLSCertExpired
	NetworkTLSCertUntrusted
	NetworkTLSClientCertRequired
	NetworkTLSClientCertRejected
	NetworkTLSCertUnknownRoot
	NetworkInvalidRedirect
	NetworkUnknown
	NetworkTLSCertRevoked
	NetworkTLSCertNameMismatch
)

var cblMessages = map[int32]string{
	CodeAssertionFailed:       "internal assertion failure",
	CodeUnimplemented:         "unimplemented API call",
	CodeUnsupportedEncryption: "unsupported encryption algorithm",
	CodeBadRevisionID:         "invalid revision ID syntax",
	CodeCorruptRevisionData:   "revision contains corrupted/unreadable data",
	CodeNotOpen:               "database is not open",
	CodeNotFound:              "not found",
	CodeConflict:              "document update conflict",
	CodeInvalidParameter:      "invalid parameter",
	CodeUnexpectedError:       "unexpected internal error",
	CodeCantOpenFile:          "database file can't be opened",
	CodeIOError:               "file I/O error",
	CodeMemoryError:           "memory allocation failed",
	CodeNotWriteable:          "file is not writeable",
	CodeCorruptData:           "data is corrupted",
	CodeBusy:                  "database is busy/locked",
	CodeNotInTransaction:      "must be called while in a transaction",
	CodeTransactionNotClosed:  "database can't be closed while a transaction is open",
	CodeUnsupported:           "operation not supported in this database",
	CodeNotADatabaseFile:      "file is not a database, or encryption key is wrong",
	CodeWrongFormat:           "database exists but not in the format/storage requested",
	CodeCrypto:                "encryption/decryption error",
	CodeInvalidQuery:          "invalid query",
	CodeMissingIndex:          "no such index, or query requires a nonexistent index",
	CodeInvalidQueryParam:     "unknown query param name, or param number out of range",
	CodeRemoteError:           "unknown error from remote server",
	CodeDatabaseTooOld:        "database file format is older than what I can open",
	CodeDatabaseTooNew:        "database file format is newer than what I can open",
	CodeBadDocID:              "invalid document ID",
	CodeCantUpgradeDatabase:   "database can't be upgraded",
}

var fleeceMessages = map[int32]string{
	FleeceMemoryError:          "out of memory",
	FleeceOutOfRange:           "array index or iterator out of range",
	FleeceInvalidData:          "bad input data",
	FleeceEncodeError:          "structural error encoding",
	FleeceJSONError:            "error parsing JSON",
	FleeceUnknownValue:         "unparseable data in a value",
	FleeceInternalError:        "internal Fleece error",
	FleeceNotFound:             "key not found",
	FleeceSharedKeysStateError: "misuse of shared keys",
	FleecePOSIXError:           "OS level error",
	FleeceUnsupported:          "operation is unsupported",
}

var networkMessages = map[int32]string{
	NetworkDNSFailure:            "DNS lookup failed",
	NetworkUnknownHost:           "unknown host",
	NetworkTimeout:               "no response received before timeout",
	NetworkInvalidURL:            "invalid URL",
	NetworkTooManyRedirects:      "HTTP redirect loop",
	NetworkTLSHandshakeFailed:    "TLS handshake failed",
	NetworkTLSCertExpired:        "server's TLS certificate has expired",
	NetworkTLSCertUntrusted:      "server's TLS certificate is untrusted",
	NetworkTLSClientCertRequired: "server requires a TLS client certificate",
	NetworkTLSClientCertRejected: "server rejected the TLS client certificate",
	NetworkTLSCertUnknownRoot:    "self-signed or unknown root certificate",
	NetworkInvalidRedirect:       "redirect to invalid URL",
	NetworkUnknown:               "unknown networking error",
	NetworkTLSCertRevoked:        "server's TLS certificate has been revoked",
	NetworkTLSCertNameMismatch:   "server certificate name does not match host",
}

// Status mirrors the native CBLError record written by every fallible call.
// The field layout matches the C struct so a *Status can be handed to the
// native side directly.
type Status struct {
	Domain       Domain
	_            [3]byte
	Code         int32
	InternalInfo uint32
}

// Failed reports whether the status describes an error.
func (s Status) Failed() bool {
	return s.Code != 0
}

// Set fills s with a domain and code. It is a convenience for backends.
func (s *Status) Set(domain Domain, code int32) {
	if s == nil {
		return
	}
	s.Domain = domain
	s.Code = code
	s.InternalInfo = 0
}

// Reset clears the status.
func (s *Status) Reset() {
	if s == nil {
		return
	}
	*s = Status{}
}

// Translate returns the status with unknown domains or codes mapped to
// DomainCBL/CodeUntranslatable. Open-ended domains (POSIX, SQLite, WebSocket)
// pass through.
func (s Status) Translate() Status {
	if !s.Failed() {
		return s
	}
	switch s.Domain {
	case DomainCBL:
		if _, ok := cblMessages[s.Code]; ok || s.Code == CodeUntranslatable {
			return s
		}
	case DomainFleece:
		if _, ok := fleeceMessages[s.Code]; ok {
			return s
		}
	case DomainNetwork:
		if _, ok := networkMessages[s.Code]; ok {
			return s
		}
	case DomainPOSIX, DomainSQLite, DomainWebSocket:
		return s
	}
	return Status{Domain: DomainCBL, Code: CodeUntranslatable, InternalInfo: s.InternalInfo}
}

// DefaultMessage returns the built-in message for a status. Backends that can
// ask the native library for a message should prefer that.
func DefaultMessage(s Status) string {
	s = s.Translate()
	if !s.Failed() {
		return ""
	}
	switch s.Domain {
	case DomainCBL:
		if s.Code == CodeUntranslatable {
			return "Unknown error"
		}
		return cblMessages[s.Code]
	case DomainFleece:
		return fleeceMessages[s.Code]
	case DomainNetwork:
		return networkMessages[s.Code]
	case DomainPOSIX:
		return fmt.Sprintf("POSIX error %d", s.Code)
	case DomainSQLite:
		return fmt.Sprintf("SQLite error %d", s.Code)
	case DomainWebSocket:
		return fmt.Sprintf("WebSocket close code %d", s.Code)
	}
	return "Unknown error"
}
