//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/cblgo/internal/platform"
	"github.com/obinnaokechukwu/cblgo/native"
)

// FLString and FLSlice arguments are passed as (buf, size). A two-word struct
// is classified into two integer registers on amd64 and arm64, so this is
// ABI-compatible with passing the struct by value.

// Refcounting and diagnostics
var (
	cblRetain         func(p uintptr) uintptr
	cblRelease        func(p uintptr)
	cblInstanceCount  func() uint64
	cblDumpInstances  func()
	flBufRelease      func(buf unsafe.Pointer)
	cblErrorMessage   func(st *native.Status) flSlice
	cblLogSetCallback func(cb uintptr)
	cblLogSetCBLevel  func(level uint8)
	cblLogSetConsole  func(level uint8)
)

// Database
var (
	cblDatabaseOpen        func(name *byte, nameLen uintptr, cfg unsafe.Pointer, st *native.Status) uintptr
	cblDatabaseClose       func(db uintptr, st *native.Status) bool
	cblDatabaseDelete      func(db uintptr, st *native.Status) bool
	cblDeleteDatabase      func(name *byte, nameLen uintptr, dir *byte, dirLen uintptr, st *native.Status) bool
	cblDatabaseExists      func(name *byte, nameLen uintptr, dir *byte, dirLen uintptr) bool
	cblDatabaseName        func(db uintptr) flSlice
	cblDatabasePath        func(db uintptr) flSlice
	cblDatabaseCount       func(db uintptr) uint64
	cblDatabaseBeginTx     func(db uintptr, st *native.Status) bool
	cblDatabaseEndTx       func(db uintptr, commit bool, st *native.Status) bool
	cblDatabaseAddListener func(db uintptr, cb uintptr, ctx uintptr) uintptr
	cblListenerRemove      func(token uintptr)
)

// Document
var (
	cblDocumentCreateWithID func(id *byte, idLen uintptr) uintptr
	cblDatabaseGetMutable   func(db uintptr, id *byte, idLen uintptr, st *native.Status) uintptr
	cblDatabaseSaveDoc      func(db, doc uintptr, cc uint8, st *native.Status) bool
	cblDatabaseDeleteDoc    func(db, doc uintptr, cc uint8, st *native.Status) bool
	cblDatabasePurgeByID    func(db uintptr, id *byte, idLen uintptr, st *native.Status) bool
	cblDocumentID           func(doc uintptr) flSlice
	cblDocumentRevisionID   func(doc uintptr) flSlice
	cblDocumentSequence     func(doc uintptr) uint64
	cblDocumentCreateJSON   func(doc uintptr) flSlice
	cblDocumentSetJSON      func(doc uintptr, json *byte, jsonLen uintptr, st *native.Status) bool
)

// Query
var (
	cblDatabaseCreateQuery func(db uintptr, lang uint32, text *byte, textLen uintptr, errPos *int32, st *native.Status) uintptr
	cblQueryColumnCount    func(q uintptr) uint32
	cblQueryColumnName     func(q uintptr, col uint32) flSlice
	cblQueryExecute        func(q uintptr, st *native.Status) uintptr
	cblResultSetNext       func(rs uintptr) bool
	cblResultSetArray      func(rs uintptr) uintptr
	flValueToJSON          func(v uintptr) flSlice
)

// Replication
var (
	cblEndpointCreateWithURL func(url *byte, urlLen uintptr, st *native.Status) uintptr
	cblEndpointCreateLocalDB func(db uintptr) uintptr
	cblEndpointFree          func(ep uintptr)
	cblAuthCreatePassword    func(user *byte, userLen uintptr, pass *byte, passLen uintptr) uintptr
	cblAuthCreateSession     func(sid *byte, sidLen uintptr, cookie *byte, cookieLen uintptr) uintptr
	cblAuthFree              func(auth uintptr)
	cblReplicatorCreate      func(cfg unsafe.Pointer, st *native.Status) uintptr
	cblReplicatorStart       func(r uintptr, resetCheckpoint bool)
	cblReplicatorStop        func(r uintptr)
	cblReplicatorStatus      func(r uintptr) replicatorStatus
	flMutableArrayNew        func() uintptr
	flMutableArrayAppend     func(arr uintptr) uintptr
	flSlotSetString          func(slot uintptr, s *byte, n uintptr)
	flValueRelease           func(v uintptr)
)

type symbol struct {
	fptr any
	name string
	// structReturn marks calls returning a struct by value.
	structReturn bool
	optional     bool
}

var symbols = []symbol{
	{fptr: &cblRetain, name: "CBL_Retain"},
	{fptr: &cblRelease, name: "CBL_Release"},
	{fptr: &cblInstanceCount, name: "CBL_InstanceCount"},
	{fptr: &cblDumpInstances, name: "CBL_DumpInstances"},
	{fptr: &flBufRelease, name: "_FLBuf_Release"},
	{fptr: &cblErrorMessage, name: "CBLError_Message", structReturn: true},
	{fptr: &cblLogSetCallback, name: "CBLLog_SetCallback"},
	{fptr: &cblLogSetCBLevel, name: "CBLLog_SetCallbackLevel"},
	{fptr: &cblLogSetConsole, name: "CBLLog_SetConsoleLevel"},

	{fptr: &cblDatabaseOpen, name: "CBLDatabase_Open"},
	{fptr: &cblDatabaseClose, name: "CBLDatabase_Close"},
	{fptr: &cblDatabaseDelete, name: "CBLDatabase_Delete"},
	{fptr: &cblDeleteDatabase, name: "CBL_DeleteDatabase"},
	{fptr: &cblDatabaseExists, name: "CBL_DatabaseExists"},
	{fptr: &cblDatabaseName, name: "CBLDatabase_Name", structReturn: true},
	{fptr: &cblDatabasePath, name: "CBLDatabase_Path", structReturn: true},
	{fptr: &cblDatabaseCount, name: "CBLDatabase_Count"},
	{fptr: &cblDatabaseBeginTx, name: "CBLDatabase_BeginTransaction"},
	{fptr: &cblDatabaseEndTx, name: "CBLDatabase_EndTransaction"},
	{fptr: &cblDatabaseAddListener, name: "CBLDatabase_AddChangeListener"},
	{fptr: &cblListenerRemove, name: "CBLListener_Remove"},

	{fptr: &cblDocumentCreateWithID, name: "CBLDocument_CreateWithID"},
	{fptr: &cblDatabaseGetMutable, name: "CBLDatabase_GetMutableDocument"},
	{fptr: &cblDatabaseSaveDoc, name: "CBLDatabase_SaveDocumentWithConcurrencyControl"},
	{fptr: &cblDatabaseDeleteDoc, name: "CBLDatabase_DeleteDocumentWithConcurrencyControl"},
	{fptr: &cblDatabasePurgeByID, name: "CBLDatabase_PurgeDocumentByID"},
	{fptr: &cblDocumentID, name: "CBLDocument_ID", structReturn: true},
	{fptr: &cblDocumentRevisionID, name: "CBLDocument_RevisionID", structReturn: true},
	{fptr: &cblDocumentSequence, name: "CBLDocument_Sequence"},
	{fptr: &cblDocumentCreateJSON, name: "CBLDocument_CreateJSON", structReturn: true},
	{fptr: &cblDocumentSetJSON, name: "CBLDocument_SetJSON"},

	{fptr: &cblDatabaseCreateQuery, name: "CBLDatabase_CreateQuery"},
	{fptr: &cblQueryColumnCount, name: "CBLQuery_ColumnCount"},
	{fptr: &cblQueryColumnName, name: "CBLQuery_ColumnName", structReturn: true},
	{fptr: &cblQueryExecute, name: "CBLQuery_Execute"},
	{fptr: &cblResultSetNext, name: "CBLResultSet_Next"},
	{fptr: &cblResultSetArray, name: "CBLResultSet_ResultArray"},
	{fptr: &flValueToJSON, name: "FLValue_ToJSON", structReturn: true},

	{fptr: &cblEndpointCreateWithURL, name: "CBLEndpoint_CreateWithURL"},
	// Enterprise Edition only.
	{fptr: &cblEndpointCreateLocalDB, name: "CBLEndpoint_CreateWithLocalDB", optional: true},
	{fptr: &cblEndpointFree, name: "CBLEndpoint_Free"},
	{fptr: &cblAuthCreatePassword, name: "CBLAuth_CreatePassword"},
	{fptr: &cblAuthCreateSession, name: "CBLAuth_CreateSession"},
	{fptr: &cblAuthFree, name: "CBLAuth_Free"},
	{fptr: &cblReplicatorCreate, name: "CBLReplicator_Create"},
	{fptr: &cblReplicatorStart, name: "CBLReplicator_Start"},
	{fptr: &cblReplicatorStop, name: "CBLReplicator_Stop"},
	{fptr: &cblReplicatorStatus, name: "CBLReplicator_Status", structReturn: true},
	{fptr: &flMutableArrayNew, name: "FLMutableArray_New"},
	{fptr: &flMutableArrayAppend, name: "FLMutableArray_Append"},
	{fptr: &flSlotSetString, name: "FLSlot_SetString"},
	{fptr: &flValueRelease, name: "FLValue_Release"},
}

// registerSymbols binds every symbol of lib. Struct-returning calls are
// skipped where purego cannot return structs; their func vars stay nil.
// A missing required symbol fails the load.
func registerSymbols(lib uintptr) error {
	for _, s := range symbols {
		if s.structReturn && !platform.SupportsStructByValue {
			continue
		}
		addr, err := purego.Dlsym(lib, s.name)
		if err != nil || addr == 0 {
			if s.optional {
				continue
			}
			return fmt.Errorf("%w: %s", ErrSymbolNotFound, s.name)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return nil
}
