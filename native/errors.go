package native

import (
	"errors"
	"fmt"
)

// Class tells apart failures of constructing native calls from failures of
// every other native call.
type Class uint8

const (
	// ClassCall is a failed non-constructing call. Any out-value is void.
	ClassCall Class = iota
	// ClassConstruction is a failed constructor. No handle was produced.
	ClassConstruction
)

// String returns the class name.
func (c Class) String() string {
	if c == ClassConstruction {
		return "construction"
	}
	return "call"
}

// Error is a native failure translated at the call site.
type Error struct {
	Op           string // Native operation that failed
	Class        Class
	Domain       Domain
	Code         int32
	InternalInfo uint32
	Message      string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("cblite %s: %s (%s %d)", e.Op, e.Message, e.Domain, e.Code)
}

// Is matches the class sentinels ErrConstruction and ErrCall, and any other
// *Error with the same domain and code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConstruction:
		return e.Class == ClassConstruction
	case ErrCall:
		return e.Class == ClassCall
	}
	if t, ok := target.(*Error); ok {
		return e.Domain == t.Domain && e.Code == t.Code
	}
	return false
}

// Status returns the status record the error was built from.
func (e *Error) Status() Status {
	return Status{Domain: e.Domain, Code: e.Code, InternalInfo: e.InternalInfo}
}

// Class sentinels. Match with errors.Is.
var (
	ErrConstruction = errors.New("cblite: native constructor failed")
	ErrCall         = errors.New("cblite: native call failed")
)

// Well-known errors usable as errors.Is targets.
var (
	ErrNotFound = &Error{Op: "lookup", Domain: DomainCBL, Code: CodeNotFound, Message: cblMessages[CodeNotFound]}
	ErrConflict = &Error{Op: "save", Domain: DomainCBL, Code: CodeConflict, Message: cblMessages[CodeConflict]}
	ErrNotOpen  = &Error{Op: "open", Domain: DomainCBL, Code: CodeNotOpen, Message: cblMessages[CodeNotOpen]}
	ErrBusy     = &Error{Op: "open", Domain: DomainCBL, Code: CodeBusy, Message: cblMessages[CodeBusy]}
)

// NewError builds an *Error from a status. It returns nil for a clean status.
// msg resolves the message; nil falls back to DefaultMessage.
func NewError(op string, class Class, st Status, msg func(Status) string) error {
	if !st.Failed() {
		return nil
	}
	st = st.Translate()
	text := ""
	if msg != nil {
		text = msg(st)
	}
	if text == "" {
		text = DefaultMessage(st)
	}
	return &Error{
		Op:           op,
		Class:        class,
		Domain:       st.Domain,
		Code:         st.Code,
		InternalInfo: st.InternalInfo,
		Message:      text,
	}
}

// IsNotFound returns true if the error is a CBL NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a CBL Conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Code returns the native error code from an error, or 0 if not a native error.
func Code(err error) int32 {
	var nErr *Error
	if errors.As(err, &nErr) {
		return nErr.Code
	}
	return 0
}

// DomainOf returns the native error domain from an error, or DomainNone.
func DomainOf(err error) Domain {
	var nErr *Error
	if errors.As(err, &nErr) {
		return nErr.Domain
	}
	return DomainNone
}

// DefectError reports a broken reference-counting invariant detected by a
// backend, such as releasing an object that is already freed. It is not
// recoverable: backends panic with it.
type DefectError struct {
	Op   string
	Ptr  Ptr
	Kind Kind
	Msg  string
}

// Error implements the error interface.
func (e *DefectError) Error() string {
	return fmt.Sprintf("cblite defect: %s %s %s: %s", e.Op, e.Kind, e.Ptr, e.Msg)
}
