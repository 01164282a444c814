package native

// Messenger resolves a human-readable message for a status. Library
// implements it; nil is allowed wherever a Messenger is accepted.
type Messenger interface {
	ErrorMessage(st Status) string
}

func messageFunc(m Messenger) func(Status) string {
	if m == nil {
		return nil
	}
	return m.ErrorMessage
}

// Check translates the outcome of a boolean native call. A false result with
// a clean status still fails, as CodeUnexpectedError: a native call never gets
// to report failure silently.
func Check(op string, ok bool, st Status, m Messenger) error {
	if ok {
		return nil
	}
	if !st.Failed() {
		st.Set(DomainCBL, CodeUnexpectedError)
	}
	return NewError(op, ClassCall, st, messageFunc(m))
}

// CheckPtr translates the outcome of a constructing native call. The status
// is inspected before the pointer: a failed status yields an error even when
// the out slot holds a non-null value, and that value must not be retained or
// released by the caller. A null pointer with a clean status fails with
// CodeUnexpectedError.
func CheckPtr(op string, p Ptr, st Status, m Messenger) (Ptr, error) {
	if st.Failed() {
		return 0, NewError(op, ClassConstruction, st, messageFunc(m))
	}
	if p.IsNil() {
		st.Set(DomainCBL, CodeUnexpectedError)
		return 0, NewError(op, ClassConstruction, st, messageFunc(m))
	}
	return p, nil
}

// CheckLookup is CheckPtr for lookups, where a null pointer with a clean
// status means the object does not exist.
func CheckLookup(op string, p Ptr, st Status, m Messenger) (Ptr, error) {
	if !st.Failed() && p.IsNil() {
		st.Set(DomainCBL, CodeNotFound)
	}
	return CheckPtr(op, p, st, m)
}

// Call runs fn with a fresh status record and translates the result.
func Call(op string, m Messenger, fn func(st *Status) bool) error {
	var st Status
	ok := fn(&st)
	return Check(op, ok, st, m)
}

// CallValue runs fn with a fresh status record. On failure the returned value
// is the zero T, whatever fn produced.
func CallValue[T any](op string, m Messenger, fn func(st *Status) T) (T, error) {
	var st Status
	v := fn(&st)
	if st.Failed() {
		var zero T
		return zero, NewError(op, ClassCall, st, messageFunc(m))
	}
	return v, nil
}
