package native

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedMessenger string

func (m fixedMessenger) ErrorMessage(Status) string { return string(m) }

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("op", true, Status{}, nil))

	err := Check("CBLDatabase_Close", false, Status{Domain: DomainCBL, Code: CodeBusy}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCall)
	assert.ErrorIs(t, err, ErrBusy)
	assert.NotErrorIs(t, err, ErrConstruction)
	assert.Equal(t, CodeBusy, Code(err))
	assert.Equal(t, DomainCBL, DomainOf(err))
}

func TestCheck_FalseWithCleanStatusStillFails(t *testing.T) {
	err := Check("op", false, Status{}, nil)
	require.Error(t, err)
	assert.Equal(t, CodeUnexpectedError, Code(err))
}

func TestCheckPtr_StatusBeforePointer(t *testing.T) {
	// A failing call that also scribbled a non-null value into the out slot.
	garbage := Ptr(0xdeadbeef)
	p, err := CheckPtr("CBLDatabase_Open", garbage, Status{Domain: DomainCBL, Code: CodeCantOpenFile}, nil)
	require.Error(t, err)
	assert.True(t, p.IsNil(), "no pointer may escape a failed call")
	assert.ErrorIs(t, err, ErrConstruction)
	assert.Equal(t, CodeCantOpenFile, Code(err))
}

func TestCheckPtr_NullWithCleanStatus(t *testing.T) {
	_, err := CheckPtr("CBLDocument_CreateWithID", 0, Status{}, nil)
	require.Error(t, err)
	assert.Equal(t, CodeUnexpectedError, Code(err))
}

func TestCheckPtr_Success(t *testing.T) {
	p, err := CheckPtr("op", 42, Status{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Ptr(42), p)
}

func TestCheckLookup_NullMeansNotFound(t *testing.T) {
	_, err := CheckLookup("CBLDatabase_GetMutableDocument", 0, Status{}, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrConstruction)
}

func TestCallValue_DiscardsOutValueOnFailure(t *testing.T) {
	v, err := CallValue("CBLDocument_CreateJSON", nil, func(st *Status) string {
		st.Set(DomainFleece, FleeceJSONError)
		return "partial output"
	})
	require.Error(t, err)
	assert.Empty(t, v)
	assert.Equal(t, DomainFleece, DomainOf(err))
}

func TestCall_UsesMessenger(t *testing.T) {
	err := Call("op", fixedMessenger("from the library"), func(st *Status) bool {
		st.Set(DomainCBL, CodeConflict)
		return false
	})
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.True(t, strings.Contains(err.Error(), "from the library"), err.Error())
}

func TestUntranslatableStatus(t *testing.T) {
	err := NewError("op", ClassCall, Status{Domain: 42, Code: 7}, nil)
	require.Error(t, err)
	var nErr *Error
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, DomainCBL, nErr.Domain)
	assert.Equal(t, CodeUntranslatable, nErr.Code)
	assert.Equal(t, "Unknown error", nErr.Message)

	err = NewError("op", ClassCall, Status{Domain: DomainNetwork, Code: 999}, nil)
	assert.Equal(t, CodeUntranslatable, Code(err))

	err = NewError("op", ClassCall, Status{Domain: DomainPOSIX, Code: 13}, nil)
	assert.Equal(t, DomainPOSIX, DomainOf(err))
	assert.Equal(t, int32(13), Code(err))
}

func TestNewError_CleanStatus(t *testing.T) {
	assert.NoError(t, NewError("op", ClassCall, Status{}, nil))
}

func TestCounts(t *testing.T) {
	c := Counts{KindDatabase: 1, KindDocument: 2}
	assert.Equal(t, int64(3), c.Total())
	assert.Equal(t, []Kind{KindDatabase, KindDocument}, c.SortedKinds())

	cl := c.Clone()
	cl[KindDatabase] = 5
	assert.Equal(t, int64(1), c.Get(KindDatabase))

	agg := Counts{KindAll: 9}
	assert.Equal(t, int64(9), agg.Total())
}
