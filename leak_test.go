package cblgo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/native"
)

// openAndRead opens a database with one saved document, reads it back as
// Doc1 and releases the database. Doc1 is released only if releaseDoc.
func openAndRead(t *testing.T, dir string, releaseDoc bool) (*Document, error) {
	db, err := OpenDatabase("scenario", WithDirectory(dir))
	if err != nil {
		return nil, err
	}
	defer db.Release()

	saveDoc(t, db, "doc1", `{"n":1}`)
	doc, err := db.GetDocument("doc1")
	if err != nil {
		return nil, err
	}
	if releaseDoc {
		return nil, doc.Release()
	}
	return doc, nil
}

func TestLeakScenario_Balanced(t *testing.T) {
	a := leakcheck.New(testLib)
	before, err := a.Begin()
	require.NoError(t, err)

	_, err = openAndRead(t, t.TempDir(), true)
	require.NoError(t, err)

	delta, err := a.End(before)
	require.NoError(t, err)
	assert.True(t, delta.IsZero(), "delta %s", delta)
}

func TestLeakScenario_ForgottenDocument(t *testing.T) {
	var forgotten *Document
	err := leakcheck.Run(testLib, func() error {
		var err error
		forgotten, err = openAndRead(t, t.TempDir(), false)
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLeakDetected)

	var le *leakcheck.LeakError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, int64(1), le.Count(native.KindDocument))
	assert.Zero(t, le.Count(native.KindDatabase))
	assert.Contains(t, err.Error(), "Document +1")

	require.NoError(t, forgotten.Release())
}

func TestLeak_FailedConstructorOwnsNothing(t *testing.T) {
	leakcheck.Verify(t, testLib)
	dir := t.TempDir()

	for i := 0; i < 3; i++ {
		_, err := OpenDatabase("secret", WithDirectory(dir), WithEncryptionKey([]byte("key")))
		require.ErrorIs(t, err, ErrConstruction)
	}
	assert.Zero(t, testLib.InstanceCounts().Get(native.KindDatabase))
}

func TestLeak_BorrowKeepsReleaseObligation(t *testing.T) {
	db := openTestDB(t, "borrowed")

	h, err := db.Handle()
	require.NoError(t, err)
	// hand the raw pointer to native calls
	assert.Equal(t, "borrowed", testLib.DatabaseName(h.Ptr()))
	assert.Equal(t, int32(1), testLib.RefCount(h.Ptr()))

	require.NoError(t, db.Release())
	assert.Zero(t, testLib.RefCount(h.Ptr()))
}

func TestLeak_RetainSharesLifetime(t *testing.T) {
	leakcheck.Verify(t, testLib)

	a, err := NewDocument("p4")
	require.NoError(t, err)
	b, err := a.Retain()
	require.NoError(t, err)

	require.NoError(t, a.Release())
	assert.Equal(t, int64(1), testLib.InstanceCounts().Get(native.KindDocument))
	_, err = b.JSON()
	require.NoError(t, err)

	require.NoError(t, b.Release())
	assert.Zero(t, testLib.InstanceCounts().Get(native.KindDocument))
}

func TestLeak_ErrorsJoinWithUnitError(t *testing.T) {
	boom := errors.New("boom")
	var leaked *Document
	err := leakcheck.Run(testLib, func() error {
		var err error
		leaked, err = NewDocument("orphan")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrLeakDetected)
	require.NoError(t, leaked.Release())
}

func TestLeak_RunInsideAuditedTest(t *testing.T) {
	db := openTestDB(t, "nested")

	err := leakcheck.Run(testLib, func() error {
		doc, err := db.GetDocument("missing")
		if doc != nil {
			return doc.Release()
		}
		if IsNotFound(err) {
			return nil
		}
		return err
	})
	require.NoError(t, err)

	var held *Document
	err = leakcheck.Run(testLib, func() error {
		var err error
		held, err = NewDocument("held")
		return err
	})
	assert.ErrorIs(t, err, ErrLeakDetected)
	require.NoError(t, held.Release())
}
