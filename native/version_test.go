package native

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editionHeader = `//
// CBL_Edition.h
//

#ifndef COUCHBASE_ENTERPRISE
#define COUCHBASE_ENTERPRISE
#endif

#define CBLITE_VERSION "3.0.1"
#define CBLITE_VERSION_NUMBER 3000001
#define CBLITE_BUILD_NUMBER 7
#define CBLITE_SOURCE_ID "2022-03-10T16:25:06 988a7ec+3da8078"
`

func TestParseEditionHeader(t *testing.T) {
	v, err := ParseEditionHeader(strings.NewReader(editionHeader))
	require.NoError(t, err)
	assert.Equal(t, 3, v.Major)
	assert.Equal(t, 0, v.Minor)
	assert.Equal(t, 1, v.Patch)
	assert.Equal(t, 7, v.Build)
	assert.Equal(t, "2022-03-10T16:25:06 988a7ec+3da8078", v.SourceID)
	assert.Equal(t, 3000001, v.Number())
	assert.Equal(t, "3.0.1-7", v.String())
}

func TestParseEditionHeader_Missing(t *testing.T) {
	_, err := ParseEditionHeader(strings.NewReader("#define SOMETHING 1\n"))
	assert.ErrorIs(t, err, ErrNoVersion)
}

func TestVersionCompatible(t *testing.T) {
	lib := Version{Major: 3, Minor: 0, Patch: 1}
	tests := []struct {
		required string
		want     bool
	}{
		{"3.0.0", true},
		{"3.0.1", true},
		{"3.0.2", false},
		{"3.1.0", false},
		{"2.8.0", false},
		{"4.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.required, func(t *testing.T) {
			req, err := ParseVersion(tt.required)
			require.NoError(t, err)
			assert.Equal(t, tt.want, lib.Compatible(req))
		})
	}
}

func TestParseVersion_Malformed(t *testing.T) {
	for _, s := range []string{"", "3", "3.0", "3.x.1", "3.0.-1"} {
		_, err := ParseVersion(s)
		assert.Error(t, err, s)
	}
}
