package dicomfile_test

import (
	"testing"

	"github.com/openwsi/slideconv/internal/dicomfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestParseKey(t *testing.T) {
	parsed, err := dicomfile.ParseKey("0010,0020")
	require.NoError(t, err)
	assert.Equal(t, tag.PatientID, parsed)

	for _, key := range []string{"", "0010", "0010;0020", "xxxx,0020", "0010,yyyy"} {
		_, err := dicomfile.ParseKey(key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestKeywordForKey(t *testing.T) {
	assert.Equal(t, "PatientID", dicomfile.KeywordForKey("0010,0020"))
	assert.Equal(t, "PatientName", dicomfile.KeywordForKey("0010,0010"))
	assert.Equal(t, "Modality", dicomfile.KeywordForKey("0008,0060"))

	// Unknown or malformed keys fall back to the key itself.
	assert.Equal(t, "not-a-key", dicomfile.KeywordForKey("not-a-key"))
}
