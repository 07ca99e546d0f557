package job_test

import (
	"path/filepath"
	"testing"

	"github.com/openwsi/slideconv/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validMessage = `{
	"uuid": "61ec173e-e818-4e3e-96fd-263aaa2d086a",
	"keycloak_user_id": "f3b9c1d2-0000-4000-8000-000000000001",
	"path_to_wsi_tarball": "create-data/61ec173e-e818-4e3e-96fd-263aaa2d086a.tar.gz",
	"path_in_tarball_for_openslide": "CMU-1.tiff",
	"tags": [
		{"key": "0010,0010", "value": "Doe^Jane"},
		{"key": "0010,0020", "value": "5"}
	]
}`

func TestParse(t *testing.T) {
	desc, err := job.Parse([]byte(validMessage))
	require.NoError(t, err)

	assert.Equal(t, "61ec173e-e818-4e3e-96fd-263aaa2d086a", desc.BusinessID.String())
	assert.Equal(t, "f3b9c1d2-0000-4000-8000-000000000001", desc.SubmitterID)
	assert.Equal(t, "CMU-1.tiff", desc.PathInArchive)
	assert.Equal(t, job.StatusPending, desc.Status)
	assert.Equal(t, "Doe^Jane", desc.Tags[job.TagKey("0010,0010")])
	assert.Len(t, desc.Tags, 2)
}

func TestParseMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":         `{]`,
		"bad uuid":         `{"uuid":"nope","keycloak_user_id":"u","path_to_wsi_tarball":"a.tar.gz","path_in_tarball_for_openslide":"f"}`,
		"missing user":     `{"uuid":"61ec173e-e818-4e3e-96fd-263aaa2d086a","path_to_wsi_tarball":"a.tar.gz","path_in_tarball_for_openslide":"f"}`,
		"missing tarball":  `{"uuid":"61ec173e-e818-4e3e-96fd-263aaa2d086a","keycloak_user_id":"u","path_in_tarball_for_openslide":"f"}`,
		"missing path":     `{"uuid":"61ec173e-e818-4e3e-96fd-263aaa2d086a","keycloak_user_id":"u","path_to_wsi_tarball":"a.tar.gz"}`,
		"invalid tag key":  `{"uuid":"61ec173e-e818-4e3e-96fd-263aaa2d086a","keycloak_user_id":"u","path_to_wsi_tarball":"a.tar.gz","path_in_tarball_for_openslide":"f","tags":[{"key":"00100010","value":"x"}]}`,
		"duplicate tag":    `{"uuid":"61ec173e-e818-4e3e-96fd-263aaa2d086a","keycloak_user_id":"u","path_to_wsi_tarball":"a.tar.gz","path_in_tarball_for_openslide":"f","tags":[{"key":"0010,0010","value":"x"},{"key":"0010,0010","value":"y"}]}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := job.Parse([]byte(body))
			require.Error(t, err)

			var cerr *job.ConstructionError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestTagKeyValidate(t *testing.T) {
	assert.NoError(t, job.TagKey("0010,0010").Validate())
	assert.NoError(t, job.TagKey("00fd,AB12").Validate())

	for _, k := range []string{"", "0010", "0010-0010", "0010,001", "0010,00100", "zz10,0010"} {
		assert.Error(t, job.TagKey(k).Validate(), "key %q", k)
	}
}

func TestMergeOverPrecedence(t *testing.T) {
	defaults := job.TagSet{"0008,0060": "SM", "0010,0010": "Default^Name"}
	supplied := job.TagSet{"0010,0010": "Doe^Jane"}

	merged := supplied.MergeOver(defaults)

	assert.Equal(t, "Doe^Jane", merged[job.TagKey("0010,0010")])
	assert.Equal(t, "SM", merged[job.TagKey("0008,0060")])
	assert.Len(t, merged, 2)
}

func TestJobScopedDirectories(t *testing.T) {
	desc, err := job.Parse([]byte(validMessage))
	require.NoError(t, err)

	work := desc.WorkDir("temp_data")
	assert.Equal(t, filepath.Join("temp_data", desc.BusinessID.String()), work)
	assert.Equal(t, filepath.Join(work, "dicom"), desc.OutputDir("temp_data"))
}
