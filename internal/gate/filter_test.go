package gate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/openwsi/slideconv/internal/config"
	"github.com/openwsi/slideconv/internal/dicomuid"
	"github.com/openwsi/slideconv/internal/gate"
	"github.com/stretchr/testify/assert"
)

var roles = config.Roles{
	Admin:         "admin",
	Uploader:      "converter_pacs_upload",
	StudyPrefix:   "imaging_study_",
	PatientPrefix: "patient_",
}

func TestDecide(t *testing.T) {
	businessID := uuid.MustParse("61ec173e-e818-4e3e-96fd-263aaa2d086a")
	otherID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	studyPath := "/dicom-web/studies/" + dicomuid.StudyUID(businessID) + "/series"

	tests := []struct {
		name string
		path string
		cred *gate.Credential
		want bool
	}{
		{
			name: "missing credential",
			path: studyPath,
			cred: nil,
			want: false,
		},
		{
			name: "inactive token",
			path: studyPath,
			cred: &gate.Credential{Active: false, Roles: []string{"admin"}},
			want: false,
		},
		{
			name: "uploader bypasses study check",
			path: studyPath,
			cred: &gate.Credential{Active: true, Roles: []string{"converter_pacs_upload"}},
			want: true,
		},
		{
			name: "admin bypasses study check",
			path: "/dicom-web/studies",
			cred: &gate.Credential{Active: true, Roles: []string{"admin"}},
			want: true,
		},
		{
			name: "matching study role",
			path: studyPath,
			cred: &gate.Credential{Active: true, Roles: []string{"imaging_study_" + businessID.String()}},
			want: true,
		},
		{
			name: "role for a different study",
			path: studyPath,
			cred: &gate.Credential{Active: true, Roles: []string{"imaging_study_" + otherID.String()}},
			want: false,
		},
		{
			name: "patient role grants nothing here",
			path: studyPath,
			cred: &gate.Credential{Active: true, Roles: []string{"patient_pat-1"}},
			want: false,
		},
		{
			name: "no study segment in path",
			path: "/dicom-web/series/1.2.3",
			cred: &gate.Credential{Active: true, Roles: []string{"imaging_study_" + businessID.String()}},
			want: false,
		},
		{
			name: "study uid outside the derived root",
			path: "/dicom-web/studies/1.2.840.10008.1.1/series",
			cred: &gate.Credential{Active: true, Roles: []string{"imaging_study_" + businessID.String()}},
			want: false,
		},
		{
			name: "malformed study uid",
			path: "/dicom-web/studies/2.25.notanumber",
			cred: &gate.Credential{Active: true, Roles: []string{"imaging_study_" + businessID.String()}},
			want: false,
		},
		{
			name: "no roles at all",
			path: studyPath,
			cred: &gate.Credential{Active: true},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Decide(tt.path, tt.cred, roles))
		})
	}
}
