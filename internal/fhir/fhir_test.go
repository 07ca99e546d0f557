package fhir_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/openwsi/slideconv/internal/dicomfile"
	"github.com/openwsi/slideconv/internal/fhir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) Token(_ context.Context) (string, error) {
	return string(s), nil
}

func sampleMetas() []dicomfile.Meta {
	study := "2.25.130160969129147924862197661322256910442"
	return []dicomfile.Meta{
		{
			PatientID:         "pat-1",
			PatientName:       "Doe^Jane",
			PatientSex:        "F",
			PatientBirthDate:  "19700230",
			StudyInstanceUID:  study,
			SeriesInstanceUID: study + ".1",
			SOPInstanceUID:    study + ".1.1",
			SOPClassUID:       "1.2.840.10008.5.1.4.1.1.77.1.6",
			Modality:          "SM",
			InstanceNumber:    1,
		},
		{
			PatientID:         "pat-1",
			PatientName:       "Doe^Jane",
			PatientSex:        "F",
			PatientBirthDate:  "19700230",
			StudyInstanceUID:  study,
			SeriesInstanceUID: study + ".1",
			SOPInstanceUID:    study + ".1.2",
			SOPClassUID:       "1.2.840.10008.5.1.4.1.1.77.1.6",
			Modality:          "SM",
			InstanceNumber:    2,
		},
	}
}

func TestNewPatient(t *testing.T) {
	p := fhir.NewPatient(sampleMetas()[0])

	assert.Equal(t, "Patient", p.ResourceType)
	require.Len(t, p.Identifier, 1)
	assert.Equal(t, "urn:uuid:pat-1", p.Identifier[0].Value)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "1970-02-30", p.BirthDate)
	require.Len(t, p.Name, 1)
	assert.Equal(t, []string{"Doe^Jane"}, p.Name[0].Given)
	assert.True(t, p.Active)
}

func TestNewPatientUnknownGenderAndDate(t *testing.T) {
	p := fhir.NewPatient(dicomfile.Meta{PatientID: "x", PatientSex: "Q", PatientBirthDate: "bad"})
	assert.Equal(t, "unknown", p.Gender)
	assert.Empty(t, p.BirthDate)
}

func TestNewImagingStudy(t *testing.T) {
	businessID := uuid.MustParse("61ec173e-e818-4e3e-96fd-263aaa2d086a")
	study := fhir.NewImagingStudy(businessID, "http://pacs:8042/dicom-web", "Patient/3", sampleMetas())

	assert.Equal(t, "available", study.Status)
	assert.Equal(t, "Patient/3", study.Subject.Reference)
	assert.Equal(t, 1, study.NumberOfSeries)
	assert.Equal(t, 2, study.NumberOfInstances)

	require.Len(t, study.Identifier, 2)
	assert.Equal(t, "urn:uuid:61ec173e-e818-4e3e-96fd-263aaa2d086a", study.Identifier[0].Value)
	assert.Equal(t, "urn:oid:2.25.130160969129147924862197661322256910442", study.Identifier[1].Value)

	// The contained retrieval endpoints are derived from the business ID.
	require.Len(t, study.Contained, 2)
	assert.Equal(t, "study", study.Contained[0].ID)
	assert.Equal(t,
		"http://pacs:8042/dicom-web/studies/2.25.130160969129147924862197661322256910442/",
		study.Contained[0].Address)
	assert.Equal(t, "series", study.Contained[1].ID)
	assert.Equal(t,
		"http://pacs:8042/dicom-web/studies/2.25.130160969129147924862197661322256910442/series/2.25.130160969129147924862197661322256910442.1/",
		study.Contained[1].Address)

	require.Len(t, study.Series, 1)
	series := study.Series[0]
	assert.Equal(t, 1, series.Number)
	require.Len(t, series.Instance, 2)
	assert.Equal(t, 1, series.Instance[0].Number)
	assert.Equal(t, 2, series.Instance[1].Number)
	assert.Equal(t, "urn:oid:1.2.840.10008.5.1.4.1.1.77.1.6", series.Instance[0].SOPClass.Code)
}

func TestFindPatientRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Patient", r.URL.Path)
		require.Equal(t, "urn:uuid:pat-1", r.URL.Query().Get("identifier"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entry": []map[string]any{
				{"resource": map[string]any{"resourceType": "Patient", "id": "3"}},
			},
		})
	}))
	defer srv.Close()

	client := fhir.NewClient(srv.URL, staticTokens("tok"))
	ref, err := client.FindPatientRef(context.Background(), "urn:uuid:pat-1")
	require.NoError(t, err)
	assert.Equal(t, "Patient/3", ref)
}

func TestFindPatientRefNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	client := fhir.NewClient(srv.URL, staticTokens("tok"))
	ref, err := client.FindPatientRef(context.Background(), "urn:uuid:ghost")
	require.NoError(t, err)
	assert.Empty(t, ref)
}

func TestCreatePatient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/Patient", r.URL.Path)
		require.Equal(t, "application/fhir+json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(map[string]any{"resourceType": "Patient", "id": "7"})
	}))
	defer srv.Close()

	client := fhir.NewClient(srv.URL, staticTokens("tok"))
	ref, err := client.CreatePatient(context.Background(), fhir.NewPatient(sampleMetas()[0]))
	require.NoError(t, err)
	assert.Equal(t, "Patient/7", ref)
}

func TestCreateImagingStudyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "validation failed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := fhir.NewClient(srv.URL, staticTokens("tok"))
	businessID := uuid.New()
	err := client.CreateImagingStudy(context.Background(), fhir.NewImagingStudy(businessID, "http://x", "Patient/1", sampleMetas()))

	var uploadErr *fhir.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Contains(t, err.Error(), "RegistryUploadFailed")
}
