// Package publish implements the publish stage: upload the converted
// artifacts to the imaging archive and register the study with the
// clinical-metadata registry.
package publish

import (
	"context"
	"fmt"

	"github.com/openwsi/slideconv/internal/convert"
	"github.com/openwsi/slideconv/internal/dicomfile"
	"github.com/openwsi/slideconv/internal/fhir"
	"github.com/openwsi/slideconv/internal/job"
	"go.uber.org/zap"
)

// ArchiveUploader pushes DICOM files to the imaging archive. Implemented
// by pacs.Client.
type ArchiveUploader interface {
	UploadFiles(ctx context.Context, paths []string) error
}

// Registry is the clinical-metadata registry surface the stage needs.
// Implemented by fhir.Client.
type Registry interface {
	FindPatientRef(ctx context.Context, identifier string) (string, error)
	CreatePatient(ctx context.Context, patient *fhir.Patient) (string, error)
	CreateImagingStudy(ctx context.Context, study *fhir.ImagingStudy) error
}

// HeaderReader reads the merged metadata back from a converted file.
// Implemented by dicomfile.Editor.
type HeaderReader interface {
	ReadMeta(path string) (dicomfile.Meta, error)
}

// Stage publishes one converted job.
type Stage struct {
	archive     ArchiveUploader
	registry    Registry
	headers     HeaderReader
	dicomWebURL string
}

func NewStage(archive ArchiveUploader, registry Registry, headers HeaderReader, dicomWebURL string) *Stage {
	return &Stage{
		archive:     archive,
		registry:    registry,
		headers:     headers,
		dicomWebURL: dicomWebURL,
	}
}

// Publish uploads the artifacts to the archive, then registers the patient
// (deduplicated on the patient identifier) and the imaging study. It
// returns the patient identifier the study was registered under, which the
// access provisioning step needs.
func (s *Stage) Publish(ctx context.Context, desc *job.Descriptor, artifacts convert.ArtifactSet) (string, error) {
	logger := zap.S().Named("publish").With("business_id", desc.BusinessID)

	paths := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		paths = append(paths, artifact.Path)
	}
	if err := s.archive.UploadFiles(ctx, paths); err != nil {
		return "", err
	}
	logger.Infow("uploaded artifacts to archive", "files", len(paths))

	metas := make([]dicomfile.Meta, 0, len(artifacts))
	for _, artifact := range artifacts {
		meta, err := s.headers.ReadMeta(artifact.Path)
		if err != nil {
			return "", &fhir.UploadError{Err: fmt.Errorf("reading %s: %w", artifact.Path, err)}
		}
		metas = append(metas, meta)
	}
	if len(metas) == 0 {
		return "", &fhir.UploadError{Err: fmt.Errorf("no artifacts to register")}
	}

	patientID := metas[0].PatientID
	patientRef, err := s.ensurePatient(ctx, metas[0])
	if err != nil {
		return "", err
	}

	study := fhir.NewImagingStudy(desc.BusinessID, s.dicomWebURL, patientRef, metas)
	if err := s.registry.CreateImagingStudy(ctx, study); err != nil {
		return "", err
	}
	logger.Infow("registered imaging study", "patient", patientRef)

	return patientID, nil
}

// ensurePatient looks the patient up by its business identifier and only
// creates a record when none exists yet.
func (s *Stage) ensurePatient(ctx context.Context, meta dicomfile.Meta) (string, error) {
	identifier := fhir.BusinessIdentifier(meta.PatientID).Value
	ref, err := s.registry.FindPatientRef(ctx, identifier)
	if err != nil {
		return "", err
	}
	if ref != "" {
		return ref, nil
	}
	return s.registry.CreatePatient(ctx, fhir.NewPatient(meta))
}
