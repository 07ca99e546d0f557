// Package convert implements the conversion stage: unpack the submitted
// archive, run the external converter, merge the supplied tags over the
// defaults, and validate mandatory metadata.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openwsi/slideconv/internal/dicomfile"
	"github.com/openwsi/slideconv/internal/dicomuid"
	"github.com/openwsi/slideconv/internal/job"
	"go.uber.org/zap"
)

// Wire keys of the tags the stage writes or checks.
const (
	keyPatientName      = "0010,0010"
	keyPatientID        = "0010,0020"
	keyPatientBirthDate = "0010,0030"
	keyPatientSex       = "0010,0040"
	keyModality         = "0008,0060"
	keyStudyUID         = "0020,000d"
	keySeriesUID        = "0020,000e"
	keyInstanceNumber   = "0020,0013"
)

// defaultTags are merged under the supplied tags; supplied values win.
var defaultTags = job.TagSet{
	keyModality: "SM",
}

// mandatoryKeys must be present in every artifact after the merge.
var mandatoryKeys = []string{
	keyPatientID,
	keyPatientName,
	keyPatientBirthDate,
	keyPatientSex,
}

// Artifact is one converted DICOM file of the job's single series.
type Artifact struct {
	Path           string
	SOPInstanceUID string
	SOPClassUID    string
	InstanceNumber int
}

type ArtifactSet []Artifact

// MetadataEditor edits and inspects converted file metadata. Implemented
// by dicomfile.Editor.
type MetadataEditor interface {
	MergeTags(path string, values map[string]string) error
	MissingTags(path string, keys []string) ([]string, error)
	ReadMeta(path string) (dicomfile.Meta, error)
}

// Stage converts one job's archive into a validated artifact set.
type Stage struct {
	dataDir   string
	converter Converter
	editor    MetadataEditor
	fetcher   Fetcher
}

func NewStage(dataDir string, converter Converter, editor MetadataEditor, fetcher Fetcher) *Stage {
	return &Stage{
		dataDir:   dataDir,
		converter: converter,
		editor:    editor,
		fetcher:   fetcher,
	}
}

// Convert runs the stage state machine: unextracted -> extracted ->
// converted -> validated. A failed transition aborts the stage; the stage
// is only ever re-run from scratch on a resubmitted job.
func (s *Stage) Convert(ctx context.Context, desc *job.Descriptor) (ArtifactSet, error) {
	logger := zap.S().Named("convert").With("business_id", desc.BusinessID)

	outputDir := desc.OutputDir(s.dataDir)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &ExtractionError{Err: err}
	}

	files, err := listFiles(outputDir)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	if len(files) > 0 {
		// Idempotent re-entry: an already populated output directory means
		// a job with the same identifier ran before. Keep its artifacts.
		logger.Warnw("output directory already populated, skipping conversion", "files", len(files))
	} else {
		if files, err = s.extractAndConvert(ctx, desc, outputDir); err != nil {
			return nil, err
		}
		logger.Infow("converted archive", "files", len(files))
	}

	if err := s.mergeTags(desc, files); err != nil {
		return nil, &ConversionError{Err: err}
	}

	if err := s.validateMandatory(files); err != nil {
		return nil, err
	}

	return s.collectArtifacts(files)
}

func (s *Stage) extractAndConvert(ctx context.Context, desc *job.Descriptor, outputDir string) ([]string, error) {
	workDir := desc.WorkDir(s.dataDir)

	archivePath := desc.ArchivePath
	if IsObjectLocator(archivePath) {
		if s.fetcher == nil {
			return nil, &ExtractionError{Err: fmt.Errorf("archive %s requires object storage but none is configured", archivePath)}
		}
		local := filepath.Join(workDir, "source.tar.gz")
		if err := s.fetcher.Fetch(ctx, archivePath, local); err != nil {
			return nil, &ExtractionError{Err: fmt.Errorf("fetching %s: %w", archivePath, err)}
		}
		archivePath = local
	}

	if err := extractTarGz(archivePath, workDir); err != nil {
		return nil, &ExtractionError{Err: err}
	}

	inputPath := filepath.Join(workDir, desc.PathInArchive)
	if _, err := os.Stat(inputPath); err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("entry %s not found in archive: %w", desc.PathInArchive, err)}
	}

	files, err := s.converter.Convert(ctx, inputPath, outputDir)
	if err != nil {
		return nil, &ConversionError{Err: err}
	}
	return files, nil
}

// mergeTags writes the merged tag set into every artifact. The study and
// series UIDs are pure functions of the business identifier and the
// instance number is dense and 1-based, none of them overridable.
func (s *Stage) mergeTags(desc *job.Descriptor, files []string) error {
	merged := desc.Tags.MergeOver(defaultTags)

	for i, file := range files {
		values := make(map[string]string, len(merged)+3)
		for k, v := range merged {
			values[string(k)] = v
		}
		values[keyStudyUID] = dicomuid.StudyUID(desc.BusinessID)
		values[keySeriesUID] = dicomuid.SeriesUID(desc.BusinessID)
		values[keyInstanceNumber] = strconv.Itoa(i + 1)

		if err := s.editor.MergeTags(file, values); err != nil {
			return fmt.Errorf("writing tags to %s: %w", file, err)
		}
	}
	return nil
}

func (s *Stage) validateMandatory(files []string) error {
	seen := map[string]bool{}
	var missing []string
	for _, file := range files {
		names, err := s.editor.MissingTags(file, mandatoryKeys)
		if err != nil {
			return &ConversionError{Err: err}
		}
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return &MandatoryTagError{Missing: missing}
	}
	return nil
}

func (s *Stage) collectArtifacts(files []string) (ArtifactSet, error) {
	artifacts := make(ArtifactSet, 0, len(files))
	for _, file := range files {
		meta, err := s.editor.ReadMeta(file)
		if err != nil {
			return nil, &ConversionError{Err: err}
		}
		artifacts = append(artifacts, Artifact{
			Path:           file,
			SOPInstanceUID: meta.SOPInstanceUID,
			SOPClassUID:    meta.SOPClassUID,
			InstanceNumber: meta.InstanceNumber,
		})
	}
	return artifacts, nil
}
