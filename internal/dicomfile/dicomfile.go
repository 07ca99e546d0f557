// Package dicomfile wraps reading and editing of converted DICOM files.
// It is the only package touching the DICOM codec; the pipeline stages
// work with plain string tag keys ("GGGG,EEEE") and the Meta header view.
package dicomfile

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Meta is the parsed header subset the publish stage needs. All artifacts
// of one job share the patient and study fields.
type Meta struct {
	PatientID         string
	PatientName       string
	PatientSex        string
	PatientBirthDate  string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	SOPClassUID       string
	Modality          string
	InstanceNumber    int
}

// ParseKey converts a wire tag key ("0010,0010") into a DICOM tag.
func ParseKey(key string) (tag.Tag, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 2 {
		return tag.Tag{}, fmt.Errorf("invalid tag key %q", key)
	}
	group, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("invalid tag group in %q: %w", key, err)
	}
	element, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("invalid tag element in %q: %w", key, err)
	}
	return tag.Tag{Group: uint16(group), Element: uint16(element)}, nil
}

// KeywordForKey resolves the human-readable DICOM keyword for a wire tag
// key, e.g. "0010,0020" -> "PatientID". Unknown tags fall back to the key.
func KeywordForKey(key string) string {
	t, err := ParseKey(key)
	if err != nil {
		return key
	}
	info, err := tag.Find(t)
	if err != nil || info.Name == "" {
		return key
	}
	return info.Name
}

// Editor reads and rewrites DICOM files on disk.
type Editor struct{}

// ReadMeta parses the header fields of one converted file. Pixel data is
// skipped, frame retrieval stays with the archive.
func (Editor) ReadMeta(path string) (Meta, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return Meta{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	m := Meta{
		PatientID:         elementString(&ds, tag.PatientID),
		PatientName:       elementString(&ds, tag.PatientName),
		PatientSex:        elementString(&ds, tag.PatientSex),
		PatientBirthDate:  elementString(&ds, tag.PatientBirthDate),
		StudyInstanceUID:  elementString(&ds, tag.StudyInstanceUID),
		SeriesInstanceUID: elementString(&ds, tag.SeriesInstanceUID),
		SOPInstanceUID:    elementString(&ds, tag.SOPInstanceUID),
		SOPClassUID:       elementString(&ds, tag.SOPClassUID),
		Modality:          elementString(&ds, tag.Modality),
	}
	if n, err := strconv.Atoi(elementString(&ds, tag.InstanceNumber)); err == nil {
		m.InstanceNumber = n
	}
	return m, nil
}

// MergeTags writes the given tag values into the file, replacing existing
// elements and appending new ones. The file is rewritten in place through a
// temporary sibling so a failed write never truncates an artifact.
func (Editor) MergeTags(path string, values map[string]string) error {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		t, err := ParseKey(key)
		if err != nil {
			return err
		}
		el, err := dicom.NewElement(t, []string{values[key]})
		if err != nil {
			return fmt.Errorf("building element %s: %w", key, err)
		}
		replaced := false
		for i, existing := range ds.Elements {
			if existing.Tag == t {
				ds.Elements[i] = el
				replaced = true
				break
			}
		}
		if !replaced {
			ds.Elements = append(ds.Elements, el)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if err := dicom.Write(f, ds); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// MissingTags reports which of the given wire tag keys are absent or empty
// in the file, as human-readable keyword names.
func (Editor) MissingTags(path string, keys []string) ([]string, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var missing []string
	for _, key := range keys {
		t, err := ParseKey(key)
		if err != nil {
			return nil, err
		}
		if elementString(&ds, t) == "" {
			missing = append(missing, KeywordForKey(key))
		}
	}
	return missing, nil
}

func elementString(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	if vals, ok := el.Value.GetValue().([]int); ok && len(vals) > 0 {
		return strconv.Itoa(vals[0])
	}
	return ""
}
