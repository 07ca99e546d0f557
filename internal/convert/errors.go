package convert

import (
	"fmt"
	"strings"
)

// ExtractionError marks a source archive that is missing, corrupt, or does
// not contain the addressed entry file.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("ExtractionError: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ConversionError marks a failure of the external conversion collaborator.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("ConversionError: %v", e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// MandatoryTagError reports mandatory metadata absent after the tag merge.
// Missing holds the human-readable keyword names, not the raw keys.
type MandatoryTagError struct {
	Missing []string
}

func (e *MandatoryTagError) Error() string {
	return fmt.Sprintf("MandatoryTagMissing: some mandatory tags are missing: %s", strings.Join(e.Missing, ", "))
}
