// Package job holds the validated in-memory representation of one
// conversion request and the construction from the raw queue message.
package job

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
)

// ConstructionError marks a malformed inbound message. Jobs failing
// construction never start and are never retried.
type ConstructionError struct {
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("ConstructionError: %v", e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// Message is the wire shape consumed from the queue.
type Message struct {
	UUID                      string    `json:"uuid"`
	KeycloakUserID            string    `json:"keycloak_user_id"`
	PathToWsiTarball          string    `json:"path_to_wsi_tarball"`
	PathInTarballForOpenslide string    `json:"path_in_tarball_for_openslide"`
	Tags                      []TagPair `json:"tags"`
}

type TagPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Descriptor is one validated conversion request. The BusinessID never
// changes after construction; the working and output directories and all
// derived identifiers are pure functions of it.
type Descriptor struct {
	BusinessID    uuid.UUID
	SubmitterID   string
	ArchivePath   string
	PathInArchive string
	Tags          TagSet
	Status        Status
}

// Parse validates the raw queue message and builds a Descriptor. Any
// missing or malformed field fails with a ConstructionError.
func Parse(body []byte) (*Descriptor, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &ConstructionError{Err: fmt.Errorf("decoding message: %w", err)}
	}

	businessID, err := uuid.Parse(msg.UUID)
	if err != nil {
		return nil, &ConstructionError{Err: fmt.Errorf("parsing uuid %q: %w", msg.UUID, err)}
	}
	if msg.KeycloakUserID == "" {
		return nil, &ConstructionError{Err: fmt.Errorf("keycloak_user_id is missing")}
	}
	if msg.PathToWsiTarball == "" {
		return nil, &ConstructionError{Err: fmt.Errorf("path_to_wsi_tarball is missing")}
	}
	if msg.PathInTarballForOpenslide == "" {
		return nil, &ConstructionError{Err: fmt.Errorf("path_in_tarball_for_openslide is missing")}
	}

	tags, err := NewTagSet(msg.Tags)
	if err != nil {
		return nil, &ConstructionError{Err: err}
	}

	return &Descriptor{
		BusinessID:    businessID,
		SubmitterID:   msg.KeycloakUserID,
		ArchivePath:   msg.PathToWsiTarball,
		PathInArchive: msg.PathInTarballForOpenslide,
		Tags:          tags,
		Status:        StatusPending,
	}, nil
}

// WorkDir is the job-scoped scratch directory. Namespacing by BusinessID
// keeps concurrently running jobs from colliding on disk.
func (d *Descriptor) WorkDir(dataDir string) string {
	return filepath.Join(dataDir, d.BusinessID.String())
}

// OutputDir is the job-scoped directory receiving converted DICOM files.
func (d *Descriptor) OutputDir(dataDir string) string {
	return filepath.Join(d.WorkDir(dataDir), "dicom")
}
