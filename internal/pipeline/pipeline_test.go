package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/openwsi/slideconv/internal/convert"
	"github.com/openwsi/slideconv/internal/job"
	"github.com/openwsi/slideconv/internal/pipeline"
	"github.com/openwsi/slideconv/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeConvert struct {
	failFor map[uuid.UUID]error
}

func (f *fakeConvert) Convert(_ context.Context, desc *job.Descriptor) (convert.ArtifactSet, error) {
	if err := f.failFor[desc.BusinessID]; err != nil {
		return nil, err
	}
	return convert.ArtifactSet{{Path: "/out/a.dcm"}}, nil
}

type fakePublish struct {
	failFor   map[uuid.UUID]error
	published []uuid.UUID
}

func (f *fakePublish) Publish(_ context.Context, desc *job.Descriptor, _ convert.ArtifactSet) (string, error) {
	if err := f.failFor[desc.BusinessID]; err != nil {
		return "", err
	}
	f.published = append(f.published, desc.BusinessID)
	return "pat-1", nil
}

type fakeAccess struct {
	grants []string
	err    error
}

func (f *fakeAccess) ProvisionAccess(_ context.Context, businessID uuid.UUID, patientID, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.grants = append(f.grants, fmt.Sprintf("%s/%s/%s", businessID, patientID, userID))
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	s := store.NewStore(db)
	require.NoError(t, s.InitialMigration())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func message(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(job.Message{
		UUID:                      id.String(),
		KeycloakUserID:            "user-1",
		PathToWsiTarball:          "/in/slide.tar.gz",
		PathInTarballForOpenslide: "slide.svs",
	})
	require.NoError(t, err)
	return body
}

func TestHandleRecordsSuccess(t *testing.T) {
	s := newTestStore(t)
	access := &fakeAccess{}
	p := pipeline.New(s, &fakeConvert{}, &fakePublish{}, access, t.TempDir())

	id := uuid.New()
	p.Handle(context.Background(), message(t, id))

	conversion, err := s.Conversion().Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, conversion.Converted)
	assert.Empty(t, conversion.ErrorMsg)
	assert.Equal(t, []string{id.String() + "/pat-1/user-1"}, access.grants)
}

func TestHandleRecordsFailureChain(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	convertStage := &fakeConvert{failFor: map[uuid.UUID]error{
		id: &convert.ConversionError{Err: errors.New("converter exited with status 1")},
	}}
	p := pipeline.New(s, convertStage, &fakePublish{}, &fakeAccess{}, t.TempDir())

	p.Handle(context.Background(), message(t, id))

	conversion, err := s.Conversion().Get(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, conversion.Converted)
	assert.Equal(t, "ConversionError caused by\nconverter exited with status 1", conversion.ErrorMsg)
}

func TestHandleIsolatesFailures(t *testing.T) {
	s := newTestStore(t)
	failing := uuid.New()
	healthy := uuid.New()
	publish := &fakePublish{failFor: map[uuid.UUID]error{failing: errors.New("registry down")}}
	p := pipeline.New(s, &fakeConvert{}, publish, &fakeAccess{}, t.TempDir())

	p.Handle(context.Background(), message(t, failing))
	p.Handle(context.Background(), message(t, healthy))

	failed, err := s.Conversion().Get(context.Background(), failing)
	require.NoError(t, err)
	assert.False(t, failed.Converted)

	ok, err := s.Conversion().Get(context.Background(), healthy)
	require.NoError(t, err)
	assert.True(t, ok.Converted)
}

func TestHandleDropsMalformedMessage(t *testing.T) {
	s := newTestStore(t)
	p := pipeline.New(s, &fakeConvert{}, &fakePublish{}, &fakeAccess{}, t.TempDir())

	// Neither panics nor rows: there is no identifier to record against.
	p.Handle(context.Background(), []byte(`{"uuid": "not-a-uuid"}`))
}

func TestHandleRemovesWorkDir(t *testing.T) {
	s := newTestStore(t)
	dataDir := t.TempDir()
	id := uuid.New()
	access := &fakeAccess{err: errors.New("keycloak down")}
	p := pipeline.New(s, &fakeConvert{}, &fakePublish{}, access, dataDir)

	workDir := filepath.Join(dataDir, id.String())
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	p.Handle(context.Background(), message(t, id))

	// The scratch directory goes away even when the job fails.
	assert.NoDirExists(t, workDir)

	conversion, err := s.Conversion().Get(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, conversion.Converted)
	assert.Contains(t, conversion.ErrorMsg, "keycloak down")
}
