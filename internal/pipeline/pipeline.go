// Package pipeline drives one job through its stages: convert, publish,
// provision access, and record the outcome.
package pipeline

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/openwsi/slideconv/internal/convert"
	"github.com/openwsi/slideconv/internal/job"
	"github.com/openwsi/slideconv/internal/store"
	"github.com/openwsi/slideconv/pkg/metrics"
	"go.uber.org/zap"
)

type ConvertStage interface {
	Convert(ctx context.Context, desc *job.Descriptor) (convert.ArtifactSet, error)
}

type PublishStage interface {
	Publish(ctx context.Context, desc *job.Descriptor, artifacts convert.ArtifactSet) (string, error)
}

type AccessProvisioner interface {
	ProvisionAccess(ctx context.Context, businessID uuid.UUID, patientID, userID string) error
}

type Pipeline struct {
	store   store.Store
	convert ConvertStage
	publish PublishStage
	access  AccessProvisioner
	dataDir string
}

func New(s store.Store, convertStage ConvertStage, publishStage PublishStage, access AccessProvisioner, dataDir string) *Pipeline {
	return &Pipeline{
		store:   s,
		convert: convertStage,
		publish: publishStage,
		access:  access,
		dataDir: dataDir,
	}
}

// Handle processes one queue message end to end. A job failure is recorded
// and logged but never propagated; one bad job must not affect the others.
func (p *Pipeline) Handle(ctx context.Context, body []byte) {
	metrics.IncreaseJobsReceivedTotalMetric()
	logger := zap.S().Named("pipeline")

	desc, err := job.Parse(body)
	if err != nil {
		// Without a valid identifier there is no row to record the
		// failure in, so the message can only be logged and dropped.
		logger.Errorw("dropping malformed job", "error", err)
		metrics.IncreaseJobsFinishedTotalMetric("rejected")
		return
	}
	logger = logger.With("business_id", desc.BusinessID)
	logger.Infow("job received", "submitter", desc.SubmitterID)

	if _, err := p.store.Conversion().Create(ctx, desc.BusinessID); err != nil && !errors.Is(err, store.ErrDuplicateKey) {
		logger.Errorw("recording job receipt", "error", err)
	}

	runErr := p.run(ctx, desc)
	p.report(ctx, desc.BusinessID, runErr)
	p.cleanup(desc)

	if runErr != nil {
		logger.Errorw("job failed", "error", runErr)
		metrics.IncreaseJobsFinishedTotalMetric("failed")
		return
	}
	logger.Info("job converted")
	metrics.IncreaseJobsFinishedTotalMetric("converted")
}

func (p *Pipeline) run(ctx context.Context, desc *job.Descriptor) error {
	artifacts, err := p.convert.Convert(ctx, desc)
	if err != nil {
		return err
	}

	patientID, err := p.publish.Publish(ctx, desc, artifacts)
	if err != nil {
		return err
	}

	return p.access.ProvisionAccess(ctx, desc.BusinessID, patientID, desc.SubmitterID)
}

// report writes the final status exactly once. The error message column
// carries the flattened cause chain.
func (p *Pipeline) report(ctx context.Context, id uuid.UUID, runErr error) {
	errorMsg := ""
	if runErr != nil {
		errorMsg = Flatten(runErr)
	}
	if err := p.store.Conversion().UpdateStatus(ctx, id, runErr == nil, errorMsg); err != nil {
		zap.S().Named("pipeline").Errorw("recording job outcome", "business_id", id, "error", err)
	}
}

// cleanup removes the job's working directory regardless of outcome. The
// converted artifacts live in the archive once published; nothing under
// the data directory is needed afterwards.
func (p *Pipeline) cleanup(desc *job.Descriptor) {
	if err := os.RemoveAll(desc.WorkDir(p.dataDir)); err != nil {
		zap.S().Named("pipeline").Warnw("removing work directory", "business_id", desc.BusinessID, "error", err)
	}
}
