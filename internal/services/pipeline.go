package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"bluecarbon-mrv/backend/internal/logging"
	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/pkg/models"
)

// ErrAlreadyProcessed is returned when the pipeline is invoked on a
// submission that has already reached a terminal state or is owned by a
// concurrent run. Reprocessing is an explicit operator decision, never an
// API side effect.
var ErrAlreadyProcessed = errors.New("submission already processed")

// PipelineConfig carries the orchestrator's tunables.
type PipelineConfig struct {
	MangroveThreshold   float64
	DefaultAreaHectares float64
}

// Pipeline sequences the MRV steps for a single submission: verification
// gate, optional temporal comparison, biomass estimation, carbon derivation,
// persistence, and the best-effort anchoring notification. All capabilities
// are injected at construction.
type Pipeline struct {
	store    repository.SubmissionStore
	history  repository.TemporalHistoryStore
	images   ImageFetcher
	mangrove MangroveVerifier
	temporal TemporalComparator
	biomass  BiomassEstimator
	carbon   *CarbonEngine
	anchor   AnchorNotifier
	logger   *logging.Logger
	cfg      PipelineConfig

	runDuration metric.Float64Histogram
	runCounter  metric.Int64Counter
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	store repository.SubmissionStore,
	history repository.TemporalHistoryStore,
	images ImageFetcher,
	mangrove MangroveVerifier,
	temporal TemporalComparator,
	biomass BiomassEstimator,
	carbon *CarbonEngine,
	anchor AnchorNotifier,
	logger *logging.Logger,
	cfg PipelineConfig,
) *Pipeline {
	meter := otel.Meter("bluecarbon-mrv/backend/pipeline")
	runDuration, _ := meter.Float64Histogram("mrv.pipeline.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall-clock duration of a pipeline run"))
	runCounter, _ := meter.Int64Counter("mrv.pipeline.runs",
		metric.WithDescription("Pipeline runs by terminal status"))

	return &Pipeline{
		store:       store,
		history:     history,
		images:      images,
		mangrove:    mangrove,
		temporal:    temporal,
		biomass:     biomass,
		carbon:      carbon,
		anchor:      anchor,
		logger:      logger,
		cfg:         cfg,
		runDuration: runDuration,
		runCounter:  runCounter,
	}
}

// RunPipeline executes the full MRV pipeline for a submission and returns the
// aggregated result. On any fatal step failure the submission is transitioned
// to error with the failure message persisted, and the same error is returned
// to the caller. Invoking it on a terminal submission returns
// ErrAlreadyProcessed without touching state.
func (p *Pipeline) RunPipeline(ctx context.Context, submissionID string) (result *models.PipelineResult, err error) {
	start := time.Now()

	sub, err := p.store.Load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status.Terminal() {
		return nil, fmt.Errorf("submission %s is %s: %w", submissionID, sub.Status, ErrAlreadyProcessed)
	}

	// Claim the submission. Only the run that wins this compare-and-set owns
	// it; a racing trigger loses here and aborts cleanly.
	if err := p.store.TransitionStatus(ctx, submissionID, models.StatusUploaded, models.StatusProcessing); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, fmt.Errorf("submission %s: %w", submissionID, ErrAlreadyProcessed)
		}
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
			result = nil
			p.markError(submissionID, err)
		}
		p.record(ctx, start, result, err)
	}()

	result, err = p.run(ctx, sub, start)
	if err != nil {
		p.logger.Error("pipeline failed", "submission_id", submissionID, "error", err)
		p.markError(submissionID, err)
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, sub *models.Submission, start time.Time) (*models.PipelineResult, error) {
	p.logger.Info("processing submission", "submission_id", sub.ID, "project_id", sub.ProjectID)

	image, err := p.images.Fetch(ctx, sub.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("resolve image %s: %w", sub.ImageKey, err)
	}

	// Step 1: mangrove verification gate
	mangrove, err := p.mangrove.Verify(ctx, image)
	if err != nil {
		return nil, err
	}
	if mangrove.Probability < 0 || mangrove.Probability > 1 {
		return nil, fmt.Errorf("verification contract violated: probability %v outside [0,1]", mangrove.Probability)
	}
	if mangrove.Probability < p.cfg.MangroveThreshold {
		return p.reject(ctx, sub, mangrove, start)
	}
	p.logger.Info("mangrove verification passed", "submission_id", sub.ID, "probability", mangrove.Probability)

	// Step 2: temporal comparison against the latest prior verified
	// submission; skipped when the project has none
	temporal, err := p.temporalStep(ctx, sub, image)
	if err != nil {
		return nil, err
	}

	// Step 3: biomass regression
	bands, err := ExtractBands(image)
	if err != nil {
		return nil, fmt.Errorf("extract spectral bands: %w", err)
	}
	biomass, err := p.biomass.Estimate(ctx, bands)
	if err != nil {
		return nil, err
	}
	if biomass.LowerBound < 0 || biomass.LowerBound > biomass.Biomass || biomass.Biomass > biomass.UpperBound {
		return nil, fmt.Errorf("biomass contract violated: bounds %v <= %v <= %v",
			biomass.LowerBound, biomass.Biomass, biomass.UpperBound)
	}

	// Step 4: carbon derivation
	carbon := p.carbon.Calculate(biomass.Biomass, sub.AreaHectares(p.cfg.DefaultAreaHectares), true)

	// Step 5: persist all outputs atomically as verified
	modelVersion := compositeModelVersion(mangrove, biomass, temporal)
	processedAt := time.Now().UTC()
	verified := models.StatusVerified
	update := models.SubmissionUpdate{
		Status:             &verified,
		MangroveScore:      &mangrove.Probability,
		BiomassEstimate:    &biomass.Biomass,
		BiomassLowerBound:  &biomass.LowerBound,
		BiomassUpperBound:  &biomass.UpperBound,
		CarbonEstimate:     &carbon.CarbonTonnesBuffered,
		CO2Equivalent:      &carbon.CO2EquivalentTonnes,
		ConfidenceInterval: &biomass.ConfidenceInterval,
		ModelVersion:       &modelVersion,
		ProcessedAt:        &processedAt,
	}
	if !temporal.Skipped {
		update.TemporalScore = &temporal.Result.GrowthScore
	}
	if err := p.store.Save(ctx, sub.ID, update); err != nil {
		return nil, fmt.Errorf("persist verified result: %w", err)
	}

	// Step 6: best-effort anchoring, isolated from the pipeline outcome
	p.notifyAnchor(sub.ID)

	elapsed := time.Since(start).Seconds()
	p.logger.Info("pipeline completed", "submission_id", sub.ID, "seconds", elapsed)

	return &models.PipelineResult{
		SubmissionID:          sub.ID,
		Status:                models.StatusVerified,
		Mangrove:              mangrove,
		Temporal:              temporal,
		Biomass:               biomass,
		Carbon:                &carbon,
		ProcessingTimeSeconds: elapsed,
	}, nil
}

// reject records the gate outcome. Rejection is a normal terminal result, not
// an error: retrying with the same image and threshold would reject again.
func (p *Pipeline) reject(ctx context.Context, sub *models.Submission, mangrove *models.MangroveResult, start time.Time) (*models.PipelineResult, error) {
	reason := fmt.Sprintf("mangrove verification failed: probability %.3f below threshold %.3f",
		mangrove.Probability, p.cfg.MangroveThreshold)

	rejected := models.StatusRejected
	modelVersion := "mangrove:" + mangrove.ModelVersion
	update := models.SubmissionUpdate{
		Status:        &rejected,
		MangroveScore: &mangrove.Probability,
		ModelVersion:  &modelVersion,
		ErrorMessage:  &reason,
	}
	if err := p.store.Save(ctx, sub.ID, update); err != nil {
		return nil, fmt.Errorf("persist rejection: %w", err)
	}

	p.logger.Warn("submission rejected", "submission_id", sub.ID, "probability", mangrove.Probability)
	return &models.PipelineResult{
		SubmissionID:          sub.ID,
		Status:                models.StatusRejected,
		Mangrove:              mangrove,
		Temporal:              models.TemporalOutcome{Skipped: true},
		Reason:                reason,
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	}, nil
}

func (p *Pipeline) temporalStep(ctx context.Context, sub *models.Submission, image []byte) (models.TemporalOutcome, error) {
	prev, err := p.store.FindLatestVerified(ctx, sub.ProjectID, sub.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.logger.Info("temporal step skipped: no prior verified submission", "project_id", sub.ProjectID)
			return models.TemporalOutcome{Skipped: true}, nil
		}
		return models.TemporalOutcome{}, err
	}

	prevImage, err := p.images.Fetch(ctx, prev.ImageKey)
	if err != nil {
		return models.TemporalOutcome{}, fmt.Errorf("resolve previous image %s: %w", prev.ImageKey, err)
	}

	res, err := p.temporal.Compare(ctx, prevImage, image)
	if err != nil {
		return models.TemporalOutcome{}, err
	}

	entry := &models.TemporalHistory{
		ID:                   uuid.New().String(),
		ProjectID:            sub.ProjectID,
		PreviousSubmissionID: prev.ID,
		CurrentSubmissionID:  sub.ID,
		GrowthDetected:       res.GrowthDetected,
		GrowthScore:          res.GrowthScore,
		ChangeMetrics:        res.Metrics,
		CreatedAt:            time.Now().UTC(),
	}
	if err := p.history.RecordTemporalHistory(ctx, entry); err != nil {
		return models.TemporalOutcome{}, fmt.Errorf("record temporal history: %w", err)
	}

	p.logger.Info("temporal comparison done",
		"submission_id", sub.ID, "growth_detected", res.GrowthDetected, "score", res.GrowthScore)
	return models.TemporalOutcome{Result: res}, nil
}

// markError persists the error state with the failure message. It uses a
// fresh context so a canceled run cannot leave the submission stuck in
// processing.
func (p *Pipeline) markError(submissionID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errStatus := models.StatusError
	message := cause.Error()
	update := models.SubmissionUpdate{
		Status:       &errStatus,
		ErrorMessage: &message,
	}
	if err := p.store.Save(ctx, submissionID, update); err != nil {
		p.logger.Error("failed to persist error state",
			"submission_id", submissionID, "cause", cause, "save_error", err)
	}
}

// notifyAnchor fires the anchoring notification. Failures are logged and
// swallowed: they never downgrade the verified result.
func (p *Pipeline) notifyAnchor(submissionID string) {
	if p.anchor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := p.anchor.Notify(ctx, submissionID)
	if err != nil {
		p.logger.Error("anchoring notification failed", "submission_id", submissionID, "error", err)
		return
	}
	p.logger.Info("anchoring notification sent", "submission_id", submissionID, "status", res.Status)
}

// compositeModelVersion builds the provenance string persisted on verified
// submissions. String equality is the only contract.
func compositeModelVersion(mangrove *models.MangroveResult, biomass *models.BiomassResult, temporal models.TemporalOutcome) string {
	temporalVersion := "N/A"
	if !temporal.Skipped {
		temporalVersion = temporal.Result.ModelVersion
	}
	return fmt.Sprintf("mangrove:%s,biomass:%s,temporal:%s",
		mangrove.ModelVersion, biomass.ModelVersion, temporalVersion)
}

func (p *Pipeline) record(ctx context.Context, start time.Time, result *models.PipelineResult, err error) {
	status := string(models.StatusError)
	if err == nil && result != nil {
		status = string(result.Status)
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	if p.runDuration != nil {
		p.runDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if p.runCounter != nil {
		p.runCounter.Add(ctx, 1, attrs)
	}
}
