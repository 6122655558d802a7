// Package models defines the domain models for the MRV backend
package models

import (
	"time"
)

// SubmissionStatus represents the lifecycle state of a submission
type SubmissionStatus string

const (
	StatusUploaded   SubmissionStatus = "uploaded"
	StatusProcessing SubmissionStatus = "processing"
	StatusVerified   SubmissionStatus = "verified"
	StatusRejected   SubmissionStatus = "rejected"
	StatusError      SubmissionStatus = "error"
)

// Terminal reports whether the status is an end state. Terminal submissions
// are never re-processed by the pipeline.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected || s == StatusError
}

// PredictionSource records which implementation produced a prediction
type PredictionSource string

const (
	SourceReal     PredictionSource = "real"
	SourceFallback PredictionSource = "fallback"
)

// Submission represents one uploaded field observation and its MRV results
type Submission struct {
	ID         string                 `json:"id" db:"id"`
	ProjectID  string                 `json:"project_id" db:"project_id"`
	ImageKey   string                 `json:"image_key" db:"image_key"`
	CapturedAt time.Time              `json:"captured_at" db:"captured_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	Status     SubmissionStatus       `json:"status" db:"status"`

	// Pipeline outputs, present only on verified submissions
	MangroveScore      *float64 `json:"mangrove_score,omitempty" db:"mangrove_score"`
	TemporalScore      *float64 `json:"temporal_score,omitempty" db:"temporal_score"`
	BiomassEstimate    *float64 `json:"biomass_estimate,omitempty" db:"biomass_estimate"`
	BiomassLowerBound  *float64 `json:"biomass_lower_bound,omitempty" db:"biomass_lower_bound"`
	BiomassUpperBound  *float64 `json:"biomass_upper_bound,omitempty" db:"biomass_upper_bound"`
	CarbonEstimate     *float64 `json:"carbon_estimate,omitempty" db:"carbon_estimate"`
	CO2Equivalent      *float64 `json:"co2_equivalent,omitempty" db:"co2_equivalent"`
	ConfidenceInterval *float64 `json:"confidence_interval,omitempty" db:"confidence_interval"`
	ModelVersion       *string  `json:"model_version,omitempty" db:"model_version"`

	// Present only on rejected/error submissions
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// AreaHectares returns the area override carried in the submission metadata,
// or fallback when the metadata carries none.
func (s *Submission) AreaHectares(fallback float64) float64 {
	if s == nil || s.Metadata == nil {
		return fallback
	}
	switch v := s.Metadata["area_hectares"].(type) {
	case float64:
		if v > 0 {
			return v
		}
	case int:
		if v > 0 {
			return float64(v)
		}
	}
	return fallback
}

// SubmissionUpdate is a partial update applied atomically by the store.
// Nil fields are left untouched.
type SubmissionUpdate struct {
	Status             *SubmissionStatus
	MangroveScore      *float64
	TemporalScore      *float64
	BiomassEstimate    *float64
	BiomassLowerBound  *float64
	BiomassUpperBound  *float64
	CarbonEstimate     *float64
	CO2Equivalent      *float64
	ConfidenceInterval *float64
	ModelVersion       *string
	ErrorMessage       *string
	ProcessedAt        *time.Time
}

// TemporalHistory is an immutable comparison record between two time-ordered
// submissions of the same project
type TemporalHistory struct {
	ID                   string             `json:"id" db:"id"`
	ProjectID            string             `json:"project_id" db:"project_id"`
	PreviousSubmissionID string             `json:"previous_submission_id" db:"previous_submission_id"`
	CurrentSubmissionID  string             `json:"current_submission_id" db:"current_submission_id"`
	GrowthDetected       bool               `json:"growth_detected" db:"growth_detected"`
	GrowthScore          float64            `json:"growth_score" db:"growth_score"`
	ChangeMetrics        map[string]float64 `json:"change_metrics,omitempty" db:"change_metrics"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
}

// ModelRegistryEntry records a deployed model version. The pipeline only ever
// reads these, to stamp result provenance.
type ModelRegistryEntry struct {
	ID          string                 `json:"id" db:"id"`
	ModelName   string                 `json:"model_name" db:"model_name"`
	Version     string                 `json:"version" db:"version"`
	ContentHash string                 `json:"content_hash" db:"content_hash"`
	DeployedAt  time.Time              `json:"deployed_at" db:"deployed_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// SpectralBands holds the four reflectance bands the biomass model consumes
type SpectralBands struct {
	B2 float64 `json:"b2"` // blue
	B3 float64 `json:"b3"` // green
	B4 float64 `json:"b4"` // red
	B8 float64 `json:"b8"` // near infrared
}

// VegetationIndices are derived from SpectralBands during biomass estimation
// and exposed for provenance and debugging
type VegetationIndices struct {
	NDVI float64 `json:"ndvi"`
	EVI  float64 `json:"evi"`
	SAVI float64 `json:"savi"`
	NDWI float64 `json:"ndwi"`
}

// MangroveResult is the output of the mangrove verification gate
type MangroveResult struct {
	Probability  float64            `json:"probability"`
	Confidence   float64            `json:"confidence"`
	ModelVersion string             `json:"model_version"`
	Source       PredictionSource   `json:"source"`
	Features     map[string]float64 `json:"features,omitempty"`
}

// TemporalResult is the output of the temporal change comparison
type TemporalResult struct {
	GrowthDetected   bool               `json:"growth_detected"`
	GrowthScore      float64            `json:"growth_score"`
	ChangePercentage float64            `json:"change_percentage"`
	ModelVersion     string             `json:"model_version"`
	Source           PredictionSource   `json:"source"`
	Metrics          map[string]float64 `json:"comparison_metrics,omitempty"`
}

// TemporalOutcome distinguishes a skipped temporal step (no prior verified
// submission) from one that actually ran
type TemporalOutcome struct {
	Skipped bool            `json:"skipped"`
	Result  *TemporalResult `json:"result,omitempty"`
}

// BiomassResult is the output of the biomass regression step
type BiomassResult struct {
	Biomass            float64           `json:"biomass"`
	LowerBound         float64           `json:"lower_bound"`
	UpperBound         float64           `json:"upper_bound"`
	ConfidenceInterval float64           `json:"confidence_interval"`
	ModelVersion       string            `json:"model_version"`
	Source             PredictionSource  `json:"source"`
	Indices            VegetationIndices `json:"indices"`
}

// CarbonResult is the output of the carbon derivation step
type CarbonResult struct {
	BiomassTonnes        float64 `json:"biomass_tonnes"`
	CarbonTonnes         float64 `json:"carbon_tonnes"`
	CarbonTonnesBuffered float64 `json:"carbon_tonnes_buffered"`
	CO2EquivalentTonnes  float64 `json:"co2_equivalent_tonnes"`
	AreaHectares         float64 `json:"area_hectares"`
	CarbonFraction       float64 `json:"carbon_fraction"`
	CO2ConversionFactor  float64 `json:"co2_conversion_factor"`
	RiskBufferPercent    float64 `json:"risk_buffer_percent"`
	CalculationMethod    string  `json:"calculation_method"`
}

// PipelineResult aggregates every step's output for one pipeline run
type PipelineResult struct {
	SubmissionID          string           `json:"submission_id"`
	Status                SubmissionStatus `json:"status"`
	Mangrove              *MangroveResult  `json:"mangrove_result,omitempty"`
	Temporal              TemporalOutcome  `json:"temporal_result"`
	Biomass               *BiomassResult   `json:"biomass_result,omitempty"`
	Carbon                *CarbonResult    `json:"carbon_result,omitempty"`
	Reason                string           `json:"reason,omitempty"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
}

// AnchorResult is the outcome of the best-effort anchoring notification
type AnchorResult struct {
	Status   string `json:"status"` // anchored, skipped, or mock
	DataHash string `json:"data_hash,omitempty"`
	TxHash   string `json:"transaction_hash,omitempty"`
	Message  string `json:"message,omitempty"`
}
