package services

import (
	"context"

	"bluecarbon-mrv/backend/pkg/models"
)

// ImageFetcher resolves a submission image key to the raw image bytes.
type ImageFetcher interface {
	// Fetch reads the full image bytes for an object key.
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// MangroveVerifier is the subject-presence gate. Implementations must return
// a probability in [0,1].
type MangroveVerifier interface {
	Verify(ctx context.Context, image []byte) (*models.MangroveResult, error)
}

// TemporalComparator detects growth between two time-ordered images.
// GrowthDetected must equal GrowthScore > the configured growth threshold.
type TemporalComparator interface {
	Compare(ctx context.Context, previous, current []byte) (*models.TemporalResult, error)
}

// BiomassEstimator predicts biomass from spectral band values.
// Results must satisfy LowerBound <= Biomass <= UpperBound, all >= 0.
type BiomassEstimator interface {
	Estimate(ctx context.Context, bands models.SpectralBands) (*models.BiomassResult, error)
}

// AnchorNotifier records a tamper-evident fingerprint of a verified result.
// Best-effort: callers swallow its errors.
type AnchorNotifier interface {
	Notify(ctx context.Context, submissionID string) (*models.AnchorResult, error)
}
