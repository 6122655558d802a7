package services

import (
	"context"
	"fmt"
	"math"

	"bluecarbon-mrv/backend/pkg/models"
)

// DefaultBiomassModelVersion is used when the model registry carries no
// entry for the biomass regression model.
const DefaultBiomassModelVersion = "v2.1.0"

// DeriveIndices computes the vegetation indices the biomass model consumes.
// They are part of the observable result for provenance and debugging.
func DeriveIndices(b models.SpectralBands) models.VegetationIndices {
	return models.VegetationIndices{
		NDVI: (b.B8 - b.B4) / (b.B8 + b.B4 + 1e-10),
		EVI:  2.5 * (b.B8 - b.B4) / (b.B8 + 6*b.B4 - 7.5*b.B2 + 1),
		SAVI: ((b.B8 - b.B4) / (b.B8 + b.B4 + 0.5)) * 1.5,
		NDWI: (b.B3 - b.B8) / (b.B3 + b.B8 + 1e-10),
	}
}

// SidecarBiomassEstimator runs biomass regression on the ML sidecar.
type SidecarBiomassEstimator struct {
	client       *SidecarClient
	modelVersion string
}

// NewSidecarBiomassEstimator creates a new SidecarBiomassEstimator.
func NewSidecarBiomassEstimator(client *SidecarClient, modelVersion string) *SidecarBiomassEstimator {
	if modelVersion == "" {
		modelVersion = DefaultBiomassModelVersion
	}
	return &SidecarBiomassEstimator{client: client, modelVersion: modelVersion}
}

// Estimate posts the band values to the sidecar and validates the returned
// bounds against the estimator contract.
func (e *SidecarBiomassEstimator) Estimate(ctx context.Context, bands models.SpectralBands) (*models.BiomassResult, error) {
	payload := map[string]float64{
		"b2": bands.B2,
		"b3": bands.B3,
		"b4": bands.B4,
		"b8": bands.B8,
	}
	var resp struct {
		Biomass            float64 `json:"biomass"`
		LowerBound         float64 `json:"lower_bound"`
		UpperBound         float64 `json:"upper_bound"`
		ConfidenceInterval float64 `json:"confidence_interval"`
	}
	if err := e.client.postJSON(ctx, "/biomass", payload, &resp); err != nil {
		return nil, fmt.Errorf("biomass estimation: %w", err)
	}
	if resp.Biomass < 0 || resp.LowerBound < 0 || resp.UpperBound < 0 {
		return nil, fmt.Errorf("biomass estimation: model returned negative estimate (%v, %v, %v)",
			resp.LowerBound, resp.Biomass, resp.UpperBound)
	}
	if resp.LowerBound > resp.Biomass || resp.Biomass > resp.UpperBound {
		return nil, fmt.Errorf("biomass estimation: model returned bounds %v <= %v <= %v out of order",
			resp.LowerBound, resp.Biomass, resp.UpperBound)
	}
	return &models.BiomassResult{
		Biomass:            resp.Biomass,
		LowerBound:         resp.LowerBound,
		UpperBound:         resp.UpperBound,
		ConfidenceInterval: resp.ConfidenceInterval,
		ModelVersion:       e.modelVersion,
		Source:             models.SourceReal,
		Indices:            DeriveIndices(bands),
	}, nil
}

// FallbackBiomassEstimator is the in-process synthetic estimator: a linear
// NDVI relationship with fixed proportional bounds. Deterministic.
type FallbackBiomassEstimator struct {
	modelVersion string
}

// NewFallbackBiomassEstimator creates a new FallbackBiomassEstimator.
func NewFallbackBiomassEstimator() *FallbackBiomassEstimator {
	return &FallbackBiomassEstimator{modelVersion: DefaultBiomassModelVersion}
}

// Estimate derives a point estimate in tonnes/ha from NDVI.
func (e *FallbackBiomassEstimator) Estimate(ctx context.Context, bands models.SpectralBands) (*models.BiomassResult, error) {
	indices := DeriveIndices(bands)

	biomass := math.Max(0, 10.0+indices.NDVI*20.0)

	return &models.BiomassResult{
		Biomass:            biomass,
		LowerBound:         biomass * 0.8,
		UpperBound:         biomass * 1.2,
		ConfidenceInterval: 0.15,
		ModelVersion:       e.modelVersion,
		Source:             models.SourceFallback,
		Indices:            indices,
	}, nil
}
