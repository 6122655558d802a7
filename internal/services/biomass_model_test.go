package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon-mrv/backend/pkg/models"
)

func TestDeriveIndices(t *testing.T) {
	bands := models.SpectralBands{B2: 0.05, B3: 0.08, B4: 0.06, B8: 0.24}

	indices := DeriveIndices(bands)

	assert.InDelta(t, (0.24-0.06)/(0.24+0.06+1e-10), indices.NDVI, 1e-9)
	assert.InDelta(t, 2.5*(0.24-0.06)/(0.24+6*0.06-7.5*0.05+1), indices.EVI, 1e-9)
	assert.InDelta(t, ((0.24-0.06)/(0.24+0.06+0.5))*1.5, indices.SAVI, 1e-9)
	assert.InDelta(t, (0.08-0.24)/(0.08+0.24+1e-10), indices.NDWI, 1e-9)
}

func TestFallbackBiomassEstimator_BoundsOrdered(t *testing.T) {
	estimator := NewFallbackBiomassEstimator()
	bands := models.SpectralBands{B2: 0.03, B3: 0.09, B4: 0.04, B8: 0.2}

	result, err := estimator.Estimate(context.Background(), bands)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.LowerBound, 0.0)
	assert.LessOrEqual(t, result.LowerBound, result.Biomass)
	assert.LessOrEqual(t, result.Biomass, result.UpperBound)
	assert.InDelta(t, result.Biomass*0.8, result.LowerBound, 1e-9)
	assert.InDelta(t, result.Biomass*1.2, result.UpperBound, 1e-9)
	assert.Equal(t, 0.15, result.ConfidenceInterval)
	assert.Equal(t, models.SourceFallback, result.Source)
	assert.Equal(t, DefaultBiomassModelVersion, result.ModelVersion)
}

func TestFallbackBiomassEstimator_LinearInNDVI(t *testing.T) {
	estimator := NewFallbackBiomassEstimator()

	// NDVI = (0.2 - 0.05) / (0.2 + 0.05) = 0.6
	bands := models.SpectralBands{B2: 0.02, B3: 0.06, B4: 0.05, B8: 0.2}

	result, err := estimator.Estimate(context.Background(), bands)
	require.NoError(t, err)

	assert.InDelta(t, 10.0+0.6*20.0, result.Biomass, 1e-6)
}

func TestFallbackBiomassEstimator_NeverNegative(t *testing.T) {
	estimator := NewFallbackBiomassEstimator()

	// strongly negative NDVI: bare red soil
	bands := models.SpectralBands{B2: 0.01, B3: 0.01, B4: 0.9, B8: 0.01}

	result, err := estimator.Estimate(context.Background(), bands)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Biomass, 0.0)
	assert.GreaterOrEqual(t, result.LowerBound, 0.0)
}

func TestSidecarBiomassEstimator_TagsRealSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/biomass", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"biomass": 18.4, "lower_bound": 15.0, "upper_bound": 22.0, "confidence_interval": 0.1}`))
	}))
	defer srv.Close()

	estimator := NewSidecarBiomassEstimator(NewSidecarClient(srv.URL), "v3.0.0")

	result, err := estimator.Estimate(context.Background(), models.SpectralBands{B8: 0.2})
	require.NoError(t, err)

	assert.Equal(t, 18.4, result.Biomass)
	assert.Equal(t, models.SourceReal, result.Source)
	assert.Equal(t, "v3.0.0", result.ModelVersion)
}

func TestSidecarBiomassEstimator_RejectsDisorderedBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"biomass": 10.0, "lower_bound": 12.0, "upper_bound": 22.0}`))
	}))
	defer srv.Close()

	estimator := NewSidecarBiomassEstimator(NewSidecarClient(srv.URL), "")

	_, err := estimator.Estimate(context.Background(), models.SpectralBands{})
	assert.Error(t, err)
}

func TestSidecarBiomassEstimator_RejectsNegativeEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"biomass": -5.0, "lower_bound": -8.0, "upper_bound": -1.0}`))
	}))
	defer srv.Close()

	estimator := NewSidecarBiomassEstimator(NewSidecarClient(srv.URL), "")

	_, err := estimator.Estimate(context.Background(), models.SpectralBands{})
	assert.Error(t, err)
}
