package services

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon-mrv/backend/pkg/models"
)

func TestFallbackTemporalComparator_IdenticalImages(t *testing.T) {
	comparator := NewFallbackTemporalComparator(0.1)
	img := pngImage(t, 32, 32, color.RGBA{R: 60, G: 140, B: 70, A: 255})

	result, err := comparator.Compare(context.Background(), img, img)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.GrowthScore, 1e-9)
	assert.False(t, result.GrowthDetected)
	assert.InDelta(t, 1.0, result.Metrics["similarity"], 1e-9)
	assert.Equal(t, models.SourceFallback, result.Source)
}

func TestFallbackTemporalComparator_BrighteningDetectedAsGrowth(t *testing.T) {
	comparator := NewFallbackTemporalComparator(0.1)
	previous := pngImage(t, 32, 32, color.RGBA{R: 40, G: 50, B: 45, A: 255})
	current := pngImage(t, 32, 32, color.RGBA{R: 180, G: 210, B: 190, A: 255})

	result, err := comparator.Compare(context.Background(), previous, current)
	require.NoError(t, err)

	assert.Greater(t, result.GrowthScore, 0.1)
	assert.True(t, result.GrowthDetected)
}

func TestFallbackTemporalComparator_ScoreWithinRange(t *testing.T) {
	comparator := NewFallbackTemporalComparator(0.1)
	previous := pngImage(t, 16, 16, color.RGBA{R: 250, G: 250, B: 250, A: 255})
	current := pngImage(t, 16, 16, color.RGBA{R: 5, G: 5, B: 5, A: 255})

	result, err := comparator.Compare(context.Background(), previous, current)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.GrowthScore, -1.0)
	assert.LessOrEqual(t, result.GrowthScore, 1.0)
	// the growth flag always follows the score against the threshold
	assert.Equal(t, result.GrowthScore > 0.1, result.GrowthDetected)
}

func TestSidecarTemporalComparator_GrowthFlagDerivedLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compare", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"growth_score": 0.25, "change_percentage": 12.5, "comparison_metrics": {"similarity": 0.8}}`))
	}))
	defer srv.Close()

	prev, curr := []byte("before"), []byte("after")

	belowThreshold := NewSidecarTemporalComparator(NewSidecarClient(srv.URL), "", 0.3)
	result, err := belowThreshold.Compare(context.Background(), prev, curr)
	require.NoError(t, err)
	assert.Equal(t, 0.25, result.GrowthScore)
	assert.False(t, result.GrowthDetected)
	assert.Equal(t, models.SourceReal, result.Source)

	aboveThreshold := NewSidecarTemporalComparator(NewSidecarClient(srv.URL), "", 0.2)
	result, err = aboveThreshold.Compare(context.Background(), prev, curr)
	require.NoError(t, err)
	assert.True(t, result.GrowthDetected)
}

func TestSidecarTemporalComparator_RejectsOutOfRangeScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"growth_score": 3.0}`))
	}))
	defer srv.Close()

	comparator := NewSidecarTemporalComparator(NewSidecarClient(srv.URL), "", 0.1)

	_, err := comparator.Compare(context.Background(), []byte("a"), []byte("b"))
	assert.Error(t, err)
}
