package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"bluecarbon-mrv/backend/pkg/models"
)

// DefaultTemporalModelVersion is used when the model registry carries no
// entry for the temporal change model.
const DefaultTemporalModelVersion = "v1.2.0"

// comparison grid resolution
const temporalGridSize = 64

// SidecarTemporalComparator runs temporal change detection on the ML sidecar.
type SidecarTemporalComparator struct {
	client          *SidecarClient
	modelVersion    string
	growthThreshold float64
}

// NewSidecarTemporalComparator creates a new SidecarTemporalComparator.
func NewSidecarTemporalComparator(client *SidecarClient, modelVersion string, growthThreshold float64) *SidecarTemporalComparator {
	if modelVersion == "" {
		modelVersion = DefaultTemporalModelVersion
	}
	return &SidecarTemporalComparator{client: client, modelVersion: modelVersion, growthThreshold: growthThreshold}
}

// Compare posts both images to the sidecar. GrowthDetected is always derived
// here from the returned score and the configured threshold, so the invariant
// GrowthDetected == GrowthScore > threshold cannot drift between backends.
func (c *SidecarTemporalComparator) Compare(ctx context.Context, previous, current []byte) (*models.TemporalResult, error) {
	payload := map[string]string{
		"previous_image": base64.StdEncoding.EncodeToString(previous),
		"current_image":  base64.StdEncoding.EncodeToString(current),
	}
	var resp struct {
		GrowthScore      float64            `json:"growth_score"`
		ChangePercentage float64            `json:"change_percentage"`
		Metrics          map[string]float64 `json:"comparison_metrics"`
	}
	if err := c.client.postJSON(ctx, "/compare", payload, &resp); err != nil {
		return nil, fmt.Errorf("temporal comparison: %w", err)
	}
	if resp.GrowthScore < -1 || resp.GrowthScore > 1 {
		return nil, fmt.Errorf("temporal comparison: model returned growth score %v outside [-1,1]", resp.GrowthScore)
	}
	return newTemporalResult(resp.GrowthScore, resp.ChangePercentage, c.modelVersion, models.SourceReal, resp.Metrics, c.growthThreshold), nil
}

// FallbackTemporalComparator compares images in-process using vegetation and
// intensity statistics on a fixed luminance grid. Deterministic.
type FallbackTemporalComparator struct {
	modelVersion    string
	growthThreshold float64
}

// NewFallbackTemporalComparator creates a new FallbackTemporalComparator.
func NewFallbackTemporalComparator(growthThreshold float64) *FallbackTemporalComparator {
	return &FallbackTemporalComparator{modelVersion: DefaultTemporalModelVersion, growthThreshold: growthThreshold}
}

// Compare scores growth between the two images. Positive means growth,
// negative means degradation.
func (c *FallbackTemporalComparator) Compare(ctx context.Context, previous, current []byte) (*models.TemporalResult, error) {
	prevGrid, err := grayGrid(previous, temporalGridSize)
	if err != nil {
		return nil, fmt.Errorf("temporal comparison (previous image): %w", err)
	}
	currGrid, err := grayGrid(current, temporalGridSize)
	if err != nil {
		return nil, fmt.Errorf("temporal comparison (current image): %w", err)
	}

	prevStats := vegetationStats(prevGrid)
	currStats := vegetationStats(currGrid)

	vegetationChange := currStats.vegetationPercentage - prevStats.vegetationPercentage
	intensityChange := currStats.meanIntensity - prevStats.meanIntensity
	similarity := correlation(prevGrid, currGrid)

	score := vegetationChange*0.5 + (intensityChange/255.0)*0.3 + (1-similarity)*0.2
	score = math.Max(-1, math.Min(1, score))

	metrics := map[string]float64{
		"similarity":                     similarity,
		"vegetation_change":              vegetationChange,
		"intensity_change":               intensityChange,
		"previous_mean_intensity":        prevStats.meanIntensity,
		"previous_vegetation_percentage": prevStats.vegetationPercentage,
		"previous_edge_density":          prevStats.edgeDensity,
		"current_mean_intensity":         currStats.meanIntensity,
		"current_vegetation_percentage":  currStats.vegetationPercentage,
		"current_edge_density":           currStats.edgeDensity,
	}

	changePercentage := math.Abs(vegetationChange) * 100
	return newTemporalResult(score, changePercentage, c.modelVersion, models.SourceFallback, metrics, c.growthThreshold), nil
}

// newTemporalResult is the single place GrowthDetected is computed.
func newTemporalResult(score, changePercentage float64, version string, source models.PredictionSource, metrics map[string]float64, threshold float64) *models.TemporalResult {
	return &models.TemporalResult{
		GrowthDetected:   score > threshold,
		GrowthScore:      score,
		ChangePercentage: changePercentage,
		ModelVersion:     version,
		Source:           source,
		Metrics:          metrics,
	}
}

type imageStats struct {
	meanIntensity        float64
	stdIntensity         float64
	vegetationPercentage float64
	edgeDensity          float64
}

func vegetationStats(grid []float64) imageStats {
	n := float64(len(grid))
	var sum float64
	for _, v := range grid {
		sum += v
	}
	mean := sum / n

	var variance, vegetated float64
	for _, v := range grid {
		variance += (v - mean) * (v - mean)
		if v > mean*0.7 {
			vegetated++
		}
	}

	// horizontal gradient threshold as a cheap edge measure
	var edges, comparisons float64
	for i := 1; i < len(grid); i++ {
		if i%temporalGridSize == 0 {
			continue
		}
		comparisons++
		if math.Abs(grid[i]-grid[i-1]) > 30 {
			edges++
		}
	}
	var edgeDensity float64
	if comparisons > 0 {
		edgeDensity = edges / comparisons
	}

	return imageStats{
		meanIntensity:        mean,
		stdIntensity:         math.Sqrt(variance / n),
		vegetationPercentage: vegetated / n,
		edgeDensity:          edgeDensity,
	}
}

// correlation returns the Pearson correlation of two equal-length grids,
// clamped to [0,1] as a similarity measure.
func correlation(a, b []float64) float64 {
	n := float64(len(a))
	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		if varA == varB {
			return 1
		}
		return 0
	}
	r := cov / math.Sqrt(varA*varB)
	return math.Max(0, math.Min(1, r))
}
