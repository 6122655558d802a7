package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"bluecarbon-mrv/backend/pkg/models"
)

// DefaultMangroveModelVersion is used when the model registry carries no
// entry for the verification model.
const DefaultMangroveModelVersion = "v1.0.3"

// SidecarMangroveVerifier runs mangrove verification on the ML sidecar.
type SidecarMangroveVerifier struct {
	client       *SidecarClient
	modelVersion string
}

// NewSidecarMangroveVerifier creates a new SidecarMangroveVerifier stamped
// with the registry's deployed model version.
func NewSidecarMangroveVerifier(client *SidecarClient, modelVersion string) *SidecarMangroveVerifier {
	if modelVersion == "" {
		modelVersion = DefaultMangroveModelVersion
	}
	return &SidecarMangroveVerifier{client: client, modelVersion: modelVersion}
}

// Verify posts the image to the sidecar and returns its probability.
func (v *SidecarMangroveVerifier) Verify(ctx context.Context, image []byte) (*models.MangroveResult, error) {
	payload := map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	}
	var resp struct {
		Probability float64            `json:"probability"`
		Confidence  float64            `json:"confidence"`
		Features    map[string]float64 `json:"features"`
	}
	if err := v.client.postJSON(ctx, "/verify", payload, &resp); err != nil {
		return nil, fmt.Errorf("mangrove verification: %w", err)
	}
	if resp.Probability < 0 || resp.Probability > 1 {
		return nil, fmt.Errorf("mangrove verification: model returned probability %v outside [0,1]", resp.Probability)
	}
	return &models.MangroveResult{
		Probability:  resp.Probability,
		Confidence:   resp.Confidence,
		ModelVersion: v.modelVersion,
		Source:       models.SourceReal,
		Features:     resp.Features,
	}, nil
}

// FallbackMangroveVerifier is the in-process synthetic verifier used when no
// deployed model artifact is available. It is deterministic: the probability
// is derived from the image's vegetation indices, never from randomness.
type FallbackMangroveVerifier struct {
	modelVersion string
}

// NewFallbackMangroveVerifier creates a new FallbackMangroveVerifier.
func NewFallbackMangroveVerifier() *FallbackMangroveVerifier {
	return &FallbackMangroveVerifier{modelVersion: DefaultMangroveModelVersion}
}

// Verify derives a presence probability from NDVI.
func (v *FallbackMangroveVerifier) Verify(ctx context.Context, image []byte) (*models.MangroveResult, error) {
	bands, err := ExtractBands(image)
	if err != nil {
		return nil, fmt.Errorf("mangrove verification: %w", err)
	}

	ndvi := (bands.B8 - bands.B4) / (bands.B8 + bands.B4 + 1e-10)
	ndwi := (bands.B3 - bands.B8) / (bands.B3 + bands.B8 + 1e-10)

	probability := clamp01(0.5 + ndvi)

	return &models.MangroveResult{
		Probability:  probability,
		Confidence:   0.9,
		ModelVersion: v.modelVersion,
		Source:       models.SourceFallback,
		Features: map[string]float64{
			"ndvi": ndvi,
			"ndwi": ndwi,
		},
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
