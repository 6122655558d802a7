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

func TestFallbackMangroveVerifier_VegetationPasses(t *testing.T) {
	verifier := NewFallbackMangroveVerifier()

	// dense green canopy: NDVI is strongly positive
	green := pngImage(t, 32, 32, color.RGBA{R: 10, G: 200, B: 30, A: 255})

	result, err := verifier.Verify(context.Background(), green)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Probability, 0.7)
	assert.LessOrEqual(t, result.Probability, 1.0)
	assert.Equal(t, models.SourceFallback, result.Source)
	assert.Equal(t, DefaultMangroveModelVersion, result.ModelVersion)
	assert.Contains(t, result.Features, "ndvi")
	assert.Contains(t, result.Features, "ndwi")
}

func TestFallbackMangroveVerifier_BareGroundRejected(t *testing.T) {
	verifier := NewFallbackMangroveVerifier()

	// red-dominant soil: NDVI is negative
	soil := pngImage(t, 32, 32, color.RGBA{R: 200, G: 60, B: 40, A: 255})

	result, err := verifier.Verify(context.Background(), soil)
	require.NoError(t, err)

	assert.Less(t, result.Probability, 0.7)
	assert.GreaterOrEqual(t, result.Probability, 0.0)
}

func TestFallbackMangroveVerifier_Deterministic(t *testing.T) {
	verifier := NewFallbackMangroveVerifier()
	img := pngImage(t, 16, 16, color.RGBA{R: 40, G: 180, B: 90, A: 255})

	first, err := verifier.Verify(context.Background(), img)
	require.NoError(t, err)
	second, err := verifier.Verify(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSidecarMangroveVerifier_TagsRealSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"probability": 0.82, "confidence": 0.95, "features": {"ndvi": 0.6}}`))
	}))
	defer srv.Close()

	verifier := NewSidecarMangroveVerifier(NewSidecarClient(srv.URL), "v9.9.9")

	result, err := verifier.Verify(context.Background(), []byte("image-bytes"))
	require.NoError(t, err)

	assert.Equal(t, 0.82, result.Probability)
	assert.Equal(t, models.SourceReal, result.Source)
	assert.Equal(t, "v9.9.9", result.ModelVersion)
}

func TestSidecarMangroveVerifier_RejectsOutOfRangeProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"probability": 1.5}`))
	}))
	defer srv.Close()

	verifier := NewSidecarMangroveVerifier(NewSidecarClient(srv.URL), "")

	_, err := verifier.Verify(context.Background(), []byte("image-bytes"))
	assert.Error(t, err)
}

func TestSidecarMangroveVerifier_SidecarErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	verifier := NewSidecarMangroveVerifier(NewSidecarClient(srv.URL), "")

	_, err := verifier.Verify(context.Background(), []byte("image-bytes"))
	assert.Error(t, err)
}
