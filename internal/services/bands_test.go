package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngImage encodes a solid-color test image.
func pngImage(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractBands_SolidColor(t *testing.T) {
	// pure green: r=0, g=1, b=0 after normalization
	data := pngImage(t, 32, 32, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	bands, err := ExtractBands(data)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, bands.B2, 1e-6)
	assert.InDelta(t, 0.12, bands.B3, 1e-6)
	assert.InDelta(t, 0.0, bands.B4, 1e-6)
	assert.InDelta(t, (1.0/3.0)*0.3, bands.B8, 1e-6)
}

func TestExtractBands_White(t *testing.T) {
	data := pngImage(t, 8, 8, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	bands, err := ExtractBands(data)
	require.NoError(t, err)

	assert.InDelta(t, 0.10, bands.B2, 1e-6)
	assert.InDelta(t, 0.12, bands.B3, 1e-6)
	assert.InDelta(t, 0.15, bands.B4, 1e-6)
	assert.InDelta(t, 0.30, bands.B8, 1e-6)
}

func TestExtractBands_InvalidData(t *testing.T) {
	_, err := ExtractBands([]byte("not an image"))
	assert.Error(t, err)
}

func TestGrayGrid_FixedResolution(t *testing.T) {
	small := pngImage(t, 10, 10, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	large := pngImage(t, 300, 200, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	gridSmall, err := grayGrid(small, temporalGridSize)
	require.NoError(t, err)
	gridLarge, err := grayGrid(large, temporalGridSize)
	require.NoError(t, err)

	assert.Len(t, gridSmall, temporalGridSize*temporalGridSize)
	assert.Len(t, gridLarge, temporalGridSize*temporalGridSize)

	// same solid color regardless of resolution
	assert.InDelta(t, gridSmall[0], gridLarge[0], 1e-6)
}
