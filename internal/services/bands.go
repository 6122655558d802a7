package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"bluecarbon-mrv/backend/pkg/models"
)

// ExtractBands derives approximate reflectance band values from an RGB image.
// True multispectral inputs would come from satellite data; normalized
// channel means stand in for them, scaled the same way the deployed biomass
// model was trained.
func ExtractBands(imageData []byte) (models.SpectralBands, error) {
	means, err := channelMeans(imageData)
	if err != nil {
		return models.SpectralBands{}, err
	}
	overall := (means.r + means.g + means.b) / 3.0
	return models.SpectralBands{
		B2: means.b * 0.1,
		B3: means.g * 0.12,
		B4: means.r * 0.15,
		B8: overall * 0.3,
	}, nil
}

type rgbMeans struct {
	r, g, b float64
}

// channelMeans decodes the image and returns per-channel means normalized
// to [0,1].
func channelMeans(imageData []byte) (rgbMeans, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return rgbMeans{}, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return rgbMeans{}, errors.New("image has no pixels")
	}

	var rSum, gSum, bSum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += float64(r) / 65535.0
			gSum += float64(g) / 65535.0
			bSum += float64(b) / 65535.0
		}
	}
	return rgbMeans{r: rSum / total, g: gSum / total, b: bSum / total}, nil
}

// grayGrid samples the image into a size x size grid of luminance values in
// [0,255]. A fixed grid keeps image comparisons independent of resolution.
func grayGrid(imageData []byte, size int) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("image has no pixels")
	}

	grid := make([]float64, 0, size*size)
	for gy := 0; gy < size; gy++ {
		for gx := 0; gx < size; gx++ {
			x := bounds.Min.X + gx*w/size
			y := bounds.Min.Y + gy*h/size
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma
			lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0 * 255.0
			grid = append(grid, lum)
		}
	}
	return grid, nil
}
