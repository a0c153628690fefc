// Package colormap renders single channel images, such as depth maps or
// field slices, as heatmaps.
package colormap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// lutSize is the number of colors sampled from the color map.
const lutSize = 256

// Options configures Image. The zero value uses the reversed smooth blue-red
// diverging color map, so low values are red, with bounds taken from the data.
type Options struct {
	// Map is the continuous color map. nil selects moreland.SmoothBlueRed.
	// Its range is overwritten.
	Map palette.ColorMap
	// NoFlip keeps the color map in its natural order.
	NoFlip bool
	// VMin and VMax fix the normalization range. When nil they are computed
	// from the valid pixels.
	VMin, VMax *float64
	// Mask holds one weight in [0,1] per pixel. Pixels with non-zero weight
	// are valid; the output is blended towards Invalid by 1-weight.
	Mask []float64
	// Invalid is the color of masked pixels. nil is black.
	Invalid color.Color
}

// Image colors w*h row major values. It returns the image and the range
// used to normalize values. NaN values are painted with the invalid color.
func Image(values []float64, w, h int, opts Options) (img *image.NRGBA, vmin, vmax float64, err error) {
	if w <= 0 || h <= 0 {
		return nil, 0, 0, fmt.Errorf("invalid image size %dx%d", w, h)
	}
	if len(values) != w*h {
		return nil, 0, 0, fmt.Errorf("got %d values for %dx%d image", len(values), w, h)
	}
	if opts.Mask != nil && len(opts.Mask) != len(values) {
		return nil, 0, 0, fmt.Errorf("got %d mask weights for %d values", len(opts.Mask), len(values))
	}
	vmin, vmax = valueRange(values, opts.Mask)
	if opts.VMin != nil {
		vmin = *opts.VMin
	}
	if opts.VMax != nil {
		vmax = *opts.VMax
	}
	if math.IsInf(vmin, 0) || math.IsInf(vmax, 0) {
		return nil, 0, 0, errors.New("no valid values to compute range from")
	}
	lut, err := LUT(opts.Map, lutSize, !opts.NoFlip)
	if err != nil {
		return nil, 0, 0, err
	}
	invalid := color.NRGBAModel.Convert(color.Black).(color.NRGBA)
	if opts.Invalid != nil {
		invalid = color.NRGBAModel.Convert(opts.Invalid).(color.NRGBA)
	}

	img = image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, v := range values {
		c := invalid
		if !math.IsNaN(v) {
			c = lut[lutIndex(v, vmin, vmax)]
		}
		if opts.Mask != nil {
			c = blend(c, invalid, opts.Mask[i])
		}
		img.SetNRGBA(i%w, i/w, c)
	}
	return img, vmin, vmax, nil
}

// LUT samples n colors evenly from cm over its full range. A nil cm
// selects moreland.SmoothBlueRed.
func LUT(cm palette.ColorMap, n int, flip bool) ([]color.NRGBA, error) {
	if n < 2 {
		return nil, fmt.Errorf("lookup table needs at least 2 colors, got %d", n)
	}
	if cm == nil {
		cm = moreland.SmoothBlueRed()
	}
	cm.SetMin(0)
	cm.SetMax(1)
	lut := make([]color.NRGBA, n)
	for i := range lut {
		c, err := cm.At(float64(i) / float64(n-1))
		if err != nil {
			return nil, err
		}
		j := i
		if flip {
			j = n - 1 - i
		}
		lut[j] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	return lut, nil
}

// lutIndex normalizes v into [0,1] and truncates it to a table index.
// A degenerate range maps everything to the first entry.
func lutIndex(v, vmin, vmax float64) int {
	if vmax <= vmin {
		return 0
	}
	idx := (v - vmin) / (vmax - vmin) * (lutSize - 1)
	switch {
	case idx <= 0:
		return 0
	case idx >= lutSize-1:
		return lutSize - 1
	}
	return int(idx)
}

func valueRange(values, mask []float64) (vmin, vmax float64) {
	vmin, vmax = math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) || (mask != nil && mask[i] == 0) {
			continue
		}
		vmin = math.Min(vmin, v)
		vmax = math.Max(vmax, v)
	}
	return vmin, vmax
}

func blend(c, invalid color.NRGBA, weight float64) color.NRGBA {
	if weight >= 1 {
		return c
	}
	if weight <= 0 {
		return invalid
	}
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a)*weight + float64(b)*(1-weight)))
	}
	return color.NRGBA{R: mix(c.R, invalid.R), G: mix(c.G, invalid.G), B: mix(c.B, invalid.B), A: mix(c.A, invalid.A)}
}
