package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// Grayscale converts img to 8-bit luminance using ITU-R BT.601 weights
// (0.299*R + 0.587*G + 0.114*B). The result always has its origin at (0,0).
func Grayscale(img image.Image) *image.Gray {
	rgba := effect.GrayscaleWithWeights(img, 0.299, 0.587, 0.114)
	bounds := rgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			out.Pix[y*out.Stride+x] = rgba.RGBAAt(x+bounds.Min.X, y+bounds.Min.Y).R
		}
	}
	return out
}

// Threshold produces a binary mask where pixels strictly brighter than level
// become 255 and all others become 0.
func Threshold(gray *image.Gray, level uint8) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		off := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		row := gray.Pix[off : off+bounds.Dx()]
		for x, v := range row {
			if v > level {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// AdaptiveThresholdInv performs inverted adaptive thresholding with a Gaussian
// weighted neighbourhood.
//
// Parameters:
//   - gray: Source luminance image.
//   - blockSize: Side length of the neighbourhood. Must be odd and at least 3.
//   - c: Constant subtracted from the weighted local mean.
//
// Returns:
//   - *image.Gray: Mask where pixels at or below (local mean - c) are 255 and all
//     others are 0. Dark structures on a brighter background become foreground.
//   - error: Non-nil if blockSize is invalid.
//
// # Algorithm
//
//  1. Build a normalized 1-D Gaussian kernel of length blockSize with
//     sigma = 0.3*((blockSize-1)*0.5 - 1) + 0.8
//  2. Convolve rows, then columns (the kernel is separable). Borders use
//     clamped (replicated) edge values.
//  3. Round the local mean to the nearest integer and compare each pixel
//     against (mean - c).
func AdaptiveThresholdInv(gray *image.Gray, blockSize int, c float64) (*image.Gray, error) {
	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("invalid block size %d: must be odd and >= 3", blockSize)
	}

	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return result, nil
	}

	kernel := gaussianKernel(blockSize)
	radius := blockSize / 2

	src := make([][]float64, height)
	for y := 0; y < height; y++ {
		src[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			src[y][x] = float64(gray.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y)
		}
	}

	// Horizontal pass
	horiz := make([][]float64, height)
	for y := 0; y < height; y++ {
		horiz[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += src[y][clamp(x+k, 0, width-1)] * kernel[k+radius]
			}
			horiz[y][x] = sum
		}
	}

	// Vertical pass and comparison
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += horiz[clamp(y+k, 0, height-1)][x] * kernel[k+radius]
			}
			mean := math.Round(sum)
			if src[y][x] <= mean-c {
				result.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return result, nil
}

// MorphClose fills small gaps in a mask (dilation followed by erosion).
func MorphClose(mask *image.Gray) *image.Gray {
	return binarize(effect.Erode(effect.Dilate(mask, 1), 1))
}

// MorphOpen removes small specks from a mask (erosion followed by dilation).
func MorphOpen(mask *image.Gray) *image.Gray {
	return binarize(effect.Dilate(effect.Erode(mask, 1), 1))
}

// binarize collapses the red channel of an RGBA morphology result back to a
// 0/255 mask.
func binarize(img *image.RGBA) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if img.RGBAAt(x+bounds.Min.X, y+bounds.Min.Y).R >= 128 {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// gaussianKernel returns a normalized 1-D Gaussian of the given odd length.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	radius := size / 2
	kernel := make([]float64, size)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
