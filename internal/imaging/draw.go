package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
)

// EllipseStyle controls how DrawEllipse strokes an outline.
type EllipseStyle struct {
	Color     color.Color
	Thickness float64 // Stroke width in pixels; values <= 0 fall back to 1.
}

// DrawEllipse returns a copy of img with an ellipse outline drawn on it.
//
// Parameters:
//   - img: Source image. It is not modified.
//   - cx, cy: Center in pixel coordinates.
//   - semiX, semiY: Semi-axis lengths. semiX lies along the rotated X axis.
//   - angleDeg: Rotation of the semiX axis in degrees, clockwise on screen
//     (Y points down).
//   - style: Stroke color and thickness.
//
// The outline is rasterized as an anti-aliased ring between the ellipses with
// semi-axes (semi +/- thickness/2). Degenerate axes produce an unchanged copy.
func DrawEllipse(img image.Image, cx, cy, semiX, semiY, angleDeg float64, style EllipseStyle) *image.NRGBA {
	dst := imaging.Clone(img)
	if semiX <= 0 || semiY <= 0 {
		return dst
	}

	thickness := style.Thickness
	if thickness <= 0 {
		thickness = 1
	}
	half := thickness / 2

	bounds := dst.Bounds()
	r := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	r.DrawOp = draw.Over

	// Clone rebases to (0,0); pixel (i, j) covers [i, i+1) in rasterizer space.
	src := img.Bounds()
	ox := cx - float64(src.Min.X) + 0.5
	oy := cy - float64(src.Min.Y) + 0.5
	theta := angleDeg * math.Pi / 180

	addEllipsePath(r, ox, oy, semiX+half, semiY+half, theta, false)
	if semiX-half > 0 && semiY-half > 0 {
		addEllipsePath(r, ox, oy, semiX-half, semiY-half, theta, true)
	}

	r.Draw(dst, bounds, image.NewUniform(style.Color), image.Point{})
	return dst
}

// addEllipsePath appends a closed polygonal approximation of a rotated ellipse.
// The inner ring of a stroke is wound in reverse so it cancels the outer fill.
func addEllipsePath(r *vector.Rasterizer, cx, cy, a, b, theta float64, reverse bool) {
	// Ramanujan-style estimate; one segment per pixel of perimeter is plenty.
	perimeter := 2 * math.Pi * math.Sqrt((a*a+b*b)/2)
	segments := int(math.Max(64, math.Ceil(perimeter)))

	cosT, sinT := math.Cos(theta), math.Sin(theta)
	point := func(i int) (float32, float32) {
		phi := 2 * math.Pi * float64(i) / float64(segments)
		if reverse {
			phi = -phi
		}
		ex, ey := a*math.Cos(phi), b*math.Sin(phi)
		return float32(cx + ex*cosT - ey*sinT), float32(cy + ex*sinT + ey*cosT)
	}

	x0, y0 := point(0)
	r.MoveTo(x0, y0)
	for i := 1; i < segments; i++ {
		x, y := point(i)
		r.LineTo(x, y)
	}
	r.ClosePath()
}

// BlendWeighted combines two equally sized images as
// alpha*overlay + (1-alpha)*base. alpha is clamped to [0, 1].
func BlendWeighted(overlay, base image.Image, alpha float64) *image.RGBA {
	return blend.Opacity(base, overlay, alpha)
}
