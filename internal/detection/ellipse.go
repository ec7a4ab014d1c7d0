package detection

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/ultrasound-prep/internal/imaging"
)

// Detection outcomes that callers log and skip.
var (
	ErrNoContours   = errors.New("no contours found")
	ErrTooFewPoints = errors.New("contour has fewer than 5 points")
	ErrNotEllipse   = errors.New("points do not describe an ellipse")
)

// MinFitPoints is the smallest point count FitEllipse accepts.
const MinFitPoints = 5

// AnnotationThreshold is the global threshold applied to annotation masks.
const AnnotationThreshold = 127

// Ellipse describes a rotated ellipse in pixel space.
type Ellipse struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`  // Full length of the major axis
	Height  float64 `json:"height"` // Full length of the minor axis
	Angle   float64 `json:"angle"`  // Major axis orientation in degrees, [0, 180)
}

// Major returns the full major axis length.
func (e Ellipse) Major() float64 { return math.Max(e.Width, e.Height) }

// Minor returns the full minor axis length.
func (e Ellipse) Minor() float64 { return math.Min(e.Width, e.Height) }

// AspectRatio returns Major/Minor, or 0 for a degenerate ellipse.
func (e Ellipse) AspectRatio() float64 {
	if e.Minor() == 0 {
		return 0
	}
	return e.Major() / e.Minor()
}

// FitEllipse fits an ellipse to points in the least-squares sense.
//
// Parameters:
//   - points: Boundary samples. At least MinFitPoints are required.
//
// Returns:
//   - Ellipse: Center, full axis lengths (Width >= Height) and the major axis angle.
//   - error: ErrTooFewPoints, or ErrNotEllipse when the best conic is not an ellipse.
//
// # Algorithm
//
// Direct least-squares fitting (Fitzgibbon, numerically stable form by Halir and
// Flusser):
//
//  1. Shift the points to their centroid and scale them to unit RMS distance
//  2. Split the design matrix into quadratic [x², xy, y²] and linear [x, y, 1] parts
//  3. Eliminate the linear part, leaving a 3x3 eigenproblem under the
//     constraint 4ac - b² = 1
//  4. Keep the eigenvector satisfying the ellipse constraint and recover the
//     linear coefficients
//  5. Convert the conic coefficients to center, semi-axes and rotation, then undo
//     the normalization
func FitEllipse(points []Point) (Ellipse, error) {
	n := len(points)
	if n < MinFitPoints {
		return Ellipse{}, ErrTooFewPoints
	}

	var mx, my float64
	for _, p := range points {
		mx += float64(p.X)
		my += float64(p.Y)
	}
	mx /= float64(n)
	my /= float64(n)

	var spread float64
	for _, p := range points {
		dx, dy := float64(p.X)-mx, float64(p.Y)-my
		spread += dx*dx + dy*dy
	}
	scale := math.Sqrt(spread / (2 * float64(n)))
	if scale == 0 {
		return Ellipse{}, ErrNotEllipse
	}

	d1 := mat.NewDense(n, 3, nil)
	d2 := mat.NewDense(n, 3, nil)
	for i, p := range points {
		x := (float64(p.X) - mx) / scale
		y := (float64(p.Y) - my) / scale
		d1.SetRow(i, []float64{x * x, x * y, y * y})
		d2.SetRow(i, []float64{x, y, 1})
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(d1.T(), d1)
	s2.Mul(d1.T(), d2)
	s3.Mul(d2.T(), d2)

	var s3inv mat.Dense
	if err := s3inv.Inverse(&s3); err != nil {
		return Ellipse{}, fmt.Errorf("%w: %v", ErrNotEllipse, err)
	}

	// T = -S3⁻¹ S2ᵀ maps quadratic coefficients to linear ones.
	var t mat.Dense
	t.Mul(&s3inv, s2.T())
	t.Scale(-1, &t)

	var m mat.Dense
	m.Mul(&s2, &t)
	m.Add(&s1, &m)

	// Premultiply by the inverse of the constraint matrix.
	reduced := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		reduced.Set(0, j, m.At(2, j)/2)
		reduced.Set(1, j, -m.At(1, j))
		reduced.Set(2, j, m.At(0, j)/2)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(reduced, mat.EigenRight); !ok {
		return Ellipse{}, fmt.Errorf("%w: eigen decomposition failed", ErrNotEllipse)
	}
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	var a1 []float64
	bestCond := 0.0
	for j := 0; j < 3; j++ {
		v := []float64{real(vecs.At(0, j)), real(vecs.At(1, j)), real(vecs.At(2, j))}
		cond := 4*v[0]*v[2] - v[1]*v[1]
		if cond > bestCond {
			bestCond = cond
			a1 = v
		}
	}
	if a1 == nil {
		return Ellipse{}, ErrNotEllipse
	}

	a2 := make([]float64, 3)
	for i := 0; i < 3; i++ {
		a2[i] = t.At(i, 0)*a1[0] + t.At(i, 1)*a1[1] + t.At(i, 2)*a1[2]
	}

	e, err := conicToEllipse(a1[0], a1[1], a1[2], a2[0], a2[1], a2[2])
	if err != nil {
		return Ellipse{}, err
	}

	e.CenterX = e.CenterX*scale + mx
	e.CenterY = e.CenterY*scale + my
	e.Width *= scale
	e.Height *= scale
	return e, nil
}

// conicToEllipse converts Ax² + Bxy + Cy² + Dx + Ey + F = 0 to geometric form.
func conicToEllipse(a, b, c, d, e, f float64) (Ellipse, error) {
	den := b*b - 4*a*c
	if den >= 0 {
		return Ellipse{}, ErrNotEllipse
	}

	x0 := (2*c*d - b*e) / den
	y0 := (2*a*e - b*d) / den
	f0 := a*x0*x0 + b*x0*y0 + c*y0*y0 + d*x0 + e*y0 + f

	theta := 0.5 * math.Atan2(b, a-c)
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	along := a*cosT*cosT + b*sinT*cosT + c*sinT*sinT
	across := a*sinT*sinT - b*sinT*cosT + c*cosT*cosT

	r1 := -f0 / along
	r2 := -f0 / across
	if r1 <= 0 || r2 <= 0 || math.IsNaN(r1) || math.IsNaN(r2) {
		return Ellipse{}, ErrNotEllipse
	}

	width := 2 * math.Sqrt(r1)
	height := 2 * math.Sqrt(r2)
	angle := theta * 180 / math.Pi
	if width < height {
		width, height = height, width
		angle += 90
	}
	angle = math.Mod(angle, 180)
	if angle < 0 {
		angle += 180
	}

	return Ellipse{CenterX: x0, CenterY: y0, Width: width, Height: height, Angle: angle}, nil
}

// Circularity returns 4π·area/perimeter², which is 1 for a perfect circle.
// A zero perimeter yields 0.
func Circularity(area, perimeter float64) float64 {
	if perimeter == 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// Detection is the result of locating an ellipse in an image.
type Detection struct {
	Ellipse   Ellipse
	Contour   Contour     // Largest external contour the ellipse was fitted to
	Area      float64     // Contour area in square pixels
	Perimeter float64     // Contour arc length in pixels
	Mask      *image.Gray // Binary mask the contour was traced on
}

// Circularity returns the circularity of the detected contour.
func (d Detection) Circularity() float64 {
	return Circularity(d.Area, d.Perimeter)
}

// DetectAnnotationEllipse finds the ellipse drawn in a clean annotation mask
// (bright outline on a dark background).
//
// The mask is thresholded at AnnotationThreshold and the largest external
// contour is fitted. The returned Detection carries the mask even on
// ErrTooFewPoints and ErrNotEllipse.
func DetectAnnotationEllipse(img image.Image) (Detection, error) {
	return DetectThresholdEllipse(img, AnnotationThreshold)
}

// DetectThresholdEllipse is DetectAnnotationEllipse with a caller-chosen
// binarization level. Pixels brighter than level are foreground.
func DetectThresholdEllipse(img image.Image, level uint8) (Detection, error) {
	mask := imaging.Threshold(imaging.Grayscale(img), level)
	return detectOnMask(mask)
}

// DetectMaskEllipse finds an ellipse drawn as a dark outline on a brighter frame.
//
// Parameters:
//   - img: Source image of any color model.
//   - blockSize: Adaptive threshold neighbourhood (odd, >= 3).
//   - c: Constant subtracted from the local mean.
//
// The binary mask is produced by inverted adaptive thresholding followed by a
// 3x3 closing and opening. The mask is returned in the Detection even when no
// ellipse can be fitted.
func DetectMaskEllipse(img image.Image, blockSize int, c float64) (Detection, error) {
	binary, err := imaging.AdaptiveThresholdInv(imaging.Grayscale(img), blockSize, c)
	if err != nil {
		return Detection{}, fmt.Errorf("failed to threshold image: %w", err)
	}
	binary = imaging.MorphOpen(imaging.MorphClose(binary))
	return detectOnMask(binary)
}

func detectOnMask(mask *image.Gray) (Detection, error) {
	det := Detection{Mask: mask}

	largest, ok := LargestContour(FindExternalContours(mask))
	if !ok {
		return det, ErrNoContours
	}
	det.Contour = largest
	det.Area = largest.Area()
	det.Perimeter = largest.Perimeter()

	if len(largest) < MinFitPoints {
		return det, ErrTooFewPoints
	}

	e, err := FitEllipse(largest)
	if err != nil {
		return det, err
	}
	det.Ellipse = e
	return det, nil
}
