package detection

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/ultrasound-prep/internal/imaging"
)

// createFilledEllipse draws a filled rotated ellipse (semi-axes a, b) on a black
// background.
func createFilledEllipse(width, height int, cx, cy, a, b, angleDeg float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	theta := angleDeg * math.Pi / 180
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			u := dx*cosT + dy*sinT
			v := -dx*sinT + dy*cosT
			if (u*u)/(a*a)+(v*v)/(b*b) <= 1 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// createTestImage creates a solid color RGBA image.
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// angleDiff returns the smallest difference between two axis orientations.
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 180)
	return math.Min(d, 180-d)
}

func TestFitEllipse_RotatedEllipse(t *testing.T) {
	mask := createFilledEllipse(200, 200, 100, 90, 40, 25, 30)
	largest, ok := LargestContour(FindExternalContours(mask))
	if !ok {
		t.Fatal("Expected a contour")
	}

	e, err := FitEllipse(largest)
	if err != nil {
		t.Fatalf("FitEllipse failed: %v", err)
	}

	if math.Abs(e.CenterX-100) > 1.5 || math.Abs(e.CenterY-90) > 1.5 {
		t.Errorf("Center = (%.2f, %.2f), want (100, 90)", e.CenterX, e.CenterY)
	}
	if math.Abs(e.Width-80) > 3 {
		t.Errorf("Width = %.2f, want ~80", e.Width)
	}
	if math.Abs(e.Height-50) > 3 {
		t.Errorf("Height = %.2f, want ~50", e.Height)
	}
	if angleDiff(e.Angle, 30) > 3 {
		t.Errorf("Angle = %.2f, want ~30", e.Angle)
	}
	if e.Width < e.Height {
		t.Errorf("Width %.2f should not be smaller than Height %.2f", e.Width, e.Height)
	}
}

func TestFitEllipse_AngleNormalization(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
	}{
		{"horizontal", 0},
		{"steep", 75},
		{"vertical", 90},
		{"obtuse", 135},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := createFilledEllipse(160, 160, 80, 80, 50, 20, tt.angle)
			largest, _ := LargestContour(FindExternalContours(mask))
			e, err := FitEllipse(largest)
			if err != nil {
				t.Fatalf("FitEllipse failed: %v", err)
			}
			if e.Angle < 0 || e.Angle >= 180 {
				t.Errorf("Angle %.2f outside [0, 180)", e.Angle)
			}
			if angleDiff(e.Angle, tt.angle) > 3 {
				t.Errorf("Angle = %.2f, want ~%.0f", e.Angle, tt.angle)
			}
		})
	}
}

func TestFitEllipse_Circle(t *testing.T) {
	mask := createFilledEllipse(120, 120, 60, 60, 30, 30, 0)
	largest, _ := LargestContour(FindExternalContours(mask))

	e, err := FitEllipse(largest)
	if err != nil {
		t.Fatalf("FitEllipse failed: %v", err)
	}
	if math.Abs(e.Width-e.Height) > 2 {
		t.Errorf("Circle axes differ: %.2f vs %.2f", e.Width, e.Height)
	}
	if ar := e.AspectRatio(); ar < 1 || ar > 1.1 {
		t.Errorf("AspectRatio = %.3f, want ~1", ar)
	}
}

func TestFitEllipse_ExactPoints(t *testing.T) {
	// Points sampled from an axis-aligned ellipse centred at (50, 40), a=20, b=10.
	points := make([]Point, 0)
	for i := 0; i < 36; i++ {
		phi := float64(i) * 10 * math.Pi / 180
		points = append(points, Point{
			X: int(math.Round(50 + 20*math.Cos(phi))),
			Y: int(math.Round(40 + 10*math.Sin(phi))),
		})
	}

	e, err := FitEllipse(points)
	if err != nil {
		t.Fatalf("FitEllipse failed: %v", err)
	}
	if math.Abs(e.CenterX-50) > 0.5 || math.Abs(e.CenterY-40) > 0.5 {
		t.Errorf("Center = (%.2f, %.2f), want (50, 40)", e.CenterX, e.CenterY)
	}
	if math.Abs(e.Major()-40) > 1 || math.Abs(e.Minor()-20) > 1 {
		t.Errorf("Axes = (%.2f, %.2f), want (40, 20)", e.Major(), e.Minor())
	}
}

func TestFitEllipse_TooFewPoints(t *testing.T) {
	_, err := FitEllipse([]Point{{0, 0}, {1, 1}, {2, 0}, {1, -1}})
	if !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("Expected ErrTooFewPoints, got %v", err)
	}
}

func TestFitEllipse_Collinear(t *testing.T) {
	points := []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}}
	_, err := FitEllipse(points)
	if !errors.Is(err, ErrNotEllipse) {
		t.Errorf("Expected ErrNotEllipse for collinear points, got %v", err)
	}
}

func TestFitEllipse_IdenticalPoints(t *testing.T) {
	points := []Point{{3, 3}, {3, 3}, {3, 3}, {3, 3}, {3, 3}}
	_, err := FitEllipse(points)
	if !errors.Is(err, ErrNotEllipse) {
		t.Errorf("Expected ErrNotEllipse for identical points, got %v", err)
	}
}

func TestEllipse_Accessors(t *testing.T) {
	e := Ellipse{Width: 30, Height: 60}
	if e.Major() != 60 || e.Minor() != 30 {
		t.Errorf("Major/Minor = %v/%v, want 60/30", e.Major(), e.Minor())
	}
	if e.AspectRatio() != 2 {
		t.Errorf("AspectRatio = %v, want 2", e.AspectRatio())
	}
	if (Ellipse{Width: 10}).AspectRatio() != 0 {
		t.Error("Degenerate ellipse should have zero aspect ratio")
	}
}

func TestCircularity(t *testing.T) {
	r := 10.0
	if got := Circularity(math.Pi*r*r, 2*math.Pi*r); math.Abs(got-1) > 1e-9 {
		t.Errorf("Circle circularity = %v, want 1", got)
	}
	if got := Circularity(100, 40); math.Abs(got-math.Pi/4) > 1e-9 {
		t.Errorf("Square circularity = %v, want pi/4", got)
	}
	if got := Circularity(5, 0); got != 0 {
		t.Errorf("Zero perimeter circularity = %v, want 0", got)
	}
}

func TestDetectAnnotationEllipse(t *testing.T) {
	black := createTestImage(200, 160, color.Black)
	img := imaging.DrawEllipse(black, 100, 80, 60, 35, 20,
		imaging.EllipseStyle{Color: color.White, Thickness: 2})

	det, err := DetectAnnotationEllipse(img)
	if err != nil {
		t.Fatalf("DetectAnnotationEllipse failed: %v", err)
	}
	e := det.Ellipse
	if math.Abs(e.CenterX-100) > 2 || math.Abs(e.CenterY-80) > 2 {
		t.Errorf("Center = (%.2f, %.2f), want (100, 80)", e.CenterX, e.CenterY)
	}
	if math.Abs(e.Major()-120) > 6 || math.Abs(e.Minor()-70) > 6 {
		t.Errorf("Axes = (%.2f, %.2f), want ~(120, 70)", e.Major(), e.Minor())
	}
	if angleDiff(e.Angle, 20) > 4 {
		t.Errorf("Angle = %.2f, want ~20", e.Angle)
	}
	if det.Mask == nil {
		t.Error("Expected the binary mask to be returned")
	}
}

func TestDetectAnnotationEllipse_NoContours(t *testing.T) {
	_, err := DetectAnnotationEllipse(createTestImage(50, 50, color.Black))
	if !errors.Is(err, ErrNoContours) {
		t.Errorf("Expected ErrNoContours, got %v", err)
	}
}

func TestDetectAnnotationEllipse_TooFewPoints(t *testing.T) {
	img := createTestImage(50, 50, color.Black)
	for x := 10; x < 30; x++ {
		img.Set(x, 20, color.White)
	}

	det, err := DetectAnnotationEllipse(img)
	if !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("Expected ErrTooFewPoints for a line, got %v", err)
	}
	if len(det.Contour) != 2 {
		t.Errorf("Expected the line contour to be reported, got %v", det.Contour)
	}
}

func TestDetectThresholdEllipse_Level(t *testing.T) {
	black := createTestImage(200, 160, color.Black)
	gray := color.Gray{Y: 100}
	img := imaging.DrawEllipse(black, 100, 80, 50, 30, 0,
		imaging.EllipseStyle{Color: gray, Thickness: 3})

	if _, err := DetectAnnotationEllipse(img); !errors.Is(err, ErrNoContours) {
		t.Errorf("Expected a dim outline to vanish at the default level, got %v", err)
	}

	det, err := DetectThresholdEllipse(img, 50)
	if err != nil {
		t.Fatalf("DetectThresholdEllipse failed: %v", err)
	}
	if math.Abs(det.Ellipse.CenterX-100) > 2 || math.Abs(det.Ellipse.CenterY-80) > 2 {
		t.Errorf("Center = (%.2f, %.2f), want (100, 80)", det.Ellipse.CenterX, det.Ellipse.CenterY)
	}
}

func TestDetectMaskEllipse(t *testing.T) {
	white := createTestImage(220, 180, color.White)
	img := imaging.DrawEllipse(white, 110, 90, 70, 40, 0,
		imaging.EllipseStyle{Color: color.Black, Thickness: 4})

	det, err := DetectMaskEllipse(img, 11, 2)
	if err != nil {
		t.Fatalf("DetectMaskEllipse failed: %v", err)
	}
	e := det.Ellipse
	if math.Abs(e.CenterX-110) > 2 || math.Abs(e.CenterY-90) > 2 {
		t.Errorf("Center = (%.2f, %.2f), want (110, 90)", e.CenterX, e.CenterY)
	}
	if math.Abs(e.Major()-140) > 8 || math.Abs(e.Minor()-80) > 8 {
		t.Errorf("Axes = (%.2f, %.2f), want ~(140, 80)", e.Major(), e.Minor())
	}
	if det.Area <= 0 || det.Perimeter <= 0 {
		t.Errorf("Expected positive area and perimeter, got %.1f / %.1f", det.Area, det.Perimeter)
	}
	if c := det.Circularity(); c <= 0 || c > 1.05 {
		t.Errorf("Circularity = %.3f, want in (0, 1]", c)
	}
}

func TestDetectMaskEllipse_InvalidBlockSize(t *testing.T) {
	_, err := DetectMaskEllipse(createTestImage(20, 20, color.White), 4, 2)
	if err == nil {
		t.Error("Expected error for even block size")
	}
}

func TestDetectMaskEllipse_BlankImage(t *testing.T) {
	det, err := DetectMaskEllipse(createTestImage(40, 40, color.White), 11, 2)
	if !errors.Is(err, ErrNoContours) {
		t.Errorf("Expected ErrNoContours on a blank frame, got %v", err)
	}
	if det.Mask == nil {
		t.Error("Expected mask even without contours")
	}
}
