package detection

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createMask creates a black mask of the given size.
func createMask(width, height int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, width, height))
}

// fillRect sets the pixels of [x0,x1]x[y0,y1] (inclusive) to 255.
func fillRect(mask *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
}

func TestFindExternalContours_Rectangle(t *testing.T) {
	mask := createMask(30, 20)
	fillRect(mask, 10, 5, 19, 14)

	contours := FindExternalContours(mask)
	if len(contours) != 1 {
		t.Fatalf("Expected 1 contour, got %d", len(contours))
	}

	c := contours[0]
	if len(c) != 4 {
		t.Fatalf("Expected 4 corner points after compression, got %d: %v", len(c), c)
	}

	corners := map[Point]bool{
		{10, 5}: true, {10, 14}: true, {19, 14}: true, {19, 5}: true,
	}
	for _, p := range c {
		if !corners[p] {
			t.Errorf("Unexpected contour point %v", p)
		}
	}

	if c[0] != (Point{10, 5}) {
		t.Errorf("Expected contour to start at top-left pixel, got %v", c[0])
	}
	if got := c.Area(); got != 81 {
		t.Errorf("Area = %v, want 81", got)
	}
	if got := c.Perimeter(); got != 36 {
		t.Errorf("Perimeter = %v, want 36", got)
	}
}

func TestFindExternalContours_Empty(t *testing.T) {
	contours := FindExternalContours(createMask(10, 10))
	if len(contours) != 0 {
		t.Errorf("Expected no contours on an empty mask, got %d", len(contours))
	}
}

func TestFindExternalContours_SinglePixel(t *testing.T) {
	mask := createMask(10, 10)
	mask.SetGray(4, 6, color.Gray{Y: 255})

	contours := FindExternalContours(mask)
	if len(contours) != 1 {
		t.Fatalf("Expected 1 contour, got %d", len(contours))
	}
	if len(contours[0]) != 1 || contours[0][0] != (Point{4, 6}) {
		t.Errorf("Expected single point (4,6), got %v", contours[0])
	}
	if contours[0].Area() != 0 {
		t.Errorf("Single pixel should have zero area")
	}
}

func TestFindExternalContours_HorizontalLine(t *testing.T) {
	mask := createMask(20, 10)
	fillRect(mask, 2, 3, 11, 3)

	contours := FindExternalContours(mask)
	if len(contours) != 1 {
		t.Fatalf("Expected 1 contour, got %d", len(contours))
	}
	want := Contour{{2, 3}, {11, 3}}
	if len(contours[0]) != 2 || contours[0][0] != want[0] || contours[0][1] != want[1] {
		t.Errorf("Line contour = %v, want %v", contours[0], want)
	}
	if got := contours[0].Perimeter(); got != 18 {
		t.Errorf("Perimeter = %v, want 18 (there and back)", got)
	}
}

func TestFindExternalContours_NestedComponentExcluded(t *testing.T) {
	mask := createMask(40, 40)
	// Hollow square outline
	fillRect(mask, 5, 5, 34, 6)
	fillRect(mask, 5, 33, 34, 34)
	fillRect(mask, 5, 5, 6, 34)
	fillRect(mask, 33, 5, 34, 34)
	// Blob inside the hole
	fillRect(mask, 15, 15, 20, 20)

	contours := FindExternalContours(mask)
	if len(contours) != 1 {
		t.Fatalf("Expected only the outer square, got %d contours", len(contours))
	}
	if contours[0][0] != (Point{5, 5}) {
		t.Errorf("Expected outer contour to start at (5,5), got %v", contours[0][0])
	}
}

func TestFindExternalContours_SeparateComponents(t *testing.T) {
	mask := createMask(50, 20)
	fillRect(mask, 2, 2, 6, 6)
	fillRect(mask, 20, 4, 40, 15)

	contours := FindExternalContours(mask)
	if len(contours) != 2 {
		t.Fatalf("Expected 2 contours, got %d", len(contours))
	}

	largest, ok := LargestContour(contours)
	if !ok {
		t.Fatal("LargestContour reported no contours")
	}
	if largest[0] != (Point{20, 4}) {
		t.Errorf("Expected the larger rectangle, got contour starting at %v", largest[0])
	}
}

func TestFindExternalContours_DiagonalConnectivity(t *testing.T) {
	mask := createMask(10, 10)
	for i := 1; i <= 5; i++ {
		mask.SetGray(i, i, color.Gray{Y: 255})
	}

	contours := FindExternalContours(mask)
	if len(contours) != 1 {
		t.Fatalf("Diagonal pixels should form one 8-connected component, got %d", len(contours))
	}
	if len(contours[0]) != 2 {
		t.Errorf("Expected diagonal run compressed to its end points, got %v", contours[0])
	}
}

func TestFindExternalContours_OffsetBounds(t *testing.T) {
	full := createMask(40, 40)
	fillRect(full, 20, 20, 25, 25)
	sub := full.SubImage(image.Rect(10, 10, 40, 40)).(*image.Gray)

	contours := FindExternalContours(sub)
	if len(contours) != 1 {
		t.Fatalf("Expected 1 contour, got %d", len(contours))
	}
	if contours[0][0] != (Point{20, 20}) {
		t.Errorf("Expected coordinates in the mask's own space, got %v", contours[0][0])
	}
}

func TestLargestContour_Empty(t *testing.T) {
	if _, ok := LargestContour(nil); ok {
		t.Error("Expected ok=false for no contours")
	}
}

func TestContourPerimeter_Triangle(t *testing.T) {
	c := Contour{{0, 0}, {3, 0}, {0, 4}}
	if got := c.Perimeter(); math.Abs(got-12) > 1e-9 {
		t.Errorf("Perimeter = %v, want 12", got)
	}
	if got := c.Area(); got != 6 {
		t.Errorf("Area = %v, want 6", got)
	}
}
