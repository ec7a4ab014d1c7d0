package imaging

import (
	"image/color"
	"testing"
)

func isGreen(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return g>>8 > 128 && r>>8 < 64 && b>>8 < 64
}

func TestDrawEllipse_Axes(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})
	style := EllipseStyle{Color: color.NRGBA{0, 255, 0, 255}, Thickness: 2}

	out := DrawEllipse(img, 50, 50, 30, 20, 0, style)

	if !isGreen(out.At(80, 50)) {
		t.Errorf("right end of the X axis should be stroked, got %v", out.At(80, 50))
	}
	if !isGreen(out.At(20, 50)) {
		t.Errorf("left end of the X axis should be stroked, got %v", out.At(20, 50))
	}
	if !isGreen(out.At(50, 30)) {
		t.Errorf("top of the Y axis should be stroked, got %v", out.At(50, 30))
	}
	if isGreen(out.At(50, 50)) {
		t.Error("center should not be filled")
	}
	if isGreen(out.At(5, 5)) {
		t.Error("corner should not be touched")
	}

	// Source must stay untouched
	if r, g, b, _ := img.At(80, 50).RGBA(); r|g|b != 0 {
		t.Error("DrawEllipse modified its input")
	}
}

func TestDrawEllipse_Rotation(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})
	style := EllipseStyle{Color: color.NRGBA{0, 255, 0, 255}, Thickness: 2}

	out := DrawEllipse(img, 50, 50, 30, 15, 90, style)

	if !isGreen(out.At(50, 80)) {
		t.Errorf("rotated major axis should point down, got %v", out.At(50, 80))
	}
	if isGreen(out.At(80, 50)) {
		t.Error("rotated ellipse should not reach x=80 on the horizontal axis")
	}
}

func TestDrawEllipse_Degenerate(t *testing.T) {
	img := createInMemoryImage(10, 10, color.RGBA{1, 2, 3, 255})
	out := DrawEllipse(img, 5, 5, 0, 3, 0, EllipseStyle{Color: color.White, Thickness: 2})

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			r, g, b, _ := out.At(x, y).RGBA()
			if r>>8 != 1 || g>>8 != 2 || b>>8 != 3 {
				t.Fatalf("degenerate ellipse changed pixel (%d,%d)", x, y)
			}
		}
	}
}

func TestBlendWeighted(t *testing.T) {
	base := createInMemoryImage(8, 8, color.RGBA{0, 0, 0, 255})
	overlay := createInMemoryImage(8, 8, color.RGBA{255, 255, 255, 255})

	half := BlendWeighted(overlay, base, 0.5)
	if half.Bounds().Dx() != 8 || half.Bounds().Dy() != 8 {
		t.Fatalf("dimensions: got %v", half.Bounds())
	}
	if r := half.RGBAAt(3, 3).R; r < 125 || r > 130 {
		t.Errorf("50%% blend: got %d, want ~127", r)
	}

	full := BlendWeighted(overlay, base, 1)
	if r := full.RGBAAt(3, 3).R; r < 254 {
		t.Errorf("alpha 1 should return the overlay, got %d", r)
	}
}
