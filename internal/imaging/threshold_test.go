package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createGrayImage creates a uniform grayscale image.
func createGrayImage(width, height int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	return img
}

func countForeground(mask *image.Gray) int {
	n := 0
	for _, v := range mask.Pix {
		if v == 255 {
			n++
		}
	}
	return n
}

func TestGrayscale(t *testing.T) {
	img := createInMemoryImage(10, 10, color.RGBA{255, 255, 255, 255})
	gray := Grayscale(img)

	if gray.Bounds().Dx() != 10 || gray.Bounds().Dy() != 10 {
		t.Fatalf("dimensions: got %v", gray.Bounds())
	}
	if v := gray.GrayAt(3, 3).Y; v < 254 {
		t.Errorf("white should stay white, got %d", v)
	}

	mid := Grayscale(createInMemoryImage(3, 3, color.RGBA{128, 128, 128, 255}))
	if v := mid.GrayAt(1, 1).Y; v != 128 {
		t.Errorf("neutral gray should keep its level, got %d", v)
	}

	black := Grayscale(createInMemoryImage(4, 4, color.RGBA{0, 0, 0, 255}))
	if v := black.GrayAt(1, 1).Y; v != 0 {
		t.Errorf("black should stay black, got %d", v)
	}
}

func TestThreshold(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 1))
	gray.SetGray(0, 0, color.Gray{Y: 0})
	gray.SetGray(1, 0, color.Gray{Y: 100})
	gray.SetGray(2, 0, color.Gray{Y: 200})
	gray.SetGray(3, 0, color.Gray{Y: 255})

	mask := Threshold(gray, 127)
	want := []uint8{0, 0, 255, 255}
	for x, w := range want {
		if got := mask.GrayAt(x, 0).Y; got != w {
			t.Errorf("pixel %d: got %d, want %d", x, got, w)
		}
	}

	edge := image.NewGray(image.Rect(0, 0, 2, 1))
	edge.SetGray(0, 0, color.Gray{Y: 127})
	edge.SetGray(1, 0, color.Gray{Y: 128})
	edgeMask := Threshold(edge, 127)
	if edgeMask.GrayAt(0, 0).Y != 0 || edgeMask.GrayAt(1, 0).Y != 255 {
		t.Errorf("boundary: got %d, %d; want 0, 255", edgeMask.GrayAt(0, 0).Y, edgeMask.GrayAt(1, 0).Y)
	}

	if n := countForeground(Threshold(gray, 255)); n != 0 {
		t.Errorf("level 255 should produce an empty mask, got %d foreground pixels", n)
	}
}

func TestThreshold_EveryLevel(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	for level := 0; level < 255; level++ {
		gray.SetGray(0, 0, color.Gray{Y: uint8(level)})
		gray.SetGray(1, 0, color.Gray{Y: uint8(level + 1)})

		mask := Threshold(gray, uint8(level))
		if mask.GrayAt(0, 0).Y != 0 {
			t.Errorf("level %d: pixel equal to level should be background", level)
		}
		if mask.GrayAt(1, 0).Y != 255 {
			t.Errorf("level %d: pixel one above level should be foreground", level)
		}
	}
}

func TestThreshold_OffsetBounds(t *testing.T) {
	base := createGrayImage(6, 6, 0)
	base.SetGray(3, 3, color.Gray{Y: 200})
	sub := base.SubImage(image.Rect(2, 2, 5, 5)).(*image.Gray)

	mask := Threshold(sub, 127)
	if mask.Bounds().Min != (image.Point{}) || mask.Bounds().Dx() != 3 {
		t.Fatalf("mask bounds: got %v", mask.Bounds())
	}
	if mask.GrayAt(1, 1).Y != 255 || countForeground(mask) != 1 {
		t.Errorf("expected a single foreground pixel at (1,1), got %d", countForeground(mask))
	}
}

func TestAdaptiveThresholdInv_InvalidBlockSize(t *testing.T) {
	gray := createGrayImage(20, 20, 128)
	for _, bs := range []int{0, 1, 2, 4, 10} {
		if _, err := AdaptiveThresholdInv(gray, bs, 2); err == nil {
			t.Errorf("block size %d should be rejected", bs)
		}
	}
}

func TestAdaptiveThresholdInv_Uniform(t *testing.T) {
	mask, err := AdaptiveThresholdInv(createGrayImage(30, 30, 128), 11, 2)
	if err != nil {
		t.Fatalf("AdaptiveThresholdInv failed: %v", err)
	}
	if n := countForeground(mask); n != 0 {
		t.Errorf("uniform image should have no foreground, got %d pixels", n)
	}
}

func TestAdaptiveThresholdInv_DarkLine(t *testing.T) {
	gray := createGrayImage(40, 40, 220)
	for x := 0; x < 40; x++ {
		gray.SetGray(x, 20, color.Gray{Y: 30})
	}

	mask, err := AdaptiveThresholdInv(gray, 11, 2)
	if err != nil {
		t.Fatalf("AdaptiveThresholdInv failed: %v", err)
	}

	for x := 0; x < 40; x++ {
		if mask.GrayAt(x, 20).Y != 255 {
			t.Fatalf("line pixel (%d,20) should be foreground", x)
		}
	}
	if mask.GrayAt(20, 5).Y != 0 {
		t.Error("background far from the line should stay background")
	}
	for _, v := range mask.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("mask contains non-binary value %d", v)
		}
	}
}

func TestMorphOpen_RemovesSpeck(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 40, 40))
	mask.SetGray(5, 5, color.Gray{Y: 255})
	for y := 15; y < 35; y++ {
		for x := 15; x < 35; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	opened := MorphOpen(mask)
	if opened.GrayAt(5, 5).Y != 0 {
		t.Error("isolated pixel should be removed by opening")
	}
	if opened.GrayAt(25, 25).Y != 255 {
		t.Error("block interior should survive opening")
	}
}

func TestMorphClose_FillsHole(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	mask.SetGray(20, 20, color.Gray{Y: 0})

	closed := MorphClose(mask)
	if closed.GrayAt(20, 20).Y != 255 {
		t.Error("single pixel hole should be filled by closing")
	}
	if closed.GrayAt(2, 2).Y != 0 {
		t.Error("background should stay background")
	}
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(11)
	if len(k) != 11 {
		t.Fatalf("length: got %d, want 11", len(k))
	}
	var sum float64
	for _, v := range k {
		sum += v
	}
	if sum < 0.9999 || sum > 1.0001 {
		t.Errorf("kernel should be normalized, sum = %f", sum)
	}
	if k[5] <= k[4] || k[4] <= k[0] {
		t.Error("kernel should peak at the center")
	}
	if k[0] != k[10] {
		t.Error("kernel should be symmetric")
	}
}
