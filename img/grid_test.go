package img

import (
	"testing"
)

func TestMapColor(t *testing.T) {
	// endpoints clamp to the first and last color map entries
	c := MapColor(-1, 0, 1)
	if c.R != 0 || c.G != 0 || c.B != 127 {
		t.Error("low: got", c)
	}
	c = MapColor(2, 0, 1)
	if c.R != 127 || c.G != 0 || c.B != 0 {
		t.Error("high: got", c)
	}
	mid := MapColor(0.5, 0, 1)
	if mid.G == 0 {
		t.Error("mid: got", mid)
	}
}

func TestDensityImage(t *testing.T) {
	m := NewGray(4, 4)
	m.Pix[5] = 2
	im := DensityImage(m)
	if b := im.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Error("bounds: got", b)
	}
	// the peak maps to the hot end of the color map
	peak := im.NRGBAAt(1, 1)
	if peak.R != 127 || peak.G != 0 || peak.B != 0 {
		t.Error("peak: got", peak)
	}
	// an all zero map must not divide by zero
	DensityImage(NewGray(4, 4))
}

func TestComparisonGrid(t *testing.T) {
	var images []*RGBImage
	var labels, predicted []*GrayImage
	for i := 0; i < 2; i++ {
		images = append(images, NewRGB(8, 6))
		labels = append(labels, NewGray(8, 6))
		predicted = append(predicted, NewGray(8, 6))
	}
	grid := ComparisonGrid(images, labels, predicted)
	b := grid.Bounds()
	// 3 columns and 2 rows with a 2 pixel border between cells
	if b.Dx() != 3*8+2*2 || b.Dy() != 2*6+2 {
		t.Error("bounds: got", b)
	}
}

func TestImageGrid(t *testing.T) {
	var images []*RGBImage
	for i := 0; i < 12; i++ {
		images = append(images, NewRGB(4, 4))
	}
	grid := ImageGrid(images, 9, 3)
	b := grid.Bounds()
	// capped at 9 images, 3 per row
	if b.Dx() != 3*4+2*2 || b.Dy() != 3*4+2*2 {
		t.Error("bounds: got", b)
	}
	if g := ImageGrid(nil, 9, 3); g.Bounds().Dx() != 1 {
		t.Error("empty grid: got", g.Bounds())
	}
}

func TestFromPlanes(t *testing.T) {
	pix := make([]float32, 3*2*2)
	pix[0] = 1            // R plane, pixel (0,0)
	pix[2*2+3] = 1        // G plane, pixel (1,1)
	m := FromPlanes(pix, 2, 2)
	if c := m.RGBAt(0, 0); c.R != 1 || c.G != 0 {
		t.Error("pixel (0,0): got", c)
	}
	if c := m.RGBAt(1, 1); c.G != 1 {
		t.Error("pixel (1,1): got", c)
	}
}
