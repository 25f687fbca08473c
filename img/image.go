// Package img contains the float32 image types used for crowd frames
// and density maps, and renders the qualitative summary grids.
package img

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
)

var (
	GrayModel = color.ModelFunc(grayModel)
	RGBModel  = color.ModelFunc(rgbModel)
)

// Gray color stored a float in range 0-1
type Gray struct {
	Y float32
}

func (c Gray) RGBA() (r, g, b, a uint32) {
	y := clampu(c.Y, 0, 1)
	return y, y, y, 0xffff
}

func grayModel(c color.Color) color.Color {
	if _, ok := c.(Gray); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Gray{Y: 0.299*float32(r)/0xffff + 0.587*float32(g)/0xffff + 0.114*float32(b)/0xffff}
}

// RGB color is stored as a float for each channel with values in range 0-1
type RGB struct {
	R, G, B float32
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return clampu(c.R, 0, 1), clampu(c.G, 0, 1), clampu(c.B, 0, 1), 0xffff
}

func rgbModel(c color.Color) color.Color {
	if _, ok := c.(RGB); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB{R: float32(r) / 0xffff, G: float32(g) / 0xffff, B: float32(b) / 0xffff}
}

// GrayImage stores single channel data as float32 values in row major order.
// Density maps use this type directly.
type GrayImage struct {
	Pix    []float32
	Height int
	Width  int
}

func NewGray(width, height int) *GrayImage {
	return &GrayImage{Pix: make([]float32, height*width), Height: height, Width: width}
}

func (m *GrayImage) ColorModel() color.Model { return GrayModel }

func (m *GrayImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *GrayImage) GrayAt(x, y int) Gray {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return Gray{}
	}
	return Gray{Y: m.Pix[x+y*m.Width]}
}

func (m *GrayImage) At(x, y int) color.Color { return m.GrayAt(x, y) }

func (m *GrayImage) Set(x, y int, c color.Color) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	m.Pix[x+y*m.Width] = grayModel(c).(Gray).Y
}

// RGBImage stores float32 values in row major order with the r, g and b
// planes stored separately, matching the NCHW tensor layout.
type RGBImage struct {
	Pix    []float32
	Height int
	Width  int
}

func NewRGB(width, height int) *RGBImage {
	return &RGBImage{Pix: make([]float32, height*width*3), Height: height, Width: width}
}

// FromPlanes wraps an NCHW plane slice as an image. The slice is shared.
func FromPlanes(pix []float32, width, height int) *RGBImage {
	return &RGBImage{Pix: pix, Height: height, Width: width}
}

func (m *RGBImage) ColorModel() color.Model { return RGBModel }

func (m *RGBImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *RGBImage) RGBAt(x, y int) RGB {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return RGB{}
	}
	plane := m.Width * m.Height
	pos := x + y*m.Width
	return RGB{R: m.Pix[pos], G: m.Pix[pos+plane], B: m.Pix[pos+2*plane]}
}

func (m *RGBImage) At(x, y int) color.Color { return m.RGBAt(x, y) }

func (m *RGBImage) Set(x, y int, c color.Color) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	rgb := rgbModel(c).(RGB)
	plane := m.Width * m.Height
	pos := x + y*m.Width
	m.Pix[pos] = rgb.R
	m.Pix[pos+plane] = rgb.G
	m.Pix[pos+2*plane] = rgb.B
}

// SavePNG encodes the image to a PNG file.
func SavePNG(path string, m image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "save png")
	}
	defer f.Close()
	if err = png.Encode(f, m); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return nil
}

func clampu(x, x0, x1 float32) uint32 {
	return uint32(clamp(x, x0, x1) * 0xffff)
}

func clamp(x, x0, x1 float32) float32 {
	if x < x0 {
		return x0
	}
	if x > x1 {
		return x1
	}
	return x
}
