package img

import (
	"image"
	"image/color"
	"image/draw"
)

// color map definition
var cmap = [][3]float32{{0, 0, .5}, {0, 0, 1}, {0, .5, 1}, {0, 1, 1}, {.5, 1, .5}, {1, 1, 0}, {1, .5, 0}, {1, 0, 0}, {.5, 0, 0}}

const gridBorder = 2

// DensityImage maps a density map to colors scaled to its own maximum.
func DensityImage(m *GrayImage) *image.NRGBA {
	var max float32
	for _, v := range m.Pix {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		max = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			dst.SetNRGBA(x, y, MapColor(m.Pix[x+y*m.Width], 0, max))
		}
	}
	return dst
}

// unpack an image from [-1,1] back to displayable range
func unnormalized(m *RGBImage) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := m.RGBAt(x, y)
			dst.SetNRGBA(x, y, color.NRGBA{
				R: uint8(clamp((c.R+1)/2, 0, 1) * 255),
				G: uint8(clamp((c.G+1)/2, 0, 1) * 255),
				B: uint8(clamp((c.B+1)/2, 0, 1) * 255),
				A: 255,
			})
		}
	}
	return dst
}

// ComparisonGrid renders one row per example: the input image, the true
// density map and the predicted density map side by side.
func ComparisonGrid(images []*RGBImage, labels, predicted []*GrayImage) *image.NRGBA {
	if len(images) == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}
	w, h := images[0].Width, images[0].Height
	cols, rows := 3, len(images)
	dst := image.NewNRGBA(image.Rect(0, 0, cols*(w+gridBorder)-gridBorder, rows*(h+gridBorder)-gridBorder))
	for i := range images {
		y0 := i * (h + gridBorder)
		paste(dst, unnormalized(images[i]), 0, y0)
		paste(dst, DensityImage(labels[i]), w+gridBorder, y0)
		paste(dst, DensityImage(predicted[i]), 2*(w+gridBorder), y0)
	}
	return dst
}

// ImageGrid tiles up to max images with nrow per row, for the fake
// image summary.
func ImageGrid(images []*RGBImage, max, nrow int) *image.NRGBA {
	if len(images) > max {
		images = images[:max]
	}
	if len(images) == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}
	w, h := images[0].Width, images[0].Height
	rows := (len(images) + nrow - 1) / nrow
	dst := image.NewNRGBA(image.Rect(0, 0, nrow*(w+gridBorder)-gridBorder, rows*(h+gridBorder)-gridBorder))
	for i, m := range images {
		paste(dst, unnormalized(m), (i%nrow)*(w+gridBorder), (i/nrow)*(h+gridBorder))
	}
	return dst
}

func paste(dst *image.NRGBA, src image.Image, x, y int) {
	r := src.Bounds().Add(image.Pt(x, y))
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
}

// MapColor converts a value in range cmin:cmax to an interpolated color
// from the color map.
func MapColor(val float32, cmin, cmax float32) color.NRGBA {
	var col [3]float32
	ncol := len(cmap)
	switch {
	case val <= cmin:
		col = cmap[0]
	case val >= cmax:
		col = cmap[ncol-1]
	default:
		vsc := float32(ncol-1) * (val - cmin) / (cmax - cmin)
		ix := int(vsc)
		fx := vsc - float32(ix)
		for i := range col {
			col[i] = cmap[ix][i]*(1-fx) + cmap[ix+1][i]*fx
		}
	}
	return color.NRGBA{uint8(col[0] * 255), uint8(col[1] * 255), uint8(col[2] * 255), 255}
}
