package crowd

import (
	"math/rand"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// Transform mutates or replaces an example. Transforms are applied in
// order; the composition is not commutative (normalization must come
// after the geometric transforms).
type Transform interface {
	Apply(ex *Example, rng *rand.Rand) *Example
}

// Compose applies a fixed sequence of transforms.
type Compose []Transform

func (c Compose) Apply(ex *Example, rng *rand.Rand) *Example {
	for _, t := range c {
		ex = t.Apply(ex, rng)
	}
	return ex
}

// RandomPatch selects a random square patch of the image and its
// density label and rescales both to Size x Size. The label rescale
// preserves the patch head count: the resized map is renormalized so
// its sum matches the sum inside the source patch.
type RandomPatch struct {
	Size int
}

func (t RandomPatch) Apply(ex *Example, rng *rand.Rand) *Example {
	dims := ex.Image.Dims()
	h, w := dims[1], dims[2]
	short := h
	if w < short {
		short = w
	}
	side := short/2 + rng.Intn(short/2+1)
	if side < 1 {
		side = short
	}
	x0 := rng.Intn(w - side + 1)
	y0 := rng.Intn(h - side + 1)

	out := &Example{
		Image: num.NewArray(3, t.Size, t.Size),
		Label: num.NewArray(t.Size, t.Size),
		Name:  ex.Name,
	}
	for ch := 0; ch < 3; ch++ {
		src := ex.Image.Data()[ch*h*w : (ch+1)*h*w]
		dst := out.Image.Data()[ch*t.Size*t.Size : (ch+1)*t.Size*t.Size]
		resizeBilinear(src, w, h, x0, y0, side, dst, t.Size)
	}
	var patchSum float32
	label := ex.Label.Data()
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			patchSum += label[x+y*w]
		}
	}
	resizeBilinear(label, w, h, x0, y0, side, out.Label.Data(), t.Size)
	if s := out.Label.Sum(); s > 0 && patchSum > 0 {
		out.Label.Scale(patchSum / s)
	}
	return out
}

// HorizFlip mirrors the image and label with probability one half.
type HorizFlip struct{}

func (t HorizFlip) Apply(ex *Example, rng *rand.Rand) *Example {
	if rng.Float64() > 0.5 {
		return ex
	}
	dims := ex.Image.Dims()
	h, w := dims[1], dims[2]
	im := ex.Image.Data()
	for ch := 0; ch < 3; ch++ {
		flipRows(im[ch*h*w:(ch+1)*h*w], w, h)
	}
	flipRows(ex.Label.Data(), w, h)
	return ex
}

func flipRows(pix []float32, w, h int) {
	for y := 0; y < h; y++ {
		row := pix[y*w : (y+1)*w]
		for i, j := 0, w-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}

// NormalizeSigned maps image values from [0,1] to [-1,1]. Labels are
// left alone: density is a physical quantity.
type NormalizeSigned struct{}

func (t NormalizeSigned) Apply(ex *Example, rng *rand.Rand) *Example {
	data := ex.Image.Data()
	for i, v := range data {
		data[i] = v*2 - 1
	}
	return ex
}

// TrainTransform is the pipeline used for the training split.
func TrainTransform(patchSize int) Transform {
	return Compose{RandomPatch{Size: patchSize}, HorizFlip{}, NormalizeSigned{}}
}

// EvalTransform is the pipeline used for validation and test: no flip.
func EvalTransform(patchSize int) Transform {
	return Compose{RandomPatch{Size: patchSize}, NormalizeSigned{}}
}

// resizeBilinear samples the side x side patch at (x0,y0) of src into
// a size x size destination.
func resizeBilinear(src []float32, w, h, x0, y0, side int, dst []float32, size int) {
	scale := float32(side) / float32(size)
	at := func(x, y int) float32 {
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		if x >= w {
			x = w - 1
		}
		if y >= h {
			y = h - 1
		}
		return src[x+y*w]
	}
	for y := 0; y < size; y++ {
		sy := (float32(y)+0.5)*scale - 0.5 + float32(y0)
		iy := int(sy)
		fy := sy - float32(iy)
		if sy < 0 {
			iy, fy = y0, 0
		}
		for x := 0; x < size; x++ {
			sx := (float32(x)+0.5)*scale - 0.5 + float32(x0)
			ix := int(sx)
			fx := sx - float32(ix)
			if sx < 0 {
				ix, fx = x0, 0
			}
			v0 := at(ix, iy)*(1-fx) + at(ix+1, iy)*fx
			v1 := at(ix, iy+1)*(1-fx) + at(ix+1, iy+1)*fx
			dst[x+y*size] = v0*(1-fy) + v1*fy
		}
	}
}
