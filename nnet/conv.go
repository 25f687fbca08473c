package nnet

import (
	"math"
	"math/rand"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// Conv2D is a stride 1 convolution over NCHW input with zero padding.
type Conv2D struct {
	InC, OutC, Size, Pad int
	w, b                 *num.Array // w: [OutC,InC,K,K]
	dw, db               *num.Array
	x                    *num.Array
	y, dx                *num.Array
}

func NewConv2D(inC, outC, size, pad int) *Conv2D {
	return &Conv2D{
		InC: inC, OutC: outC, Size: size, Pad: pad,
		w:  num.NewArray(outC, inC, size, size),
		b:  num.NewArray(outC),
		dw: num.NewArray(outC, inC, size, size),
		db: num.NewArray(outC),
	}
}

func (l *Conv2D) InitParams(rng *rand.Rand) {
	initNormal(l.w, rng, 1/math.Sqrt(float64(l.InC*l.Size*l.Size)))
	l.b.Fill(0)
}

func (l *Conv2D) Params() []*num.Array { return []*num.Array{l.w, l.b} }
func (l *Conv2D) Grads() []*num.Array  { return []*num.Array{l.dw, l.db} }

// OutShape returns the spatial output size for the given input size.
func (l *Conv2D) OutShape(h, w int) (int, int) {
	return h + 2*l.Pad - l.Size + 1, w + 2*l.Pad - l.Size + 1
}

func (l *Conv2D) Fprop(x *num.Array) *num.Array {
	dims := x.Dims()
	n, h, w := dims[0], dims[2], dims[3]
	oh, ow := l.OutShape(h, w)
	l.x = x
	if l.y == nil || !num.SameShape(l.y.Dims(), []int{n, l.OutC, oh, ow}) {
		l.y = num.NewArray(n, l.OutC, oh, ow)
		l.dx = num.NewArray(dims...)
	}
	xd, wd, bd, yd := x.Data(), l.w.Data(), l.b.Data(), l.y.Data()
	k := l.Size
	for in := 0; in < n; in++ {
		for f := 0; f < l.OutC; f++ {
			out := yd[(in*l.OutC+f)*oh*ow : (in*l.OutC+f+1)*oh*ow]
			for i := range out {
				out[i] = bd[f]
			}
			for c := 0; c < l.InC; c++ {
				src := xd[(in*l.InC+c)*h*w : (in*l.InC+c+1)*h*w]
				ker := wd[(f*l.InC+c)*k*k : (f*l.InC+c+1)*k*k]
				for oy := 0; oy < oh; oy++ {
					for ky := 0; ky < k; ky++ {
						iy := oy + ky - l.Pad
						if iy < 0 || iy >= h {
							continue
						}
						row := src[iy*w : (iy+1)*w]
						krow := ker[ky*k : (ky+1)*k]
						for ox := 0; ox < ow; ox++ {
							var sum float32
							for kx, kv := range krow {
								ix := ox + kx - l.Pad
								if ix >= 0 && ix < w {
									sum += kv * row[ix]
								}
							}
							out[oy*ow+ox] += sum
						}
					}
				}
			}
		}
	}
	return l.y
}

func (l *Conv2D) Bprop(dy *num.Array) *num.Array {
	xdims := l.x.Dims()
	n, h, w := xdims[0], xdims[2], xdims[3]
	oh, ow := l.OutShape(h, w)
	xd, wd, dyd := l.x.Data(), l.w.Data(), dy.Data()
	dw, db, dx := l.dw.Data(), l.db.Data(), l.dx.Data()
	for i := range dx {
		dx[i] = 0
	}
	k := l.Size
	for in := 0; in < n; in++ {
		for f := 0; f < l.OutC; f++ {
			grad := dyd[(in*l.OutC+f)*oh*ow : (in*l.OutC+f+1)*oh*ow]
			for _, g := range grad {
				db[f] += g
			}
			for c := 0; c < l.InC; c++ {
				src := xd[(in*l.InC+c)*h*w : (in*l.InC+c+1)*h*w]
				dsrc := dx[(in*l.InC+c)*h*w : (in*l.InC+c+1)*h*w]
				ker := wd[(f*l.InC+c)*k*k : (f*l.InC+c+1)*k*k]
				dker := dw[(f*l.InC+c)*k*k : (f*l.InC+c+1)*k*k]
				for oy := 0; oy < oh; oy++ {
					for ox := 0; ox < ow; ox++ {
						g := grad[oy*ow+ox]
						if g == 0 {
							continue
						}
						for ky := 0; ky < k; ky++ {
							iy := oy + ky - l.Pad
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := ox + kx - l.Pad
								if ix < 0 || ix >= w {
									continue
								}
								dker[ky*k+kx] += src[iy*w+ix] * g
								dsrc[iy*w+ix] += ker[ky*k+kx] * g
							}
						}
					}
				}
			}
		}
	}
	return l.dx
}

// Deconv2D is a transposed convolution used by the generator to
// upsample. With Size=4, Stride=2, Pad=1 it exactly doubles the
// spatial dims.
type Deconv2D struct {
	InC, OutC, Size, Stride, Pad int
	w, b                         *num.Array // w: [InC,OutC,K,K]
	dw, db                       *num.Array
	x                            *num.Array
	y, dx                        *num.Array
}

func NewDeconv2D(inC, outC int) *Deconv2D {
	size, stride, pad := 4, 2, 1
	return &Deconv2D{
		InC: inC, OutC: outC, Size: size, Stride: stride, Pad: pad,
		w:  num.NewArray(inC, outC, size, size),
		b:  num.NewArray(outC),
		dw: num.NewArray(inC, outC, size, size),
		db: num.NewArray(outC),
	}
}

func (l *Deconv2D) InitParams(rng *rand.Rand) {
	initNormal(l.w, rng, 1/math.Sqrt(float64(l.InC*l.Size*l.Size)))
	l.b.Fill(0)
}

func (l *Deconv2D) Params() []*num.Array { return []*num.Array{l.w, l.b} }
func (l *Deconv2D) Grads() []*num.Array  { return []*num.Array{l.dw, l.db} }

// OutShape returns the spatial output size for the given input size.
func (l *Deconv2D) OutShape(h, w int) (int, int) {
	return (h-1)*l.Stride - 2*l.Pad + l.Size, (w-1)*l.Stride - 2*l.Pad + l.Size
}

func (l *Deconv2D) Fprop(x *num.Array) *num.Array {
	dims := x.Dims()
	n, h, w := dims[0], dims[2], dims[3]
	oh, ow := l.OutShape(h, w)
	l.x = x
	if l.y == nil || !num.SameShape(l.y.Dims(), []int{n, l.OutC, oh, ow}) {
		l.y = num.NewArray(n, l.OutC, oh, ow)
		l.dx = num.NewArray(dims...)
	}
	xd, wd, bd, yd := x.Data(), l.w.Data(), l.b.Data(), l.y.Data()
	k := l.Size
	for in := 0; in < n; in++ {
		for f := 0; f < l.OutC; f++ {
			out := yd[(in*l.OutC+f)*oh*ow : (in*l.OutC+f+1)*oh*ow]
			for i := range out {
				out[i] = bd[f]
			}
		}
		for c := 0; c < l.InC; c++ {
			src := xd[(in*l.InC+c)*h*w : (in*l.InC+c+1)*h*w]
			for f := 0; f < l.OutC; f++ {
				out := yd[(in*l.OutC+f)*oh*ow : (in*l.OutC+f+1)*oh*ow]
				ker := wd[(c*l.OutC+f)*k*k : (c*l.OutC+f+1)*k*k]
				for iy := 0; iy < h; iy++ {
					for ix := 0; ix < w; ix++ {
						v := src[iy*w+ix]
						if v == 0 {
							continue
						}
						for ky := 0; ky < k; ky++ {
							oy := iy*l.Stride + ky - l.Pad
							if oy < 0 || oy >= oh {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ox := ix*l.Stride + kx - l.Pad
								if ox >= 0 && ox < ow {
									out[oy*ow+ox] += v * ker[ky*k+kx]
								}
							}
						}
					}
				}
			}
		}
	}
	return l.y
}

func (l *Deconv2D) Bprop(dy *num.Array) *num.Array {
	xdims := l.x.Dims()
	n, h, w := xdims[0], xdims[2], xdims[3]
	oh, ow := l.OutShape(h, w)
	xd, wd, dyd := l.x.Data(), l.w.Data(), dy.Data()
	dw, db, dx := l.dw.Data(), l.db.Data(), l.dx.Data()
	for i := range dx {
		dx[i] = 0
	}
	k := l.Size
	for in := 0; in < n; in++ {
		for f := 0; f < l.OutC; f++ {
			grad := dyd[(in*l.OutC+f)*oh*ow : (in*l.OutC+f+1)*oh*ow]
			for _, g := range grad {
				db[f] += g
			}
		}
		for c := 0; c < l.InC; c++ {
			src := xd[(in*l.InC+c)*h*w : (in*l.InC+c+1)*h*w]
			dsrc := dx[(in*l.InC+c)*h*w : (in*l.InC+c+1)*h*w]
			for f := 0; f < l.OutC; f++ {
				grad := dyd[(in*l.OutC+f)*oh*ow : (in*l.OutC+f+1)*oh*ow]
				ker := wd[(c*l.OutC+f)*k*k : (c*l.OutC+f+1)*k*k]
				dker := dw[(c*l.OutC+f)*k*k : (c*l.OutC+f+1)*k*k]
				for iy := 0; iy < h; iy++ {
					for ix := 0; ix < w; ix++ {
						v := src[iy*w+ix]
						var dv float32
						for ky := 0; ky < k; ky++ {
							oy := iy*l.Stride + ky - l.Pad
							if oy < 0 || oy >= oh {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ox := ix*l.Stride + kx - l.Pad
								if ox < 0 || ox >= ow {
									continue
								}
								g := grad[oy*ow+ox]
								dker[ky*k+kx] += v * g
								dv += ker[ky*k+kx] * g
							}
						}
						dsrc[iy*w+ix] += dv
					}
				}
			}
		}
	}
	return l.dx
}
