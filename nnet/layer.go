package nnet

import (
	"math"
	"math/rand"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// Layer is one differentiable stage of a network. Fprop caches
// whatever the backward pass needs, so each Fprop must be paired with
// its Bprop before the layer is used again. Bprop accumulates into the
// layer's parameter gradients and returns the input gradient.
type Layer interface {
	Fprop(x *num.Array) *num.Array
	Bprop(dy *num.Array) *num.Array
}

// ParamLayer is a layer with learnable parameters.
type ParamLayer interface {
	Layer
	InitParams(rng *rand.Rand)
	Params() []*num.Array
	Grads() []*num.Array
}

// Linear is a fully connected layer: y = xW + b for x of shape [N,in].
type Linear struct {
	In, Out int
	w, b    *num.Array
	dw, db  *num.Array
	x       *num.Array
	y, dx   *num.Array
}

func NewLinear(in, out int) *Linear {
	return &Linear{
		In: in, Out: out,
		w:  num.NewArray(in, out),
		b:  num.NewArray(out),
		dw: num.NewArray(in, out),
		db: num.NewArray(out),
	}
}

func (l *Linear) InitParams(rng *rand.Rand) {
	initNormal(l.w, rng, 1/math.Sqrt(float64(l.In)))
	l.b.Fill(0)
}

func (l *Linear) Params() []*num.Array { return []*num.Array{l.w, l.b} }
func (l *Linear) Grads() []*num.Array  { return []*num.Array{l.dw, l.db} }

func (l *Linear) Fprop(x *num.Array) *num.Array {
	n := x.Dims()[0]
	l.x = x
	if l.y == nil || l.y.Dims()[0] != n {
		l.y = num.NewArray(n, l.Out)
		l.dx = num.NewArray(n, l.In)
	}
	xd, w, b, y := x.Data(), l.w.Data(), l.b.Data(), l.y.Data()
	for i := 0; i < n; i++ {
		row := xd[i*l.In : (i+1)*l.In]
		out := y[i*l.Out : (i+1)*l.Out]
		copy(out, b)
		for j, xv := range row {
			if xv == 0 {
				continue
			}
			wrow := w[j*l.Out : (j+1)*l.Out]
			for k, wv := range wrow {
				out[k] += xv * wv
			}
		}
	}
	return l.y
}

func (l *Linear) Bprop(dy *num.Array) *num.Array {
	n := dy.Dims()[0]
	xd, w, dyd := l.x.Data(), l.w.Data(), dy.Data()
	dw, db, dx := l.dw.Data(), l.db.Data(), l.dx.Data()
	for i := range dx {
		dx[i] = 0
	}
	for i := 0; i < n; i++ {
		row := xd[i*l.In : (i+1)*l.In]
		grad := dyd[i*l.Out : (i+1)*l.Out]
		dxRow := dx[i*l.In : (i+1)*l.In]
		for k, gv := range grad {
			db[k] += gv
		}
		for j, xv := range row {
			wrow := w[j*l.Out : (j+1)*l.Out]
			dwRow := dw[j*l.Out : (j+1)*l.Out]
			for k, gv := range grad {
				dwRow[k] += xv * gv
				dxRow[j] += gv * wrow[k]
			}
		}
	}
	return l.dx
}

// ReLU activation.
type ReLU struct {
	x     *num.Array
	y, dx *num.Array
}

func (l *ReLU) Fprop(x *num.Array) *num.Array {
	l.x = x
	l.y, l.dx = likeBuffers(l.y, l.dx, x)
	xd, y := x.Data(), l.y.Data()
	for i, v := range xd {
		if v > 0 {
			y[i] = v
		} else {
			y[i] = 0
		}
	}
	return l.y
}

func (l *ReLU) Bprop(dy *num.Array) *num.Array {
	xd, dyd, dx := l.x.Data(), dy.Data(), l.dx.Data()
	for i, v := range xd {
		if v > 0 {
			dx[i] = dyd[i]
		} else {
			dx[i] = 0
		}
	}
	return l.dx
}

// LeakyReLU activation with a configurable negative slope.
type LeakyReLU struct {
	Alpha float32
	x     *num.Array
	y, dx *num.Array
}

func NewLeakyReLU() *LeakyReLU { return &LeakyReLU{Alpha: 0.2} }

func (l *LeakyReLU) Fprop(x *num.Array) *num.Array {
	l.x = x
	l.y, l.dx = likeBuffers(l.y, l.dx, x)
	xd, y := x.Data(), l.y.Data()
	for i, v := range xd {
		if v > 0 {
			y[i] = v
		} else {
			y[i] = l.Alpha * v
		}
	}
	return l.y
}

func (l *LeakyReLU) Bprop(dy *num.Array) *num.Array {
	xd, dyd, dx := l.x.Data(), dy.Data(), l.dx.Data()
	for i, v := range xd {
		if v > 0 {
			dx[i] = dyd[i]
		} else {
			dx[i] = l.Alpha * dyd[i]
		}
	}
	return l.dx
}

// Tanh activation.
type Tanh struct {
	y, dx *num.Array
}

func (l *Tanh) Fprop(x *num.Array) *num.Array {
	l.y, l.dx = likeBuffers(l.y, l.dx, x)
	xd, y := x.Data(), l.y.Data()
	for i, v := range xd {
		y[i] = float32(math.Tanh(float64(v)))
	}
	return l.y
}

func (l *Tanh) Bprop(dy *num.Array) *num.Array {
	y, dyd, dx := l.y.Data(), dy.Data(), l.dx.Data()
	for i, v := range y {
		dx[i] = dyd[i] * (1 - v*v)
	}
	return l.dx
}

func likeBuffers(y, dx, x *num.Array) (*num.Array, *num.Array) {
	if y == nil || y.Size() != x.Size() {
		return num.NewArray(x.Dims()...), num.NewArray(x.Dims()...)
	}
	return y.Reshape(x.Dims()...), dx.Reshape(x.Dims()...)
}

func initNormal(a *num.Array, rng *rand.Rand, scale float64) {
	data := a.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64() * scale)
	}
}
