package nnet

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

var fdSettings = &fd.Settings{Formula: fd.Central, Step: 1e-3}

// float32 forward passes limit the finite difference accuracy
const gradTol = 5e-3

func randArray(rng *rand.Rand, dims ...int) *num.Array {
	a := num.NewArray(dims...)
	a.Randn(rng, 0, 1)
	return a
}

func paramVector(l ParamLayer) []float64 {
	var vec []float64
	for _, p := range l.Params() {
		for _, v := range p.Data() {
			vec = append(vec, float64(v))
		}
	}
	return vec
}

func setParamVector(l ParamLayer, vec []float64) {
	i := 0
	for _, p := range l.Params() {
		data := p.Data()
		for j := range data {
			data[j] = float32(vec[i])
			i++
		}
	}
}

func gradVector(l ParamLayer) []float64 {
	var vec []float64
	for _, g := range l.Grads() {
		for _, v := range g.Data() {
			vec = append(vec, float64(v))
		}
	}
	return vec
}

func zeroGrads(l ParamLayer) {
	for _, g := range l.Grads() {
		g.Fill(0)
	}
}

func weightedSum(y, r *num.Array) float64 {
	var sum float64
	rd := r.Data()
	for i, v := range y.Data() {
		sum += float64(v) * float64(rd[i])
	}
	return sum
}

func compareGrads(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: gradient length %d, expect %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > gradTol*(1+math.Abs(want[i])) {
			t.Errorf("%s: gradient %d: got %g, expect %g", name, i, got[i], want[i])
		}
	}
}

// checkLayerGrads verifies the parameter and input gradients of a
// layer against central finite differences of a random weighted sum
// of its output.
func checkLayerGrads(t *testing.T, name string, l ParamLayer, x *num.Array, rng *rand.Rand) {
	t.Helper()
	r := num.NewArrayLike(l.Fprop(x))
	r.Randn(rng, 0, 1)

	// analytic gradients
	theta := paramVector(l)
	l.Fprop(x)
	zeroGrads(l)
	dx := l.Bprop(r).Clone()
	analytic := gradVector(l)

	want := fd.Gradient(nil, func(v []float64) float64 {
		setParamVector(l, v)
		return weightedSum(l.Fprop(x), r)
	}, theta, fdSettings)
	setParamVector(l, theta)
	compareGrads(t, name+" params", analytic, want)

	x0 := make([]float64, x.Size())
	for i, v := range x.Data() {
		x0[i] = float64(v)
	}
	wantInput := fd.Gradient(nil, func(v []float64) float64 {
		data := x.Data()
		for i := range data {
			data[i] = float32(v[i])
		}
		return weightedSum(l.Fprop(x), r)
	}, x0, fdSettings)
	for i, v := range x0 {
		x.Data()[i] = float32(v)
	}
	dxVec := make([]float64, dx.Size())
	for i, v := range dx.Data() {
		dxVec[i] = float64(v)
	}
	compareGrads(t, name+" input", dxVec, wantInput)
}

func TestLinearGrads(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := NewLinear(4, 3)
	l.InitParams(rng)
	checkLayerGrads(t, "linear", l, randArray(rng, 2, 4), rng)
}

func TestConv2DGrads(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	l := NewConv2D(2, 3, 3, 1)
	l.InitParams(rng)
	checkLayerGrads(t, "conv", l, randArray(rng, 1, 2, 5, 5), rng)
}

func TestConv2DShape(t *testing.T) {
	l := NewConv2D(3, 16, 3, 1)
	if h, w := l.OutShape(18, 18); h != 18 || w != 18 {
		t.Error("padded out shape: got", h, w)
	}
	l = NewConv2D(16, 1, 1, 0)
	if h, w := l.OutShape(18, 18); h != 18 || w != 18 {
		t.Error("1x1 out shape: got", h, w)
	}
}

func TestDeconv2DGrads(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	l := NewDeconv2D(2, 3)
	l.InitParams(rng)
	checkLayerGrads(t, "deconv", l, randArray(rng, 1, 2, 4, 4), rng)
}

func TestDeconv2DShape(t *testing.T) {
	l := NewDeconv2D(32, 16)
	if h, w := l.OutShape(9, 9); h != 18 || w != 18 {
		t.Error("out shape: got", h, w)
	}
}

func TestActivations(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	// keep inputs away from the relu kink at zero where finite
	// differences are invalid
	x := num.NewArrayData([]float32{
		-1.7, -1.2, -0.8, -0.4, 0.3, 0.6,
		1.1, 1.5, -0.5, 0.9, -2.1, 1.8,
	}, 2, 6)
	for _, tc := range []struct {
		name  string
		layer Layer
	}{
		{"relu", &ReLU{}},
		{"leaky relu", NewLeakyReLU()},
		{"tanh", &Tanh{}},
	} {
		r := randArray(rng, 2, 6)
		tc.layer.Fprop(x)
		dx := tc.layer.Bprop(r).Clone()
		x0 := make([]float64, x.Size())
		for i, v := range x.Data() {
			x0[i] = float64(v)
		}
		want := fd.Gradient(nil, func(v []float64) float64 {
			in := num.NewArray(2, 6)
			for i := range v {
				in.Data()[i] = float32(v[i])
			}
			return weightedSum(tc.layer.Fprop(in), r)
		}, x0, fdSettings)
		dxVec := make([]float64, dx.Size())
		for i, v := range dx.Data() {
			dxVec[i] = float64(v)
		}
		compareGrads(t, tc.name, dxVec, want)
	}
}
