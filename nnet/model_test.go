package nnet

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

func TestDiscriminatorShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDiscriminator()
	d.InitWeights(rng)
	images := randArray(rng, 2, 3, 12, 12)
	density, counts := d.Fprop(images)
	if dims := density.Dims(); dims[0] != 2 || dims[1] != 12 || dims[2] != 12 {
		t.Error("density dims: got", dims)
	}
	if dims := counts.Dims(); dims[0] != 2 {
		t.Error("counts dims: got", dims)
	}
	feat := d.FeatureLayer()
	if dims := feat.Dims(); dims[0] != 2 || dims[1] != FeatureSize {
		t.Error("feature dims: got", dims)
	}
}

// The input gradient from Bprop drives the gradient penalty, so it has
// to agree with finite differences of the summed feature layer.
func TestDiscriminatorInputGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := NewDiscriminator()
	d.InitWeights(rng)
	images := randArray(rng, 1, 3, 8, 8)
	ones := num.NewArray(1, FeatureSize)
	ones.Fill(1)

	d.Fprop(images)
	ZeroGrads(d)
	g := d.Bprop(nil, nil, ones).Clone()

	x0 := make([]float64, images.Size())
	for i, v := range images.Data() {
		x0[i] = float64(v)
	}
	want := fd.Gradient(nil, func(v []float64) float64 {
		in := num.NewArray(1, 3, 8, 8)
		for i := range v {
			in.Data()[i] = float32(v[i])
		}
		d.Fprop(in)
		return float64(d.FeatureLayer().Sum())
	}, x0, fdSettings)
	got := make([]float64, g.Size())
	for i, v := range g.Data() {
		got[i] = float64(v)
	}
	compareGrads(t, "discriminator input", got, want)
}

func TestGenerator(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := NewGenerator(10, 16)
	g.InitWeights(rng)
	z := randArray(rng, 2, 10)
	images := g.Fprop(z)
	if dims := images.Dims(); dims[0] != 2 || dims[1] != 3 || dims[2] != 16 || dims[3] != 16 {
		t.Error("image dims: got", dims)
	}
	for _, v := range images.Data() {
		if v < -1 || v > 1 {
			t.Fatal("output out of tanh range:", v)
		}
	}
}

func TestPredictor(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	p := NewPredictor()
	p.InitWeights(rng)
	if e := p.Exponent(); e != 1 {
		t.Error("initial exponent: got", e)
	}
	counts := num.NewArrayData([]float32{2, 5, -1}, 3)
	out := p.Fprop(counts)
	if dims := out.Dims(); dims[0] != 3 {
		t.Error("output dims: got", dims)
	}
	// identity at the initial parameters
	for i, v := range out.Data() {
		if math.Abs(float64(v-counts.Data()[i])) > 1e-5 {
			t.Error("initial output: got", out.Data())
			break
		}
	}
}

func TestPredictorGrads(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	p := NewPredictor()
	p.InitWeights(rng)
	// move off the initial point so all three gradients are active
	p.Params()[0].Data()[0] = 1.3
	p.Params()[1].Data()[0] = 0.8
	p.Params()[2].Data()[0] = -0.2
	counts := num.NewArrayData([]float32{2, 5, 0.5}, 3)
	r := num.NewArrayData([]float32{0.7, -1.1, 0.4}, 3)

	theta := make([]float64, 3)
	for i, param := range p.Params() {
		theta[i] = float64(param.Data()[0])
	}
	p.Fprop(counts)
	ZeroGrads(p)
	p.Bprop(r)
	got := make([]float64, 3)
	for i, g := range p.Grads() {
		got[i] = float64(g.Data()[0])
	}
	want := fd.Gradient(nil, func(v []float64) float64 {
		for i, param := range p.Params() {
			param.Data()[0] = float32(v[i])
		}
		return weightedSum(p.Fprop(counts), r)
	}, theta, fdSettings)
	compareGrads(t, "predictor", got, want)
}

func TestClipWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	d := NewDiscriminator()
	d.InitWeights(rng)
	for _, p := range d.Params() {
		p.Data()[0] = 5
	}
	ClipWeights(d, 0.01)
	for _, p := range d.Params() {
		for _, v := range p.Data() {
			if v < -0.01 || v > 0.01 {
				t.Fatal("weight not clipped:", v)
			}
		}
	}
}
