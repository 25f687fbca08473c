// Package nnet contains the crowd counting networks, their optimizers
// and the adversarial training loop.
package nnet

import (
	"math"
	"math/rand"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// FeatureSize is the width of the discriminator feature layer.
const FeatureSize = 32

// Model is any network with learnable parameters. Params and Grads
// return slices in matching order.
type Model interface {
	Params() []*num.Array
	Grads() []*num.Array
}

// ZeroGrads clears every parameter gradient of the model.
func ZeroGrads(m Model) {
	for _, g := range m.Grads() {
		g.Fill(0)
	}
}

// Discriminator predicts a per pixel crowd density map and an
// aggregate head count from an image patch. The spatial mean of the
// last trunk activation is the feature layer shared by the density
// and count heads and used by the feature matching losses.
type Discriminator struct {
	trunk       []Layer
	trunkParams []ParamLayer
	densityHead *Conv2D
	countHead   *Linear
	trunkOut    *num.Array
	feat        *num.Array
	dTrunk      *num.Array
	dFeat       *num.Array
}

func NewDiscriminator() *Discriminator {
	c1 := NewConv2D(3, 16, 3, 1)
	c2 := NewConv2D(16, 32, 3, 1)
	c3 := NewConv2D(32, FeatureSize, 3, 1)
	d := &Discriminator{
		trunk:       []Layer{c1, NewLeakyReLU(), c2, NewLeakyReLU(), c3, NewLeakyReLU()},
		trunkParams: []ParamLayer{c1, c2, c3},
		densityHead: NewConv2D(FeatureSize, 1, 1, 0),
		countHead:   NewLinear(FeatureSize, 1),
	}
	return d
}

func (d *Discriminator) InitWeights(rng *rand.Rand) {
	for _, l := range d.trunkParams {
		l.InitParams(rng)
	}
	d.densityHead.InitParams(rng)
	d.countHead.InitParams(rng)
}

func (d *Discriminator) Params() []*num.Array {
	var p []*num.Array
	for _, l := range d.trunkParams {
		p = append(p, l.Params()...)
	}
	p = append(p, d.densityHead.Params()...)
	return append(p, d.countHead.Params()...)
}

func (d *Discriminator) Grads() []*num.Array {
	var g []*num.Array
	for _, l := range d.trunkParams {
		g = append(g, l.Grads()...)
	}
	g = append(g, d.densityHead.Grads()...)
	return append(g, d.countHead.Grads()...)
}

// Fprop runs the discriminator and returns the predicted density maps
// [N,H,W] and counts [N]. The feature layer is cached until the next
// forward pass.
func (d *Discriminator) Fprop(images *num.Array) (density, counts *num.Array) {
	out := images
	for _, l := range d.trunk {
		out = l.Fprop(out)
	}
	d.trunkOut = out
	dims := out.Dims()
	n, h, w := dims[0], dims[2], dims[3]
	if d.feat == nil || d.feat.Dims()[0] != n {
		d.feat = num.NewArray(n, FeatureSize)
	}
	td, fd := out.Data(), d.feat.Data()
	area := float32(h * w)
	for i := 0; i < n; i++ {
		for c := 0; c < FeatureSize; c++ {
			var sum float32
			plane := td[(i*FeatureSize+c)*h*w : (i*FeatureSize+c+1)*h*w]
			for _, v := range plane {
				sum += v
			}
			fd[i*FeatureSize+c] = sum / area
		}
	}
	density = d.densityHead.Fprop(out).Reshape(n, h, w)
	counts = d.countHead.Fprop(d.feat).Reshape(n)
	return density, counts
}

// FeatureLayer returns the cached penultimate feature activations
// [N,FeatureSize] from the last Fprop.
func (d *Discriminator) FeatureLayer() *num.Array { return d.feat }

// Bprop pushes head and feature gradients, any of which may be nil,
// back through the trunk. It accumulates parameter gradients and
// returns the gradient with respect to the input images.
func (d *Discriminator) Bprop(dDensity, dCounts, dFeature *num.Array) *num.Array {
	dims := d.trunkOut.Dims()
	n, h, w := dims[0], dims[2], dims[3]
	if d.dTrunk == nil || !num.SameShape(d.dTrunk.Dims(), dims) {
		d.dTrunk = num.NewArray(dims...)
		d.dFeat = num.NewArray(n, FeatureSize)
	}
	d.dTrunk.Fill(0)
	d.dFeat.Fill(0)
	if dDensity != nil {
		d.dTrunk.Axpy(1, d.densityHead.Bprop(dDensity.Reshape(n, 1, h, w)))
	}
	if dCounts != nil {
		d.dFeat.Axpy(1, d.countHead.Bprop(dCounts.Reshape(n, 1)))
	}
	if dFeature != nil {
		d.dFeat.Axpy(1, dFeature)
	}
	// distribute the feature gradient over the spatial mean
	td, fd := d.dTrunk.Data(), d.dFeat.Data()
	area := float32(h * w)
	for i := 0; i < n; i++ {
		for c := 0; c < FeatureSize; c++ {
			g := fd[i*FeatureSize+c] / area
			if g == 0 {
				continue
			}
			plane := td[(i*FeatureSize+c)*h*w : (i*FeatureSize+c+1)*h*w]
			for j := range plane {
				plane[j] += g
			}
		}
	}
	grad := d.dTrunk
	for i := len(d.trunk) - 1; i >= 0; i-- {
		grad = d.trunk[i].Bprop(grad)
	}
	return grad
}

// Generator maps a noise vector to a synthetic crowd image in [-1,1].
type Generator struct {
	NoiseSize int
	base      int
	fc        *Linear
	layers    []Layer
	params    []ParamLayer
}

// NewGenerator builds a generator producing patchSize images, which
// must be divisible by 4.
func NewGenerator(noiseSize, patchSize int) *Generator {
	base := patchSize / 4
	fc := NewLinear(noiseSize, FeatureSize*base*base)
	d1 := NewDeconv2D(FeatureSize, 16)
	d2 := NewDeconv2D(16, 3)
	return &Generator{
		NoiseSize: noiseSize,
		base:      base,
		fc:        fc,
		layers:    []Layer{&ReLU{}, d1, &ReLU{}, d2, &Tanh{}},
		params:    []ParamLayer{fc, d1, d2},
	}
}

func (g *Generator) InitWeights(rng *rand.Rand) {
	for _, l := range g.params {
		l.InitParams(rng)
	}
}

func (g *Generator) Params() []*num.Array {
	var p []*num.Array
	for _, l := range g.params {
		p = append(p, l.Params()...)
	}
	return p
}

func (g *Generator) Grads() []*num.Array {
	var gr []*num.Array
	for _, l := range g.params {
		gr = append(gr, l.Grads()...)
	}
	return gr
}

// Fprop generates images [N,3,P,P] from noise [N,NoiseSize].
func (g *Generator) Fprop(z *num.Array) *num.Array {
	n := z.Dims()[0]
	out := g.fc.Fprop(z).Reshape(n, FeatureSize, g.base, g.base)
	for _, l := range g.layers {
		out = l.Fprop(out)
	}
	return out
}

// Bprop accumulates parameter gradients from the image gradient.
func (g *Generator) Bprop(dImages *num.Array) {
	grad := dImages
	for i := len(g.layers) - 1; i >= 0; i-- {
		grad = g.layers[i].Bprop(grad)
	}
	n := grad.Dims()[0]
	g.fc.Bprop(grad.Reshape(n, g.fc.Out))
}

// Predictor corrects the systematic bias of the discriminator count:
// corrected = scale * sign(c)*|c|^exponent + offset. It is trained on
// detached discriminator counts against the true counts.
type Predictor struct {
	scale, exponent, offset    *num.Array
	dScale, dExponent, dOffset *num.Array
	x, y                       *num.Array
}

func NewPredictor() *Predictor {
	p := &Predictor{
		scale:     num.NewArray(1),
		exponent:  num.NewArray(1),
		offset:    num.NewArray(1),
		dScale:    num.NewArray(1),
		dExponent: num.NewArray(1),
		dOffset:   num.NewArray(1),
	}
	p.scale.Fill(1)
	p.exponent.Fill(1)
	return p
}

func (p *Predictor) InitWeights(rng *rand.Rand) {
	p.scale.Fill(1)
	p.exponent.Fill(1)
	p.offset.Fill(0)
}

func (p *Predictor) Params() []*num.Array {
	return []*num.Array{p.scale, p.exponent, p.offset}
}

func (p *Predictor) Grads() []*num.Array {
	return []*num.Array{p.dScale, p.dExponent, p.dOffset}
}

// Exponent returns the current exponent parameter, reported as a
// training metric.
func (p *Predictor) Exponent() float64 { return float64(p.exponent.Data()[0]) }

const predictorEps = 1e-6

// Fprop returns corrected counts for raw counts c [N].
func (p *Predictor) Fprop(c *num.Array) *num.Array {
	n := c.Dims()[0]
	p.x = c
	if p.y == nil || p.y.Dims()[0] != n {
		p.y = num.NewArray(n)
	}
	s, e, o := p.scale.Data()[0], p.exponent.Data()[0], p.offset.Data()[0]
	xd, yd := c.Data(), p.y.Data()
	for i, v := range xd {
		yd[i] = s*signedPow(v, e) + o
	}
	return p.y
}

// Bprop accumulates parameter gradients for the output gradient dy.
func (p *Predictor) Bprop(dy *num.Array) {
	s, e := p.scale.Data()[0], p.exponent.Data()[0]
	xd, dyd := p.x.Data(), dy.Data()
	var ds, de, do float32
	for i, v := range xd {
		g := dyd[i]
		sp := signedPow(v, e)
		ds += g * sp
		if av := float64(abs32(v)); av > predictorEps {
			de += g * s * sp * float32(math.Log(av))
		}
		do += g
	}
	p.dScale.Data()[0] += ds
	p.dExponent.Data()[0] += de
	p.dOffset.Data()[0] += do
}

func signedPow(v, e float32) float32 {
	av := abs32(v)
	if av < predictorEps {
		return 0
	}
	r := float32(math.Pow(float64(av), float64(e)))
	if v < 0 {
		return -r
	}
	return r
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// ClipWeights clamps every parameter of the model to [-c, c], the
// Wasserstein style constraint used by the vanilla GAN variant.
func ClipWeights(m Model, c float32) {
	for _, p := range m.Params() {
		data := p.Data()
		for i, v := range data {
			if v > c {
				data[i] = c
			} else if v < -c {
				data[i] = -c
			}
		}
	}
}
