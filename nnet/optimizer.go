package nnet

import (
	"math"

	"github.com/pkg/errors"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// Optimizer applies accumulated gradients to a model's parameters.
// SetLearningRate is a hot update: it must not reset step counters or
// momentum buffers.
type Optimizer interface {
	Step()
	LearningRate() float64
	SetLearningRate(v float64)
	State() OptimizerState
	Restore(OptimizerState) error
}

// OptimizerState is the serializable optimizer internal state stored
// in checkpoints.
type OptimizerState struct {
	Algorithm    string
	LearningRate float64
	WeightDecay  float64
	Steps        int
	Moment       [][]float32
	Velocity     [][]float32
}

// Adam optimizer with bias corrected first and second moments.
type Adam struct {
	params, grads []*num.Array
	moment        [][]float32
	velocity      [][]float32
	lr            float64
	weightDecay   float64
	beta1, beta2  float64
	eps           float64
	steps         int
}

func NewAdam(m Model, lr, weightDecay float64) *Adam {
	a := &Adam{
		params:      m.Params(),
		grads:       m.Grads(),
		lr:          lr,
		weightDecay: weightDecay,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
	}
	for _, p := range a.params {
		a.moment = append(a.moment, make([]float32, p.Size()))
		a.velocity = append(a.velocity, make([]float32, p.Size()))
	}
	return a
}

func (a *Adam) LearningRate() float64     { return a.lr }
func (a *Adam) SetLearningRate(v float64) { a.lr = v }

func (a *Adam) Step() {
	a.steps++
	bc1 := 1 - math.Pow(a.beta1, float64(a.steps))
	bc2 := 1 - math.Pow(a.beta2, float64(a.steps))
	for i, p := range a.params {
		w, g := p.Data(), a.grads[i].Data()
		m, v := a.moment[i], a.velocity[i]
		for j := range w {
			grad := float64(g[j]) + a.weightDecay*float64(w[j])
			mj := a.beta1*float64(m[j]) + (1-a.beta1)*grad
			vj := a.beta2*float64(v[j]) + (1-a.beta2)*grad*grad
			m[j], v[j] = float32(mj), float32(vj)
			w[j] -= float32(a.lr * (mj / bc1) / (math.Sqrt(vj/bc2) + a.eps))
		}
	}
}

func (a *Adam) State() OptimizerState {
	return OptimizerState{
		Algorithm:    "adam",
		LearningRate: a.lr,
		WeightDecay:  a.weightDecay,
		Steps:        a.steps,
		Moment:       copyState(a.moment),
		Velocity:     copyState(a.velocity),
	}
}

func (a *Adam) Restore(s OptimizerState) error {
	if s.Algorithm != "adam" {
		return errors.Errorf("optimizer state is %s, not adam", s.Algorithm)
	}
	if err := restoreState(a.moment, s.Moment); err != nil {
		return err
	}
	if err := restoreState(a.velocity, s.Velocity); err != nil {
		return err
	}
	a.lr = s.LearningRate
	a.weightDecay = s.WeightDecay
	a.steps = s.Steps
	return nil
}

// RMSProp optimizer, used by the vanilla GAN variant.
type RMSProp struct {
	params, grads []*num.Array
	velocity      [][]float32
	lr            float64
	weightDecay   float64
	alpha         float64
	eps           float64
	steps         int
}

func NewRMSProp(m Model, lr, weightDecay float64) *RMSProp {
	r := &RMSProp{
		params:      m.Params(),
		grads:       m.Grads(),
		lr:          lr,
		weightDecay: weightDecay,
		alpha:       0.99,
		eps:         1e-8,
	}
	for _, p := range r.params {
		r.velocity = append(r.velocity, make([]float32, p.Size()))
	}
	return r
}

func (r *RMSProp) LearningRate() float64     { return r.lr }
func (r *RMSProp) SetLearningRate(v float64) { r.lr = v }

func (r *RMSProp) Step() {
	r.steps++
	for i, p := range r.params {
		w, g := p.Data(), r.grads[i].Data()
		v := r.velocity[i]
		for j := range w {
			grad := float64(g[j]) + r.weightDecay*float64(w[j])
			vj := r.alpha*float64(v[j]) + (1-r.alpha)*grad*grad
			v[j] = float32(vj)
			w[j] -= float32(r.lr * grad / (math.Sqrt(vj) + r.eps))
		}
	}
}

func (r *RMSProp) State() OptimizerState {
	return OptimizerState{
		Algorithm:    "rmsprop",
		LearningRate: r.lr,
		WeightDecay:  r.weightDecay,
		Steps:        r.steps,
		Velocity:     copyState(r.velocity),
	}
}

func (r *RMSProp) Restore(s OptimizerState) error {
	if s.Algorithm != "rmsprop" {
		return errors.Errorf("optimizer state is %s, not rmsprop", s.Algorithm)
	}
	if err := restoreState(r.velocity, s.Velocity); err != nil {
		return err
	}
	r.lr = s.LearningRate
	r.weightDecay = s.WeightDecay
	r.steps = s.Steps
	return nil
}

func copyState(src [][]float32) [][]float32 {
	dst := make([][]float32, len(src))
	for i, s := range src {
		dst[i] = append([]float32(nil), s...)
	}
	return dst
}

func restoreState(dst [][]float32, src [][]float32) error {
	if len(src) != len(dst) {
		return errors.Errorf("optimizer state has %d buffers, expect %d", len(src), len(dst))
	}
	for i, s := range src {
		if len(s) != len(dst[i]) {
			return errors.Errorf("optimizer buffer %d has %d values, expect %d", i, len(s), len(dst[i]))
		}
		copy(dst[i], s)
	}
	return nil
}
