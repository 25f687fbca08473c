package nnet

import (
	"math"
	"math/rand"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// absPow returns |d|^p and the derivative p*|d|^(p-1)*sign(d).
func absPow(d float32, p int) (float32, float32) {
	if d == 0 {
		return 0, 0
	}
	a := float64(d)
	sign := float32(1)
	if a < 0 {
		a, sign = -a, -1
	}
	switch p {
	case 1:
		return float32(a), sign
	case 2:
		return float32(a * a), float32(2*a) * sign
	default:
		return float32(math.Pow(a, float64(p))), float32(float64(p)*math.Pow(a, float64(p-1))) * sign
	}
}

// DensityLoss is the mean over the batch of the spatial sum of
// |predicted - true|^order. It returns the loss and the gradient with
// respect to the predicted maps.
func DensityLoss(predicted, labels *num.Array, order int) (float64, *num.Array) {
	n := predicted.Dims()[0]
	grad := num.NewArrayLike(predicted)
	pd, ld, gd := predicted.Data(), labels.Data(), grad.Data()
	var loss float64
	inv := 1 / float32(n)
	for i, p := range pd {
		v, dv := absPow(p-ld[i], order)
		loss += float64(v)
		gd[i] = dv * inv
	}
	return loss / float64(n), grad
}

// CountLoss is the mean over the batch of |predicted - true|^order for
// the scalar counts. It returns the loss and the gradient with respect
// to the predicted counts.
func CountLoss(predicted *num.Array, counts []float32, order int) (float64, *num.Array) {
	n := len(counts)
	grad := num.NewArrayLike(predicted)
	pd, gd := predicted.Data(), grad.Data()
	var loss float64
	inv := 1 / float32(n)
	for i, p := range pd {
		v, dv := absPow(p-counts[i], order)
		loss += float64(v)
		gd[i] = dv * inv
	}
	return loss / float64(n), grad
}

// CountMAE is the mean absolute count error over the batch.
func CountMAE(predicted *num.Array, counts []float32) float64 {
	var sum float64
	for i, p := range predicted.Data() {
		sum += math.Abs(float64(p - counts[i]))
	}
	return sum / float64(len(counts))
}

// CountME is the mean signed count error over the batch.
func CountME(predicted *num.Array, counts []float32) float64 {
	var sum float64
	for i, p := range predicted.Data() {
		sum += float64(p - counts[i])
	}
	return sum / float64(len(counts))
}

// FeatureDistance is the Euclidean distance between the per batch mean
// feature vectors of base and other, raised to order. It returns the
// loss and the gradients with respect to each feature matrix.
func FeatureDistance(base, other *num.Array, order int) (float64, *num.Array, *num.Array) {
	bn, c := base.Dims()[0], base.Dims()[1]
	on := other.Dims()[0]
	bm := meanFeatures(base)
	om := meanFeatures(other)
	var sq float64
	for i := range bm {
		d := float64(bm[i] - om[i])
		sq += d * d
	}
	dist := math.Sqrt(sq)
	loss := math.Pow(dist, float64(order))
	dBase := num.NewArrayLike(base)
	dOther := num.NewArrayLike(other)
	if dist > 0 {
		// d loss / d mean = order * dist^(order-2) * (bm - om)
		k := float64(order) * math.Pow(dist, float64(order-2))
		bd, od := dBase.Data(), dOther.Data()
		for i := 0; i < bn; i++ {
			for j := 0; j < c; j++ {
				bd[i*c+j] = float32(k*float64(bm[j]-om[j])) / float32(bn)
			}
		}
		for i := 0; i < on; i++ {
			for j := 0; j < c; j++ {
				od[i*c+j] = -float32(k*float64(bm[j]-om[j])) / float32(on)
			}
		}
	}
	return loss, dBase, dOther
}

// FeatureNormLoss penalizes the squared deviation of the mean feature
// vector norm from 1, keeping the feature scale stable under
// adversarial pressure. Returns the loss and gradient with respect to
// the features.
func FeatureNormLoss(features *num.Array) (float64, *num.Array) {
	n, c := features.Dims()[0], features.Dims()[1]
	fd := features.Data()
	norms := make([]float64, n)
	var mean float64
	for i := 0; i < n; i++ {
		var sq float64
		for j := 0; j < c; j++ {
			v := float64(fd[i*c+j])
			sq += v * v
		}
		norms[i] = math.Sqrt(sq)
		mean += norms[i]
	}
	mean /= float64(n)
	loss := (mean - 1) * (mean - 1)
	grad := num.NewArrayLike(features)
	gd := grad.Data()
	k := 2 * (mean - 1) / float64(n)
	for i := 0; i < n; i++ {
		if norms[i] == 0 {
			continue
		}
		for j := 0; j < c; j++ {
			gd[i*c+j] = float32(k * float64(fd[i*c+j]) / norms[i])
		}
	}
	return loss, grad
}

func meanFeatures(f *num.Array) []float32 {
	n, c := f.Dims()[0], f.Dims()[1]
	fd := f.Data()
	m := make([]float32, c)
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			m[j] += fd[i*c+j]
		}
	}
	inv := 1 / float32(n)
	for j := range m {
		m[j] *= inv
	}
	return m
}

// SampleNoise fills z with noise for the generator. With a zero mean
// offset this is a standard normal; otherwise each value is drawn from
// a two component Gaussian mixture with means at +-offset, injecting
// extra variance into the latent distribution.
func SampleNoise(z *num.Array, rng *rand.Rand, meanOffset float64) {
	data := z.Data()
	for i := range data {
		mean := 0.0
		if meanOffset != 0 {
			if rng.Intn(2) == 0 {
				mean = -meanOffset
			} else {
				mean = meanOffset
			}
		}
		data[i] = float32(mean + rng.NormFloat64())
	}
}
