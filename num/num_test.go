package num

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func TestArray(t *testing.T) {
	x := NewArrayData([]float32{1, 1, 2, 2, 3, 3}, 2, 3)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{2, 3}) {
		t.Error("dims invalid: got", dim)
	}
	if n := x.Size(); n != 6 {
		t.Error("size invalid: got", n)
	}
	y := x.Reshape(3, 2)
	if dim := y.Dims(); !reflect.DeepEqual(dim, []int{3, 2}) {
		t.Error("reshape dims invalid: got", dim)
	}
	// reshape shares the backing slice
	y.Data()[0] = 9
	if x.Data()[0] != 9 {
		t.Error("reshape should share storage")
	}
	c := x.Clone()
	c.Data()[0] = 5
	if x.Data()[0] != 9 {
		t.Error("clone should not share storage")
	}
}

func TestOps(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 4}, 4)
	y := NewArrayData([]float32{4, 3, 2, 1}, 4)
	if s := x.Sum(); s != 10 {
		t.Error("sum: got", s)
	}
	if d := x.Dot(y); d != 20 {
		t.Error("dot: got", d)
	}
	if n := y.Norm(); math.Abs(float64(n)-math.Sqrt(30)) > 1e-6 {
		t.Error("norm: got", n)
	}
	x.Axpy(2, y)
	if got := x.Data(); !reflect.DeepEqual(got, []float32{9, 8, 7, 6}) {
		t.Error("axpy: got", got)
	}
	x.Scale(0.5)
	if got := x.Data(); !reflect.DeepEqual(got, []float32{4.5, 4, 3.5, 3}) {
		t.Error("scale: got", got)
	}
	x.Fill(1)
	if s := x.Sum(); s != 4 {
		t.Error("fill: got sum", s)
	}
}

func TestRandn(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	x := NewArray(10000)
	x.Randn(rng, 2, 0.5)
	mean := float64(x.Sum()) / 10000
	if math.Abs(mean-2) > 0.05 {
		t.Error("mean: got", mean)
	}
	var sq float64
	for _, v := range x.Data() {
		d := float64(v) - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / 10000)
	if math.Abs(stddev-0.5) > 0.05 {
		t.Error("stddev: got", stddev)
	}
}

func TestIsFinite(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3}, 3)
	if !x.IsFinite() {
		t.Error("expect finite")
	}
	x.Data()[1] = float32(math.NaN())
	if x.IsFinite() {
		t.Error("expect non finite for NaN")
	}
	x.Data()[1] = float32(math.Inf(1))
	if x.IsFinite() {
		t.Error("expect non finite for Inf")
	}
}
