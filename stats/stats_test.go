package stats

import (
	"math"
	"reflect"
	"testing"
)

func TestRunningScalars(t *testing.T) {
	r := NewRunningScalars()
	r.Add("loss", 2)
	r.Add("loss", 4)
	r.Add("error", 1)
	r.Count(3)
	if n := r.Examples(); n != 3 {
		t.Error("examples: got", n)
	}
	if names := r.Names(); !reflect.DeepEqual(names, []string{"error", "loss"}) {
		t.Error("names: got", names)
	}
	means := r.Flush(0)
	if means["loss"] != 2 || means["error"] != 1.0/3 {
		t.Error("flush: got", means)
	}
	// flush resets both sums and the example count
	if n := r.Examples(); n != 0 {
		t.Error("examples after flush: got", n)
	}
	r.Add("loss", 6)
	r.Count(2)
	if means = r.Flush(0); means["loss"] != 3 {
		t.Error("second window: got", means)
	}
}

func TestFlushDivisor(t *testing.T) {
	r := NewRunningScalars()
	r.Add("loss", 10)
	r.Count(2)
	// explicit divisor overrides the window count
	if means := r.Flush(5); means["loss"] != 2 {
		t.Error("divisor flush: got", means)
	}
	// empty window with no divisor reports nothing
	if means := r.Flush(0); len(means) != 0 {
		t.Error("empty flush: got", means)
	}
}

func TestAverage(t *testing.T) {
	s := new(Average)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(x)
	}
	if s.Mean != 5 {
		t.Error("mean: got", s.Mean)
	}
	if math.Abs(s.StdDev-2.13808993) > 1e-6 {
		t.Error("stddev: got", s.StdDev)
	}
}

func TestEMA(t *testing.T) {
	var e EMA
	v := e.Add(10, 9)
	if v != 10 {
		t.Error("first value: got", v)
	}
	e = EMA(v)
	v = e.Add(20, 9)
	if v != 12 {
		t.Error("second value: got", v)
	}
}
