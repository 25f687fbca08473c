// Package stats accumulates training metrics.
package stats

import (
	"math"
	"sort"
)

// RunningScalars sums named scalar values over a reporting window.
// One example count is shared by every metric in the window, so the
// flushed value is the mean per example since the last flush.
type RunningScalars struct {
	sums  map[string]float64
	count int
}

func NewRunningScalars() *RunningScalars {
	return &RunningScalars{sums: map[string]float64{}}
}

// Add accumulates a value under the given metric name.
func (r *RunningScalars) Add(name string, val float64) {
	r.sums[name] += val
}

// Count records that n more examples were processed in this window.
func (r *RunningScalars) Count(n int) {
	r.count += n
}

// Examples returns the number of examples seen since the last flush.
func (r *RunningScalars) Examples() int {
	return r.count
}

// Flush returns the mean per example for every metric and resets the
// window. The divisor can be overridden (the validation pass divides
// by the full set size); pass 0 to use the windowed example count.
func (r *RunningScalars) Flush(divisor int) map[string]float64 {
	if divisor == 0 {
		divisor = r.count
	}
	out := make(map[string]float64, len(r.sums))
	for name, sum := range r.sums {
		if divisor > 0 {
			out[name] = sum / float64(divisor)
		}
		r.sums[name] = 0
	}
	r.count = 0
	return out
}

// Names returns the metric names seen so far, sorted.
func (r *RunningScalars) Names() []string {
	names := make([]string, 0, len(r.sums))
	for name := range r.sums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calc exponentional moving average
type EMA float64

func (e EMA) Add(val, n float64) float64 {
	if e == 0 {
		return val
	}
	k := 2.0 / (n + 1.0)
	return val*k + float64(e)*(1-k)
}

// Running mean and stddev as per http://www.johndcook.com/blog/standard_deviation/
type Average struct {
	Count, Mean float64
	Var, StdDev float64
	oldM, oldV  float64
}

func (s *Average) Add(x float64) {
	s.Count++
	if s.Count == 1 {
		s.oldM, s.Mean = x, x
		s.oldV = 0
	} else {
		s.Mean = s.oldM + (x-s.oldM)/s.Count
		s.Var = s.oldV + (x-s.oldM)*(x-s.Mean)
		s.oldM, s.oldV = s.Mean, s.Var
		if s.Count > 1 {
			s.StdDev = math.Sqrt(s.Var / (s.Count - 1))
		}
	}
}
