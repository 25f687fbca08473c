package crowd

import (
	"math"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// Head point splat kernel.
var (
	KernelSize  = 9
	KernelSigma = 4.0
)

// Point is a head position in pixel coordinates.
type Point struct {
	X, Y int
}

// DensityFromPoints builds a density map from head positions. Each
// head contributes a truncated Gaussian normalized to sum 1, so the
// spatial sum of the map equals the head count. Heads near the border
// keep unit mass: the window is renormalized after truncation.
func DensityFromPoints(points []Point, width, height int) *num.Array {
	m := num.NewArray(height, width)
	data := m.Data()
	half := KernelSize / 2
	kernel := make([]float64, KernelSize*KernelSize)
	for ky := 0; ky < KernelSize; ky++ {
		for kx := 0; kx < KernelSize; kx++ {
			dx, dy := float64(kx-half), float64(ky-half)
			kernel[kx+ky*KernelSize] = math.Exp(-(dx*dx + dy*dy) / (2 * KernelSigma * KernelSigma))
		}
	}
	for _, p := range points {
		var mass float64
		for ky := 0; ky < KernelSize; ky++ {
			for kx := 0; kx < KernelSize; kx++ {
				x, y := p.X+kx-half, p.Y+ky-half
				if x >= 0 && x < width && y >= 0 && y < height {
					mass += kernel[kx+ky*KernelSize]
				}
			}
		}
		if mass == 0 {
			continue
		}
		for ky := 0; ky < KernelSize; ky++ {
			for kx := 0; kx < KernelSize; kx++ {
				x, y := p.X+kx-half, p.Y+ky-half
				if x >= 0 && x < width && y >= 0 && y < height {
					data[x+y*width] += float32(kernel[kx+ky*KernelSize] / mass)
				}
			}
		}
	}
	return m
}
