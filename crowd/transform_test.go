package crowd

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

func testExample(h, w int) *Example {
	ex := &Example{
		Image: num.NewArray(3, h, w),
		Label: num.NewArray(h, w),
		Name:  "test",
	}
	data := ex.Image.Data()
	for i := range data {
		data[i] = float32(i%255) / 255
	}
	ex.Label.Data()[(h/2)*w+w/2] = 2.5
	return ex
}

func TestRandomPatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	trans := RandomPatch{Size: 18}
	for i := 0; i < 20; i++ {
		out := trans.Apply(testExample(60, 80), rng)
		dims := out.Image.Dims()
		if dims[0] != 3 || dims[1] != 18 || dims[2] != 18 {
			t.Fatal("image dims: got", dims)
		}
		if dims := out.Label.Dims(); dims[0] != 18 || dims[1] != 18 {
			t.Fatal("label dims: got", dims)
		}
	}
}

func TestRandomPatchCount(t *testing.T) {
	// when the head falls inside the patch the rescaled label keeps
	// the head count
	rng := rand.New(rand.NewSource(3))
	trans := RandomPatch{Size: 24}
	var hit bool
	for i := 0; i < 50; i++ {
		out := trans.Apply(testExample(48, 48), rng)
		sum := float64(out.Label.Sum())
		// a head just outside the patch can bleed in a little mass
		// through the bilinear resample, only check clear hits
		if sum < 0.5 {
			continue
		}
		hit = true
		if math.Abs(sum-2.5) > 1e-3 {
			t.Fatal("patch count: got", sum)
		}
	}
	if !hit {
		t.Error("head never inside patch")
	}
}

func TestHorizFlip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var flipped, kept bool
	for i := 0; i < 50 && !(flipped && kept); i++ {
		ex := testExample(8, 8)
		orig, mirror := ex.Image.Data()[0], ex.Image.Data()[7]
		out := HorizFlip{}.Apply(ex, rng)
		switch got := out.Image.Data()[0]; got {
		case orig:
			kept = true
		case mirror:
			flipped = true
		default:
			t.Fatal("unexpected value after flip:", got)
		}
	}
	if !flipped || !kept {
		t.Error("expect both outcomes: flipped", flipped, "kept", kept)
	}
	// a flip preserves the label sum
	ex := testExample(8, 8)
	before := ex.Label.Sum()
	for i := 0; i < 10; i++ {
		ex = HorizFlip{}.Apply(ex, rng)
	}
	if after := ex.Label.Sum(); after != before {
		t.Error("label sum changed: got", after, "expect", before)
	}
}

func TestNormalizeSigned(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ex := testExample(8, 8)
	label := ex.Label.Sum()
	out := NormalizeSigned{}.Apply(ex, rng)
	for _, v := range out.Image.Data() {
		if v < -1 || v > 1 {
			t.Fatal("value out of range: got", v)
		}
	}
	if out.Label.Sum() != label {
		t.Error("labels must not be normalized")
	}
}

func TestTrainTransform(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	out := TrainTransform(18).Apply(testExample(60, 80), rng)
	dims := out.Image.Dims()
	if dims[0] != 3 || dims[1] != 18 || dims[2] != 18 {
		t.Error("dims: got", dims)
	}
	var lo, hi float32 = 1, -1
	for _, v := range out.Image.Data() {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo < -1 || hi > 1 {
		t.Error("range: got", lo, hi)
	}
	if lo >= 0 {
		t.Error("expect negative values after signed normalization, min", lo)
	}
}
