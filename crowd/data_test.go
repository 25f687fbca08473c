package crowd

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"testing"
)

func testData(n, unlabeled, h, w int) *Data {
	d := &Data{Height: h, Width: w}
	rng := rand.New(rand.NewSource(int64(n)))
	for i := 0; i < n; i++ {
		image := make([]float32, 3*h*w)
		for j := range image {
			image[j] = rng.Float32()
		}
		label := make([]float32, h*w)
		label[rng.Intn(len(label))] = float32(i + 1)
		d.Images = append(d.Images, image)
		d.Labels = append(d.Labels, label)
		d.Names = append(d.Names, "frame"+string(rune('a'+i)))
	}
	for i := 0; i < unlabeled; i++ {
		image := make([]float32, 3*h*w)
		for j := range image {
			image[j] = rng.Float32()
		}
		d.Unlabeled = append(d.Unlabeled, image)
	}
	return d
}

func TestSaveLoadData(t *testing.T) {
	dir := t.TempDir()
	d := testData(4, 2, 12, 16)
	if err := SaveData(d, dir, "train"); err != nil {
		t.Fatal(err)
	}
	got, err := LoadData(dir, "train")
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 4 || got.Height != 12 || got.Width != 16 {
		t.Error("roundtrip: got", got.Len(), got.Height, got.Width)
	}
	if len(got.Unlabeled) != 2 {
		t.Error("unlabeled: got", len(got.Unlabeled))
	}
	ex := got.Example(1)
	if ex.Name != "frameb" {
		t.Error("name: got", ex.Name)
	}
	if c := ex.Count(); c != 2 {
		t.Error("count: got", c)
	}
}

func TestLoadDataMissing(t *testing.T) {
	if _, err := LoadData(t.TempDir(), "train"); err == nil {
		t.Error("expect error for missing split")
	}
}

func TestLoadDataEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := SaveData(&Data{Height: 8, Width: 8}, dir, "train"); err != nil {
		t.Fatal(err)
	}
	_, err := LoadData(dir, "train")
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Error("expect empty split error, got", err)
	}
}

func TestLoadDataInconsistent(t *testing.T) {
	dir := t.TempDir()
	d := testData(2, 0, 8, 8)
	d.Images[1] = d.Images[1][:10]
	if err := SaveData(d, dir, "train"); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadData(dir, "train"); err == nil {
		t.Error("expect error for inconsistent dims")
	}
}

func TestDatasetEpoch(t *testing.T) {
	d := testData(7, 0, 24, 24)
	set := NewDataset(d, EvalTransform(16), 3, 2, false, 1)
	if n := set.Batches(); n != 3 {
		t.Error("batches: got", n)
	}
	var names []string
	var batches int
	for b := range set.Epoch() {
		batches++
		dims := b.Images.Dims()
		if dims[1] != 3 || dims[2] != 16 || dims[3] != 16 {
			t.Error("batch dims: got", dims)
		}
		if b.Unlabeled != nil {
			t.Error("unexpected unlabeled batch")
		}
		names = append(names, b.Names...)
	}
	if batches != 3 {
		t.Error("epoch batches: got", batches)
	}
	// every example appears exactly once per epoch
	sort.Strings(names)
	if len(names) != 7 {
		t.Fatal("examples: got", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i] == names[i-1] {
			t.Error("duplicate example", names[i])
		}
	}
}

func TestDatasetUnlabeled(t *testing.T) {
	d := testData(4, 3, 24, 24)
	set := NewDataset(d, TrainTransform(16), 2, 1, true, 1)
	for b := range set.Epoch() {
		if b.Unlabeled == nil {
			t.Fatal("expect unlabeled companion batch")
		}
		got := b.Unlabeled.Dims()
		want := b.Images.Dims()
		for i := range want {
			if got[i] != want[i] {
				t.Fatal("unlabeled dims: got", got, "expect", want)
			}
		}
	}
}

func TestCountStats(t *testing.T) {
	// labels summing 1..4 give mean 2.5 and sample stddev ~1.29
	d := testData(4, 0, 4, 4)
	av := d.CountStats()
	if av.Count != 4 {
		t.Error("count: got", av.Count)
	}
	if math.Abs(av.Mean-2.5) > 1e-6 {
		t.Error("mean: got", av.Mean, "expect 2.5")
	}
	if math.Abs(av.StdDev-1.2909944) > 1e-5 {
		t.Error("stddev: got", av.StdDev)
	}
}
