package crowd

import (
	"math/rand"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// Dataset wraps a split with batching, per epoch shuffling and
// background workers applying the transform pipeline. Batch
// production is decoupled from consumption through a bounded channel
// so the compute loop never waits on augmentation unless the workers
// fall behind.
type Dataset struct {
	data      *Data
	trans     Transform
	BatchSize int
	Workers   int
	Shuffle   bool
	rng       *rand.Rand
}

// NewDataset creates a loader over the split. workers <= 0 runs a
// single producer.
func NewDataset(data *Data, trans Transform, batchSize, workers int, shuffle bool, seed int64) *Dataset {
	if batchSize <= 0 || batchSize > data.Len() {
		batchSize = data.Len()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dataset{
		data:      data,
		trans:     trans,
		BatchSize: batchSize,
		Workers:   workers,
		Shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Len returns the number of labeled examples.
func (d *Dataset) Len() int { return d.data.Len() }

// Batches returns the number of batches per epoch.
func (d *Dataset) Batches() int {
	n := d.data.Len() / d.BatchSize
	if d.data.Len()%d.BatchSize != 0 {
		n++
	}
	return n
}

// Epoch starts the workers for one pass over the data and returns the
// batch channel. The channel is closed when the epoch is done. Batch
// order is not deterministic when more than one worker runs.
func (d *Dataset) Epoch() <-chan *Batch {
	indexes := make([]int, d.data.Len())
	if d.Shuffle {
		copy(indexes, d.rng.Perm(d.data.Len()))
	} else {
		for i := range indexes {
			indexes[i] = i
		}
	}
	jobs := make(chan []int, d.Batches())
	for start := 0; start < len(indexes); start += d.BatchSize {
		end := start + d.BatchSize
		if end > len(indexes) {
			end = len(indexes)
		}
		jobs <- indexes[start:end]
	}
	close(jobs)

	out := make(chan *Batch, 2*d.Workers)
	done := make(chan struct{})
	for w := 0; w < d.Workers; w++ {
		// each worker gets its own rng: rand.Rand is not safe for
		// concurrent use
		wrng := rand.New(rand.NewSource(d.rng.Int63()))
		go func(wrng *rand.Rand) {
			for ix := range jobs {
				out <- d.assemble(ix, wrng)
			}
			done <- struct{}{}
		}(wrng)
	}
	go func() {
		for w := 0; w < d.Workers; w++ {
			<-done
		}
		close(out)
	}()
	return out
}

func (d *Dataset) assemble(indexes []int, rng *rand.Rand) *Batch {
	first := d.trans.Apply(d.data.Example(indexes[0]), rng)
	dims := first.Image.Dims()
	h, w := dims[1], dims[2]
	n := len(indexes)
	b := &Batch{
		Images: num.NewArray(n, 3, h, w),
		Labels: num.NewArray(n, h, w),
		Counts: make([]float32, n),
		Names:  make([]string, n),
		Size:   n,
	}
	if len(d.data.Unlabeled) > 0 {
		b.Unlabeled = num.NewArray(n, 3, h, w)
	}
	frame := 3 * h * w
	plane := h * w
	for i, ix := range indexes {
		ex := first
		if i > 0 {
			ex = d.trans.Apply(d.data.Example(ix), rng)
		}
		copy(b.Images.Data()[i*frame:(i+1)*frame], ex.Image.Data())
		copy(b.Labels.Data()[i*plane:(i+1)*plane], ex.Label.Data())
		b.Counts[i] = ex.Count()
		b.Names[i] = ex.Name
		if b.Unlabeled != nil {
			u := d.trans.Apply(d.data.UnlabeledExample(rng.Intn(len(d.data.Unlabeled))), rng)
			copy(b.Unlabeled.Data()[i*frame:(i+1)*frame], u.Image.Data())
		}
	}
	return b
}
