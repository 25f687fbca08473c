// Package crowd manages the crowd counting data: on disk splits,
// density labels, the transform pipeline and batch loading.
package crowd

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Bitsy-Chuck/crowdnet/num"
	"github.com/Bitsy-Chuck/crowdnet/stats"
)

// Data is the raw content of one dataset split. Images are stored as
// channel planes (3*H*W) scaled to [0,1] and labels are per pixel
// density maps (H*W) whose sum is the frame head count.
type Data struct {
	Names     []string
	Height    int
	Width     int
	Images    [][]float32
	Labels    [][]float32
	Unlabeled [][]float32
}

// Len returns the number of labeled examples.
func (d *Data) Len() int { return len(d.Images) }

// Shape returns the image dims as channels, height, width.
func (d *Data) Shape() []int { return []int{3, d.Height, d.Width} }

// Example returns a copy of labeled example i.
func (d *Data) Example(i int) *Example {
	ex := &Example{
		Image: num.NewArray(3, d.Height, d.Width),
		Label: num.NewArray(d.Height, d.Width),
	}
	if i < len(d.Names) {
		ex.Name = d.Names[i]
	}
	copy(ex.Image.Data(), d.Images[i])
	copy(ex.Label.Data(), d.Labels[i])
	return ex
}

// CountStats accumulates the head counts of every labeled example,
// giving the mean and spread reported when a split is loaded.
func (d *Data) CountStats() stats.Average {
	var av stats.Average
	for _, label := range d.Labels {
		var sum float32
		for _, v := range label {
			sum += v
		}
		av.Add(float64(sum))
	}
	return av
}

// UnlabeledExample returns a copy of unlabeled image i as an example
// with a zero label so it can pass through the same transforms.
func (d *Data) UnlabeledExample(i int) *Example {
	ex := &Example{
		Image: num.NewArray(3, d.Height, d.Width),
		Label: num.NewArray(d.Height, d.Width),
	}
	copy(ex.Image.Data(), d.Unlabeled[i])
	return ex
}

// LoadData decodes the gob file for the given split under dir.
// A missing file or an empty split is an error: training must not
// start silently without data.
func LoadData(dir, split string) (*Data, error) {
	path := filepath.Join(dir, split+".gob")
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s split", split)
	}
	defer f.Close()
	d := new(Data)
	if err = gob.NewDecoder(f).Decode(d); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if d.Len() == 0 {
		return nil, errors.Errorf("split %s in %s is empty", split, dir)
	}
	for i, im := range d.Images {
		if len(im) != 3*d.Height*d.Width || len(d.Labels[i]) != d.Height*d.Width {
			return nil, errors.Errorf("split %s example %d has inconsistent dims", split, i)
		}
	}
	return d, nil
}

// SaveData encodes the split to dir/<split>.gob via a temp file rename.
func SaveData(d *Data, dir, split string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "save data")
	}
	path := filepath.Join(dir, split+".gob")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "save data")
	}
	if err = gob.NewEncoder(f).Encode(d); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Example is one labeled training example.
type Example struct {
	Image *num.Array // [3,H,W] in [0,1] before normalization
	Label *num.Array // [H,W] density map
	Name  string
}

// Count returns the head count, the spatial sum of the density map.
func (ex *Example) Count() float32 { return ex.Label.Sum() }

// Batch is an ordered, fixed size collection of examples, with an
// optional companion batch of unlabeled images.
type Batch struct {
	Images    *num.Array // [N,3,H,W]
	Labels    *num.Array // [N,H,W]
	Counts    []float32
	Names     []string
	Unlabeled *num.Array // [N,3,H,W] or nil
	Size      int
}

func (b *Batch) String() string {
	return fmt.Sprintf("batch[%d] %v", b.Size, b.Images.Dims())
}
