package nnet

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Bitsy-Chuck/crowdnet/num"
)

// Checkpoint is one network's persisted state: parameters, optimizer
// internals and the epoch/step counters, tagged with a role prefix
// ("discriminator", "generator", "predictor").
type Checkpoint struct {
	Role      string
	Epoch     int
	Step      int
	Params    []ParamState
	Optimizer OptimizerState
}

type ParamState struct {
	Dims []int
	Data []float32
}

func checkpointName(role string, step int) string {
	return fmt.Sprintf("%s model %d.gob", role, step)
}

// SaveCheckpoint writes the bundle under dir, through a temp file and
// rename so a crash never corrupts an earlier checkpoint.
func SaveCheckpoint(dir, role string, m Model, opt Optimizer, epoch, step int) error {
	c := &Checkpoint{Role: role, Epoch: epoch, Step: step, Optimizer: opt.State()}
	for _, p := range m.Params() {
		c.Params = append(c.Params, ParamState{
			Dims: append([]int(nil), p.Dims()...),
			Data: append([]float32(nil), p.Data()...),
		})
	}
	path := filepath.Join(dir, checkpointName(role, step))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "save %s checkpoint", role)
	}
	if err = gob.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s checkpoint", role)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCheckpoint reads the bundle with the highest step for the role
// under dir. A missing bundle is an error: an explicit load request
// must never silently fall back to fresh weights.
func LoadCheckpoint(dir, role string) (*Checkpoint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s checkpoint", role)
	}
	var steps []int
	prefix, suffix := role+" model ", ".gob"
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		if s, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)); err == nil {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		return nil, errors.Errorf("no %s checkpoint in %s", role, dir)
	}
	sort.Ints(steps)
	path := filepath.Join(dir, checkpointName(role, steps[len(steps)-1]))
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s checkpoint", role)
	}
	defer f.Close()
	c := new(Checkpoint)
	if err = gob.NewDecoder(f).Decode(c); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if c.Role != role {
		return nil, errors.Errorf("checkpoint %s has role %q, expect %q", path, c.Role, role)
	}
	return c, nil
}

// Restore copies the checkpoint into the model and optimizer. Every
// parameter shape must match; a mismatch is a hard error.
func (c *Checkpoint) Restore(m Model, opt Optimizer) error {
	params := m.Params()
	if len(c.Params) != len(params) {
		return errors.Errorf("%s checkpoint has %d tensors, model has %d", c.Role, len(c.Params), len(params))
	}
	for i, p := range params {
		if !num.SameShape(c.Params[i].Dims, p.Dims()) {
			return errors.Errorf("%s checkpoint tensor %d has shape %v, model has %v",
				c.Role, i, c.Params[i].Dims, p.Dims())
		}
	}
	for i, p := range params {
		copy(p.Data(), c.Params[i].Data)
	}
	if opt != nil {
		if err := opt.Restore(c.Optimizer); err != nil {
			return errors.Wrapf(err, "%s checkpoint", c.Role)
		}
	}
	return nil
}
