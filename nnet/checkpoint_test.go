package nnet

import (
	"math/rand"
	"strings"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	d := NewDiscriminator()
	d.InitWeights(rng)
	opt := NewAdam(d, 0.001, 0.01)
	if err := SaveCheckpoint(dir, RoleDiscriminator, d, opt, 2, 150); err != nil {
		t.Fatal(err)
	}
	// a later checkpoint should win
	if err := SaveCheckpoint(dir, RoleDiscriminator, d, opt, 4, 300); err != nil {
		t.Fatal(err)
	}

	cp, err := LoadCheckpoint(dir, RoleDiscriminator)
	if err != nil {
		t.Fatal(err)
	}
	if cp.Epoch != 4 || cp.Step != 300 {
		t.Error("counters: got", cp.Epoch, cp.Step)
	}

	d2 := NewDiscriminator()
	d2.InitWeights(rand.New(rand.NewSource(99)))
	opt2 := NewAdam(d2, 0.5, 0)
	if err = cp.Restore(d2, opt2); err != nil {
		t.Fatal(err)
	}
	for i, p := range d.Params() {
		got := d2.Params()[i].Data()
		for j, v := range p.Data() {
			if got[j] != v {
				t.Fatal("tensor", i, "value", j, "not restored")
			}
		}
	}
	if lr := opt2.LearningRate(); lr != 0.001 {
		t.Error("optimizer learning rate: got", lr)
	}
}

func TestCheckpointMissing(t *testing.T) {
	_, err := LoadCheckpoint(t.TempDir(), RoleGenerator)
	if err == nil {
		t.Error("expect error for missing checkpoint")
	}
}

func TestCheckpointRoleMismatch(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(2))
	g := NewGenerator(10, 16)
	g.InitWeights(rng)
	if err := SaveCheckpoint(dir, RoleGenerator, g, NewAdam(g, 0.001, 0), 1, 10); err != nil {
		t.Fatal(err)
	}
	cp, err := LoadCheckpoint(dir, RoleGenerator)
	if err != nil {
		t.Fatal(err)
	}
	// restoring generator weights into a discriminator must fail
	d := NewDiscriminator()
	d.InitWeights(rng)
	if err = cp.Restore(d, nil); err == nil {
		t.Error("expect shape error restoring into wrong network")
	}
}

func TestCheckpointShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(3))
	p := NewPredictor()
	p.InitWeights(rng)
	if err := SaveCheckpoint(dir, RolePredictor, p, NewAdam(p, 0.001, 0), 1, 10); err != nil {
		t.Fatal(err)
	}
	cp, err := LoadCheckpoint(dir, RolePredictor)
	if err != nil {
		t.Fatal(err)
	}
	cp.Params[1].Dims = []int{2}
	err = cp.Restore(NewPredictor(), nil)
	if err == nil || !strings.Contains(err.Error(), "shape") {
		t.Error("expect shape error, got", err)
	}
}
