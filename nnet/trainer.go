package nnet

import (
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/Bitsy-Chuck/crowdnet/console"
	"github.com/Bitsy-Chuck/crowdnet/crowd"
	"github.com/Bitsy-Chuck/crowdnet/img"
	"github.com/Bitsy-Chuck/crowdnet/num"
	"github.com/Bitsy-Chuck/crowdnet/stats"
	"github.com/Bitsy-Chuck/crowdnet/summary"
)

// Variant selects which set of loss terms drives a training session.
type Variant string

const (
	CNN   Variant = "cnn"   // supervised density regression plus count predictor
	GAN   Variant = "gan"   // adversarial density outputs with weight clipping
	SRGAN Variant = "srgan" // semi-supervised feature matching
)

// checkpoint roles
const (
	RoleDiscriminator = "discriminator"
	RoleGenerator     = "generator"
	RolePredictor     = "predictor"
)

// step size for the directional second derivative used by the
// gradient penalty
const hvpEpsilon = 1e-3

const timeFormat = "y2006m01d02h15m04s05"

// Phase is one loss term of a training step. Run performs the forward
// and backward passes for the term, accumulating parameter gradients
// into the discriminator, and returns the loss value. A non finite
// loss voids the whole step.
type Phase struct {
	Name string
	Run  func(b *crowd.Batch) (float64, error)
}

// Trainer drives one training session. All three variants share the
// same step loop and differ only in their phase list.
type Trainer struct {
	Conf     Settings
	Variant  Variant
	D        *Discriminator
	G        *Generator
	P        *Predictor
	OptD     Optimizer
	OptG     Optimizer
	OptP     Optimizer
	Listener *console.Listener
	TrialDir string
	Epoch    int
	Step     int

	phases      []Phase
	generator   func(b *crowd.Batch) error
	predictorOn bool
	clipWeights bool
	baseLR      float64
	quit        bool

	train *crowd.Dataset
	valid *crowd.Dataset

	trainWriter  *summary.Writer
	validWriter  *summary.Writer
	scalars      *stats.RunningScalars
	validScalars *stats.RunningScalars
	maeSmooth    stats.EMA
	rng          *rand.Rand

	lastDensity *num.Array
	fakeImages  *num.Array
}

// NewTrainer loads the datasets, builds the model ensemble and opens
// the trial directory. If LoadModelPath is set the latest checkpoint
// for every trained network must load or the constructor fails.
func NewTrainer(conf Settings, variant Variant) (*Trainer, error) {
	t := &Trainer{
		Conf:         conf,
		Variant:      variant,
		baseLR:       conf.LearningRate,
		scalars:      stats.NewRunningScalars(),
		validScalars: stats.NewRunningScalars(),
		rng:          rand.New(rand.NewSource(conf.RandSeed)),
	}
	trainData, err := crowd.LoadData(conf.TrainDatasetPath, "train")
	if err != nil {
		return nil, err
	}
	validData, err := crowd.LoadData(conf.ValidationDatasetPath, "validation")
	if err != nil {
		return nil, err
	}
	counts := trainData.CountStats()
	log.Printf("train: %d labeled, %d unlabeled images, count mean %.1f stddev %.1f",
		trainData.Len(), len(trainData.Unlabeled), counts.Mean, counts.StdDev)
	t.train = crowd.NewDataset(trainData, crowd.TrainTransform(conf.PatchSize), conf.BatchSize,
		conf.DataLoaderWorkers, true, conf.RandSeed)
	t.valid = crowd.NewDataset(validData, crowd.EvalTransform(conf.PatchSize), conf.BatchSize,
		conf.DataLoaderWorkers, false, conf.RandSeed+1)

	t.D = NewDiscriminator()
	t.D.InitWeights(t.rng)
	t.G = NewGenerator(conf.NoiseSize, conf.PatchSize)
	t.G.InitWeights(t.rng)
	switch variant {
	case CNN:
		t.P = NewPredictor()
		t.P.InitWeights(t.rng)
		t.OptD = NewAdam(t.D, conf.LearningRate, conf.WeightDecay)
		t.OptG = NewAdam(t.G, conf.LearningRate, 0)
		t.OptP = NewAdam(t.P, conf.LearningRate, 0)
		t.phases = []Phase{{"labeled loss", t.labeledPhase}}
		t.predictorOn = true
	case GAN:
		t.OptD = NewRMSProp(t.D, conf.LearningRate, conf.WeightDecay)
		t.OptG = NewRMSProp(t.G, conf.LearningRate, conf.WeightDecay)
		t.phases = []Phase{
			{"labeled loss", t.labeledPhase},
			{"fake discriminator loss", t.fakeOutputPhase},
		}
		t.generator = t.fakeOutputGenerator
		t.clipWeights = true
	case SRGAN:
		t.OptD = NewAdam(t.D, conf.LearningRate, conf.WeightDecay)
		t.OptG = NewAdam(t.G, conf.LearningRate, 0)
		t.phases = []Phase{
			{"labeled loss", t.labeledPhase},
			{"unlabeled feature loss", t.unlabeledPhase},
			{"fake feature loss", t.fakeFeaturePhase},
			{"feature norm loss", t.featureNormPhase},
		}
		if conf.GradientPenaltyOn {
			t.phases = append(t.phases, Phase{"gradient penalty", t.gradientPenaltyPhase})
		}
		t.generator = t.featureMatchGenerator
	default:
		return nil, errors.Errorf("unknown training variant %q", variant)
	}

	if conf.LoadModelPath != "" {
		if err := t.loadCheckpoints(conf.LoadModelPath); err != nil {
			return nil, err
		}
		t.setLearningRate(conf.LearningRate)
		t.baseLR = conf.LearningRate
	}
	t.applySchedule()

	stamp := time.Now().Format(timeFormat)
	t.TrialDir = filepath.Join(conf.LogDirectory, CleanScientificNotation(conf.TrialName)+" "+stamp)
	if err := os.MkdirAll(t.TrialDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create trial dir")
	}
	if err := conf.Save(filepath.Join(t.TrialDir, "settings.json")); err != nil {
		return nil, err
	}
	if t.trainWriter, err = summary.NewWriter(filepath.Join(t.TrialDir, "train")); err != nil {
		return nil, err
	}
	if t.validWriter, err = summary.NewWriter(filepath.Join(t.TrialDir, "validation")); err != nil {
		return nil, err
	}
	return t, nil
}

// Train runs the session until the configured number of epochs is
// reached or a quit command arrives. Checkpoints are written every
// SaveEpochPeriod epochs and at the end of the run.
func (t *Trainer) Train() error {
	log.Printf("%s: starting training for %d epochs", t.Variant, t.Conf.NumberOfEpochs)
	for t.Epoch < t.Conf.NumberOfEpochs && !t.quit {
		for b := range t.train.Epoch() {
			if err := t.trainStep(b); err != nil {
				return err
			}
			if t.quit {
				break
			}
		}
		if t.quit {
			break
		}
		t.Epoch++
		t.applySchedule()
		if t.Epoch%t.Conf.SaveEpochPeriod == 0 {
			if err := t.saveCheckpoints(); err != nil {
				return err
			}
		}
	}
	if err := t.saveCheckpoints(); err != nil {
		return err
	}
	log.Println("finished training")
	return t.Close()
}

// Close flushes both summary streams.
func (t *Trainer) Close() error {
	if err := t.trainWriter.Close(); err != nil {
		return err
	}
	return t.validWriter.Close()
}

func (t *Trainer) trainStep(b *crowd.Batch) error {
	ZeroGrads(t.D)
	valid := true
	for _, ph := range t.phases {
		loss, err := ph.Run(b)
		if err != nil {
			return err
		}
		if !num.Finite(loss) {
			log.Printf("step %d: non finite %s, update skipped", t.Step, ph.Name)
			valid = false
			break
		}
	}
	if valid {
		t.OptD.Step()
		if t.clipWeights {
			ClipWeights(t.D, float32(t.Conf.WeightClip))
		}
	} else {
		t.scalars.Add("Training/Invalid Steps", 1)
	}
	if t.generator != nil {
		if err := t.generator(b); err != nil {
			return err
		}
	}
	if t.predictorOn {
		t.predictorStep(b)
	}
	t.scalars.Count(b.Size)
	if t.Step%t.Conf.SummaryStepPeriod == 0 && t.Step != 0 {
		if err := t.report(b); err != nil {
			return err
		}
	}
	t.Step++
	return t.pollConsole()
}

// labeledPhase regresses density maps and counts on the labeled batch.
// The density term carries a 10x weight relative to the count term.
func (t *Trainer) labeledPhase(b *crowd.Batch) (float64, error) {
	density, counts := t.D.Fprop(b.Images)
	densityLoss, dDensity := DensityLoss(density, b.Labels, t.Conf.LossOrder)
	countLoss, dCounts := CountLoss(counts, b.Counts, t.Conf.LossOrder)
	loss := countLoss + densityLoss*10
	t.lastDensity = density.Clone()
	if !num.Finite(loss) {
		return loss, nil
	}
	dDensity.Scale(10)
	t.D.Bprop(dDensity, dCounts, nil)
	t.scalars.Add("Labeled/Loss", loss)
	t.scalars.Add("Labeled/Count Loss", countLoss)
	t.scalars.Add("Labeled/Density Loss", densityLoss)
	t.scalars.Add("Labeled/Count ME", CountME(counts, b.Counts))
	return loss, nil
}

// fakeOutputPhase regresses the density and count outputs for a
// generated batch toward zero, so the discriminator learns to assign
// no crowd to fake images. The generator is not updated here.
func (t *Trainer) fakeOutputPhase(b *crowd.Batch) (float64, error) {
	z := num.NewArray(b.Size, t.Conf.NoiseSize)
	SampleNoise(z, t.rng, 0)
	fake := t.G.Fprop(z)
	t.fakeImages = fake.Clone()
	density, counts := t.D.Fprop(t.fakeImages)
	densityLoss, dDensity := DensityLoss(density, num.NewArrayLike(density), t.Conf.LossOrder)
	countLoss, dCounts := CountLoss(counts, make([]float32, b.Size), t.Conf.LossOrder)
	loss := countLoss + densityLoss*10
	if !num.Finite(loss) {
		return loss, nil
	}
	dDensity.Scale(10)
	t.D.Bprop(dDensity, dCounts, nil)
	t.scalars.Add("Fake/Discriminator Loss", loss)
	return loss, nil
}

// unlabeledPhase pulls the mean features of the unlabeled batch toward
// those of the labeled batch. Both branches receive gradients, run as
// separate forward and backward passes.
func (t *Trainer) unlabeledPhase(b *crowd.Batch) (float64, error) {
	if b.Unlabeled == nil {
		return 0, errors.New("training dataset has no unlabeled images")
	}
	t.D.Fprop(b.Images)
	labeledFeat := t.D.FeatureLayer().Clone()
	t.D.Fprop(b.Unlabeled)
	loss, dUnlabeled, dLabeled := FeatureDistance(t.D.FeatureLayer(), labeledFeat, 2)
	loss *= t.Conf.UnlabeledLossMultiplier
	if !num.Finite(loss) {
		return loss, nil
	}
	mult := float32(t.Conf.UnlabeledLossMultiplier)
	dUnlabeled.Scale(mult)
	dLabeled.Scale(mult)
	t.D.Bprop(nil, nil, dUnlabeled)
	t.D.Fprop(b.Images)
	t.D.Bprop(nil, nil, dLabeled)
	t.scalars.Add("Unlabeled/Feature Loss", loss)
	return loss, nil
}

// fakeFeaturePhase pushes the unlabeled features away from those of a
// generated batch, using mixture model noise for the latent samples.
func (t *Trainer) fakeFeaturePhase(b *crowd.Batch) (float64, error) {
	if b.Unlabeled == nil {
		return 0, errors.New("training dataset has no unlabeled images")
	}
	t.D.Fprop(b.Unlabeled)
	unlabeledFeat := t.D.FeatureLayer().Clone()
	z := num.NewArray(b.Size, t.Conf.NoiseSize)
	SampleNoise(z, t.rng, t.Conf.MeanOffset)
	fake := t.G.Fprop(z)
	t.fakeImages = fake.Clone()
	t.D.Fprop(t.fakeImages)
	loss, dUnlabeled, dFake := FeatureDistance(unlabeledFeat, t.D.FeatureLayer(), 1)
	loss *= -t.Conf.FakeLossMultiplier
	if !num.Finite(loss) {
		return loss, nil
	}
	mult := float32(-t.Conf.FakeLossMultiplier)
	dUnlabeled.Scale(mult)
	dFake.Scale(mult)
	t.D.Bprop(nil, nil, dFake)
	t.D.Fprop(b.Unlabeled)
	t.D.Bprop(nil, nil, dUnlabeled)
	t.scalars.Add("Fake/Feature Loss", loss)
	return loss, nil
}

// featureNormPhase keeps the mean unlabeled feature norm near 1 so the
// feature matching terms cannot collapse the feature scale.
func (t *Trainer) featureNormPhase(b *crowd.Batch) (float64, error) {
	t.D.Fprop(b.Unlabeled)
	loss, dFeat := FeatureNormLoss(t.D.FeatureLayer())
	if !num.Finite(loss) {
		return loss, nil
	}
	t.D.Bprop(nil, nil, dFeat)
	t.scalars.Add("Unlabeled/Feature Norm Loss", loss)
	return loss, nil
}

// gradientPenaltyPhase penalizes the input gradient norm of the summed
// feature layer away from 1 at points interpolated between unlabeled
// and generated images. The parameter gradient of the penalty needs
// second derivatives, computed here as a central difference of the
// first order backward pass along the penalty direction.
func (t *Trainer) gradientPenaltyPhase(b *crowd.Batch) (float64, error) {
	fake := t.fakeImages
	if fake == nil || !num.SameShape(fake.Dims(), b.Unlabeled.Dims()) {
		z := num.NewArray(b.Size, t.Conf.NoiseSize)
		SampleNoise(z, t.rng, t.Conf.MeanOffset)
		fake = t.G.Fprop(z).Clone()
	}
	a0 := t.rng.Float32()
	a1 := t.rng.Float32()
	sum := a0 + a1
	if sum == 0 {
		a0, a1, sum = 1, 1, 2
	}
	a0, a1 = a0/sum, a1/sum
	interp := num.NewArrayLike(b.Unlabeled)
	id, ud, fd := interp.Data(), b.Unlabeled.Data(), fake.Data()
	for i := range id {
		id[i] = a0*ud[i] + a1*fd[i]
	}

	n := b.Size
	ones := num.NewArray(n, FeatureSize)
	ones.Fill(1)

	// probe pass for the input gradient only, parameter gradients are
	// restored afterwards
	saved := cloneGrads(t.D)
	t.D.Fprop(interp)
	g := t.D.Bprop(nil, nil, ones).Clone()
	restoreGrads(t.D, saved)

	penalty, u, active := penaltyDirection(g, n, t.Conf.GradientPenaltyMultiplier)
	if !num.Finite(penalty) {
		return penalty, nil
	}
	if active {
		scale := float32(t.Conf.GradientPenaltyMultiplier / (float64(n) * hvpEpsilon))
		probe := num.NewArrayLike(interp)
		probe.CopyFrom(interp)
		probe.Axpy(hvpEpsilon, u)
		dFeat := num.NewArray(n, FeatureSize)
		dFeat.Fill(scale)
		t.D.Fprop(probe)
		t.D.Bprop(nil, nil, dFeat)
		probe.CopyFrom(interp)
		probe.Axpy(-hvpEpsilon, u)
		dFeat.Fill(-scale)
		t.D.Fprop(probe)
		t.D.Bprop(nil, nil, dFeat)
	}
	t.scalars.Add("Training/Gradient Penalty", penalty)
	return penalty, nil
}

// penaltyDirection turns per example input gradients into the mean
// squared distance of their norms from 1 and the direction for the
// second order passes. When every norm is already 1 the penalty and
// its parameter gradient are zero, so active reports false and the
// caller skips the extra passes.
func penaltyDirection(g *num.Array, n int, mult float64) (penalty float64, u *num.Array, active bool) {
	perExample := g.Size() / n
	gd := g.Data()
	u = num.NewArrayLike(g)
	udir := u.Data()
	for i := 0; i < n; i++ {
		seg := gd[i*perExample : (i+1)*perExample]
		var sq float64
		for _, v := range seg {
			sq += float64(v) * float64(v)
		}
		norm := float32(math.Sqrt(sq))
		diff := norm - 1
		penalty += float64(diff * diff)
		if norm > 0 && diff != 0 {
			active = true
			k := diff / norm
			useg := udir[i*perExample : (i+1)*perExample]
			for j, v := range seg {
				useg[j] = k * v
			}
		}
	}
	penalty = penalty / float64(n) * mult
	return penalty, u, active
}

// fakeOutputGenerator trains the generator to raise the density and
// count outputs the discriminator assigns to generated images.
func (t *Trainer) fakeOutputGenerator(b *crowd.Batch) error {
	z := num.NewArray(b.Size, t.Conf.NoiseSize)
	SampleNoise(z, t.rng, 0)
	fake := t.G.Fprop(z)
	t.fakeImages = fake.Clone()
	density, counts := t.D.Fprop(fake)
	n := b.Size
	dims := density.Dims()
	var densityMean, countMean float64
	for _, v := range density.Data() {
		densityMean += float64(v)
	}
	densityMean /= float64(n)
	for _, v := range counts.Data() {
		countMean += float64(v)
	}
	countMean /= float64(n)
	loss := -(countMean + densityMean*10)
	t.scalars.Add("Generator/Loss", loss)
	if !num.Finite(loss) {
		log.Printf("step %d: non finite generator loss, update skipped", t.Step)
		return nil
	}
	if t.Step%t.Conf.GeneratorStepPeriod != 0 {
		return nil
	}
	ZeroGrads(t.G)
	dDensity := num.NewArray(dims...)
	dDensity.Fill(-10 / float32(n))
	dCounts := num.NewArray(n)
	dCounts.Fill(-1 / float32(n))
	dImages := t.D.Bprop(dDensity, dCounts, nil)
	t.G.Bprop(dImages)
	t.OptG.Step()
	return nil
}

// featureMatchGenerator trains the generator to match the mean
// discriminator features of the unlabeled batch. The unlabeled branch
// is detached, only the fake branch backpropagates.
func (t *Trainer) featureMatchGenerator(b *crowd.Batch) error {
	if b.Unlabeled == nil {
		return errors.New("training dataset has no unlabeled images")
	}
	t.D.Fprop(b.Unlabeled)
	unlabeledFeat := t.D.FeatureLayer().Clone()
	z := num.NewArray(b.Size, t.Conf.NoiseSize)
	SampleNoise(z, t.rng, 0)
	fake := t.G.Fprop(z)
	t.fakeImages = fake.Clone()
	t.D.Fprop(fake)
	loss, _, dFake := FeatureDistance(unlabeledFeat, t.D.FeatureLayer(), 2)
	t.scalars.Add("Generator/Loss", loss)
	if !num.Finite(loss) {
		log.Printf("step %d: non finite generator loss, update skipped", t.Step)
		return nil
	}
	if t.Step%t.Conf.GeneratorStepPeriod != 0 {
		return nil
	}
	ZeroGrads(t.G)
	dImages := t.D.Bprop(nil, nil, dFake)
	t.G.Bprop(dImages)
	t.OptG.Step()
	return nil
}

// predictorStep fits the count corrector on the detached counts from
// the labeled forward pass.
func (t *Trainer) predictorStep(b *crowd.Batch) {
	_, counts := t.D.Fprop(b.Images)
	predicted := t.P.Fprop(counts)
	loss, dPredicted := CountLoss(predicted, b.Counts, t.Conf.LossOrder)
	if !num.Finite(loss) {
		log.Printf("step %d: non finite predictor loss, update skipped", t.Step)
		return
	}
	ZeroGrads(t.P)
	t.P.Bprop(dPredicted)
	t.OptP.Step()
	t.scalars.Add("Predictor/Count Loss", loss)
	t.scalars.Add("Predictor/Count MAE", CountMAE(predicted, b.Counts))
	t.scalars.Add("Predictor/Count ME", CountME(predicted, b.Counts))
	t.scalars.Add("Predictor/Exponent", t.P.Exponent())
}

// report flushes the running scalars to the train stream, writes the
// comparison and fake image grids and runs a full validation pass. A
// validation failure is logged and the cycle skipped, training
// continues.
func (t *Trainer) report(b *crowd.Batch) error {
	if t.lastDensity != nil {
		grid := img.ComparisonGrid(toRGBImages(b.Images), toGrayImages(b.Labels), toGrayImages(t.lastDensity))
		if err := t.trainWriter.AddImage("Comparison", t.Step, grid); err != nil {
			return err
		}
	}
	if t.fakeImages != nil {
		grid := img.ImageGrid(toRGBImages(t.fakeImages), 9, 3)
		if err := t.trainWriter.AddImage("Fake", t.Step, grid); err != nil {
			return err
		}
	}
	means := t.scalars.Flush(0)
	for name, mean := range means {
		if err := t.trainWriter.AddScalar(name, t.Step, mean); err != nil {
			return err
		}
	}
	log.Printf("[epoch: %d, step: %d] loss: %g", t.Epoch, t.Step, means["Labeled/Loss"])
	if err := t.validate(); err != nil {
		log.Printf("step %d: validation pass failed: %v", t.Step, err)
	}
	return nil
}

// validate runs the whole validation set through the discriminator
// with no parameter updates. Scalar means divide by the full set size
// rather than the example count, so sparse validation metrics stay
// comparable between cycles.
func (t *Trainer) validate() error {
	var lastBatch *crowd.Batch
	var lastDensity *num.Array
	for vb := range t.valid.Epoch() {
		density, counts := t.D.Fprop(vb.Images)
		densityLoss, _ := DensityLoss(density, vb.Labels, t.Conf.LossOrder)
		countLoss, _ := CountLoss(counts, vb.Counts, t.Conf.LossOrder)
		t.validScalars.Add("Labeled/Density Loss", densityLoss)
		t.validScalars.Add("Labeled/Count Loss", countLoss)
		t.validScalars.Add("Labeled/Count MAE", CountMAE(counts, vb.Counts))
		t.validScalars.Add("Labeled/Count ME", CountME(counts, vb.Counts))
		if t.predictorOn {
			predicted := t.P.Fprop(counts)
			t.validScalars.Add("Predictor/Count MAE", CountMAE(predicted, vb.Counts))
			t.validScalars.Add("Predictor/Count ME", CountME(predicted, vb.Counts))
		}
		lastBatch, lastDensity = vb, density.Clone()
	}
	if lastBatch == nil {
		return errors.New("empty validation epoch")
	}
	grid := img.ComparisonGrid(toRGBImages(lastBatch.Images), toGrayImages(lastBatch.Labels), toGrayImages(lastDensity))
	if err := t.validWriter.AddImage("Comparison", t.Step, grid); err != nil {
		return err
	}
	means := t.validScalars.Flush(t.valid.Len())
	for name, mean := range means {
		if err := t.validWriter.AddScalar(name, t.Step, mean); err != nil {
			return err
		}
	}
	// smoothed count error tracks the trend between sparse validation
	// cycles
	t.maeSmooth = stats.EMA(t.maeSmooth.Add(means["Labeled/Count MAE"], 10))
	return t.validWriter.AddScalar("Labeled/Count MAE Smoothed", t.Step, float64(t.maeSmooth))
}

// pollConsole drains pending operator commands at the step boundary.
func (t *Trainer) pollConsole() error {
	if t.Listener == nil {
		return nil
	}
	for {
		cmd, ok := t.Listener.Poll()
		if !ok {
			return nil
		}
		log.Println("console command:", cmd)
		switch cmd.Kind {
		case console.Save:
			if err := t.saveCheckpoints(); err != nil {
				return err
			}
		case console.Quit:
			t.quit = true
		case console.SetLearningRate:
			t.baseLR = cmd.Rate
			t.setLearningRate(cmd.Rate)
		}
	}
}

func (t *Trainer) setLearningRate(v float64) {
	t.OptD.SetLearningRate(v)
	t.OptG.SetLearningRate(v)
	if t.OptP != nil {
		t.OptP.SetLearningRate(v)
	}
}

// applySchedule updates the learning rate from the epoch indexed
// multiplier, leaving the optimizer buffers untouched.
func (t *Trainer) applySchedule() {
	if t.Conf.LearningRateSchedule == nil {
		return
	}
	t.setLearningRate(t.baseLR * t.Conf.LearningRateSchedule(t.Epoch))
}

func (t *Trainer) saveCheckpoints() error {
	if err := SaveCheckpoint(t.TrialDir, RoleDiscriminator, t.D, t.OptD, t.Epoch, t.Step); err != nil {
		return err
	}
	if err := SaveCheckpoint(t.TrialDir, RoleGenerator, t.G, t.OptG, t.Epoch, t.Step); err != nil {
		return err
	}
	if t.P != nil {
		return SaveCheckpoint(t.TrialDir, RolePredictor, t.P, t.OptP, t.Epoch, t.Step)
	}
	return nil
}

func (t *Trainer) loadCheckpoints(dir string) error {
	cp, err := LoadCheckpoint(dir, RoleDiscriminator)
	if err != nil {
		return err
	}
	if err = cp.Restore(t.D, t.OptD); err != nil {
		return err
	}
	t.Epoch, t.Step = cp.Epoch, cp.Step
	if cp, err = LoadCheckpoint(dir, RoleGenerator); err != nil {
		return err
	}
	if err = cp.Restore(t.G, t.OptG); err != nil {
		return err
	}
	if t.P != nil {
		if cp, err = LoadCheckpoint(dir, RolePredictor); err != nil {
			return err
		}
		return cp.Restore(t.P, t.OptP)
	}
	return nil
}

func cloneGrads(m Model) []*num.Array {
	grads := m.Grads()
	saved := make([]*num.Array, len(grads))
	for i, g := range grads {
		saved[i] = g.Clone()
	}
	return saved
}

func restoreGrads(m Model, saved []*num.Array) {
	for i, g := range m.Grads() {
		g.CopyFrom(saved[i])
	}
}

// toRGBImages splits an [N,3,H,W] batch into per example images.
func toRGBImages(a *num.Array) []*img.RGBImage {
	dims := a.Dims()
	n, h, w := dims[0], dims[2], dims[3]
	data := a.Data()
	images := make([]*img.RGBImage, n)
	size := 3 * h * w
	for i := range images {
		images[i] = img.FromPlanes(data[i*size:(i+1)*size], w, h)
	}
	return images
}

// toGrayImages splits an [N,H,W] batch of density maps.
func toGrayImages(a *num.Array) []*img.GrayImage {
	dims := a.Dims()
	n, h, w := dims[0], dims[1], dims[2]
	data := a.Data()
	maps := make([]*img.GrayImage, n)
	for i := range maps {
		m := img.NewGray(w, h)
		copy(m.Pix, data[i*h*w:(i+1)*h*w])
		maps[i] = m
	}
	return maps
}
