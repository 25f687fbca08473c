package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Bitsy-Chuck/crowdnet/console"
	"github.com/Bitsy-Chuck/crowdnet/nnet"
)

func main() {
	conf := nnet.DefaultSettings()
	variant := flag.String("variant", "srgan", "training variant: cnn, gan or srgan")
	settingsFile := flag.String("settings", "", "settings file to load before applying flag overrides")
	consoleAddr := flag.String("console", "", "listen address for the remote console, e.g. :8080")

	// override settings from the command line
	flag.StringVar(&conf.TrialName, "trial", conf.TrialName, "trial name")
	flag.StringVar(&conf.LogDirectory, "logdir", conf.LogDirectory, "log directory")
	flag.StringVar(&conf.TrainDatasetPath, "train", conf.TrainDatasetPath, "training dataset directory")
	flag.StringVar(&conf.ValidationDatasetPath, "validation", conf.ValidationDatasetPath, "validation dataset directory")
	flag.StringVar(&conf.LoadModelPath, "load", conf.LoadModelPath, "directory with checkpoints to resume from")
	flag.IntVar(&conf.NumberOfEpochs, "epochs", conf.NumberOfEpochs, "number of epochs")
	flag.IntVar(&conf.BatchSize, "batch", conf.BatchSize, "batch size")
	flag.IntVar(&conf.DataLoaderWorkers, "workers", conf.DataLoaderWorkers, "data loader workers")
	flag.Float64Var(&conf.LearningRate, "lr", conf.LearningRate, "learning rate")
	flag.Float64Var(&conf.WeightDecay, "decay", conf.WeightDecay, "weight decay")
	flag.Float64Var(&conf.UnlabeledLossMultiplier, "ul", conf.UnlabeledLossMultiplier, "unlabeled loss multiplier")
	flag.Float64Var(&conf.FakeLossMultiplier, "fl", conf.FakeLossMultiplier, "fake loss multiplier")
	flag.Float64Var(&conf.MeanOffset, "offset", conf.MeanOffset, "noise mixture mean offset")
	flag.BoolVar(&conf.GradientPenaltyOn, "gp", conf.GradientPenaltyOn, "enable gradient penalty")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.Parse()

	if *settingsFile != "" {
		loaded, err := nnet.LoadSettings(*settingsFile)
		nnet.CheckErr(err)
		conf = loaded
		// re-apply flag overrides on top of the file
		flag.Visit(func(f *flag.Flag) {
			if f.Name == "variant" || f.Name == "settings" || f.Name == "console" {
				return
			}
			conf, err = conf.SetString(flagKey(f.Name), f.Value.String())
			nnet.CheckErr(err)
		})
	}
	conf.TrialName = nnet.CleanScientificNotation(conf.TrialName)

	trainer, err := nnet.NewTrainer(conf, nnet.Variant(*variant))
	nnet.CheckErr(err)
	fmt.Println("trial directory:", trainer.TrialDir)
	fmt.Print(conf)

	listener := console.NewListener()
	trainer.Listener = listener
	go listener.ListenInput(os.Stdin)
	if *consoleAddr != "" {
		go func() {
			nnet.CheckErr(listener.Serve(*consoleAddr))
		}()
	}

	nnet.CheckErr(trainer.Train())
}

var flagKeys = map[string]string{
	"trial":      "TrialName",
	"logdir":     "LogDirectory",
	"train":      "TrainDatasetPath",
	"validation": "ValidationDatasetPath",
	"load":       "LoadModelPath",
	"epochs":     "NumberOfEpochs",
	"batch":      "BatchSize",
	"workers":    "DataLoaderWorkers",
	"lr":         "LearningRate",
	"decay":      "WeightDecay",
	"ul":         "UnlabeledLossMultiplier",
	"fl":         "FakeLossMultiplier",
	"offset":     "MeanOffset",
	"gp":         "GradientPenaltyOn",
	"seed":       "RandSeed",
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return name
}
