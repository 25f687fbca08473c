package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Settings for a training run. A Settings value is passed explicitly
// into the trainer so several configurations can run in one process.
type Settings struct {
	TrialName             string
	LogDirectory          string
	TrainDatasetPath      string
	ValidationDatasetPath string
	TestDatasetPath       string
	LoadModelPath         string

	SummaryStepPeriod int
	NumberOfEpochs    int
	BatchSize         int
	DataLoaderWorkers int
	SaveEpochPeriod   int
	PatchSize         int
	NoiseSize         int

	LossOrder                 int
	WeightDecay               float64
	LearningRate              float64
	UnlabeledLossMultiplier   float64
	FakeLossMultiplier        float64
	GradientPenaltyOn         bool
	GradientPenaltyMultiplier float64
	MeanOffset                float64
	GeneratorStepPeriod       int
	WeightClip                float64
	RandSeed                  int64

	// Optional step indexed learning rate multiplier, applied at epoch
	// boundaries. Not serialized.
	LearningRateSchedule func(epoch int) float64 `json:"-"`
}

// DefaultSettings returns the baseline configuration.
func DefaultSettings() Settings {
	return Settings{
		TrialName:                 "trial",
		LogDirectory:              "logs",
		TrainDatasetPath:          "data",
		ValidationDatasetPath:     "data",
		TestDatasetPath:           "data",
		SummaryStepPeriod:         10,
		NumberOfEpochs:            100,
		BatchSize:                 10,
		DataLoaderWorkers:         0,
		SaveEpochPeriod:           50,
		PatchSize:                 64,
		NoiseSize:                 100,
		LossOrder:                 1,
		WeightDecay:               0.01,
		LearningRate:              1e-5,
		UnlabeledLossMultiplier:   1,
		FakeLossMultiplier:        1,
		GradientPenaltyMultiplier: 10,
		GeneratorStepPeriod:       1,
		WeightClip:                0.01,
	}
}

// LoadSettings reads settings from a JSON file.
func LoadSettings(path string) (s Settings, err error) {
	f, err := os.Open(path)
	if err != nil {
		return s, errors.Wrap(err, "load settings")
	}
	defer f.Close()
	s = DefaultSettings()
	if err = json.NewDecoder(f).Decode(&s); err != nil {
		return s, errors.Wrapf(err, "decode %s", path)
	}
	return s, nil
}

// Save writes settings to a JSON file via a temp file rename.
func (s Settings) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "save settings")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(s); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Rename(tmp, path)
}

func (s Settings) Fields() []string {
	st := reflect.TypeOf(s)
	fld := make([]string, 0, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		if st.Field(i).Type.Kind() == reflect.Func {
			continue
		}
		fld = append(fld, st.Field(i).Name)
	}
	return fld
}

func (s Settings) Get(key string) interface{} {
	v := reflect.ValueOf(s)
	return v.FieldByName(key).Interface()
}

func (s Settings) String() string {
	str := []string{"== Settings =="}
	for _, key := range s.Fields() {
		str = append(str, fmt.Sprintf("%-26s: %v", key, s.Get(key)))
	}
	return strings.Join(str, "\n")
}

func (s Settings) SetString(key, val string) (Settings, error) {
	v := reflect.ValueOf(&s).Elem()
	f := v.FieldByName(key)
	if !f.IsValid() {
		return s, errors.Errorf("no such setting: %s", key)
	}
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.Bool:
		var x bool
		if x, err = strconv.ParseBool(val); err == nil {
			f.SetBool(x)
		}
	case reflect.String:
		f.SetString(val)
	default:
		return s, errors.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	return s, err
}

var sciNotation = regexp.MustCompile(`\.?0*e([+\-])0*([0-9])`)

// CleanScientificNotation tidies float formatting in trial names, e.g.
// "1.000000e-05" becomes "1e-5".
func CleanScientificNotation(s string) string {
	s = sciNotation.ReplaceAllString(s, "e$1$2")
	return strings.ReplaceAll(s, "e+", "e")
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
