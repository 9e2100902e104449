// Package config holds the run settings shared by the commands: dataset,
// model shape, optimizer and output locations. Settings load from YAML and
// may be overridden by command-line flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/model"
	"github.com/FlavioCFOliveira/GoACNN/internal/opt"
)

// Dataset names.
const (
	MNIST     = "mnist"
	CIFAR10   = "cifar10"
	Synthetic = "synthetic"
)

// Config is a complete training run description.
type Config struct {
	Dataset          string  `yaml:"dataset"`
	DataDir          string  `yaml:"data_dir"`
	SyntheticSamples int     `yaml:"synthetic_samples"`
	SyntheticNoise   float64 `yaml:"synthetic_noise"`
	// Normalize applies the per-channel mean/std below to every image.
	Normalize bool      `yaml:"normalize"`
	Mean      []float64 `yaml:"mean"`
	Std       []float64 `yaml:"std"`

	Model   model.VanillaConfig `yaml:"model"`
	ResNetN int                 `yaml:"resnet_n"`

	Epochs        int     `yaml:"epochs"`
	BatchSize     int     `yaml:"batch_size"`
	TestBatchSize int     `yaml:"test_batch_size"`
	Optimizer     string  `yaml:"optimizer"`
	LR            float64 `yaml:"lr"`
	Momentum      float64 `yaml:"momentum"`
	WeightDecay   float64 `yaml:"weight_decay"`
	// Scheduler is step, exponential, plateau or none. Empty selects step
	// when StepSize > 0. Plateau decays by Gamma after Patience epochs
	// without improvement.
	Scheduler string  `yaml:"scheduler"`
	StepSize  int     `yaml:"step_size"`
	Gamma     float64 `yaml:"gamma"`
	Patience  int     `yaml:"patience"`
	// EarlyStoppingPatience > 0 ends training after that many epochs
	// without improvement.
	EarlyStoppingPatience int    `yaml:"early_stopping_patience"`
	LogInterval           int    `yaml:"log_interval"`
	Seed                  int64  `yaml:"seed"`
	Device                string `yaml:"device"`

	OutputDir  string `yaml:"output_dir"`
	Visualize  int    `yaml:"visualize"`
	Checkpoint string `yaml:"checkpoint"`
}

// Default returns the MNIST training setup.
func Default() Config {
	return Config{
		Dataset:          MNIST,
		DataDir:          "data",
		SyntheticSamples: 2000,
		SyntheticNoise:   0.2,
		Mean:             []float64{0.1307},
		Std:              []float64{0.3081},
		Model:            model.DefaultVanillaConfig(),
		ResNetN:          3,
		Epochs:           10,
		BatchSize:        64,
		TestBatchSize:    1000,
		Optimizer:        "sgd",
		LR:               0.01,
		Momentum:         0.5,
		Gamma:            0.7,
		Patience:         2,
		LogInterval:      10,
		Seed:             1,
		Device:           "cpu",
		OutputDir:        "runs",
		Visualize:        10,
		Checkpoint:       "acnn.gob",
	}
}

// Load reads a YAML file over Default, so omitted keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	err := LoadInto(&cfg, path)
	return cfg, err
}

// LoadInto overlays the YAML file at path onto cfg.
func LoadInto(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrapf(yaml.Unmarshal(raw, cfg), "config %s", path)
}

// FromArgs resolves a command's settings: base, then the file named by
// -config if any, then every other flag given on the command line.
func FromArgs(base Config, name string, args []string) (Config, error) {
	parse := func(cfg *Config) (string, error) {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		path := fs.String("config", "", "YAML run configuration")
		cfg.BindFlags(fs)
		err := fs.Parse(args)
		return *path, err
	}

	cfg := base
	path, err := parse(&cfg)
	if err != nil || path == "" {
		return cfg, err
	}
	cfg = base
	if err := LoadInto(&cfg, path); err != nil {
		return cfg, err
	}
	_, err = parse(&cfg)
	return cfg, err
}

// Save writes cfg as YAML.
func (c Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}
	return errors.WithStack(os.WriteFile(path, raw, 0o644))
}

func configErr(field string, value interface{}) error {
	return errors.WithStack(&dynconv.ConfigurationError{Field: field, Value: fmt.Sprint(value)})
}

// Validate rejects settings no run could use. Model shapes are checked when
// the model is built.
func (c Config) Validate() error {
	switch c.Dataset {
	case MNIST, CIFAR10, Synthetic:
	default:
		return configErr("dataset", c.Dataset)
	}
	switch {
	case c.Epochs < 1:
		return configErr("epochs", c.Epochs)
	case c.BatchSize < 1:
		return configErr("batch_size", c.BatchSize)
	case c.TestBatchSize < 1:
		return configErr("test_batch_size", c.TestBatchSize)
	case c.LR <= 0:
		return configErr("lr", c.LR)
	case c.Momentum < 0:
		return configErr("momentum", c.Momentum)
	case c.Dataset == Synthetic && c.SyntheticSamples < 2:
		return configErr("synthetic_samples", c.SyntheticSamples)
	case c.Normalize && (len(c.Mean) == 0 || len(c.Mean) != len(c.Std)):
		return configErr("mean/std", len(c.Mean))
	case c.EarlyStoppingPatience < 0:
		return configErr("early_stopping_patience", c.EarlyStoppingPatience)
	}
	o, err := c.NewOptimizer()
	if err != nil {
		return err
	}
	if _, err := c.NewScheduler(o); err != nil {
		return err
	}
	if _, err := c.NewDevice(); err != nil {
		return err
	}
	return nil
}

// NewOptimizer builds the configured optimizer.
func (c Config) NewOptimizer() (opt.Optimizer, error) {
	switch strings.ToLower(c.Optimizer) {
	case "sgd":
		return &opt.SGD{LearningRate: c.LR, Momentum: c.Momentum, WeightDecay: c.WeightDecay}, nil
	case "adam":
		return opt.NewAdam(c.LR), nil
	}
	return nil, configErr("optimizer", c.Optimizer)
}

// NewScheduler builds the configured learning rate scheduler over o. It
// returns nil when no scheduler is selected.
func (c Config) NewScheduler(o opt.Optimizer) (opt.Scheduler, error) {
	name := strings.ToLower(c.Scheduler)
	if name == "" && c.StepSize > 0 {
		name = "step"
	}
	switch name {
	case "", "none":
		return nil, nil
	case "step":
		if c.StepSize < 1 {
			return nil, configErr("step_size", c.StepSize)
		}
		return opt.NewStepLR(o, c.StepSize, c.Gamma), nil
	case "exponential":
		return opt.NewExponentialLR(o, c.Gamma), nil
	case "plateau":
		if c.Patience < 1 {
			return nil, configErr("patience", c.Patience)
		}
		return opt.NewReduceLROnPlateau(o, c.Gamma, c.Patience, 0, 0), nil
	}
	return nil, configErr("scheduler", c.Scheduler)
}

// NewDevice resolves the device name. Only "cpu" is available.
func (c Config) NewDevice() (dynconv.Device, error) {
	switch strings.ToLower(c.Device) {
	case "", "cpu":
		return dynconv.GetDefaultDevice(), nil
	}
	return nil, errors.Wrapf(dynconv.ErrDeviceUnavailable, "device %q", c.Device)
}

// BindFlags registers command-line overrides for the scalar settings on fs.
// Call it on a Config holding the values flags should default to.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Dataset, "dataset", c.Dataset, "dataset: mnist, cifar10 or synthetic")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "directory holding the dataset files")
	fs.IntVar(&c.SyntheticSamples, "synthetic-samples", c.SyntheticSamples, "samples generated for the synthetic dataset")
	fs.BoolVar(&c.Normalize, "normalize", c.Normalize, "normalize images with the configured mean and std")
	fs.IntVar(&c.ResNetN, "n", c.ResNetN, "ResNet blocks per stage (3, 5, 7, 9 or 11)")
	fs.IntVar(&c.Epochs, "epochs", c.Epochs, "number of epochs to train")
	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "training batch size")
	fs.IntVar(&c.TestBatchSize, "test-batch-size", c.TestBatchSize, "evaluation batch size")
	fs.StringVar(&c.Optimizer, "optimizer", c.Optimizer, "optimizer: sgd or adam")
	fs.Float64Var(&c.LR, "lr", c.LR, "learning rate")
	fs.Float64Var(&c.Momentum, "momentum", c.Momentum, "SGD momentum")
	fs.Float64Var(&c.WeightDecay, "weight-decay", c.WeightDecay, "SGD weight decay")
	fs.IntVar(&c.StepSize, "step-size", c.StepSize, "epochs between learning rate decays (0 disables)")
	fs.Float64Var(&c.Gamma, "gamma", c.Gamma, "learning rate decay factor")
	fs.StringVar(&c.Scheduler, "scheduler", c.Scheduler, "learning rate scheduler: step, exponential, plateau or none")
	fs.IntVar(&c.Patience, "patience", c.Patience, "epochs without improvement before the plateau scheduler decays")
	fs.IntVar(&c.EarlyStoppingPatience, "early-stopping", c.EarlyStoppingPatience, "epochs without improvement before training stops (0 disables)")
	fs.IntVar(&c.LogInterval, "log-interval", c.LogInterval, "batches between progress lines")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed")
	fs.StringVar(&c.Device, "device", c.Device, "compute device")
	fs.StringVar(&c.OutputDir, "out", c.OutputDir, "directory for logs, plots and visualizations")
	fs.IntVar(&c.Visualize, "visualize", c.Visualize, "samples to visualize after training (at most 10)")
	fs.StringVar(&c.Checkpoint, "checkpoint", c.Checkpoint, "parameter file name inside the output directory")
}
