// Command acnn trains the dual-branch dynamic convolution classifier on
// MNIST (or a synthetic stand-in), then writes the training logs, loss and
// accuracy plots, feature/filter visualizations and the best parameters.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/FlavioCFOliveira/GoACNN/internal/config"
	"github.com/FlavioCFOliveira/GoACNN/internal/data"
	"github.com/FlavioCFOliveira/GoACNN/internal/layer"
	"github.com/FlavioCFOliveira/GoACNN/internal/model"
	"github.com/FlavioCFOliveira/GoACNN/internal/train"
	"github.com/FlavioCFOliveira/GoACNN/internal/visual"
)

func main() {
	logger := log.New(os.Stderr, "[acnn] ", log.LstdFlags)

	cfg, err := config.FromArgs(config.Default(), "acnn", os.Args[1:])
	if err != nil {
		logger.Fatalf("Invalid arguments: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	layer.Seed(cfg.Seed)

	m, err := model.NewVanillaACNN(cfg.Model)
	if err != nil {
		logger.Fatalf("Failed to build model: %v", err)
	}
	device, err := cfg.NewDevice()
	if err != nil {
		logger.Fatalf("Failed to select device: %v", err)
	}
	m.SetDevice(device)
	m.Summary(logger.Writer())

	trainSet, testSet, err := cfg.LoadData(m.InputShape(), m.Classes())
	if err != nil {
		logger.Fatalf("Failed to load %s: %v", cfg.Dataset, err)
	}
	logger.Printf("Loaded %d training and %d test samples", trainSet.Len(), testSet.Len())

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Fatalf("Failed to create %s: %v", cfg.OutputDir, err)
	}
	if err := cfg.Save(filepath.Join(cfg.OutputDir, "config.yaml")); err != nil {
		logger.Printf("Failed to save configuration: %v", err)
	}

	o, err := cfg.NewOptimizer()
	if err != nil {
		logger.Fatalf("Failed to build optimizer: %v", err)
	}
	callbacks, err := cfg.Callbacks(o)
	if err != nil {
		logger.Fatalf("Failed to build callbacks: %v", err)
	}

	trainer := train.New(m, o, logger, callbacks...)
	trainer.LogInterval = cfg.LogInterval
	history, err := trainer.Fit(cfg.Epochs,
		data.NewLoader(trainSet, cfg.BatchSize, true, cfg.Seed),
		data.NewLoader(testSet, cfg.TestBatchSize, false, 0))
	if err != nil {
		logger.Fatalf("Training failed: %v", err)
	}

	if err := train.WriteCSV(filepath.Join(cfg.OutputDir, "test.csv"), history.Test); err != nil {
		logger.Printf("Failed to write test log: %v", err)
	}
	for _, test := range []bool{false, true} {
		records := history.Train
		if test {
			records = history.Test
		}
		if len(records) == 0 {
			continue
		}
		path, err := visual.PlotHistory(records, cfg.OutputDir, test)
		if err != nil {
			logger.Printf("Failed to plot: %v", err)
			continue
		}
		logger.Printf("Plot written to %s", path)
	}

	if cfg.Visualize > 0 {
		dir := filepath.Join(cfg.OutputDir, "visuals")
		n, err := visual.Visualize(m, testSet, dir, cfg.Visualize, visual.DefaultOptions())
		if err != nil {
			logger.Fatalf("Visualization failed: %v", err)
		}
		logger.Printf("Saved feature and filter maps of %d samples to %s", n, dir)
	}
}
