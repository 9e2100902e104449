// Command resnet trains a CIFAR-10 ResNet-(6n+2) with SGD.
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

func defaults() config.Config {
	cfg := config.Default()
	cfg.Dataset = config.CIFAR10
	cfg.Mean = []float64{0.4914, 0.4822, 0.4465}
	cfg.Std = []float64{0.2470, 0.2435, 0.2616}
	cfg.Normalize = true
	cfg.BatchSize = 128
	cfg.TestBatchSize = 500
	cfg.LR = 0.1
	cfg.Momentum = 0.9
	cfg.WeightDecay = 1e-4
	cfg.StepSize = 80
	cfg.Gamma = 0.1
	cfg.Epochs = 160
	cfg.Checkpoint = "resnet.gob"
	cfg.Visualize = 0
	return cfg
}

func main() {
	logger := log.New(os.Stderr, "[resnet] ", log.LstdFlags)

	cfg, err := config.FromArgs(defaults(), "resnet", os.Args[1:])
	if err != nil {
		logger.Fatalf("Invalid arguments: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	layer.Seed(cfg.Seed)

	m, err := model.NewCifarResNet(cfg.ResNetN)
	if err != nil {
		logger.Fatalf("Failed to build model: %v", err)
	}
	logger.Printf("ResNet-%d with %d parameters", m.Depth(), len(m.Params()))
	m.Network().Summary(logger.Writer(), "resnet")

	trainSet, testSet, err := cfg.LoadData(m.InputShape(), m.Classes())
	if err != nil {
		logger.Fatalf("Failed to load %s: %v", cfg.Dataset, err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Fatalf("Failed to create %s: %v", cfg.OutputDir, err)
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
	if len(history.Test) > 0 {
		if _, err := visual.PlotHistory(history.Test, cfg.OutputDir, true); err != nil {
			logger.Printf("Failed to plot: %v", err)
		}
	}
}
