package config

import (
	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoACNN/internal/data"
)

// LoadData returns the training and test sets of the configured dataset.
// The synthetic dataset is generated with the given sample shape and split
// 80/20.
func (c Config) LoadData(shape [3]int, classes int) (trainSet, testSet *data.Dataset, err error) {
	switch c.Dataset {
	case MNIST:
		if trainSet, err = data.LoadMNIST(c.DataDir, true); err != nil {
			return nil, nil, err
		}
		testSet, err = data.LoadMNIST(c.DataDir, false)
	case CIFAR10:
		if trainSet, err = data.LoadCIFAR10(c.DataDir, true); err != nil {
			return nil, nil, err
		}
		testSet, err = data.LoadCIFAR10(c.DataDir, false)
	case Synthetic:
		var all *data.Dataset
		if all, err = data.Synthetic(c.SyntheticSamples, classes, shape, c.SyntheticNoise, c.Seed); err != nil {
			return nil, nil, err
		}
		trainSet, testSet = all.Split(0.8)
	default:
		return nil, nil, configErr("dataset", c.Dataset)
	}
	if err != nil {
		return nil, nil, err
	}

	if trainSet.Shape != shape {
		return nil, nil, errors.Errorf("%s samples are %v, the model reads %v", c.Dataset, trainSet.Shape, shape)
	}
	if c.Normalize {
		for _, ds := range []*data.Dataset{trainSet, testSet} {
			if err := ds.Normalize(c.Mean, c.Std); err != nil {
				return nil, nil, err
			}
		}
	}
	return trainSet, testSet, nil
}
