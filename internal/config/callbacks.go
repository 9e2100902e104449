package config

import (
	"path/filepath"

	"github.com/FlavioCFOliveira/GoACNN/internal/opt"
	"github.com/FlavioCFOliveira/GoACNN/internal/train"
)

// Callbacks returns the callbacks the training commands run. Logs and the
// checkpoint go to OutputDir; the scheduler and early stopping are optional.
func (c Config) Callbacks(o opt.Optimizer) ([]train.Callback, error) {
	callbacks := []train.Callback{
		train.Logger{Interval: 1},
		train.NewCSVLogger(filepath.Join(c.OutputDir, "train.csv"), false),
		train.NewModelCheckpoint(filepath.Join(c.OutputDir, c.Checkpoint)),
	}
	s, err := c.NewScheduler(o)
	if err != nil {
		return nil, err
	}
	if s != nil {
		callbacks = append(callbacks, train.NewSchedulerCallback(s))
	}
	if c.EarlyStoppingPatience > 0 {
		callbacks = append(callbacks, train.NewEarlyStopping(c.EarlyStoppingPatience, 0))
	}
	return callbacks, nil
}
