// Package train runs the epoch loop for the classifiers: mini-batch NLL
// training with periodic logging, evaluation and training callbacks.
package train

import (
	"io"
	"log"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoACNN/internal/data"
	"github.com/FlavioCFOliveira/GoACNN/internal/loss"
	"github.com/FlavioCFOliveira/GoACNN/internal/model"
	"github.com/FlavioCFOliveira/GoACNN/internal/net"
	"github.com/FlavioCFOliveira/GoACNN/internal/opt"
)

// Record is one logged point: the global batch step, a loss and an
// accuracy in percent.
type Record struct {
	Step     int
	Loss     float64
	Accuracy float64
}

// History collects the records logged during training and evaluation.
type History struct {
	Train []Record
	Test  []Record
}

// Result summarizes a pass over a dataset.
type Result struct {
	Loss    float64 // mean loss per sample
	Correct int
	Total   int
}

// Accuracy returns the percentage of correct predictions.
func (r Result) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Correct) / float64(r.Total)
}

// EpochStats is handed to callbacks at the end of every epoch. Test is nil
// when no evaluation set was given.
type EpochStats struct {
	Epoch int
	Train Result
	Test  *Result
}

// MonitoredLoss is the test loss when available, the training loss otherwise.
func (s EpochStats) MonitoredLoss() float64 {
	if s.Test != nil {
		return s.Test.Loss
	}
	return s.Train.Loss
}

// Trainer fits a model with an optimizer on NLL loss.
type Trainer struct {
	model     model.Model
	optimizer opt.Optimizer
	logger    *log.Logger
	callbacks []Callback
	history   History

	// LogInterval is the number of batches between progress lines.
	LogInterval int
}

// New creates a trainer. A nil logger discards progress output.
func New(m model.Model, o opt.Optimizer, logger *log.Logger, callbacks ...Callback) *Trainer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Trainer{
		model:       m,
		optimizer:   o,
		logger:      logger,
		callbacks:   callbacks,
		LogInterval: 10,
	}
}

func (t *Trainer) Model() model.Model       { return t.model }
func (t *Trainer) Optimizer() opt.Optimizer { return t.optimizer }
func (t *Trainer) Logger() *log.Logger      { return t.logger }
func (t *Trainer) History() *History        { return &t.history }

// AddCallback registers c for subsequent Fit calls.
func (t *Trainer) AddCallback(c Callback) {
	t.callbacks = append(t.callbacks, c)
}

// TrainEpoch runs one pass over loader: per batch it clears gradients,
// computes the mean NLL, backpropagates and steps the optimizer. Every
// LogInterval batches it logs progress and records (step, loss, batch
// accuracy) with step = (epoch-1)*batches + batch.
func (t *Trainer) TrainEpoch(epoch int, loader *data.Loader) (Result, error) {
	t.model.SetTraining(true)
	loader.Reset()
	total, batches := loader.Dataset().Len(), loader.Len()
	interval := t.LogInterval
	if interval < 1 {
		interval = 1
	}

	var res Result
	nll := loss.NLLLoss{}
	batchIdx := 0
	for x, y, ok := loader.Next(); ok; x, y, ok = loader.Next() {
		t.model.ClearGradients()
		out, err := t.model.Forward(x)
		if err != nil {
			return res, errors.Wrapf(err, "epoch %d batch %d", epoch, batchIdx)
		}
		l, err := nll.Forward(out, y)
		if err != nil {
			return res, errors.Wrapf(err, "epoch %d batch %d", epoch, batchIdx)
		}
		grad, err := nll.Backward(out, y)
		if err != nil {
			return res, errors.Wrapf(err, "epoch %d batch %d", epoch, batchIdx)
		}
		if err := t.model.Backward(grad); err != nil {
			return res, errors.Wrapf(err, "epoch %d batch %d", epoch, batchIdx)
		}
		net.Step(t.model, t.optimizer)

		correct := loss.Correct(out, y)
		res.Correct += correct
		res.Total += len(y)
		res.Loss += l * float64(len(y))

		if batchIdx%interval == 0 {
			t.logger.Printf("Train Epoch: %d [%d/%d (%.0f%%)]\tLoss: %.6f",
				epoch, batchIdx*len(y), total, 100*float64(batchIdx)/float64(batches), l)
			rec := Record{
				Step:     (epoch-1)*batches + batchIdx,
				Loss:     l,
				Accuracy: 100 * float64(correct) / float64(len(y)),
			}
			t.history.Train = append(t.history.Train, rec)
			for _, c := range t.callbacks {
				c.OnBatchEnd(rec, t)
			}
		}
		batchIdx++
	}
	if res.Total > 0 {
		res.Loss /= float64(res.Total)
	}
	t.logger.Printf("Training Accuracy: %d/%d (%.4f%%)", res.Correct, total, res.Accuracy())
	return res, nil
}

// Evaluate runs the model in eval mode over loader, summing the per-sample
// NLL and dividing by the dataset size.
func (t *Trainer) Evaluate(loader *data.Loader) (Result, error) {
	t.model.SetTraining(false)
	defer t.model.SetTraining(true)
	loader.Reset()

	var res Result
	sum := loss.NLLLoss{Reduction: loss.Sum}
	for x, y, ok := loader.Next(); ok; x, y, ok = loader.Next() {
		out, err := t.model.Forward(x)
		if err != nil {
			return res, errors.Wrap(err, "evaluate")
		}
		l, err := sum.Forward(out, y)
		if err != nil {
			return res, errors.Wrap(err, "evaluate")
		}
		res.Loss += l
		res.Correct += loss.Correct(out, y)
		res.Total += len(y)
	}
	if res.Total > 0 {
		res.Loss /= float64(res.Total)
	}
	t.logger.Printf("Test set: Average loss: %.4f, Accuracy: %d/%d (%.0f%%)",
		res.Loss, res.Correct, res.Total, res.Accuracy())
	return res, nil
}

// Fit trains for epochs passes, evaluating on test after each one when test
// is not nil, and stops early when a callback asks to.
func (t *Trainer) Fit(epochs int, trainLoader, test *data.Loader) (*History, error) {
	for _, c := range t.callbacks {
		c.OnTrainBegin(t)
	}
	defer func() {
		for _, c := range t.callbacks {
			c.OnTrainEnd(t)
		}
	}()

	for epoch := 1; epoch <= epochs; epoch++ {
		for _, c := range t.callbacks {
			c.OnEpochBegin(epoch, t)
		}
		stats := EpochStats{Epoch: epoch}
		var err error
		if stats.Train, err = t.TrainEpoch(epoch, trainLoader); err != nil {
			return &t.history, err
		}
		if test != nil {
			res, err := t.Evaluate(test)
			if err != nil {
				return &t.history, err
			}
			stats.Test = &res
			t.history.Test = append(t.history.Test, Record{
				Step:     epoch * trainLoader.Len(),
				Loss:     res.Loss,
				Accuracy: res.Accuracy(),
			})
		}

		stop := false
		for _, c := range t.callbacks {
			c.OnEpochEnd(stats, t)
			if s, ok := c.(Stopper); ok && s.ShouldStop() {
				stop = true
			}
		}
		if stop {
			break
		}
	}
	return &t.history, nil
}
