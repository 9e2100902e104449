package train

import (
	"math"

	"github.com/FlavioCFOliveira/GoACNN/internal/net"
	"github.com/FlavioCFOliveira/GoACNN/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(t *Trainer)
	OnTrainEnd(t *Trainer)
	OnEpochBegin(epoch int, t *Trainer)
	OnEpochEnd(stats EpochStats, t *Trainer)
	// OnBatchEnd receives every record the trainer logs.
	OnBatchEnd(rec Record, t *Trainer)
}

// Stopper is implemented by callbacks that can end training early.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(t *Trainer)                 {}
func (c BaseCallback) OnTrainEnd(t *Trainer)                   {}
func (c BaseCallback) OnEpochBegin(epoch int, t *Trainer)      {}
func (c BaseCallback) OnEpochEnd(stats EpochStats, t *Trainer) {}
func (c BaseCallback) OnBatchEnd(rec Record, t *Trainer)       {}

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(stats EpochStats, t *Trainer) {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(stats.MonitoredLoss())
}

// EarlyStopping stops training when the monitored loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnEpochEnd(stats EpochStats, t *Trainer) {
	loss := stats.MonitoredLoss()
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		t.Logger().Printf("Early stopping at epoch %d: loss %.6f did not improve for %d epochs", stats.Epoch, loss, c.Patience)
		c.Stopped = true
	}
}

func (c *EarlyStopping) ShouldStop() bool { return c.Stopped }

// ModelCheckpoint saves the model parameters after every epoch that
// improves the monitored loss.
type ModelCheckpoint struct {
	BaseCallback
	Filename string

	bestLoss float64
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestLoss: math.MaxFloat64,
	}
}

func (c *ModelCheckpoint) OnEpochEnd(stats EpochStats, t *Trainer) {
	loss := stats.MonitoredLoss()
	if loss >= c.bestLoss {
		return
	}
	c.bestLoss = loss
	if err := net.SaveParams(c.Filename, t.Model()); err != nil {
		t.Logger().Printf("Error saving checkpoint: %v", err)
		return
	}
	t.Logger().Printf("Checkpoint saved: loss %.6f is new best", loss)
}

// Logger logs a one-line epoch summary every Interval epochs.
type Logger struct {
	BaseCallback
	Interval int
}

func (c Logger) OnEpochEnd(stats EpochStats, t *Trainer) {
	if c.Interval <= 0 || stats.Epoch%c.Interval != 0 {
		return
	}
	if stats.Test != nil {
		t.Logger().Printf("Epoch %d: loss = %.6f, acc = %.2f%%, test loss = %.6f, test acc = %.2f%%",
			stats.Epoch, stats.Train.Loss, stats.Train.Accuracy(), stats.Test.Loss, stats.Test.Accuracy())
		return
	}
	t.Logger().Printf("Epoch %d: loss = %.6f, acc = %.2f%%", stats.Epoch, stats.Train.Loss, stats.Train.Accuracy())
}
