package layer

import (
	"math"
)

// BatchNorm2D implements 2D batch normalization.
// Normalizes across batch and spatial dimensions, learns scale/shift per channel.
type BatchNorm2D struct {
	numFeatures int
	height      int
	width       int
	eps         float64
	momentum    float64

	training bool

	// Learnable parameters
	params []float64 // Contiguous gamma + beta
	gamma  []float64 // View of params
	beta   []float64 // View of params

	// Running statistics (for inference)
	stats       []float64 // Contiguous runningMean + runningVar
	runningMean []float64 // View of stats
	runningVar  []float64 // View of stats

	grads        []float64 // Contiguous gradGamma + gradBeta
	gradGammaBuf []float64 // View of grads
	gradBetaBuf  []float64 // View of grads

	outputBuf []float64
	gradInBuf []float64
	xhat      []float64
	invStd    []float64
	batch     int
}

// NewBatchNorm2D creates a batch normalization layer over numFeatures
// channels of height x width maps. It starts in training mode.
func NewBatchNorm2D(numFeatures, height, width int) *BatchNorm2D {
	params := make([]float64, 2*numFeatures)
	stats := make([]float64, 2*numFeatures)
	grads := make([]float64, 2*numFeatures)
	bn := &BatchNorm2D{
		numFeatures:  numFeatures,
		height:       height,
		width:        width,
		eps:          1e-5,
		momentum:     0.1,
		training:     true,
		params:       params,
		gamma:        params[:numFeatures],
		beta:         params[numFeatures:],
		stats:        stats,
		runningMean:  stats[:numFeatures],
		runningVar:   stats[numFeatures:],
		grads:        grads,
		gradGammaBuf: grads[:numFeatures],
		gradBetaBuf:  grads[numFeatures:],
		invStd:       make([]float64, numFeatures),
	}
	for i := range bn.gamma {
		bn.gamma[i] = 1
		bn.runningVar[i] = 1
	}
	return bn
}

// SetTraining switches between batch statistics and running statistics.
func (bn *BatchNorm2D) SetTraining(training bool) { bn.training = training }

// Forward normalizes every channel of the batch.
func (bn *BatchNorm2D) Forward(x []float64) []float64 {
	n := batchSize("BatchNorm2D", len(x), bn.InSize())
	bn.batch = n
	plane := bn.height * bn.width
	count := float64(n * plane)
	bn.outputBuf = grow(bn.outputBuf, len(x))
	bn.xhat = grow(bn.xhat, len(x))

	for c := 0; c < bn.numFeatures; c++ {
		var mean, variance float64
		if bn.training {
			for s := 0; s < n; s++ {
				off := (s*bn.numFeatures + c) * plane
				for _, v := range x[off : off+plane] {
					mean += v
				}
			}
			mean /= count
			for s := 0; s < n; s++ {
				off := (s*bn.numFeatures + c) * plane
				for _, v := range x[off : off+plane] {
					d := v - mean
					variance += d * d
				}
			}
			variance /= count

			unbiased := variance
			if count > 1 {
				unbiased = variance * count / (count - 1)
			}
			bn.runningMean[c] = (1-bn.momentum)*bn.runningMean[c] + bn.momentum*mean
			bn.runningVar[c] = (1-bn.momentum)*bn.runningVar[c] + bn.momentum*unbiased
		} else {
			mean, variance = bn.runningMean[c], bn.runningVar[c]
		}

		inv := 1 / math.Sqrt(variance+bn.eps)
		bn.invStd[c] = inv
		for s := 0; s < n; s++ {
			off := (s*bn.numFeatures + c) * plane
			for i := off; i < off+plane; i++ {
				h := (x[i] - mean) * inv
				bn.xhat[i] = h
				bn.outputBuf[i] = bn.gamma[c]*h + bn.beta[c]
			}
		}
	}
	return bn.outputBuf
}

// Backward accumulates gamma/beta gradients and returns the input gradient.
func (bn *BatchNorm2D) Backward(grad []float64) []float64 {
	n := bn.batch
	plane := bn.height * bn.width
	count := float64(n * plane)
	bn.gradInBuf = grow(bn.gradInBuf, n*bn.InSize())

	for c := 0; c < bn.numFeatures; c++ {
		var sumG, sumGX float64
		for s := 0; s < n; s++ {
			off := (s*bn.numFeatures + c) * plane
			for i := off; i < off+plane; i++ {
				sumG += grad[i]
				sumGX += grad[i] * bn.xhat[i]
			}
		}
		bn.gradGammaBuf[c] += sumGX
		bn.gradBetaBuf[c] += sumG

		scale := bn.gamma[c] * bn.invStd[c]
		for s := 0; s < n; s++ {
			off := (s*bn.numFeatures + c) * plane
			for i := off; i < off+plane; i++ {
				if bn.training {
					bn.gradInBuf[i] = scale * (grad[i] - sumG/count - bn.xhat[i]*sumGX/count)
				} else {
					bn.gradInBuf[i] = scale * grad[i]
				}
			}
		}
	}
	return bn.gradInBuf
}

// Params returns gamma followed by beta.
func (bn *BatchNorm2D) Params() []float64 { return bn.params }

// SetParams copies params into the layer.
func (bn *BatchNorm2D) SetParams(params []float64) { copy(bn.params, params) }

// Gradients returns the accumulated gradients.
func (bn *BatchNorm2D) Gradients() []float64 { return bn.grads }

// ClearGradients zeroes out the accumulated gradients.
func (bn *BatchNorm2D) ClearGradients() {
	for i := range bn.grads {
		bn.grads[i] = 0
	}
}

// RunningStats returns the running mean and variance.
func (bn *BatchNorm2D) RunningStats() (mean, variance []float64) {
	return bn.runningMean, bn.runningVar
}

// State returns the running mean followed by the running variance.
func (bn *BatchNorm2D) State() []float64 { return bn.stats }

// SetState copies running statistics written by State into the layer.
func (bn *BatchNorm2D) SetState(state []float64) { copy(bn.stats, state) }

// InSize returns C * H * W.
func (bn *BatchNorm2D) InSize() int { return bn.numFeatures * bn.height * bn.width }

// OutSize equals InSize.
func (bn *BatchNorm2D) OutSize() int { return bn.InSize() }
