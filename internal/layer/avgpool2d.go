package layer

// GlobalAvgPool2D averages every channel of a (C,H,W) sample down to one
// value, producing a vector of C features.
type GlobalAvgPool2D struct {
	channels int
	height   int
	width    int

	outputBuf []float64
	gradInBuf []float64
	batch     int
}

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D(channels, height, width int) *GlobalAvgPool2D {
	return &GlobalAvgPool2D{channels: channels, height: height, width: width}
}

// Forward averages each plane.
func (p *GlobalAvgPool2D) Forward(x []float64) []float64 {
	n := batchSize("GlobalAvgPool2D", len(x), p.InSize())
	p.batch = n
	plane := p.height * p.width
	p.outputBuf = grow(p.outputBuf, n*p.channels)
	for i := range p.outputBuf {
		sum := 0.0
		for _, v := range x[i*plane : (i+1)*plane] {
			sum += v
		}
		p.outputBuf[i] = sum / float64(plane)
	}
	return p.outputBuf
}

// Backward spreads each gradient evenly over its plane.
func (p *GlobalAvgPool2D) Backward(grad []float64) []float64 {
	plane := p.height * p.width
	p.gradInBuf = grow(p.gradInBuf, p.batch*p.InSize())
	for i, g := range grad[:p.batch*p.channels] {
		v := g / float64(plane)
		for j := i * plane; j < (i+1)*plane; j++ {
			p.gradInBuf[j] = v
		}
	}
	return p.gradInBuf
}

func (p *GlobalAvgPool2D) Params() []float64    { return nil }
func (p *GlobalAvgPool2D) SetParams([]float64)  {}
func (p *GlobalAvgPool2D) Gradients() []float64 { return nil }
func (p *GlobalAvgPool2D) ClearGradients()      {}
func (p *GlobalAvgPool2D) InSize() int          { return p.channels * p.height * p.width }
func (p *GlobalAvgPool2D) OutSize() int         { return p.channels }
