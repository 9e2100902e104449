package dynconv

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

func randTensor(rng *rand.Rand, shape ...int) *tensor.Tensor {
	t := tensor.New(shape...)
	for i := range t.Data() {
		t.Data()[i] = rng.Float64()*2 - 1
	}
	return t
}

func ones(shape ...int) *tensor.Tensor {
	return tensor.New(shape...).Apply(func(float64) float64 { return 1 })
}

// direct computes y[o,i,j] = sum_{c,p,q} k[o,c,p,q] * x[c, i*s+p, j*s+q]
// over an already padded x.
func direct(x, k *tensor.Tensor, stride int) *tensor.Tensor {
	c, h, w := x.Dim(0), x.Dim(1), x.Dim(2)
	cOut, kh, kw := k.Dim(0), k.Dim(2), k.Dim(3)
	hOut, wOut := (h-kh)/stride+1, (w-kw)/stride+1
	y := tensor.New(cOut, hOut, wOut)
	for o := 0; o < cOut; o++ {
		for i := 0; i < hOut; i++ {
			for j := 0; j < wOut; j++ {
				sum := 0.0
				for ch := 0; ch < c; ch++ {
					for p := 0; p < kh; p++ {
						for q := 0; q < kw; q++ {
							sum += k.At(o, ch, p, q) * x.At(ch, i*stride+p, j*stride+q)
						}
					}
				}
				y.Set(sum, o, i, j)
			}
		}
	}
	return y
}

func TestConvolveTwoByTwoOnes(t *testing.T) {
	x, err := tensor.FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, 1, 3, 3)
	require.NoError(t, err)

	y, err := Convolve(x, ones(1, 1, 2, 2), Options{Stride: 1, Padding: Valid})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, y.Shape())
	assert.Equal(t, []float64{12, 16, 24, 28}, y.Data())
}

func TestConvolveThreeByThreeOnes(t *testing.T) {
	data := make([]float64, 16)
	for i := range data {
		data[i] = float64(i)
	}
	x, err := tensor.FromSlice(data, 1, 4, 4)
	require.NoError(t, err)

	y, err := Convolve(x, ones(1, 1, 3, 3), Options{Stride: 1, Padding: Valid})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 2}, y.Shape())

	// Top-left patch: 0+1+2+4+5+6+8+9+10
	assert.Equal(t, []float64{45, 54, 81, 90}, y.Data())
}

func TestConvolveMatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cases := []struct {
		name         string
		c, h, w      int
		cOut, kh, kw int
		stride       int
	}{
		{"single channel", 1, 5, 5, 1, 3, 3, 1},
		{"multi channel", 3, 6, 7, 4, 3, 2, 1},
		{"strided", 2, 9, 8, 3, 3, 3, 2},
		{"1x1 kernel", 5, 4, 4, 2, 1, 1, 1},
		{"full receptive field", 2, 4, 4, 3, 4, 4, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := randTensor(rng, tc.c, tc.h, tc.w)
			k := randTensor(rng, tc.cOut, tc.c, tc.kh, tc.kw)

			got, err := Convolve(x, k, Options{Stride: tc.stride, Padding: Valid})
			require.NoError(t, err)
			want := direct(x, k, tc.stride)
			require.Equal(t, want.Shape(), got.Shape())
			assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-9)
		})
	}
}

func TestSamePaddingPreservesSpatialSize(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, k := range []int{1, 3, 5, 7} {
		x := randTensor(rng, 2, 9, 8)
		y, err := Convolve(x, randTensor(rng, 4, 2, k, k), Options{Stride: 1, Padding: Same})
		require.NoError(t, err)
		assert.Equal(t, []int{4, 9, 8}, y.Shape(), "kernel %d", k)
	}
}

func TestSamePaddingMatchesExplicitPad(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := randTensor(rng, 2, 6, 6)
	k := randTensor(rng, 3, 2, 5, 5)

	got, err := Convolve(x, k, Options{Stride: 1, Padding: Same})
	require.NoError(t, err)
	xp, err := x.Pad2D(2, 2, 2, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, direct(xp, k, 1).Data(), got.Data(), 1e-9)
}

func TestSamePaddingEvenKernelTruncates(t *testing.T) {
	x := ones(1, 6, 6)

	// (4-1)/2 = 1 per side: 6+2-4+1 = 5
	y, err := Convolve(x, ones(1, 1, 4, 4), Options{Stride: 1, Padding: Same})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 5}, y.Shape())

	// (2-1)/2 = 0: behaves like valid
	y, err = Convolve(x, ones(1, 1, 2, 2), Options{Stride: 1, Padding: Same})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 5}, y.Shape())
}

func TestOutputChannelsFollowKernels(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, cIn := range []int{1, 3, 8} {
		for _, cOut := range []int{1, 2, 6} {
			y, err := Convolve(randTensor(rng, cIn, 5, 5), randTensor(rng, cOut, cIn, 3, 3), Options{Stride: 1})
			require.NoError(t, err)
			assert.Equal(t, cOut, y.Dim(0))
		}
	}
}

func TestChannelMismatchIsShapeError(t *testing.T) {
	_, err := Convolve(ones(3, 5, 5), ones(2, 2, 3, 3), Options{Stride: 1})
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
}

func TestKernelLargerThanInputIsShapeError(t *testing.T) {
	_, err := Convolve(ones(1, 3, 3), ones(1, 1, 4, 4), Options{Stride: 1, Padding: Valid})
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
}

func TestWrongRankIsShapeError(t *testing.T) {
	_, err := Convolve(ones(1, 1, 3, 3), ones(1, 1, 2, 2), Options{Stride: 1})
	assert.True(t, IsShapeError(err))

	_, err = Convolve(ones(1, 3, 3), ones(1, 2, 2), Options{Stride: 1})
	assert.True(t, IsShapeError(err))
}

func TestConfigurationErrors(t *testing.T) {
	_, err := ParsePadding("full")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))

	_, err = Convolve(ones(1, 3, 3), ones(1, 1, 2, 2), Options{Stride: 1, Padding: Padding(9)})
	assert.True(t, IsConfigurationError(err))

	_, err = Convolve(ones(1, 3, 3), ones(1, 1, 2, 2), Options{Stride: 0})
	assert.True(t, IsConfigurationError(err))
}

func TestParsePadding(t *testing.T) {
	p, err := ParsePadding("same")
	require.NoError(t, err)
	assert.Equal(t, Same, p)
	assert.Equal(t, "same", p.String())

	p, err = ParsePadding("valid")
	require.NoError(t, err)
	assert.Equal(t, Valid, p)

	p, err = ParsePadding("2")
	require.NoError(t, err)
	assert.Equal(t, Fixed(2), p)
	assert.Equal(t, "2", p.String())

	_, err = ParsePadding("-1")
	assert.True(t, IsConfigurationError(err))
}

func TestFixedPadding(t *testing.T) {
	// A kernel as large as the input with 2 zeros per side gives 5x5 maps.
	y, err := Convolve(ones(1, 3, 3), ones(1, 1, 3, 3), Options{Stride: 1, Padding: Fixed(2)})
	require.NoError(t, err)
	require.Equal(t, []int{1, 5, 5}, y.Shape())
	assert.Equal(t, 1.0, y.At(0, 0, 0))
	assert.Equal(t, 6.0, y.At(0, 1, 2))
	assert.Equal(t, 9.0, y.At(0, 2, 2))
	assert.Equal(t, 1.0, y.At(0, 4, 4))

	ho, wo, err := OutputSize(28, 28, 28, 28, 1, Fixed(2))
	require.NoError(t, err)
	assert.Equal(t, 5, ho)
	assert.Equal(t, 5, wo)

	_, err = Convolve(ones(1, 3, 3), ones(1, 1, 3, 3), Options{Stride: 1, Padding: Fixed(-1)})
	assert.True(t, IsConfigurationError(err))
}

func TestConvolveIsDeterministicAndPure(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x := randTensor(rng, 3, 7, 7)
	k := randTensor(rng, 4, 3, 3, 3)
	xBefore := x.Clone()
	kBefore := k.Clone()

	a, err := Convolve(x, k, Options{Stride: 2, Padding: Same})
	require.NoError(t, err)
	b, err := Convolve(x, k, Options{Stride: 2, Padding: Same})
	require.NoError(t, err)

	assert.Equal(t, a.Data(), b.Data())
	assert.Equal(t, xBefore.Data(), x.Data())
	assert.Equal(t, kBefore.Data(), k.Data())
}

func TestActivationAppliedLast(t *testing.T) {
	x, err := tensor.FromSlice([]float64{1, -2, 3, -4}, 1, 2, 2)
	require.NoError(t, err)
	k, err := tensor.FromSlice([]float64{-1}, 1, 1, 1, 1)
	require.NoError(t, err)

	y, err := Convolve(x, k, Options{Stride: 1, Activation: activations.ReLU{}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 0, 4}, y.Data())
}

type offlineDevice struct{ CPUDevice }

func (offlineDevice) IsAvailable() bool { return false }

func TestUnavailableDeviceFails(t *testing.T) {
	e := NewEngine(&offlineDevice{})
	_, err := e.Convolve(ones(1, 3, 3), ones(1, 1, 2, 2), Options{Stride: 1})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestIm2ColRowOrder(t *testing.T) {
	x, err := tensor.FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, 1, 3, 3)
	require.NoError(t, err)

	col, hOut, wOut, err := Im2Col(x, 2, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, hOut)
	assert.Equal(t, 2, wOut)
	assert.Equal(t, []int{4, 4}, col.Shape())
	assert.Equal(t, []float64{
		1, 2, 4, 5,
		2, 3, 5, 6,
		4, 5, 7, 8,
		5, 6, 8, 9,
	}, col.Data())
}

func TestCol2ImIsAdjointOfIm2Col(t *testing.T) {
	// <im2col(x), y> == <x, col2im(y)>
	rng := rand.New(rand.NewSource(13))
	x := randTensor(rng, 2, 6, 5)
	col, _, _, err := Im2Col(x, 3, 2, 2)
	require.NoError(t, err)
	y := randTensor(rng, col.Shape()...)

	back, err := Col2Im(y, 2, 6, 5, 3, 2, 2)
	require.NoError(t, err)

	lhs, rhs := 0.0, 0.0
	for i, v := range col.Data() {
		lhs += v * y.Data()[i]
	}
	for i, v := range x.Data() {
		rhs += v * back.Data()[i]
	}
	assert.InDelta(t, lhs, rhs, 1e-9)
}
