package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSliceShapeMismatch(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, 2, 2)
	require.Error(t, err)

	_, err = FromSlice([]float64{1}, 0)
	require.Error(t, err)
}

func TestReshapeInfersDimension(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	y, err := x.Reshape(3, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, y.Shape())

	// Views share storage.
	y.Set(42, 0, 0)
	assert.Equal(t, 42.0, x.At(0, 0))

	_, err = x.Reshape(4, -1)
	assert.Error(t, err)
}

func TestSampleIsCapacityLimited(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 1, 2, 2)
	require.NoError(t, err)

	s0, err := x.Sample(0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, s0.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4}, s0.Data())
	assert.Equal(t, 4, cap(s0.Data()))

	s1, err := x.Sample(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6, 7, 8}, s1.Data())

	_, err = x.Sample(2)
	assert.Error(t, err)
}

func TestStack(t *testing.T) {
	a, _ := FromSlice([]float64{1, 2}, 1, 2)
	b, _ := FromSlice([]float64{3, 4}, 1, 2)
	s, err := Stack([]*Tensor{a, b})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2}, s.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Data())

	c, _ := FromSlice([]float64{1, 2}, 2, 1)
	_, err = Stack([]*Tensor{a, c})
	assert.Error(t, err)
}

func TestPadAndCrop(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3, 4}, 1, 2, 2)
	require.NoError(t, err)

	p, err := x.Pad2D(1, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 4}, p.Shape())
	assert.Equal(t, []float64{
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 3, 4, 0,
		0, 0, 0, 0,
	}, p.Data())

	c, err := p.Crop2D(1, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, x.Data(), c.Data())

	_, err = x.Pad2D(-1, 0, 0, 0)
	assert.Error(t, err)
}

func TestMatrixView(t *testing.T) {
	x, _ := FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	m, err := x.Matrix()
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 6.0, m.At(1, 2))

	y, _ := FromSlice([]float64{1, 2}, 2)
	_, err = y.Matrix()
	assert.Error(t, err)
}
