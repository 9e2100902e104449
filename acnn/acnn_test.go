package acnn_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoACNN/acnn"
)

func TestConvolvePatchSums(t *testing.T) {
	x, err := acnn.FromSlice([]float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 1, 4, 4)
	require.NoError(t, err)
	k := acnn.NewTensor(1, 1, 3, 3).Apply(func(float64) float64 { return 1 })

	out, err := acnn.Convolve(x, k, acnn.Options{Stride: 1, Padding: acnn.Valid})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, out.Shape())
	assert.Equal(t, []float64{54, 63, 90, 99}, out.Data())
}

func TestConvolveErrors(t *testing.T) {
	_, err := acnn.Convolve(acnn.NewTensor(2, 4, 4), acnn.NewTensor(1, 3, 3, 3), acnn.Options{Stride: 1})
	assert.True(t, acnn.IsShapeError(err))

	_, err = acnn.ParsePadding("full")
	assert.True(t, acnn.IsConfigurationError(err))
}

func TestModelsBuildAndPersist(t *testing.T) {
	acnn.Seed(3)
	m, err := acnn.NewVanillaACNN(acnn.DefaultVanillaConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "params.gob")
	require.NoError(t, acnn.SaveParams(path, m))
	other, err := acnn.NewVanillaACNN(acnn.DefaultVanillaConfig())
	require.NoError(t, err)
	require.NoError(t, acnn.LoadParams(path, other))
	assert.Equal(t, m.Params(), other.Params())

	_, err = acnn.NewCifarResNet(4)
	assert.Error(t, err)
}
