package visual

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotter"

	"github.com/FlavioCFOliveira/GoACNN/internal/data"
	"github.com/FlavioCFOliveira/GoACNN/internal/model"
	"github.com/FlavioCFOliveira/GoACNN/internal/train"
)

func smallModel(t *testing.T) *model.VanillaACNN {
	t.Helper()
	m, err := model.NewVanillaACNN(model.VanillaConfig{
		InputHeight:     6,
		InputWidth:      6,
		FeatureChannels: []int{1, 2},
		FeatureKernels:  []int{3},
		FeatureStrides:  []int{1},
		FilterChannels:  []int{1, 4},
		FilterKernels:   []int{3},
		FilterStrides:   []int{2},
		FCUnits:         []int{18, 3},
	})
	require.NoError(t, err)
	return m
}

func TestVisualizeWritesLayout(t *testing.T) {
	ds, err := data.Synthetic(3, 3, [3]int{1, 6, 6}, 0.1, 1)
	require.NoError(t, err)
	dir := t.TempDir()

	n, err := Visualize(smallModel(t), ds, dir, 5, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for k := 0; k < 3; k++ {
		img := filepath.Join(dir, fmt.Sprintf("Image_%d", k))
		assert.FileExists(t, filepath.Join(img, "img.jpg"))
		assert.FileExists(t, filepath.Join(img, "features_net1", "feature_1.jpg"))
		assert.NoFileExists(t, filepath.Join(img, "features_net1", "feature_2.jpg"))
		assert.FileExists(t, filepath.Join(img, "filters_net2", "filter_3.jpg"))
	}
	assert.NoDirExists(t, filepath.Join(dir, "Image_3"))

	f, err := os.Open(filepath.Join(dir, "Image_0", "features_net1", "feature_0.jpg"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 28, cfg.Width)
	assert.Equal(t, 28, cfg.Height)
}

func TestVisualizeCapsSamples(t *testing.T) {
	ds, err := data.Synthetic(12, 3, [3]int{1, 6, 6}, 0.1, 1)
	require.NoError(t, err)
	dir := t.TempDir()

	n, err := Visualize(smallModel(t), ds, dir, 50, Options{Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, MaxVisualize, n)
	assert.DirExists(t, filepath.Join(dir, "Image_9"))
	assert.NoDirExists(t, filepath.Join(dir, "Image_10"))
}

func TestVisualizeParallelNets(t *testing.T) {
	p, err := model.NewParallelNets(model.ParallelNetsConfig{
		InputHeight:      6,
		InputWidth:       6,
		FeatureChannels:  []int{1, 2},
		FilterChannels:   []int{1, 3},
		KernelSize:       3,
		JunctionChannels: 2,
	})
	require.NoError(t, err)
	ds, err := data.Synthetic(1, 1, [3]int{1, 6, 6}, 0.1, 1)
	require.NoError(t, err)
	dir := t.TempDir()

	_, err = Visualize(p, ds, dir, 1, DefaultOptions())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "Image_0", "filters_net2", "filter_2.jpg"))
}

func TestGrayClamps(t *testing.T) {
	img := gray([]float64{-1, 0.5, 2, math.NaN(), math.Inf(1), math.Inf(-1)}, 2, 3)
	assert.Equal(t, []uint8{0, 127, 255, 0, 255, 0}, img.Pix)
}

func TestAxisRange(t *testing.T) {
	lo, hi := axisRange(plotter.XYs{{Y: 0.3}, {Y: 1.2}}, lossMin, lossMax)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.5, hi)

	lo, hi = axisRange(plotter.XYs{{Y: 60}, {Y: 99}}, accMin, accMax)
	assert.Equal(t, 60.0, lo)
	assert.Equal(t, 100.0, hi)
}

func TestPlotHistory(t *testing.T) {
	dir := t.TempDir()
	records := []train.Record{
		{Step: 0, Loss: 2.3, Accuracy: 10},
		{Step: 10, Loss: 0.9, Accuracy: 70},
		{Step: 20, Loss: 0.4, Accuracy: 90},
	}
	path, err := PlotHistory(records, dir, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 2*cfg.Width, cfg.Height)

	_, err = PlotHistory(nil, dir, false)
	assert.Error(t, err)
}
