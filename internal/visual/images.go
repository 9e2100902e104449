// Package visual renders what the dual-branch models compute: per-sample
// feature and filter maps as JPEG images and training curves as PNG plots.
package visual

import (
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"

	"github.com/FlavioCFOliveira/GoACNN/internal/data"
	"github.com/FlavioCFOliveira/GoACNN/internal/model"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// MaxVisualize caps how many samples Visualize writes to disk.
const MaxVisualize = 10

// Extractor is a model exposing its branch outputs.
type Extractor interface {
	model.MapExtractor
	SetTraining(training bool)
}

// Options controls the saved image sizes as (width, height).
type Options struct {
	FeaturesSize image.Point
	FiltersSize  image.Point
	Seed         int64
}

// DefaultOptions resizes feature maps to 28x28 and filters to 12x12.
func DefaultOptions() Options {
	return Options{
		FeaturesSize: image.Pt(28, 28),
		FiltersSize:  image.Pt(12, 12),
		Seed:         1,
	}
}

// Visualize runs up to MaxVisualize randomly drawn samples of ds through m
// in eval mode and writes, for the k-th of them,
//
//	dir/Image_k/img.jpg
//	dir/Image_k/features_net1/feature_c.jpg   one per features channel
//	dir/Image_k/filters_net2/filter_j.jpg     one per filters channel
//
// It returns the number of samples written.
func Visualize(m Extractor, ds *data.Dataset, dir string, n int, opts Options) (int, error) {
	if n > MaxVisualize {
		n = MaxVisualize
	}
	if n > ds.Len() {
		n = ds.Len()
	}
	m.SetTraining(false)
	defer m.SetTraining(true)

	order := rand.New(rand.NewSource(opts.Seed)).Perm(ds.Len())
	for k := 0; k < n; k++ {
		x, _, err := ds.Batch(order[k : k+1])
		if err != nil {
			return k, err
		}
		maps, err := m.Extract(x)
		if err != nil {
			return k, errors.Wrapf(err, "visualize sample %d", order[k])
		}
		if err := saveSample(filepath.Join(dir, fmt.Sprintf("Image_%d", k)), x, maps, opts); err != nil {
			return k, err
		}
	}
	return n, nil
}

func saveSample(imgDir string, x *tensor.Tensor, maps map[string]*tensor.Tensor, opts Options) error {
	featuresDir := filepath.Join(imgDir, "features_net1")
	filtersDir := filepath.Join(imgDir, "filters_net2")
	for _, d := range []string{featuresDir, filtersDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.WithStack(err)
		}
	}

	h, w := x.Dim(2), x.Dim(3)
	if err := saveJPEG(filepath.Join(imgDir, "img.jpg"), gray(x.Data()[:h*w], h, w)); err != nil {
		return err
	}
	if err := saveChannels(featuresDir, "feature", maps[model.FeaturesKey], opts.FeaturesSize); err != nil {
		return err
	}
	return saveChannels(filtersDir, "filter", maps[model.FiltersKey], opts.FiltersSize)
}

// saveChannels writes every channel of a (1,C,H,W) map as prefix_c.jpg.
func saveChannels(dir, prefix string, t *tensor.Tensor, size image.Point) error {
	if t == nil || t.Rank() != 4 {
		return errors.Errorf("visualize: %s maps missing or not 4-D", prefix)
	}
	c, h, w := t.Dim(1), t.Dim(2), t.Dim(3)
	for i := 0; i < c; i++ {
		img := resize(gray(t.Data()[i*h*w:(i+1)*h*w], h, w), size)
		if err := saveJPEG(filepath.Join(dir, fmt.Sprintf("%s_%d.jpg", prefix, i)), img); err != nil {
			return err
		}
	}
	return nil
}

// gray maps values to 8-bit intensities as v*255, clamped to [0,255]. NaN
// maps to 0.
func gray(plane []float64, h, w int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range plane {
		v *= 255
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		img.Pix[i] = uint8(v)
	}
	return img
}

func resize(src *image.Gray, size image.Point) image.Image {
	if size.X <= 0 || size.Y <= 0 || src.Bounds().Size() == size {
		return src
	}
	dst := image.NewGray(image.Rectangle{Max: size})
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func saveJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 75}); err != nil {
		f.Close()
		return errors.Wrap(err, path)
	}
	return errors.Wrap(f.Close(), path)
}
