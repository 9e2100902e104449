package visual

import (
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/FlavioCFOliveira/GoACNN/internal/train"
)

// Default axis ranges. They widen to fit data that falls outside.
const (
	lossMin, lossMax = 0, 1.5
	accMin, accMax   = 85, 100
)

// PlotHistory draws a 1:2 figure with the loss curve on top and the
// accuracy curve below, and writes it to dir/train.png (or test.png).
func PlotHistory(records []train.Record, dir string, test bool) (string, error) {
	if len(records) == 0 {
		return "", errors.New("plot: no records")
	}
	name, kind := "train", "Train"
	if test {
		name, kind = "test", "Test"
	}

	losses := make(plotter.XYs, len(records))
	accs := make(plotter.XYs, len(records))
	for i, r := range records {
		losses[i] = plotter.XY{X: float64(r.Step), Y: r.Loss}
		accs[i] = plotter.XY{X: float64(r.Step), Y: r.Accuracy}
	}
	lastStep := math.Max(1, float64(records[len(records)-1].Step))

	lossLo, lossHi := axisRange(losses, lossMin, lossMax)
	top, err := curve(losses, kind+" Loss", "Loss", lastStep, lossLo, lossHi)
	if err != nil {
		return "", err
	}
	accLo, accHi := axisRange(accs, accMin, accMax)
	bottom, err := curve(accs, kind+" Accuracy", "Acc", lastStep, accLo, accHi)
	if err != nil {
		return "", err
	}

	img := vgimg.New(5*vg.Inch, 10*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadTop:    vg.Points(6),
		PadBottom: vg.Points(6),
		PadLeft:   vg.Points(6),
		PadRight:  vg.Points(6),
		PadY:      vg.Points(18),
	}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	path := filepath.Join(dir, name+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return "", errors.Wrap(err, path)
	}
	return path, errors.Wrap(f.Close(), path)
}

func curve(xys plotter.XYs, title, ylabel string, lastStep, lo, hi float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Steps"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, errors.Wrap(err, "plot")
	}
	p.Add(line)
	p.X.Min, p.X.Max = 0, lastStep
	p.Y.Min, p.Y.Max = lo, hi
	return p, nil
}

// axisRange returns [lo,hi] widened to include every finite y value.
func axisRange(xys plotter.XYs, lo, hi float64) (float64, float64) {
	for _, xy := range xys {
		if math.IsNaN(xy.Y) || math.IsInf(xy.Y, 0) {
			continue
		}
		lo = math.Min(lo, xy.Y)
		hi = math.Max(hi, xy.Y)
	}
	return lo, hi
}
