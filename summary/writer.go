// Package summary records training scalars and images to a log
// directory. Scalars are appended to a csv file and charted as svg on
// close, images are written as png files named by tag and step.
package summary

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Bitsy-Chuck/crowdnet/img"
)

// Writer logs one stream of scalar and image summaries.
type Writer struct {
	dir    string
	csv    *os.File
	series map[string]plotter.XYs
	order  []string
}

// NewWriter creates the stream directory and opens the scalar log for
// appending.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "summary: create dir")
	}
	f, err := os.OpenFile(filepath.Join(dir, "scalars.csv"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "summary: open scalar log")
	}
	return &Writer{dir: dir, csv: f, series: map[string]plotter.XYs{}}, nil
}

// Dir returns the stream directory.
func (w *Writer) Dir() string {
	return w.dir
}

// AddScalar appends one named value at the given step.
func (w *Writer) AddScalar(name string, step int, value float64) error {
	if _, ok := w.series[name]; !ok {
		w.order = append(w.order, name)
	}
	w.series[name] = append(w.series[name], plotter.XY{X: float64(step), Y: value})
	_, err := fmt.Fprintf(w.csv, "%d,%s,%g\n", step, name, value)
	return errors.Wrap(err, "summary: write scalar")
}

// AddImage writes m as a png file named by tag and step.
func (w *Writer) AddImage(name string, step int, m image.Image) error {
	file := filepath.Join(w.dir, fmt.Sprintf("%s %d.png", fileName(name), step))
	return img.SavePNG(file, m)
}

// Close flushes the scalar log and writes one svg chart per scalar
// series recorded on this stream.
func (w *Writer) Close() error {
	for _, name := range w.order {
		if err := w.writeChart(name); err != nil {
			return err
		}
	}
	return errors.Wrap(w.csv.Close(), "summary: close scalar log")
}

func (w *Writer) writeChart(name string) error {
	pts := w.series[name]
	if len(pts) < 2 {
		return nil
	}
	p, err := plot.New()
	if err != nil {
		return errors.Wrap(err, "summary: new plot")
	}
	p.Title.Text = name
	p.X.Label.Text = "step"
	p.X.Padding, p.Y.Padding = 0, 0
	p.Add(plotter.NewGrid())
	l, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "summary: new line")
	}
	l.Width = 2
	l.Color = plotutil.Color(0)
	p.Add(l)
	file := filepath.Join(w.dir, fileName(name)+".svg")
	return errors.Wrap(p.Save(8*vg.Inch, 5*vg.Inch, file), "summary: save chart")
}

func fileName(name string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(name)
}
