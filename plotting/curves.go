package plotting

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
)

// LossCurve renders the per-iteration training scores as a line chart,
// with the validation scores alongside when present. The output format
// follows the file extension (.png, .svg, .pdf).
func LossCurve(train, valid []float64, path string) error {
	if len(train) == 0 {
		return pygbmErrors.NewValueError("plotting.LossCurve", "no scores to plot")
	}

	p := plot.New()
	p.Title.Text = "Training curve"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "score"
	p.Legend.Top = true
	p.Legend.Left = true

	series := []interface{}{"train", scoreXYs(train)}
	if len(valid) > 0 {
		series = append(series, "validation", scoreXYs(valid))
	}
	if err := plotutil.AddLines(p, series...); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// scoreXYs pairs each score with its one-based iteration number.
func scoreXYs(scores []float64) plotter.XYs {
	xys := make(plotter.XYs, len(scores))
	for i, s := range scores {
		xys[i] = plotter.XY{X: float64(i + 1), Y: s}
	}
	return xys
}
