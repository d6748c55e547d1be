package diag

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// NewEvolutionPlot creates a plot of the mean and standard deviation of the
// eigenvalue-evolution error for eigenfunction i.
// It returns error if the stats are nil, the index is out of range or the gonum plot
// fails to be created.
func NewEvolutionPlot(stats *EvolutionStats, i int) (*plot.Plot, error) {
	if stats == nil || stats.Mean == nil || stats.Std == nil {
		return nil, fmt.Errorf("invalid stats supplied")
	}

	rows, _ := stats.Mean.Dims()
	if i < 0 || i >= rows {
		return nil, fmt.Errorf("invalid eigenfunction index: %d", i)
	}

	p := plot.New()

	p.Title.Text = fmt.Sprintf("Eigenfunction %d", i)
	p.X.Label.Text = "t"
	p.Y.Label.Text = "normalized error"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	meanLine, err := plotter.NewLine(makeXYs(stats.T, stats.Mean, i))
	if err != nil {
		return nil, err
	}
	meanLine.LineStyle.Width = vg.Points(2)
	meanLine.LineStyle.Color = color.RGBA{R: 255, B: 128, A: 255}

	p.Add(meanLine)
	p.Legend.Add("mean", meanLine)

	stdLine, err := plotter.NewLine(makeXYs(stats.T, stats.Std, i))
	if err != nil {
		return nil, fmt.Errorf("failed to create line: %v", err)
	}
	stdLine.LineStyle.Width = vg.Points(1)
	stdLine.LineStyle.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}

	p.Add(stdLine)
	p.Legend.Add("standard dev", stdLine)

	p.Add(plotter.NewGrid())

	return p, nil
}

func makeXYs(t []float64, m *mat.Dense, row int) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i := range t {
		pts[i].X = t[i]
		pts[i].Y = m.At(row, i)
	}

	return pts
}
