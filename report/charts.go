package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/YuminosukeSato/diabench/evaluation"
	"github.com/YuminosukeSato/diabench/metrics"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Charts writes PNG charts into a directory.
type Charts struct {
	dir string
}

// NewCharts creates dir if needed.
func NewCharts(dir string) (*Charts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create chart directory %s", dir)
	}
	return &Charts{dir: dir}, nil
}

// slug turns a model name into a file name fragment.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (c *Charts) save(p *plot.Plot, w, h vg.Length, file string) (string, error) {
	path := filepath.Join(c.dir, file)
	if err := p.Save(w, h, path); err != nil {
		return "", errors.Wrapf(err, "save chart %s", path)
	}
	return path, nil
}

// blues runs from near-white to a saturated blue.
type blues int

func (n blues) Colors() []color.Color {
	out := make([]color.Color, int(n))
	for i := range out {
		t := float64(i) / float64(int(n)-1)
		out[i] = color.RGBA{
			R: uint8(247 - t*(247-33)),
			G: uint8(251 - t*(251-113)),
			B: uint8(255 - t*(255-181)),
			A: 255,
		}
	}
	return out
}

// confusionGrid exposes a 2×2 confusion matrix to the heat map with the
// first actual class on the top row.
type confusionGrid struct {
	cm *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	r, c = g.cm.Dims()
	return c, r
}

func (g confusionGrid) Z(c, r int) float64 {
	rows, _ := g.cm.Dims()
	return g.cm.At(rows-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

// Confusion draws the annotated confusion heat map of rec.
func (c *Charts) Confusion(rec *evaluation.ResultRecord) (string, error) {
	if rec.Confusion == nil {
		return "", errors.NewValueError("Charts.Confusion", rec.Model+": no confusion matrix")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Matriz de Confusión - %s", rec.Model)
	p.X.Label.Text = "Predicción"
	p.Y.Label.Text = "Real"

	grid := confusionGrid{cm: rec.Confusion}
	hm := plotter.NewHeatMap(grid, blues(64))
	hm.Min, hm.Max = 0, mat.Max(rec.Confusion)
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	cols, rows := grid.Dims()
	labels := plotter.XYLabels{}
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(col), Y: float64(r)})
			labels.Labels = append(labels.Labels, fmt.Sprintf("%d", int(grid.Z(col, r))))
		}
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return "", errors.Wrap(err, "confusion labels")
	}
	p.Add(l)

	xTicks := make([]plot.Tick, cols)
	for col := range xTicks {
		xTicks[col] = plot.Tick{Value: float64(col), Label: fmt.Sprintf("%d", col)}
	}
	yTicks := make([]plot.Tick, rows)
	for r := range yTicks {
		yTicks[r] = plot.Tick{Value: float64(r), Label: fmt.Sprintf("%d", rows-1-r)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	return c.save(p, 6*vg.Inch, 4*vg.Inch, "confusion_"+slug(rec.Model)+".png")
}

// ROC draws the ROC curve of rec against the chance diagonal. Records
// without probabilities are an error.
func (c *Charts) ROC(rec *evaluation.ResultRecord) (string, error) {
	if rec.YProba == nil || rec.AUC == nil {
		return "", errors.NewValueError("Charts.ROC", rec.Model+": no probabilities")
	}
	fpr, tpr, _, err := metrics.ROCCurve(rec.YTest, rec.YProba)
	if err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Curva ROC - %s", rec.Model)
	p.X.Label.Text = "Tasa de Falsos Positivos"
	p.Y.Label.Text = "Tasa de Verdaderos Positivos"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(fpr))
	for i := range fpr {
		pts[i].X, pts[i].Y = fpr[i], tpr[i]
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return "", errors.Wrap(err, "roc curve")
	}
	curve.LineStyle.Width = vg.Points(1.5)
	curve.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	diagonal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return "", errors.Wrap(err, "roc diagonal")
	}
	diagonal.LineStyle.Color = color.Black
	diagonal.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(curve, diagonal)
	p.Legend.Add(fmt.Sprintf("%s (AUC = %.2f)", rec.Model, *rec.AUC), curve)

	return c.save(p, 8*vg.Inch, 6*vg.Inch, "roc_"+slug(rec.Model)+".png")
}

// AccuracyBars compares test accuracy across models.
func (c *Charts) AccuracyBars(results []evaluation.ResultRecord) (string, error) {
	names := make([]string, len(results))
	values := make(plotter.Values, len(results))
	for i, r := range results {
		names[i], values[i] = r.Model, r.Accuracy
	}
	return c.bars("Comparación de Exactitud entre Modelos Optimizados", "Exactitud", names, values, "exactitud.png")
}

// AUCBars compares AUC across models; models without AUC are left out.
func (c *Charts) AUCBars(results []evaluation.ResultRecord) (string, error) {
	var names []string
	var values plotter.Values
	for _, r := range results {
		if r.AUC == nil {
			continue
		}
		names = append(names, r.Model)
		values = append(values, *r.AUC)
	}
	if len(values) == 0 {
		return "", errors.NewValueError("Charts.AUCBars", "no model reported an AUC")
	}
	return c.bars("Comparación de AUC entre Modelos Optimizados", "AUC", names, values, "auc.png")
}

func (c *Charts) bars(title, ylabel string, names []string, values plotter.Values, file string) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Modelo"
	p.Y.Label.Text = ylabel
	p.Y.Min, p.Y.Max = 0, 1

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return "", errors.Wrap(err, "bar chart")
	}
	bars.Color = color.RGBA{R: 76, G: 114, B: 176, A: 255}
	p.Add(bars)
	p.NominalX(names...)

	return c.save(p, 12*vg.Inch, 6*vg.Inch, file)
}
