package report

import (
	"fmt"
	"io"

	"github.com/YuminosukeSato/diabench/dataset"
	"github.com/fatih/color"
)

// Console prints human-facing output: section titles, progress lines and
// the exploratory tables.
type Console struct {
	w io.Writer

	title    func(a ...any) string
	progress func(a ...any) string
	warn     func(a ...any) string
}

// NewConsole writes to w; colour escapes are dropped when noColor is set.
func NewConsole(w io.Writer, noColor bool) *Console {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
		return c.SprintFunc()
	}
	return &Console{
		w:        w,
		title:    mk(color.FgCyan, color.Bold),
		progress: mk(color.FgYellow),
		warn:     mk(color.FgRed),
	}
}

// Title prints a section heading.
func (c *Console) Title(text string) {
	fmt.Fprintf(c.w, "\n%s\n", c.title(text))
}

// Progress announces the search of a model family.
func (c *Console) Progress(name string) {
	fmt.Fprintln(c.w, c.progress(fmt.Sprintf("Optimizando %s...", name)))
}

// Warn prints a highlighted warning line.
func (c *Console) Warn(text string) {
	fmt.Fprintln(c.w, c.warn(text))
}

// Print writes text followed by a newline.
func (c *Console) Print(text string) {
	fmt.Fprintln(c.w, text)
}

// Info prints the shape and column summary of f.
func (c *Console) Info(f *dataset.Frame) {
	info := f.Info()
	c.Title("Información del conjunto de datos")
	fmt.Fprintf(c.w, "Registros: %d, Columnas: %d\n", info.Rows, len(info.Columns))
	rows := make([][]interface{}, len(info.Columns))
	for i, ci := range info.Columns {
		rows[i] = []interface{}{i, ci.Name, ci.NonNull, ci.Kind}
	}
	fmt.Fprint(c.w, Grid([]string{"#", "Columna", "No nulos", "Tipo"}, rows))
}

// Duplicates prints the duplicate check and, when present, the duplicated rows.
func (c *Console) Duplicates(f *dataset.Frame) {
	d := f.Duplicates()
	c.Title("Registros duplicados")
	c.Print(d.Message())
	if d.Count > 0 {
		c.Table(f.Rows(d.Indices), d.Indices)
	}
}

// Describe prints descriptive statistics of every numeric column.
func (c *Console) Describe(f *dataset.Frame) error {
	summary, err := f.Describe()
	if err != nil {
		return err
	}
	c.Title("Estadísticas descriptivas")
	stats := []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	headers := append([]string{""}, make([]string, len(summary))...)
	for j, s := range summary {
		headers[j+1] = s.Column
	}
	rows := make([][]interface{}, len(stats))
	for i, name := range stats {
		rows[i] = make([]interface{}, len(summary)+1)
		rows[i][0] = name
	}
	for j, s := range summary {
		for i, v := range []float64{float64(s.Count), s.Mean, s.Std, s.Min, s.Q25, s.Q50, s.Q75, s.Max} {
			rows[i][j+1] = v
		}
	}
	fmt.Fprint(c.w, Grid(headers, rows))
	return nil
}

// Head prints the first n rows of f.
func (c *Console) Head(f *dataset.Frame, n int) {
	head := f.Head(n)
	c.Title("Primeros registros")
	idx := make([]int, head.NRows())
	for i := range idx {
		idx[i] = i
	}
	c.Table(head, idx)
}

// Table prints f with the given row labels in the first column.
func (c *Console) Table(f *dataset.Frame, labels []int) {
	headers := append([]string{""}, f.Columns...)
	rows := make([][]interface{}, f.NRows())
	for i := range rows {
		row := f.Row(i)
		rows[i] = make([]interface{}, len(row)+1)
		rows[i][0] = labels[i]
		for j, v := range row {
			rows[i][j+1] = v
		}
	}
	fmt.Fprint(c.w, Grid(headers, rows))
}
