package dataset

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `Id,Edad,Sexo,Glucosa,HbA1c,Colesterol,Trigliceridos,HDL,LDL,IMC,Diabetes
1,45,M,110,5.9,190,150,45,120,27.5,0
2,60,F,180,7.8,240,210,38,160,31.2,1
3,38,F,95,5.2,170,120,55,100,23.1,0
2,60,F,180,7.8,240,210,38,160,31.2,1
`

func TestReadCSVAndXY(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV), "mem.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, f.NRows())
	assert.Equal(t, 11, len(f.Columns))

	X, y, err := f.XY(Features, Target)
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 8, c)
	// columns follow the feature order, not the file order
	assert.Equal(t, 45.0, X.At(0, 0))
	assert.Equal(t, 110.0, X.At(0, 1))
	assert.Equal(t, 31.2, X.At(1, 7))
	assert.Equal(t, []float64{0, 1, 0, 1}, []float64{y.At(0, 0), y.At(1, 0), y.At(2, 0), y.At(3, 0)})
}

func TestSelectMissingColumns(t *testing.T) {
	f := NewFrame("mem", []string{"Edad", "Glucosa", "Diabetes"}, [][]string{{"1", "2", "0"}})
	_, err := f.Select(append(Features, Target)...)
	require.Error(t, err)

	var mce *errors.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"HbA1c", "Colesterol", "Trigliceridos", "HDL", "LDL", "IMC"}, mce.Missing)
	assert.Contains(t, err.Error(), "HbA1c, Colesterol")

	sel, err := f.Select("Diabetes", "Edad")
	require.NoError(t, err)
	assert.Equal(t, []string{"Diabetes", "Edad"}, sel.Columns)
	assert.Equal(t, []string{"0", "1"}, sel.Row(0))
}

func TestXYCellErrors(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]string
		row    int
		column string
	}{
		{"non numeric feature", [][]string{{"1", "0"}, {"abc", "1"}}, 2, "Edad"},
		{"missing feature", [][]string{{"", "0"}}, 1, "Edad"},
		{"nan feature", [][]string{{"1", "0"}, {"NaN", "1"}}, 2, "Edad"},
		{"infinite feature", [][]string{{"+Inf", "0"}}, 1, "Edad"},
		{"label not binary", [][]string{{"1", "0"}, {"2", "1"}, {"3", "2"}}, 3, "Diabetes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrame("mem", []string{"Edad", "Diabetes"}, tt.rows)
			_, _, err := f.XY([]string{"Edad"}, "Diabetes")
			var ce *errors.CellError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.row, ce.Row)
			assert.Equal(t, tt.column, ce.Column)
		})
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos.xlsx")
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	rows := [][]interface{}{
		{"Edad", "Glucosa", "HbA1c", "Colesterol", "Trigliceridos", "HDL", "LDL", "IMC", "Diabetes"},
		{50, 120, 6.1, 200, 160, 40, 130, 28.4, 1},
		{33, 90, 5.0, 160, 100, 60, 90, 22.0, 0},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	f, err := Load(path)
	require.NoError(t, err)
	X, y, err := f.XY(Features, Target)
	require.NoError(t, err)
	assert.Equal(t, 50.0, X.At(0, 0))
	assert.Equal(t, 28.4, X.At(0, 7))
	assert.Equal(t, 0.0, y.At(1, 0))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "datos.parquet"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader(""), "empty.csv")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	f := NewFrame("mem", []string{"a", "b", "c", "d"}, [][]string{
		{"1", "1.5", "x", ""},
		{"2", "2", "y", ""},
		{"", "3", "1", ""},
	})
	info := f.Info()
	assert.Equal(t, 3, info.Rows)
	assert.Equal(t, []ColumnInfo{
		{Name: "a", NonNull: 2, Kind: KindInt},
		{Name: "b", NonNull: 3, Kind: KindFloat},
		{Name: "c", NonNull: 3, Kind: KindObject},
		{Name: "d", NonNull: 0, Kind: KindObject},
	}, info.Columns)
}

func TestDuplicates(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV), "mem.csv")
	require.NoError(t, err)

	d := f.Duplicates()
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, []int{3}, d.Indices)
	assert.Contains(t, d.Message(), "Número de registros duplicados: 1")
	assert.Equal(t, 1, f.Rows(d.Indices).NRows())

	clean := f.Head(3).Duplicates()
	assert.Equal(t, 0, clean.Count)
	assert.Contains(t, clean.Message(), "No se encontraron registros duplicados.")
}

func TestHead(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV), "mem.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, f.Head(0).NRows())
	assert.Equal(t, 2, f.Head(2).NRows())
	assert.Equal(t, "45", f.Head(1).Row(0)[1])
}

func TestDescribe(t *testing.T) {
	f := NewFrame("mem", []string{"a", "name"}, [][]string{{"1", "x"}, {"2", "y"}, {"3", "z"}, {"4", "w"}})
	summary, err := f.Describe()
	require.NoError(t, err)
	require.Len(t, summary, 1)

	s := summary[0]
	want := []float64{2.5, math.Sqrt(5.0 / 3.0), 1, 1.75, 2.5, 3.25, 4}
	got := []float64{s.Mean, s.Std, s.Min, s.Q25, s.Q50, s.Q75, s.Max}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("statistic %d: got %v, want %v", i, got[i], want[i])
		}
	}
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, "a", s.Column)
}
