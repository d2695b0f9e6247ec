package export

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/farecast/internal/analysis"
	"github.com/sells-group/farecast/internal/chart"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/report"
)

var start = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func testSeries(n int) model.PriceSeries {
	s := make(model.PriceSeries, n)
	for i := range s {
		s[i] = model.PricePoint{
			Date:     start.AddDate(0, 0, i),
			MinPrice: 4000 + 10*float64(i) + 200*math.Sin(2*math.Pi*float64(i)/30),
		}
	}
	return s
}

func fullReport(t *testing.T) *report.Report {
	t.Helper()
	q, err := model.ParseRouteQuery("LED", "MOW", "2024-07-01", "2024-09-30")
	require.NoError(t, err)

	series := testSeries(64)
	d, err := analysis.Decompose(series, analysis.DefaultPeriod)
	require.NoError(t, err)
	fc, err := analysis.FitForecast(series, analysis.DefaultForecastOptions())
	require.NoError(t, err)

	return &report.Report{
		Query:         q,
		Outcome:       report.OutcomeOK,
		Series:        series,
		Decomposition: d,
		Forecast:      fc,
		Charts: []*chart.Chart{
			{Kind: chart.KindHistory, PNG: []byte("png-bytes")},
		},
	}
}

func TestWriteSeriesCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, model.PriceSeries{
		{Date: start, MinPrice: 4800},
		{Date: start.AddDate(0, 0, 1), MinPrice: 5200.5},
	}))
	assert.Equal(t, "date,min_price\n2024-07-01,4800\n2024-07-02,5200.5\n", buf.String())

	got, err := ReadSeriesCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, start, got[0].Date)
	assert.InDelta(t, 5200.5, got[1].MinPrice, 1e-9)
}

func TestWriteSeriesCSV_EmptyWritesHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, nil))
	assert.Equal(t, "date,min_price\n", buf.String())
}

func TestReadSeriesCSV_Errors(t *testing.T) {
	t.Parallel()

	got, err := ReadSeriesCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadSeriesCSV(strings.NewReader("date,min_price\n07/01/2024,100\n"))
	assert.Error(t, err)
}

func TestWriteDecompositionCSV_BlankEdges(t *testing.T) {
	t.Parallel()

	r := fullReport(t)
	var buf bytes.Buffer
	require.NoError(t, WriteDecompositionCSV(&buf, r.Decomposition))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 65)
	assert.Equal(t, "date,observed,trend,seasonal,resid", lines[0])
	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, 5)
	assert.Empty(t, fields[2], "trend undefined at the edge")
	assert.Empty(t, fields[4])
	assert.NotEmpty(t, strings.Split(lines[16], ",")[2])
}

func TestWriteForecastCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteForecastCSV(&buf, fullReport(t).Forecast))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 31)
	assert.True(t, strings.HasPrefix(lines[1], "2024-09-03,"))

	assert.Error(t, WriteForecastCSV(&buf, nil))
}

func TestWriteReportXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteReportXLSX(path, fullReport(t)))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	for _, name := range []string{SheetSummary, SheetHistory, SheetDecomposition, SheetForecast} {
		assert.Contains(t, f.Sheet, name)
	}

	history := f.Sheet[SheetHistory]
	require.Len(t, history.Rows, 65)
	assert.Equal(t, "date", history.Rows[0].Cells[0].String())
	assert.Equal(t, "2024-07-01", history.Rows[1].Cells[0].String())
	v, err := history.Rows[1].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, 4000, v, 1e-9)

	assert.Len(t, f.Sheet[SheetForecast].Rows, 31)
}

func TestWriteReportXLSX_NoForecast(t *testing.T) {
	t.Parallel()

	r := fullReport(t)
	r.Outcome = report.OutcomeInsufficient
	r.Forecast = nil
	r.Decomposition = nil

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteReportXLSX(path, r))
	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.NotContains(t, f.Sheet, SheetForecast)
	assert.NotContains(t, f.Sheet, SheetDecomposition)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteReport(dir, fullReport(t))
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{
		"LED_MOW_history.png",
		"LED_MOW_history.csv",
		"LED_MOW_decomposition.csv",
		"LED_MOW_forecast.csv",
		"LED_MOW_report.xlsx",
	}, names)

	png, err := os.ReadFile(filepath.Join(dir, "LED_MOW_history.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(png))
}
