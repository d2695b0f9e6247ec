// Package export writes route reports to disk as CSV, XLSX and PNG files.
package export

import (
	"encoding/csv"
	"io"
	"math"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/farecast/internal/analysis"
	"github.com/sells-group/farecast/internal/model"
)

type seriesRow struct {
	Date     string  `csv:"date"`
	MinPrice float64 `csv:"min_price"`
}

type forecastRow struct {
	Date           string  `csv:"date"`
	PredictedPrice float64 `csv:"predicted_price"`
}

type decompositionRow struct {
	Date     string   `csv:"date"`
	Observed float64  `csv:"observed"`
	Trend    *float64 `csv:"trend,omitempty"`
	Seasonal float64  `csv:"seasonal"`
	Resid    *float64 `csv:"resid,omitempty"`
}

// WriteSeriesCSV writes date,min_price rows.
func WriteSeriesCSV(w io.Writer, series model.PriceSeries) error {
	rows := make([]seriesRow, len(series))
	for i, p := range series {
		rows[i] = seriesRow{Date: p.Date.Format(model.DateLayout), MinPrice: p.MinPrice}
	}
	return encode(w, rows, "series")
}

// WriteForecastCSV writes date,predicted_price rows.
func WriteForecastCSV(w io.Writer, fc *analysis.Forecast) error {
	if fc == nil {
		return eris.New("export: nil forecast")
	}
	rows := make([]forecastRow, len(fc.Points))
	for i, p := range fc.Points {
		rows[i] = forecastRow{Date: p.Date.Format(model.DateLayout), PredictedPrice: p.PredictedPrice}
	}
	return encode(w, rows, "forecast")
}

// WriteDecompositionCSV writes one row per observation; trend and resid are
// empty where undefined.
func WriteDecompositionCSV(w io.Writer, d *analysis.Decomposition) error {
	if d == nil {
		return eris.New("export: nil decomposition")
	}
	rows := make([]decompositionRow, len(d.Dates))
	for i, day := range d.Dates {
		rows[i] = decompositionRow{
			Date:     day.Format(model.DateLayout),
			Observed: d.Observed[i],
			Trend:    finite(d.Trend[i]),
			Seasonal: d.Seasonal[i],
			Resid:    finite(d.Resid[i]),
		}
	}
	return encode(w, rows, "decomposition")
}

// ReadSeriesCSV parses date,min_price rows as written by WriteSeriesCSV.
// Rows are returned in file order; use PriceSeries.Ordered to validate.
func ReadSeriesCSV(r io.Reader) (model.PriceSeries, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "export: read series header")
	}

	var rows []seriesRow
	if err := dec.Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "export: decode series")
	}

	series := make(model.PriceSeries, len(rows))
	for i, row := range rows {
		d, err := time.Parse(model.DateLayout, row.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "export: row %d date %q", i+1, row.Date)
		}
		series[i] = model.PricePoint{Date: d, MinPrice: row.MinPrice}
	}
	return series, nil
}

func encode[T any](w io.Writer, rows []T, what string) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return eris.Wrapf(err, "export: %s header", what)
		}
	} else if err := enc.Encode(rows); err != nil {
		return eris.Wrapf(err, "export: encode %s", what)
	}
	cw.Flush()
	return eris.Wrapf(cw.Error(), "export: flush %s", what)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
