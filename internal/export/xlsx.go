package export

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/report"
)

// Sheet names in a report workbook.
const (
	SheetSummary       = "summary"
	SheetHistory       = "history"
	SheetDecomposition = "decomposition"
	SheetForecast      = "forecast"
)

// WriteReportXLSX saves a workbook with a summary sheet, the price history
// and, when present, the decomposition and forecast.
func WriteReportXLSX(path string, r *report.Report) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addRow(summary, "origin", r.Query.Origin)
	addRow(summary, "destination", r.Query.Destination)
	addRow(summary, "start", r.Query.StartDate())
	addRow(summary, "end", r.Query.EndDate())
	addRow(summary, "outcome", string(r.Outcome))
	if s, ok := r.Stats(); ok {
		addNumberRow(summary, "days", float64(s.Days))
		addNumberRow(summary, "min_price", s.Min)
		addNumberRow(summary, "mean_price", s.Mean)
		addNumberRow(summary, "max_price", s.Max)
	}
	if r.Forecast != nil {
		addNumberRow(summary, "holdout_rmse", r.Forecast.HoldoutRMSE)
	}

	history, err := f.AddSheet(SheetHistory)
	if err != nil {
		return eris.Wrap(err, "export: add history sheet")
	}
	addRow(history, "date", "min_price")
	for _, p := range r.Series {
		row := history.AddRow()
		row.AddCell().SetString(p.Date.Format(model.DateLayout))
		setNumber(row.AddCell(), p.MinPrice)
	}

	if d := r.Decomposition; d != nil {
		sheet, err := f.AddSheet(SheetDecomposition)
		if err != nil {
			return eris.Wrap(err, "export: add decomposition sheet")
		}
		addRow(sheet, "date", "observed", "trend", "seasonal", "resid")
		for i, day := range d.Dates {
			row := sheet.AddRow()
			row.AddCell().SetString(day.Format(model.DateLayout))
			for _, v := range []float64{d.Observed[i], d.Trend[i], d.Seasonal[i], d.Resid[i]} {
				setNumber(row.AddCell(), v)
			}
		}
	}

	if fc := r.Forecast; fc != nil {
		sheet, err := f.AddSheet(SheetForecast)
		if err != nil {
			return eris.Wrap(err, "export: add forecast sheet")
		}
		addRow(sheet, "date", "predicted_price")
		for _, p := range fc.Points {
			row := sheet.AddRow()
			row.AddCell().SetString(p.Date.Format(model.DateLayout))
			setNumber(row.AddCell(), p.PredictedPrice)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addNumberRow(sheet *xlsx.Sheet, label string, v float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	setNumber(row.AddCell(), v)
}

// setNumber leaves the cell blank for NaN.
func setNumber(cell *xlsx.Cell, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	cell.SetFloat(v)
}
