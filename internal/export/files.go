package export

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/report"
)

// WriteReport writes every artifact of r into dir: chart PNGs, CSVs and a
// workbook. It returns the paths written.
func WriteReport(dir string, r *report.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}
	prefix := r.Query.Origin + "_" + r.Query.Destination
	var written []string

	for _, c := range r.Charts {
		path := filepath.Join(dir, c.Filename(r.Query))
		if err := os.WriteFile(path, c.PNG, 0o644); err != nil {
			return written, eris.Wrapf(err, "export: write %s", path)
		}
		written = append(written, path)
	}

	csvs := []struct {
		name  string
		skip  bool
		write func(io.Writer) error
	}{
		{"history.csv", r.Series.Len() == 0, func(w io.Writer) error { return WriteSeriesCSV(w, r.Series) }},
		{"decomposition.csv", r.Decomposition == nil, func(w io.Writer) error { return WriteDecompositionCSV(w, r.Decomposition) }},
		{"forecast.csv", r.Forecast == nil, func(w io.Writer) error { return WriteForecastCSV(w, r.Forecast) }},
	}
	for _, c := range csvs {
		if c.skip {
			continue
		}
		path := filepath.Join(dir, prefix+"_"+c.name)
		if err := writeFile(path, c.write); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	xlsxPath := filepath.Join(dir, prefix+"_report.xlsx")
	if err := WriteReportXLSX(xlsxPath, r); err != nil {
		return written, err
	}
	written = append(written, xlsxPath)

	zap.L().Info("report exported",
		zap.String("component", "export"),
		zap.String("dir", dir),
		zap.Int("files", len(written)),
	)
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
