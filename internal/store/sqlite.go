package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/farecast/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// ErrIncompatibleSchema reports an existing flights table whose columns do
// not match the current layout, as left behind by older exports.
var ErrIncompatibleSchema = eris.New("sqlite: incompatible flights table")

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const refreshLogMigration = `
CREATE TABLE IF NOT EXISTS refresh_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	table_name   TEXT NOT NULL,
	status       TEXT NOT NULL,
	rows         INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TEXT NOT NULL,
	completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_refresh_log_table ON refresh_log(table_name);
CREATE INDEX IF NOT EXISTS idx_flights_route ON flights(origin_iata, destination_iata);
`

const airportsCityIndex = `CREATE INDEX IF NOT EXISTS idx_airports_city ON airports(city_iata_code)`

// EnsureSchema creates the flights and refresh_log tables plus the route
// index. The airports city index is only created when the airports table
// exists; reference replaces drop it, so callers run this after a refresh.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store"))

	if _, err := s.db.ExecContext(ctx, createTableSQL(model.KindFlights.Table(), model.FlightColumns, true)); err != nil {
		return eris.Wrap(err, "sqlite: create flights table")
	}
	missing, err := s.missingColumns(ctx, model.KindFlights.Table(), model.FlightColumns)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		log.Error("existing flights table has an incompatible layout; point store.database_url at a new file",
			zap.Strings("missing_columns", missing))
		return eris.Wrapf(ErrIncompatibleSchema, "flights table is missing %s", strings.Join(missing, ", "))
	}
	if _, err := s.db.ExecContext(ctx, refreshLogMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}

	exists, err := s.tableExists(ctx, model.KindAirports.Table())
	if err != nil {
		return err
	}
	if !exists {
		log.Info("airports table not found, skipping city index")
		return nil
	}
	if _, err := s.db.ExecContext(ctx, airportsCityIndex); err != nil {
		return eris.Wrap(err, "sqlite: create airports city index")
	}
	return nil
}

// ReplaceTable drops and recreates t.Name from t.Columns and inserts every
// row in one transaction. An empty table is a no-op and leaves the existing
// data untouched.
func (s *SQLiteStore) ReplaceTable(ctx context.Context, t model.Table) (int64, error) {
	log := zap.L().With(zap.String("component", "store"), zap.String("table", t.Name))

	if t.Empty() {
		log.Info("no rows to save, table left unchanged")
		return 0, nil
	}
	if err := validateTable(t); err != nil {
		return 0, err
	}

	rows := stringifyRows(t)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(t.Name))); err != nil {
		return 0, eris.Wrapf(err, "sqlite: drop %s", t.Name)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(t.Name, t.Columns, false)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: create %s", t.Name)
	}
	n, err := insertRows(ctx, tx, t.Name, t.ColumnNames(), rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit replace %s", t.Name)
	}

	log.Info("table replaced", zap.Int64("rows", n))
	return n, nil
}

// InsertFlights appends price quotes to the flights table, creating it if
// needed. Existing rows are never replaced.
func (s *SQLiteStore) InsertFlights(ctx context.Context, flights []model.FlightPrice) (int64, error) {
	if len(flights) == 0 {
		zap.L().Info("no flight quotes to save", zap.String("component", "store"))
		return 0, nil
	}

	t := model.Table{Name: model.KindFlights.Table(), Columns: model.FlightColumns}
	for _, f := range flights {
		t.Rows = append(t.Rows, f.Row())
	}
	rows := stringifyRows(t)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert flights")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, createTableSQL(t.Name, t.Columns, true)); err != nil {
		return 0, eris.Wrap(err, "sqlite: create flights table")
	}
	n, err := insertRows(ctx, tx, t.Name, t.ColumnNames(), rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert flights")
	}
	return n, nil
}

const minPriceByDateQuery = `
SELECT departure_date, MIN(price_rub) AS min_price
FROM flights
WHERE origin_iata = ?
  AND destination_iata = ?
  AND departure_date BETWEEN ? AND ?
GROUP BY departure_date
ORDER BY departure_date`

// MinPriceByDate returns the lowest fare per departure date for the route,
// ascending by date with one entry per date.
func (s *SQLiteStore) MinPriceByDate(ctx context.Context, q model.RouteQuery) (model.PriceSeries, error) {
	exists, err := s.tableExists(ctx, model.KindFlights.Table())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, minPriceByDateQuery,
		q.Origin, q.Destination, q.StartDate(), q.EndDate())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query min price by date")
	}
	defer rows.Close() //nolint:errcheck

	var series model.PriceSeries
	for rows.Next() {
		var (
			day   string
			price float64
		)
		if err := rows.Scan(&day, &price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan min price")
		}
		d, err := time.Parse(model.DateLayout, day)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse departure_date %q", day)
		}
		series = append(series, model.PricePoint{Date: d, MinPrice: price})
	}
	return series, eris.Wrap(rows.Err(), "sqlite: iterate min price")
}

// AirportsByCity lists airports serving a city code, ordered by IATA code.
func (s *SQLiteStore) AirportsByCity(ctx context.Context, cityCode string) ([]model.Airport, error) {
	exists, err := s.tableExists(ctx, model.KindAirports.Table())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, eris.New("sqlite: airports table not loaded, run refresh first")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT iata_code, airport_name, city_iata_code, country_code, time_zone, iata_type, latitude, longitude
		FROM airports WHERE city_iata_code = ? ORDER BY iata_code`,
		strings.ToUpper(cityCode))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query airports by city")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Airport
	for rows.Next() {
		var (
			code, name, city, country, tz, iataType sql.NullString
			lat, lon                                sql.NullFloat64
		)
		if err := rows.Scan(&code, &name, &city, &country, &tz, &iataType, &lat, &lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan airport")
		}
		a := model.Airport{
			IATACode:    code.String,
			Name:        name.String,
			CityCode:    city.String,
			CountryCode: country.String,
			TimeZone:    tz.String,
			IATAType:    iataType.String,
		}
		if lat.Valid {
			a.Latitude = &lat.Float64
		}
		if lon.Valid {
			a.Longitude = &lon.Float64
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate airports")
}

// RecordRefresh appends an entry to the refresh log.
func (s *SQLiteStore) RecordRefresh(ctx context.Context, e model.RefreshEntry) error {
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_log (run_id, table_name, status, rows, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Table, string(e.Status), e.Rows, errText,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrapf(err, "sqlite: record refresh for %s", e.Table)
}

// LatestRefresh returns the most recent refresh log entry per table.
func (s *SQLiteStore) LatestRefresh(ctx context.Context) ([]model.RefreshEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.table_name, r.status, r.rows, COALESCE(r.error, ''), r.started_at, r.completed_at
		FROM refresh_log r
		JOIN (SELECT table_name, MAX(id) AS id FROM refresh_log GROUP BY table_name) latest
		  ON r.id = latest.id
		ORDER BY r.table_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query latest refresh")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RefreshEntry
	for rows.Next() {
		var (
			e                  model.RefreshEntry
			status             string
			started, completed string
		)
		if err := rows.Scan(&e.RunID, &e.Table, &status, &e.Rows, &e.Error, &started, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan refresh entry")
		}
		e.Status = model.RefreshStatus(status)
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate refresh log")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// missingColumns lists the columns of want that table lacks.
func (s *SQLiteStore) missingColumns(ctx context.Context, table string, want []model.Column) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	defer rows.Close() //nolint:errcheck

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan table info %s", table)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: table info %s", table)
	}

	var missing []string
	for _, c := range want {
		if !have[c.Name] {
			missing = append(missing, c.Name)
		}
	}
	return missing, nil
}

func (s *SQLiteStore) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check table %s", name)
	}
	return n > 0, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]any) (int64, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert %s row %d", table, i)
		}
		n++
	}
	return n, nil
}
