package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/model"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTable(t model.Table) error {
	if !identRe.MatchString(t.Name) {
		return eris.Errorf("sqlite: invalid table name %q", t.Name)
	}
	if len(t.Columns) == 0 {
		return eris.Errorf("sqlite: table %s has no columns", t.Name)
	}
	for _, c := range t.Columns {
		if !identRe.MatchString(c.Name) {
			return eris.Errorf("sqlite: invalid column name %q in %s", c.Name, t.Name)
		}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return eris.Errorf("sqlite: %s row %d has %d values, want %d", t.Name, i, len(row), len(t.Columns))
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(name string, cols []model.Column, ifNotExists bool) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := c.Type
		if typ == "" {
			typ = model.ColumnText
		}
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), typ)
	}
	clause := ""
	if ifNotExists {
		clause = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (%s)", clause, quoteIdent(name), strings.Join(defs, ", "))
}

// stringifyRows returns a copy of t.Rows where nested values (maps, slices,
// structs) are JSON-encoded and timestamps are RFC 3339 text. The input rows
// are not modified. One warning is logged per affected column.
func stringifyRows(t model.Table) [][]any {
	warned := make(map[int]bool)
	out := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		cp := make([]any, len(row))
		for j, v := range row {
			sv, nested := stringifyValue(v)
			if nested && !warned[j] {
				warned[j] = true
				zap.L().Warn("column contains nested values, storing as JSON text",
					zap.String("component", "store"),
					zap.String("table", t.Name),
					zap.String("column", t.Columns[j].Name),
				)
			}
			cp[j] = sv
		}
		out[i] = cp
	}
	return out
}

func stringifyValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil, string, int, int64, float64, bool, []byte:
		return v, false
	case time.Time:
		return x.Format(time.RFC3339), false
	case *time.Time:
		if x == nil {
			return nil, false
		}
		return x.Format(time.RFC3339), false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
			return nil, false
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v), true
		}
		return string(b), true
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		return stringifyValue(rv.Elem().Interface())
	}
	return v, false
}
