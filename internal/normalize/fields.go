package normalize

import (
	"encoding/json"
	"strconv"

	"github.com/sells-group/farecast/internal/model"
)

// coordinates flattens a nested {"lat": .., "lon": ..} object. Anything else
// yields nil coordinates.
func coordinates(r model.RawRecord) (lat, lon *float64) {
	c, ok := r["coordinates"].(map[string]any)
	if !ok {
		return nil, nil
	}
	return toFloat(c["lat"]), toFloat(c["lon"])
}

func stringField(r model.RawRecord, key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func floatField(r model.RawRecord, key string) *float64 {
	return toFloat(r[key])
}

func intField(r model.RawRecord, key string) *int {
	f := toFloat(r[key])
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func boolField(r model.RawRecord, key string) *bool {
	b, ok := r[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

func mapField(r model.RawRecord, key string) map[string]any {
	m, ok := r[key].(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return m
}

func toFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return nil
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	return &f
}
