package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type airportRow struct {
	Code     string `json:"code"`
	CityCode string `json:"city_code"`
}

func TestDecodeArray(t *testing.T) {
	got, err := DecodeArray[airportRow](strings.NewReader(
		`[{"code":"SVO","city_code":"MOW"},{"code":"VKO","city_code":"MOW"},{"code":"LED","city_code":"LED"}]`))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, airportRow{Code: "SVO", CityCode: "MOW"}, got[0])
	assert.Equal(t, "LED", got[2].Code)
}

func TestDecodeArray_NestedMaps(t *testing.T) {
	got, err := DecodeArray[map[string]any](strings.NewReader(
		`[{"code":"LED","coordinates":{"lat":59.8,"lon":30.3}},{"code":"VKO","name_translations":null}]`))
	require.NoError(t, err)
	require.Len(t, got, 2)

	coords, ok := got[0]["coordinates"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 59.8, coords["lat"], 1e-9)
	assert.Nil(t, got[1]["name_translations"])
}

func TestDecodeArray_EmptyInputs(t *testing.T) {
	for _, in := range []string{"", "[]", "  [ ]\n"} {
		got, err := DecodeArray[airportRow](strings.NewReader(in))
		require.NoError(t, err, "%q", in)
		assert.Empty(t, got, "%q", in)
	}
}

func TestDecodeArray_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"object", `{"code":"LED"}`, "want array"},
		{"truncated", `[{"code":"LED"},{"code":`, "element 1"},
		{"wrong type", `[{"code":42}]`, "element 0"},
		{"trailing", `[{"code":"LED"}] [1]`, "data after array"},
		{"not json", `<html>`, "array start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeArray[airportRow](strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Nil(t, got)
		})
	}
}

func TestDecodeObject(t *testing.T) {
	type prices struct {
		Success  bool   `json:"success"`
		Currency string `json:"currency"`
	}
	got, err := DecodeObject[prices](strings.NewReader(`{"success":true,"currency":"rub","data":[]}`))
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, "rub", got.Currency)

	_, err = DecodeObject[prices](strings.NewReader(`not json`))
	require.Error(t, err)
}
