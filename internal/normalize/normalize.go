// Package normalize maps raw upstream records onto typed rows and the uniform
// tabular shape written by the store.
package normalize

import (
	"time"

	"github.com/sells-group/farecast/internal/model"
)

// Table normalizes raw records of the given kind. Empty or nil input yields a
// zero-row table with the kind's columns; it never fails.
func Table(kind model.Kind, raw []model.RawRecord, extractedAt time.Time) model.Table {
	switch kind {
	case model.KindAirports:
		return AirportsTable(Airports(raw, extractedAt))
	case model.KindCities:
		return CitiesTable(Cities(raw, extractedAt))
	case model.KindCountries:
		return CountriesTable(Countries(raw, extractedAt))
	case model.KindFlights:
		return FlightsTable(Flights(raw, extractedAt))
	}
	return model.Table{Name: kind.Table()}
}

// Airports maps raw airport records: code→iata_code, name→airport_name,
// city_code→city_iata_code, coordinates→latitude/longitude.
func Airports(raw []model.RawRecord, extractedAt time.Time) []model.Airport {
	out := make([]model.Airport, 0, len(raw))
	for _, r := range raw {
		lat, lon := coordinates(r)
		out = append(out, model.Airport{
			IATACode:         stringField(r, "code"),
			Name:             stringField(r, "name"),
			CityCode:         stringField(r, "city_code"),
			CountryCode:      stringField(r, "country_code"),
			TimeZone:         stringField(r, "time_zone"),
			IATAType:         stringField(r, "iata_type"),
			Flightable:       boolField(r, "flightable"),
			NameTranslations: mapField(r, "name_translations"),
			Latitude:         lat,
			Longitude:        lon,
			ExtractedAt:      extractedAt,
		})
	}
	return out
}

// Cities maps raw city records: code→city_iata_code, name→city_name.
func Cities(raw []model.RawRecord, extractedAt time.Time) []model.City {
	out := make([]model.City, 0, len(raw))
	for _, r := range raw {
		lat, lon := coordinates(r)
		out = append(out, model.City{
			CityCode:         stringField(r, "code"),
			Name:             stringField(r, "name"),
			CountryCode:      stringField(r, "country_code"),
			TimeZone:         stringField(r, "time_zone"),
			NameTranslations: mapField(r, "name_translations"),
			Latitude:         lat,
			Longitude:        lon,
			ExtractedAt:      extractedAt,
		})
	}
	return out
}

// Countries maps raw country records: code→country_code, name→country_name.
func Countries(raw []model.RawRecord, extractedAt time.Time) []model.Country {
	out := make([]model.Country, 0, len(raw))
	for _, r := range raw {
		lat, lon := coordinates(r)
		out = append(out, model.Country{
			CountryCode:      stringField(r, "code"),
			Name:             stringField(r, "name"),
			Currency:         stringField(r, "currency"),
			NameTranslations: mapField(r, "name_translations"),
			Latitude:         lat,
			Longitude:        lon,
			ExtractedAt:      extractedAt,
		})
	}
	return out
}

// AirportsTable converts airports to the airports table shape.
func AirportsTable(rows []model.Airport) model.Table {
	t := newTable(model.KindAirports, model.AirportColumns, len(rows))
	for _, a := range rows {
		t.Rows = append(t.Rows, a.Row())
	}
	return t
}

// CitiesTable converts cities to the cities table shape.
func CitiesTable(rows []model.City) model.Table {
	t := newTable(model.KindCities, model.CityColumns, len(rows))
	for _, c := range rows {
		t.Rows = append(t.Rows, c.Row())
	}
	return t
}

// CountriesTable converts countries to the countries table shape.
func CountriesTable(rows []model.Country) model.Table {
	t := newTable(model.KindCountries, model.CountryColumns, len(rows))
	for _, c := range rows {
		t.Rows = append(t.Rows, c.Row())
	}
	return t
}

// FlightsTable converts quotes to the flights table shape.
func FlightsTable(rows []model.FlightPrice) model.Table {
	t := newTable(model.KindFlights, model.FlightColumns, len(rows))
	for _, f := range rows {
		t.Rows = append(t.Rows, f.Row())
	}
	return t
}

func newTable(kind model.Kind, cols []model.Column, n int) model.Table {
	return model.Table{
		Name:    kind.Table(),
		Columns: append([]model.Column(nil), cols...),
		Rows:    make([][]any, 0, n),
	}
}
