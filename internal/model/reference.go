package model

import "time"

// Airport is a normalized row of the airports table.
type Airport struct {
	IATACode         string         `json:"iata_code"`
	Name             string         `json:"airport_name"`
	CityCode         string         `json:"city_iata_code"`
	CountryCode      string         `json:"country_code"`
	TimeZone         string         `json:"time_zone,omitempty"`
	IATAType         string         `json:"iata_type,omitempty"`
	Flightable       *bool          `json:"flightable,omitempty"`
	NameTranslations map[string]any `json:"name_translations,omitempty"`
	Latitude         *float64       `json:"latitude,omitempty"`
	Longitude        *float64       `json:"longitude,omitempty"`
	ExtractedAt      time.Time      `json:"extracted_at"`
}

// AirportColumns is the column layout of the airports table.
var AirportColumns = []Column{
	{Name: "iata_code", Type: ColumnText},
	{Name: "airport_name", Type: ColumnText},
	{Name: "city_iata_code", Type: ColumnText},
	{Name: "country_code", Type: ColumnText},
	{Name: "time_zone", Type: ColumnText},
	{Name: "iata_type", Type: ColumnText},
	{Name: "flightable", Type: ColumnInteger},
	{Name: "name_translations", Type: ColumnText},
	{Name: "latitude", Type: ColumnReal},
	{Name: "longitude", Type: ColumnReal},
	{Name: "extracted_at", Type: ColumnText},
}

// Row returns the airport's values in AirportColumns order.
func (a Airport) Row() []any {
	return []any{
		a.IATACode, a.Name, a.CityCode, a.CountryCode, a.TimeZone, a.IATAType,
		nullBool(a.Flightable), nullMap(a.NameTranslations),
		nullFloat(a.Latitude), nullFloat(a.Longitude), a.ExtractedAt,
	}
}

// City is a normalized row of the cities table.
type City struct {
	CityCode         string         `json:"city_iata_code"`
	Name             string         `json:"city_name"`
	CountryCode      string         `json:"country_code"`
	TimeZone         string         `json:"time_zone,omitempty"`
	NameTranslations map[string]any `json:"name_translations,omitempty"`
	Latitude         *float64       `json:"latitude,omitempty"`
	Longitude        *float64       `json:"longitude,omitempty"`
	ExtractedAt      time.Time      `json:"extracted_at"`
}

// CityColumns is the column layout of the cities table.
var CityColumns = []Column{
	{Name: "city_iata_code", Type: ColumnText},
	{Name: "city_name", Type: ColumnText},
	{Name: "country_code", Type: ColumnText},
	{Name: "time_zone", Type: ColumnText},
	{Name: "name_translations", Type: ColumnText},
	{Name: "latitude", Type: ColumnReal},
	{Name: "longitude", Type: ColumnReal},
	{Name: "extracted_at", Type: ColumnText},
}

// Row returns the city's values in CityColumns order.
func (c City) Row() []any {
	return []any{
		c.CityCode, c.Name, c.CountryCode, c.TimeZone, nullMap(c.NameTranslations),
		nullFloat(c.Latitude), nullFloat(c.Longitude), c.ExtractedAt,
	}
}

// Country is a normalized row of the countries table.
type Country struct {
	CountryCode      string         `json:"country_code"`
	Name             string         `json:"country_name"`
	Currency         string         `json:"currency,omitempty"`
	NameTranslations map[string]any `json:"name_translations,omitempty"`
	Latitude         *float64       `json:"latitude,omitempty"`
	Longitude        *float64       `json:"longitude,omitempty"`
	ExtractedAt      time.Time      `json:"extracted_at"`
}

// CountryColumns is the column layout of the countries table.
var CountryColumns = []Column{
	{Name: "country_code", Type: ColumnText},
	{Name: "country_name", Type: ColumnText},
	{Name: "currency", Type: ColumnText},
	{Name: "name_translations", Type: ColumnText},
	{Name: "latitude", Type: ColumnReal},
	{Name: "longitude", Type: ColumnReal},
	{Name: "extracted_at", Type: ColumnText},
}

// Row returns the country's values in CountryColumns order.
func (c Country) Row() []any {
	return []any{
		c.CountryCode, c.Name, c.Currency, nullMap(c.NameTranslations),
		nullFloat(c.Latitude), nullFloat(c.Longitude), c.ExtractedAt,
	}
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullBool(p *bool) any {
	if p == nil {
		return nil
	}
	if *p {
		return int64(1)
	}
	return int64(0)
}

// nullMap keeps nested values as-is; the store stringifies them on write.
func nullMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}
