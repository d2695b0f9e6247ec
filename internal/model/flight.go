package model

import "time"

// DateLayout is the calendar-date format used in queries and the flights table.
const DateLayout = "2006-01-02"

// FlightPrice is a single observed price quote for a route and departure.
// Duplicate quotes for the same route and date are allowed.
type FlightPrice struct {
	OriginIATA        string     `json:"origin_iata"`
	DestinationIATA   string     `json:"destination_iata"`
	DepartureDatetime time.Time  `json:"departure_datetime"`
	DepartureDate     string     `json:"departure_date"`
	ReturnDatetime    *time.Time `json:"return_datetime,omitempty"`
	PriceRub          float64    `json:"price_rub"`
	Airline           string     `json:"airline,omitempty"`
	FlightNumber      string     `json:"flight_number,omitempty"`
	Transfers         *int       `json:"transfers,omitempty"`
	ExtractedAt       time.Time  `json:"extracted_at"`
}

// FlightColumns is the column layout of the flights table.
var FlightColumns = []Column{
	{Name: "origin_iata", Type: ColumnText},
	{Name: "destination_iata", Type: ColumnText},
	{Name: "departure_datetime", Type: ColumnText},
	{Name: "departure_date", Type: ColumnText},
	{Name: "return_datetime", Type: ColumnText},
	{Name: "price_rub", Type: ColumnReal},
	{Name: "airline", Type: ColumnText},
	{Name: "flight_number", Type: ColumnText},
	{Name: "transfers", Type: ColumnInteger},
	{Name: "extracted_at", Type: ColumnText},
}

// Row returns the quote's values in FlightColumns order.
func (f FlightPrice) Row() []any {
	var ret any
	if f.ReturnDatetime != nil {
		ret = *f.ReturnDatetime
	}
	var transfers any
	if f.Transfers != nil {
		transfers = int64(*f.Transfers)
	}
	return []any{
		f.OriginIATA, f.DestinationIATA, f.DepartureDatetime, f.DepartureDate, ret,
		f.PriceRub, f.Airline, f.FlightNumber, transfers, f.ExtractedAt,
	}
}
