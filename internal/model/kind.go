package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind identifies an upstream dataset and the table it lands in.
type Kind string

const (
	KindAirports  Kind = "airports"
	KindCities    Kind = "cities"
	KindCountries Kind = "countries"
	KindFlights   Kind = "flights"
)

// ReferenceKinds lists the reference datasets refreshed together, in refresh order.
var ReferenceKinds = []Kind{KindAirports, KindCities, KindCountries}

// Table returns the name of the table the dataset is persisted to.
func (k Kind) Table() string { return string(k) }

// IsReference reports whether the kind is a fully-replaced reference dataset.
func (k Kind) IsReference() bool {
	switch k {
	case KindAirports, KindCities, KindCountries:
		return true
	}
	return false
}

// ParseKind parses a dataset name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAirports, KindCities, KindCountries, KindFlights:
		return k, nil
	}
	return "", eris.Errorf("model: unknown dataset kind %q", s)
}

// RawRecord is a single upstream JSON object before normalization.
type RawRecord map[string]any
