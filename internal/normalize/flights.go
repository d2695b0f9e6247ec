package normalize

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/model"
)

var departureLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	model.DateLayout,
}

// Flights maps raw price quotes: origin→origin_iata, destination→destination_iata,
// departure_at→departure_datetime (+ departure_date), return_at→return_datetime,
// price→price_rub. Quotes without a parseable departure or price are dropped.
func Flights(raw []model.RawRecord, extractedAt time.Time) []model.FlightPrice {
	out := make([]model.FlightPrice, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		dep, ok := parseTime(stringField(r, "departure_at"))
		if !ok {
			dropped++
			continue
		}
		price := floatField(r, "price")
		if price == nil {
			dropped++
			continue
		}

		f := model.FlightPrice{
			OriginIATA:        strings.ToUpper(stringField(r, "origin")),
			DestinationIATA:   strings.ToUpper(stringField(r, "destination")),
			DepartureDatetime: dep,
			DepartureDate:     dep.Format(model.DateLayout),
			PriceRub:          *price,
			Airline:           stringField(r, "airline"),
			FlightNumber:      stringField(r, "flight_number"),
			Transfers:         intField(r, "transfers"),
			ExtractedAt:       extractedAt,
		}
		if ret, ok := parseTime(stringField(r, "return_at")); ok {
			f.ReturnDatetime = &ret
		}
		out = append(out, f)
	}

	if dropped > 0 {
		zap.L().Warn("normalize: dropped flight quotes without departure or price",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)),
		)
	}
	return out
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range departureLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
