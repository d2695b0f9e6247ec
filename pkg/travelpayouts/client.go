// Package travelpayouts provides a client for the Travelpayouts (Aviasales)
// data API: static reference datasets and cached flight prices.
package travelpayouts

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/farecast/internal/fetcher"
)

const (
	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://api.travelpayouts.com"
	// DefaultCurrency is the currency prices are requested in.
	DefaultCurrency = "rub"
)

// ErrUnsuccessful is returned when the API answers with success=false.
var ErrUnsuccessful = eris.New("travelpayouts: request unsuccessful")

var datasetRe = regexp.MustCompile(`^[a-z_]+$`)

// Client defines the Travelpayouts API operations.
type Client interface {
	// Dataset downloads a reference dataset such as "airports", "cities" or
	// "countries" and returns its records.
	Dataset(ctx context.Context, name string) ([]map[string]any, error)
	// PricesForDates returns cached price quotes for a route and departure date.
	PricesForDates(ctx context.Context, req PricesRequest) (*PricesResponse, error)
}

// PricesRequest selects quotes for one route. DepartureAt is YYYY-MM-DD or YYYY-MM.
type PricesRequest struct {
	Origin      string
	Destination string
	DepartureAt string
}

// PricesResponse is the parsed prices_for_dates response.
type PricesResponse struct {
	Success  bool             `json:"success"`
	Currency string           `json:"currency"`
	Data     []map[string]any `json:"data"`
	Error    string           `json:"error,omitempty"`
}

// Option configures the Travelpayouts client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithCurrency sets the currency prices are requested in.
func WithCurrency(currency string) Option {
	return func(c *httpClient) {
		c.currency = currency
	}
}

// WithFetcher sets the transport used for all requests.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *httpClient) {
		c.fetcher = f
	}
}

type httpClient struct {
	token    string
	baseURL  string
	currency string
	fetcher  fetcher.Fetcher
}

// NewClient creates a new Travelpayouts client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		baseURL:  DefaultBaseURL,
		currency: DefaultCurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:    30 * time.Second,
			RateLimits: map[string]rate.Limit{"api.travelpayouts.com": 5},
		})
	}
	return c
}

func (c *httpClient) Dataset(ctx context.Context, name string) ([]map[string]any, error) {
	if !datasetRe.MatchString(name) {
		return nil, eris.Errorf("travelpayouts: invalid dataset %q", name)
	}
	reqURL := fmt.Sprintf("%s/data/%s.json", c.baseURL, name)

	body, err := c.fetcher.Download(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrapf(err, "travelpayouts: fetch %s", name)
	}
	defer body.Close() //nolint:errcheck

	records, err := fetcher.DecodeArray[map[string]any](body)
	if err != nil {
		return nil, eris.Wrapf(err, "travelpayouts: decode %s", name)
	}
	return records, nil
}

func (c *httpClient) PricesForDates(ctx context.Context, req PricesRequest) (*PricesResponse, error) {
	params := url.Values{}
	params.Set("origin", req.Origin)
	params.Set("destination", req.Destination)
	params.Set("departure_at", req.DepartureAt)
	params.Set("currency", c.currency)
	params.Set("token", c.token)
	reqURL := fmt.Sprintf("%s/aviasales/v3/prices_for_dates?%s", c.baseURL, params.Encode())

	body, err := c.fetcher.Download(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrap(err, "travelpayouts: prices request failed")
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeObject[PricesResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "travelpayouts: unmarshal prices")
	}
	if !resp.Success {
		return nil, eris.Wrapf(ErrUnsuccessful, "prices %s-%s on %s: %s",
			req.Origin, req.Destination, req.DepartureAt, resp.Error)
	}
	return resp, nil
}
