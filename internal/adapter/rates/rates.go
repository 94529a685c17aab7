package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fastpay-ledger/internal/domain/currency"
)

const (
	DefaultPrimaryURL  = "https://v6.exchangerate-api.com/v6"
	DefaultFallbackURL = "https://api.exchangerate.host/latest"
	DefaultBackupURL   = "https://api.exchangerate-api.com/v4/latest"
)

var ErrEmptyTable = errors.New("rate provider returned no rates")

// payload covers both provider layouts: v6 answers with result and
// conversion_rates, the others with base and rates.
type payload struct {
	Result          string             `json:"result"`
	BaseCode        string             `json:"base_code"`
	Base            string             `json:"base"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
	Rates           map[string]float64 `json:"rates"`
}

// HTTPSource fetches a rate table from one provider.
type HTTPSource struct {
	name   string
	url    func(base string) string
	client *http.Client
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 5 * time.Second}
}

// NewPrimary is exchangerate-api v6: {baseURL}/{key}/latest/{BASE}.
func NewPrimary(baseURL, apiKey string, client *http.Client) *HTTPSource {
	return &HTTPSource{
		name:   "exchangerate-api-v6",
		url:    func(b string) string { return fmt.Sprintf("%s/%s/latest/%s", baseURL, url.PathEscape(apiKey), b) },
		client: defaultClient(client),
	}
}

// NewFallback is exchangerate.host: {baseURL}?base={BASE}.
func NewFallback(baseURL string, client *http.Client) *HTTPSource {
	return &HTTPSource{
		name:   "exchangerate-host",
		url:    func(b string) string { return baseURL + "?base=" + url.QueryEscape(b) },
		client: defaultClient(client),
	}
}

// NewBackup is exchangerate-api v4: {baseURL}/{BASE}.
func NewBackup(baseURL string, client *http.Client) *HTTPSource {
	return &HTTPSource{
		name:   "exchangerate-api-v4",
		url:    func(b string) string { return baseURL + "/" + b },
		client: defaultClient(client),
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context, base string) (currency.Rates, error) {
	base = currency.Normalize(base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(base), nil)
	if err != nil {
		return currency.Rates{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return currency.Rates{}, fmt.Errorf("%s: %w", s.name, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return currency.Rates{}, fmt.Errorf("%s: unexpected status %d", s.name, res.StatusCode)
	}

	var p payload
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return currency.Rates{}, fmt.Errorf("%s: decode: %w", s.name, err)
	}
	if p.Result != "" && !strings.EqualFold(p.Result, "success") {
		return currency.Rates{}, fmt.Errorf("%s: result %q", s.name, p.Result)
	}

	values := p.ConversionRates
	if len(values) == 0 {
		values = p.Rates
	}
	if len(values) == 0 {
		return currency.Rates{}, fmt.Errorf("%s: %w", s.name, ErrEmptyTable)
	}
	return currency.Rates{Base: base, Values: values}, nil
}
