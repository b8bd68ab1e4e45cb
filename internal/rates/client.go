package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)

const (
	targetCurrency = "EUR"
	maxBodyBytes   = 1 << 20
)

// QuoteAPI fetches the live USD to EUR factor.
type QuoteAPI interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

type quoteResponse struct {
	Result    string                     `json:"result"`
	ErrorType string                     `json:"error-type"`
	BaseCode  string                     `json:"base_code"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

type Client struct {
	URL        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		URL: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: build request: %v", ErrRateUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decimal.Zero, fmt.Errorf("%w: status code %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode response: %v", ErrRateUnavailable, err)
	}

	if strings.EqualFold(body.Result, "error") {
		return decimal.Zero, fmt.Errorf("%w: api error %q", ErrRateUnavailable, body.ErrorType)
	}

	rate, ok := body.Rates[targetCurrency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s rate not found in response", ErrRateUnavailable, targetCurrency)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive %s rate %s", ErrRateUnavailable, targetCurrency, rate)
	}

	return rate, nil
}
