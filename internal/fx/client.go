package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"duit/internal/core"
	"duit/internal/log"
)

// Client fetches live rates from an open.er-api.com style endpoint:
// GET {base}/latest/{code} returns every rate quoted against code.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

var _ RateSource = (*Client)(nil)

type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	Logger  *log.Logger
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://open.er-api.com/v6"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Component: log.ComponentFX})
	}
	return &Client{
		baseURL: opts.BaseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		logger:  opts.Logger,
	}
}

type ratesResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (c *Client) Rate(ctx context.Context, from, to core.Currency) (float64, error) {
	if from == to {
		return 1, nil
	}

	url := fmt.Sprintf("%s/latest/%s", c.baseURL, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "rate fetch failed", log.FieldCurrency, string(from), log.FieldError, err)
		return 0, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: upstream status %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrRateUnavailable, err)
	}
	if body.Result != "success" {
		return 0, fmt.Errorf("%w: upstream result %q", ErrRateUnavailable, body.Result)
	}

	rate, ok := body.Rates[string(to)]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: no rate %s->%s", ErrRateUnavailable, from, to)
	}
	c.logger.DebugContext(ctx, "rate fetched",
		log.FieldCurrency, fmt.Sprintf("%s->%s", from, to),
		log.FieldRate, rate)
	return rate, nil
}
