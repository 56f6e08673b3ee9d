// Package upstream implements the QuoteProvider against a CoinMarketCap-style
// quotes API. Every call must be admitted by the rate limiter first; this
// package only performs the HTTP exchange and response mapping.
package upstream

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	xhttp "CoinPulse/pkg/http"
)

// Client is a REST QuoteProvider.
type Client struct {
	apiKey  string
	baseURL string
	convert string
	client  *xhttp.Client
}

// New creates an upstream client with a bounded per-call timeout.
func New(apiKey, baseURL string, timeout time.Duration) drepo.QuoteProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		convert: "USD",
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type quoteEnvelope struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		Symbol string `json:"symbol"`
		Quote  map[string]struct {
			Price            float64 `json:"price"`
			Volume24h        float64 `json:"volume_24h"`
			PercentChange1h  float64 `json:"percent_change_1h"`
			PercentChange24h float64 `json:"percent_change_24h"`
			PercentChange7d  float64 `json:"percent_change_7d"`
			MarketCap        float64 `json:"market_cap"`
			LastUpdated      string  `json:"last_updated"`
		} `json:"quote"`
	} `json:"data"`
}

// Latest fetches the latest quote for symbol and maps it to a tagged result.
func (c *Client) Latest(ctx context.Context, symbol string) drepo.QuoteResult {
	var env quoteEnvelope
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v1/cryptocurrency/quotes/latest",
		Headers: map[string]string{
			"X-CMC_PRO_API_KEY": c.apiKey,
			"Accept":            "application/json",
		},
		QueryParams: map[string][]string{
			"symbol":  {symbol},
			"convert": {c.convert},
		},
	}, &env)
	if err != nil {
		return drepo.QuoteResult{Kind: drepo.QuoteError, Err: fmt.Errorf("quotes latest %s: %w", symbol, err)}
	}
	if env.Status.ErrorCode != 0 {
		return drepo.QuoteResult{
			Kind: drepo.QuoteError,
			Err:  fmt.Errorf("quotes latest %s: upstream code %d: %s", symbol, env.Status.ErrorCode, env.Status.ErrorMessage),
		}
	}

	d, ok := env.Data[symbol]
	if !ok {
		return drepo.QuoteResult{Kind: drepo.QuoteAbsent}
	}
	q, ok := d.Quote[c.convert]
	if !ok {
		return drepo.QuoteResult{Kind: drepo.QuoteAbsent}
	}

	ts := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, q.LastUpdated); err == nil {
		ts = t
	}
	return drepo.QuoteResult{
		Kind: drepo.QuoteOK,
		Snapshot: &models.MarketSnapshot{
			Symbol:    symbol,
			Price:     q.Price,
			Volume24h: q.Volume24h,
			Change1h:  q.PercentChange1h,
			Change24h: q.PercentChange24h,
			Change7d:  q.PercentChange7d,
			MarketCap: q.MarketCap,
			Timestamp: ts,
			Source:    models.SourceUpstream,
		},
	}
}
