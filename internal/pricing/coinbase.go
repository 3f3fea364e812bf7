// Package pricing fetches spot quotes and applies them on a schedule.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// DefaultCoinbaseURL is the public Coinbase API root.
const DefaultCoinbaseURL = "https://api.coinbase.com"

// QuoteSource resolves a single symbol to its USD spot price.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (float64, error)
}

// Coinbase is a QuoteSource backed by the Coinbase spot price endpoint.
type Coinbase struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinbase creates a Coinbase client. timeout bounds every request.
func NewCoinbase(baseURL string, timeout time.Duration) *Coinbase {
	if baseURL == "" {
		baseURL = DefaultCoinbaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coinbase{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// Quote implements QuoteSource.
func (c *Coinbase) Quote(ctx context.Context, symbol string) (float64, error) {
	sym := domain.NormalizeSymbol(symbol)
	path := fmt.Sprintf("/v2/prices/%s-USD/spot", url.PathEscape(sym))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("coinbase: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coinbase: quote %s: %w", sym, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("coinbase: read %s: %w", sym, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coinbase: quote %s: status %d", sym, resp.StatusCode)
	}

	var out spotResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("coinbase: decode %s: %w", sym, err)
	}
	amount, err := decimal.NewFromString(out.Data.Amount)
	if err != nil {
		return 0, fmt.Errorf("coinbase: amount %q for %s: %w", out.Data.Amount, sym, err)
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("coinbase: non-positive amount for %s", sym)
	}
	return amount.InexactFloat64(), nil
}
