// Package remote is the HTTP client for the Ledger Store API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Config holds the Ledger Store endpoint.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// APIKey is sent as X-API-Key when set.
	APIKey string
}

// Client implements domain.LedgerStore over HTTP. Network failures, timeouts
// and 5xx responses wrap domain.ErrPersistenceUnavailable.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the stored state of an account. The journal is returned
// oldest first regardless of server ordering.
func (c *Client) Fetch(ctx context.Context, id domain.AccountID) (domain.LedgerSnapshot, error) {
	var snap domain.LedgerSnapshot
	if err := c.do(ctx, http.MethodGet, c.accountPath(id), nil, &snap); err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("remote: fetch %s: %w", id, err)
	}
	sortJournal(snap.Journal)
	return snap, nil
}

// Sync upserts positions and journal entries and, when req.PendingOrders is
// non-nil, replaces the stored orders. It returns the updated state.
func (c *Client) Sync(ctx context.Context, id domain.AccountID, req domain.SyncRequest) (domain.LedgerSnapshot, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("remote: encode sync %s: %w", id, err)
	}
	var snap domain.LedgerSnapshot
	if err := c.do(ctx, http.MethodPost, c.accountPath(id)+"/sync", body, &snap); err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("remote: sync %s: %w", id, err)
	}
	sortJournal(snap.Journal)
	return snap, nil
}

// DeleteJournalEntry removes one journal entry.
func (c *Client) DeleteJournalEntry(ctx context.Context, id domain.AccountID, entryID string) error {
	path := c.accountPath(id) + "/journal/" + url.PathEscape(entryID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remote: delete journal %s/%s: %w", id, entryID, err)
	}
	return nil
}

// Reset clears all positions and journal entries of an account.
func (c *Client) Reset(ctx context.Context, id domain.AccountID) error {
	if err := c.do(ctx, http.MethodPost, c.accountPath(id)+"/reset", nil, nil); err != nil {
		return fmt.Errorf("remote: reset %s: %w", id, err)
	}
	return nil
}

func (c *Client) accountPath(id domain.AccountID) string {
	return "/accounts/" + url.PathEscape(string(id))
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(domain.ErrPersistenceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return errors.Join(domain.ErrPersistenceUnavailable, fmt.Errorf("read response: %w", err))
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Join(domain.ErrPersistenceUnavailable, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case statusCode >= 500, statusCode == http.StatusTooManyRequests, statusCode == http.StatusRequestTimeout:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrPersistenceUnavailable, statusCode, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}

func sortJournal(j []domain.JournalEntry) {
	sort.SliceStable(j, func(a, b int) bool {
		return j[a].Timestamp.Before(j[b].Timestamp)
	})
}

var _ domain.LedgerStore = (*Client)(nil)
