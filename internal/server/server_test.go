package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/cache/memory"
	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
	"github.com/alanyoungcy/portfolioledger/internal/server/handler"
	"github.com/alanyoungcy/portfolioledger/internal/server/ws"
	"github.com/alanyoungcy/portfolioledger/internal/service"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
)

const testKey = "secret"

type fakeLedger struct {
	mu      sync.Mutex
	snap    domain.LedgerSnapshot
	syncs   []domain.SyncRequest
	deleted []string
}

func (f *fakeLedger) Fetch(_ context.Context, _ domain.AccountID) (domain.LedgerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeLedger) Sync(_ context.Context, _ domain.AccountID, req domain.SyncRequest) (domain.LedgerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs = append(f.syncs, req)
	for _, a := range req.Assets {
		f.snap.Positions = append(f.snap.Positions, domain.LedgerPosition{Symbol: a.Symbol, Units: a.Units, Cost: a.TotalCost})
	}
	return f.snap, nil
}

func (f *fakeLedger) DeleteJournalEntry(_ context.Context, _ domain.AccountID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, entryID)
	return nil
}

func (f *fakeLedger) Reset(_ context.Context, _ domain.AccountID) error { return nil }

type fixture struct {
	srv    *Server
	svc    *service.PortfolioService
	bus    *memory.EventBus
	ledger *fakeLedger
	hub    *ws.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	bus := memory.NewEventBus(0)
	svc := service.NewPortfolioService(service.Deps{
		Local: local.NewScope(local.NewMemoryStore(), "test"),
		Bus:   bus,
	}, service.Config{
		Ledger: ledger.Options{FeePercent: 1, Now: func() time.Time {
			return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
		}},
	}, nil)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	fl := &fakeLedger{}
	hub := ws.NewHub(bus, ws.Config{Status: func() any { return svc.Status() }}, nil)
	srv := NewServer(Config{APIKey: testKey}, Handlers{
		Status:   handler.NewStatusHandler("full", time.Now(), svc),
		Accounts: handler.NewAccountHandler(svc, nil),
		Trades:   handler.NewTradeHandler(svc, nil),
		Prices:   handler.NewPriceHandler(svc, nil),
		Analysis: handler.NewAnalysisHandler(svc, nil),
		Backups:  handler.NewBackupHandler(svc, nil),
		Ledger:   handler.NewLedgerHandler(fl, nil),
	}, hub, nil)
	return &fixture{srv: srv, svc: svc, bus: bus, ledger: fl, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness(t *testing.T) {
	t.Parallel()
	up := domain.DependencyCheck{Name: "postgres", Check: func(context.Context) error { return nil }}
	down := domain.DependencyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	ready := func(checks ...domain.DependencyCheck) *httptest.ResponseRecorder {
		srv := NewServer(Config{APIKey: testKey}, Handlers{
			Health: handler.NewHealthHandler(nil, checks...),
		}, nil, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
		return rec
	}

	type readiness struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}

	rec := ready(up)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[readiness](t, rec)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok"}, body.Checks)

	rec = ready(up, down)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body = decode[readiness](t, rec)
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "unavailable"}, body.Checks)
	assert.NotContains(t, rec.Body.String(), "refused")

	rec = ready()
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/accounts/sui/trades", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/accounts/SUI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[domain.AccountState](t, rec)
	_, ok := st.Position("SUI")
	assert.True(t, ok)
	assert.Len(t, st.PendingOrders, 7)

	rec = f.do(t, http.MethodGet, "/api/accounts/doge", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteTrade(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	body := `{"id":"t-1","type":"buy","symbol":"LINK","units":1,"price":8}`
	rec := f.do(t, http.MethodPost, "/api/accounts/sui/trades", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[map[string]any](t, rec)
	assert.Equal(t, true, res["applied"])
	assert.InDelta(t, 8.08, res["net"], 1e-9)

	rec = f.do(t, http.MethodPost, "/api/accounts/sui/trades", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["duplicate"])

	rec = f.do(t, http.MethodPost, "/api/accounts/sui/trades", `{"type":"buy","symbol":"PEPE","units":1,"price":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/accounts/sui/trades", `{"type":"hold","symbol":"SUI"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKillOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/accounts/sui/orders/513b7d5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	st, err := f.svc.Account(domain.AnchorAccount)
	require.NoError(t, err)
	for _, o := range st.PendingOrders {
		assert.NotEqual(t, "513b7d5", o.ID)
	}

	rec = f.do(t, http.MethodDelete, "/api/accounts/sui/orders/513b7d5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportBackupMalformed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/backup", `{"assets": "nope"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStressAndRebalance(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/accounts/sui/stress?shock=-50&target=SUI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]any](t, rec)
	assert.Less(t, res["netImpact"].(float64), 0.0)

	rec = f.do(t, http.MethodGet, "/api/accounts/sui/stress?shock=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/accounts/alts/rebalance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"actions"`)
}

func TestAlertsLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/alerts", `{"symbol":"sui","condition":"above","price":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[domain.PriceAlert](t, rec)

	rec = f.do(t, http.MethodPost, "/api/alerts/"+a.ID+"/toggle", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/alerts/"+a.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/alerts/"+a.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshWithoutGateway(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/prices/refresh", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestLedgerStoreAPI(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/accounts/sui", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"positions":[],"journal":[],"pendingOrders":[]}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/accounts/sui/sync",
		`{"assets":[{"symbol":"SUI","units":10,"totalCost":12}],"journal":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[domain.LedgerSnapshot](t, rec)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, 12.0, snap.Positions[0].Cost)

	rec = f.do(t, http.MethodPost, "/accounts/sui/sync", `{"assets":[],"journal":[{"id":"","type":"buy"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/accounts/sui/sync", `{"assets":[],"journal":[],"deletedJournal":[""]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/accounts/sui/sync",
		`{"assets":[],"journal":[],"reset":true,"deletedJournal":["x0"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	f.ledger.mu.Lock()
	last := f.ledger.syncs[len(f.ledger.syncs)-1]
	f.ledger.mu.Unlock()
	assert.True(t, last.Reset)
	assert.Equal(t, []string{"x0"}, last.DeletedJournal)

	rec = f.do(t, http.MethodDelete, "/accounts/sui/journal/x1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"x1"}, f.ledger.deleted)

	rec = f.do(t, http.MethodPost, "/accounts/nope/reset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.hub.Run(ctx) }()

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?api_key=" + testKey
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	type frame struct {
		Type    string          `json:"type"`
		Channel string          `json:"channel"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first frame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "status", first.Type)

	ev := domain.SystemEvent{Kind: domain.EventAlertTriggered, AccountID: domain.AnchorAccount, Message: "SUI above 2"}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	got := make(chan frame, 1)
	go func() {
		var fr frame
		if conn.ReadJSON(&fr) == nil {
			got <- fr
		}
	}()
	require.Eventually(t, func() bool {
		_ = f.bus.Publish(ctx, ev.Channel(), payload)
		select {
		case fr := <-got:
			assert.Equal(t, "event", fr.Type)
			assert.Equal(t, "ledger:events:alert_triggered:sui", fr.Channel)
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
