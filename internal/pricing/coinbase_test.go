package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinbaseQuote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/prices/SUI-USD/spot":
			_, _ = w.Write([]byte(`{"data":{"amount":"0.9825","base":"SUI","currency":"USD"}}`))
		case "/v2/prices/BAD-USD/spot":
			_, _ = w.Write([]byte(`{"data":{"amount":"n/a"}}`))
		case "/v2/prices/SLOW-USD/spot":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"data":{"amount":"1"}}`))
		default:
			http.Error(w, `{"errors":[{"id":"not_found"}]}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cb := NewCoinbase(srv.URL+"/", 50*time.Millisecond)
	ctx := context.Background()

	price, err := cb.Quote(ctx, "sui")
	require.NoError(t, err)
	assert.Equal(t, 0.9825, price)

	_, err = cb.Quote(ctx, "BAD")
	assert.Error(t, err)

	_, err = cb.Quote(ctx, "NOPE")
	assert.ErrorContains(t, err, "status 404")

	_, err = cb.Quote(ctx, "SLOW")
	assert.Error(t, err)
}
