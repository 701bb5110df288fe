package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)
	return client
}

func TestBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/users/u1/balance", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]int{"balance": 7})
	})

	balance, err := client.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
}

func TestBalanceServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Balance(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestBalanceTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	client, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Balance(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestDebitSendsCostFromTable(t *testing.T) {
	var got debitRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/u1/debit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]int{"balance": 0})
	})

	balance, err := client.Debit(context.Background(), "u1", domain.JobKindVideo)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
	assert.Equal(t, 3, got.Amount)
	assert.Equal(t, "video", got.Kind)
}

func TestDebitInsufficientCredits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]int{"required": 3, "available": 1})
	})

	_, err := client.Debit(context.Background(), "u1", domain.JobKindVideo)
	var ins *domain.InsufficientCreditsError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, 3, ins.Required)
	assert.Equal(t, 1, ins.Available)
}

func TestCreditCarriesOpRef(t *testing.T) {
	var got creditRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/u1/credit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]int{"balance": 3})
	})

	err := client.Credit(context.Background(), "u1", 3, "render failed", "op-123")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Amount)
	assert.Equal(t, "render failed", got.Reason)
	assert.Equal(t, "op-123", got.OpRef)
}

func TestCostTableDefaults(t *testing.T) {
	costs := DefaultCosts()
	assert.Equal(t, 1, costs.Cost(domain.JobKindImage))
	assert.Equal(t, 3, costs.Cost(domain.JobKindVideo))
	assert.Equal(t, 1, costs.Cost(domain.JobKind("unknown")))
}
