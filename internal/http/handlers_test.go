package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEventRejectsInvalidPayload(t *testing.T) {
	app := NewApp(nil, zerolog.Nop())
	router := NewRouter(app)

	req := httptest.NewRequest(http.MethodPost, "/v1/transport/events", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventRequiresUserID(t *testing.T) {
	app := NewApp(nil, zerolog.Nop())
	router := NewRouter(app)

	req := httptest.NewRequest(http.MethodPost, "/v1/transport/events", bytes.NewBufferString(`{"type":"text","text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	app := NewApp(nil, zerolog.Nop())
	router := NewRouter(app)

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
