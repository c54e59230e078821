package metering

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxgate/fxgate/internal/frankfurter"
)

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(f.svc)
	r := chi.NewRouter()
	r.Get("/currencies/", h.ListCurrencies)
	r.Get("/conversions/", h.Convert)
	r.Get("/historical-rates/{date}", h.HistoricalRates)
	return r
}

func get(t *testing.T, h http.Handler, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set(HeaderAPIKey, apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ListCurrencies(t *testing.T) {
	f := newFixture(t, 10)
	u := f.register(t, "alice")
	router := newTestRouter(f)

	rec := get(t, router, "/currencies/", u.APIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"currencies":{"EUR":"Euro","USD":"United States Dollar"},"credits":9}`, rec.Body.String())
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestHandler_StatusMapping(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		f := newFixture(t, 10)
		rec := get(t, newTestRouter(f), "/currencies/", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"invalid API key or user not found"}`, rec.Body.String())
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("no credits", func(t *testing.T) {
		f := newFixture(t, 0)
		u := f.register(t, "broke")
		rec := get(t, newTestRouter(f), "/currencies/", u.APIKey, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"not enough credits"}`, rec.Body.String())
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t, 20)
		u := f.register(t, "busy")
		router := newTestRouter(f)
		for i := 0; i < 10; i++ {
			require.Equal(t, http.StatusOK, get(t, router, "/currencies/", u.APIKey, "").Code)
		}

		rec := get(t, router, "/currencies/", u.APIKey, "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newFixture(t, 10)
		u := f.register(t, "unlucky")
		f.provider.err = frankfurter.ErrUpstreamUnavailable

		rec := get(t, newTestRouter(f), "/historical-rates/2024-01-01", u.APIKey, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"Historical currency rates not found"}`, rec.Body.String())
	})
}

func TestHandler_Convert(t *testing.T) {
	f := newFixture(t, 10)
	u := f.register(t, "carl")
	router := newTestRouter(f)

	rec := get(t, router, "/conversions/", u.APIKey,
		`{"base_currency":"usd","target_currency":"EUR","amount":100}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "USD", body["base_currency"])
	assert.Equal(t, "EUR", body["target_currency"])
	assert.Equal(t, float64(100), body["amount"])
	assert.Equal(t, 0.92, body["rate"])
	assert.Equal(t, float64(92), body["converted_amount"])
	assert.Equal(t, float64(9), body["credits"])
}

func TestHandler_ConvertValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"malformed", `{"base_currency":`},
		{"bad code", `{"base_currency":"US","target_currency":"EUR","amount":1}`},
		{"digits in code", `{"base_currency":"U5D","target_currency":"EUR","amount":1}`},
		{"negative amount", `{"base_currency":"USD","target_currency":"EUR","amount":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			u := f.register(t, "val")

			rec := get(t, newTestRouter(f), "/conversions/", u.APIKey, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, f.provider.Calls())
			assert.Equal(t, 10, f.credits(t, "val"))
		})
	}
}

func TestHandler_ConvertUnknownKeyBeatsBadBody(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		body   string
	}{
		{"unknown key with empty body", "no-such-key", ``},
		{"missing key with invalid body", "", `{"base_currency":"US"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)

			rec := get(t, newTestRouter(f), "/conversions/", tt.apiKey, tt.body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"invalid API key or user not found"}`, rec.Body.String())
			assert.Zero(t, f.provider.Calls())
		})
	}
}

func TestHandler_ConvertValidationMessage(t *testing.T) {
	f := newFixture(t, 10)
	u := f.register(t, "msg")

	rec := get(t, newTestRouter(f), "/conversions/", u.APIKey, `{"base_currency":"US","target_currency":"EUR"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"base_currency must be 3 characters"}`, rec.Body.String())
}

func TestHandler_HistoricalQuery(t *testing.T) {
	f := newFixture(t, 10)
	u := f.register(t, "dana")

	rec := get(t, newTestRouter(f), "/historical-rates/2024-02-29?base_currency=gbp&target_currency=JPY", u.APIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-02-29", f.provider.lastDate)
	assert.Equal(t, "GBP", f.provider.lastBase)
	assert.Equal(t, "JPY", f.provider.lastTarget)
	assert.JSONEq(t, `{"base_currency":"GBP","date":"2024-02-29","rates":{"EUR":0.91},"credits":9}`, rec.Body.String())
}
