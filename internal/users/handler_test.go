package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc := newTestService()
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Post("/users/", h.Register)
	r.Get("/users/", h.List)
	r.Patch("/users/{username}", h.Update)
	r.Delete("/users/{username}", h.Delete)
	return r, svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Register(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/", map[string]string{
		"username": "alice",
		"password": "pw",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, float64(10), body["credits"])
	assert.Equal(t, true, body["is_active"])
	assert.NotEmpty(t, body["api_key"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "PasswordHash")
}

func TestHandler_RegisterDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)
	payload := map[string]string{"username": "bob", "password": "pw"}

	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/users/", payload).Code)

	rec := doJSON(t, router, http.MethodPost, "/users/", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"username already exists"}`, rec.Body.String())
}

func TestHandler_RegisterValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing username", map[string]string{"password": "pw"}},
		{"missing password", map[string]string{"username": "x"}},
		{"not json", "just a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/users/", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_RegisterValidationMessage(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/", map[string]string{"password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"username is required"}`, rec.Body.String())
}

func TestHandler_RegisterBodyTooLarge(t *testing.T) {
	router, svc := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/", map[string]string{
		"username": "big",
		"password": strings.Repeat("x", maxBodyBytes),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHandler_ListEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/users/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	router, svc := newTestRouter(t)
	_, err := svc.Register(context.Background(), "carol", "pw")
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPatch, "/users/carol", map[string]any{
		"is_active": false,
		"credits":   42,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["is_active"])
	assert.Equal(t, float64(42), body["credits"])

	rec = doJSON(t, router, http.MethodPatch, "/users/carol", map[string]any{"credits": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/users/nobody", map[string]any{"credits": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/users/carol", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/users/carol", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
