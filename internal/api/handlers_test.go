package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stepangreenberg/order-processor/internal/api"
	"github.com/stepangreenberg/order-processor/internal/storage/memory"
	"github.com/stepangreenberg/order-processor/internal/usecase"
)

func newTestHandler() (*api.Handler, *memory.Store) {
	store := memory.New()
	return &api.Handler{
		Orders:     usecase.NewOrderUseCases(store),
		UOWFactory: store,
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, store
}

func TestCreateOrder_201OnSuccess(t *testing.T) {
	h, _ := newTestHandler()
	router := h.NewRouter()

	body := `{"order_id":"ord-1","customer_id":"cust-1","items":[{"sku":"widget","quantity":1,"price":10}]}`
	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateOrder_400InvalidJSONUsesErrorDTO(t *testing.T) {
	h, _ := newTestHandler()
	router := h.NewRouter()

	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{not json"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Contains(t, got, "detail")
	require.Equal(t, "bad_request", got["error_type"])
}

func TestCreateOrder_400ValidationFailureUsesErrorDTO(t *testing.T) {
	h, _ := newTestHandler()
	router := h.NewRouter()

	payload, err := json.Marshal(map[string]any{"order_id": "ord-1"})
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, "validation_error", got["error_type"])
}

func TestGetOrder_404UsesErrorDTO(t *testing.T) {
	h, _ := newTestHandler()
	router := h.NewRouter()

	r := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, "not_found", got["error_type"])
	require.Equal(t, "order not found", got["detail"])
}
