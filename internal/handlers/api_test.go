package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "mall-dashboard/internal/errors"
	"mall-dashboard/internal/models"
	"mall-dashboard/internal/services"
)

func createTestStore() *services.Store {
	s := services.NewStore(services.WithLocation(time.UTC))
	s.SetData([]models.Purchase{
		{
			ID:           1,
			CustomerID:   1,
			CustomerName: "김민준",
			Product:      "반팔 티셔츠",
			Price:        decimal.NewFromInt(19000),
			Quantity:     2,
			Date:         time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
			ImageURL:     "/static/img/products/1.png",
		},
		{
			ID:           2,
			CustomerID:   2,
			CustomerName: "이서연",
			Product:      "린넨 셔츠",
			Price:        decimal.NewFromInt(45000),
			Quantity:     1,
			Date:         time.Date(2024, 7, 3, 15, 0, 0, 0, time.UTC),
		},
		{
			ID:           3,
			CustomerID:   1,
			CustomerName: "김민준",
			Product:      "데님 자켓",
			Price:        decimal.NewFromInt(128000),
			Quantity:     1,
			Date:         time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC),
		},
	})
	return s
}

func newTestAPI() *APIHandlers {
	return NewAPIHandlers(createTestStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type testEnvelope struct {
	Data    json.RawMessage    `json:"data"`
	Success bool               `json:"success"`
	Error   *apperrors.AppError `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	store := createTestStore()
	handlers := NewAPIHandlers(store, slog.Default())

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.store != store {
		t.Error("NewAPIHandlers() should set store field")
	}
}

func TestAPIHandlers_HandleCustomers(t *testing.T) {
	handlers := newTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/api/customers?sortBy=desc", nil)
	w := httptest.NewRecorder()
	handlers.HandleCustomers(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("expected Cache-Control 'public, max-age=60', got %q", cc)
	}

	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Error("expected success to be true")
	}

	var customers []models.Customer
	if err := json.Unmarshal(env.Data, &customers); err != nil {
		t.Fatalf("failed to decode customers: %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(customers))
	}
	if customers[0].ID != 1 || !customers[0].TotalAmount.Equal(decimal.NewFromInt(166000)) {
		t.Errorf("expected customer 1 with 166000 first, got %+v", customers[0])
	}
	if customers[0].Count != 2 {
		t.Errorf("expected 2 purchases, got %d", customers[0].Count)
	}
}

func TestAPIHandlers_HandleCustomers_NameFilter(t *testing.T) {
	handlers := newTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/api/customers?name="+url.QueryEscape("서연"), nil)
	w := httptest.NewRecorder()
	handlers.HandleCustomers(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var customers []models.Customer
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &customers); err != nil {
		t.Fatalf("failed to decode customers: %v", err)
	}
	if len(customers) != 1 || customers[0].Name != "이서연" {
		t.Errorf("expected only 이서연, got %+v", customers)
	}
}

func TestAPIHandlers_HandleCustomers_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{"unknown sort", "sortBy=sideways", http.StatusBadRequest, apperrors.CodeValidation},
		{"name too long", "name=" + strings.Repeat("a", 101), http.StatusBadRequest, apperrors.CodeValidation},
		{"no match", "name=" + url.QueryEscape("없는고객"), http.StatusNotFound, apperrors.CodeNotFound},
	}

	handlers := newTestAPI()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/customers?"+tt.query, nil)
			w := httptest.NewRecorder()
			handlers.HandleCustomers(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Success {
				t.Error("expected success to be false")
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("expected error code %s, got %+v", tt.wantCode, env.Error)
			}
		})
	}
}

func TestAPIHandlers_HandleCustomerPurchases(t *testing.T) {
	handlers := newTestAPI()

	tests := []struct {
		id         string
		wantStatus int
		wantLen    int
	}{
		{"1", http.StatusOK, 2},
		{"2", http.StatusOK, 1},
		{"99", http.StatusNotFound, 0},
		{"abc", http.StatusBadRequest, 0},
		{"0", http.StatusBadRequest, 0},
		{"-3", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/customers/"+tt.id+"/purchases", nil)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()
			handlers.HandleCustomerPurchases(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var purchases []models.CustomerPurchase
			if err := json.Unmarshal(decodeEnvelope(t, w).Data, &purchases); err != nil {
				t.Fatalf("failed to decode purchases: %v", err)
			}
			if len(purchases) != tt.wantLen {
				t.Errorf("expected %d purchases, got %d", tt.wantLen, len(purchases))
			}
		})
	}
}

func TestAPIHandlers_HandleCustomerPurchases_Fields(t *testing.T) {
	handlers := newTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/api/customers/1/purchases", nil)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	handlers.HandleCustomerPurchases(w, req)

	var raw []map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &raw); err != nil {
		t.Fatalf("failed to decode purchases: %v", err)
	}
	for _, field := range []string{"date", "quantity", "product", "price", "imgSrc"} {
		if _, ok := raw[0][field]; !ok {
			t.Errorf("expected field %q in purchase", field)
		}
	}
}

func TestAPIHandlers_HandlePurchaseFrequency(t *testing.T) {
	handlers := newTestAPI()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantTotal  int
	}{
		{"all time", "", http.StatusOK, 3},
		{"first week", "from=2024-07-01T00:00:00.000Z&to=2024-07-07T23:59:59.999Z", http.StatusOK, 2},
		{"single day", "from=2024-07-20T00:00:00Z&to=2024-07-20T23:59:59Z", http.StatusOK, 1},
		{"empty window", "from=2025-01-01T00:00:00Z&to=2025-01-31T00:00:00Z", http.StatusOK, 0},
		{"from only", "from=2024-07-01T00:00:00Z", http.StatusBadRequest, 0},
		{"to only", "to=2024-07-01T00:00:00Z", http.StatusBadRequest, 0},
		{"bad instant", "from=2024-07-01&to=2024-07-02", http.StatusBadRequest, 0},
		{"inverted", "from=2024-07-10T00:00:00Z&to=2024-07-01T00:00:00Z", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/purchase-frequency?"+tt.query, nil)
			w := httptest.NewRecorder()
			handlers.HandlePurchaseFrequency(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var freq []models.PriceFrequency
			if err := json.Unmarshal(decodeEnvelope(t, w).Data, &freq); err != nil {
				t.Fatalf("failed to decode frequency: %v", err)
			}
			if len(freq) != 10 {
				t.Fatalf("expected 10 buckets, got %d", len(freq))
			}
			total := 0
			for _, f := range freq {
				total += f.Count
			}
			if total != tt.wantTotal {
				t.Errorf("expected %d purchases counted, got %d", tt.wantTotal, total)
			}
		})
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := newTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "" {
		t.Errorf("health endpoint should not be cached, got %q", cc)
	}

	var health map[string]string
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &health); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", health["status"])
	}
	if _, err := time.Parse(time.RFC3339, health["timestamp"]); err != nil {
		t.Errorf("timestamp should be RFC 3339: %v", err)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := newTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	handlers.HandleStats(w, req)

	var stats map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats["record_count"] != float64(3) {
		t.Errorf("expected record_count 3, got %v", stats["record_count"])
	}
	if stats["customers"] != float64(2) {
		t.Errorf("expected 2 customers, got %v", stats["customers"])
	}
}

type failingStore struct {
	PurchaseStore
	err error
}

func (f failingStore) Customers(context.Context, models.CustomerQuery) ([]models.Customer, error) {
	return nil, f.err
}

func TestAPIHandlers_StoreErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"plain error", context.DeadlineExceeded, http.StatusInternalServerError},
		{"app error", apperrors.ServiceUnavailable("loading"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewAPIHandlers(failingStore{err: tt.err}, slog.New(slog.NewTextHandler(io.Discard, nil)))
			req := httptest.NewRequest(http.MethodGet, "/api/customers", nil)
			w := httptest.NewRecorder()
			handlers.HandleCustomers(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON error, got %q", ct)
			}
		})
	}
}
