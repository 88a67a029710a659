package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"panaderia/backend/internal/cache"
	"panaderia/backend/internal/service"
	"panaderia/backend/internal/store/memory"
)

// newTestAPI builds a full API over an empty in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.New()
	svc := service.New(repo, cache.NoopSummaryCache{})
	return New(svc, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func createTestProduct(t *testing.T, handler http.Handler, name string, price float64) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":  name,
		"price": price,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	product := decodeBody(t, rec)["product"].(map[string]any)
	return product["id"].(string)
}

func createTestSale(t *testing.T, handler http.Handler, date, method, productID string, qty, unitPrice float64) map[string]any {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"date":           date,
		"payment_method": method,
		"items": []map[string]any{
			{"product_id": productID, "quantity": qty, "unit_price": unitPrice},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)["sale"].(map[string]any)
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestProductLifecycle(t *testing.T) {
	handler := newTestAPI(t).Handler()

	id := createTestProduct(t, handler, "Concha", 9)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/products/"+id, map[string]any{"price": 10.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("update product: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	product := decodeBody(t, rec)["product"].(map[string]any)
	if product["price"] != 10.5 {
		t.Fatalf("expected updated price 10.5, got %v", product["price"])
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete product: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestProductValidationStatus(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":  "",
		"price": 5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":    "Concha",
		"price":   5,
		"unknown": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestSaleCreateAndFetch(t *testing.T) {
	handler := newTestAPI(t).Handler()

	productID := createTestProduct(t, handler, "Bread", 150)
	sale := createTestSale(t, handler, "2026-03-10", "cash", productID, 2, 150)

	if sale["total"] != float64(300) {
		t.Fatalf("expected total 300, got %v", sale["total"])
	}
	items := sale["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0].(map[string]any)
	if item["product_name"] != "Bread" {
		t.Fatalf("expected enriched product name, got %v", item["product_name"])
	}

	rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/sales/%s", sale["id"]), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale: expected 200, got %d", rec.Code)
	}
}

func TestSaleCreateRejectsEmptyItems(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"date":           "2026-03-10",
		"payment_method": "cash",
		"items":          []any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty items, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSaleListFiltersByDate(t *testing.T) {
	handler := newTestAPI(t).Handler()

	productID := createTestProduct(t, handler, "Bread", 150)
	createTestSale(t, handler, "2026-03-09", "cash", productID, 1, 150)
	createTestSale(t, handler, "2026-03-10", "card", productID, 1, 150)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/sales?date_from=2026-03-10&date_to=2026-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sales: expected 200, got %d", rec.Code)
	}
	sales := decodeBody(t, rec)["sales"].([]any)
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale in range, got %d", len(sales))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales?date_from=not-a-date", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestSaleUpdateReplacesItems(t *testing.T) {
	handler := newTestAPI(t).Handler()

	productID := createTestProduct(t, handler, "Bread", 150)
	sale := createTestSale(t, handler, "2026-03-10", "cash", productID, 2, 150)

	rec := doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/v1/sales/%s", sale["id"]), map[string]any{
		"items": []map[string]any{
			{"product_id": productID, "quantity": 1, "unit_price": 150},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update sale: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	updated := decodeBody(t, rec)["sale"].(map[string]any)
	if updated["total"] != float64(150) {
		t.Fatalf("expected recomputed total 150, got %v", updated["total"])
	}
}

func TestSalesSummaryEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()

	productID := createTestProduct(t, handler, "Bread", 100)
	createTestSale(t, handler, "2026-03-10", "cash", productID, 1, 100)
	createTestSale(t, handler, "2026-03-10", "card", productID, 1, 101)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/sales/stats/summary?date_from=2026-03-10&date_to=2026-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	summary := decodeBody(t, rec)["summary"].(map[string]any)
	if summary["total_count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", summary["total_count"])
	}
	if summary["average_ticket"] != float64(100.5) {
		t.Fatalf("expected average 100.5, got %v", summary["average_ticket"])
	}
}

func TestCashClosingFlow(t *testing.T) {
	handler := newTestAPI(t).Handler()

	productID := createTestProduct(t, handler, "Bread", 150)
	createTestSale(t, handler, "2026-03-10", "cash", productID, 2, 150)

	// No closing recorded yet: the endpoint returns a live projection.
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/cash-closing?date=2026-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("closing status: expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["exists"] != false {
		t.Fatalf("expected exists=false, got %v", body["exists"])
	}
	if body["total_cash_sales"] != float64(300) {
		t.Fatalf("expected projection cash sales 300, got %v", body["total_cash_sales"])
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cash-closing", map[string]any{
		"date":         "2026-03-10",
		"initial_cash": 1000,
		"counted_cash": 1300,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create closing: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	closing := decodeBody(t, rec)["closing"].(map[string]any)
	if closing["difference"] != float64(0) {
		t.Fatalf("expected difference 0, got %v", closing["difference"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cash-closing?date=2026-03-10", nil)
	body = decodeBody(t, rec)
	if body["exists"] != true {
		t.Fatalf("expected exists=true after create, got %v", body["exists"])
	}

	// Duplicate date is a conflict.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cash-closing", map[string]any{
		"date":         "2026-03-10",
		"counted_cash": 1,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate date, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/v1/cash-closing/%s", closing["id"]), map[string]any{
		"counted_cash": 1250,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update closing: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	updated := decodeBody(t, rec)["closing"].(map[string]any)
	if updated["difference"] != float64(-50) {
		t.Fatalf("expected difference -50, got %v", updated["difference"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cash-closing/list", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list closings: expected 200, got %d", rec.Code)
	}
	closings := decodeBody(t, rec)["closings"].([]any)
	if len(closings) != 1 {
		t.Fatalf("expected 1 closing, got %d", len(closings))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/cash-closing/list", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS origin header")
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	preflight := httptest.NewRecorder()
	handler.ServeHTTP(preflight, req)
	if preflight.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", preflight.Code)
	}
}
