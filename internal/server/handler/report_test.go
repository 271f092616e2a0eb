package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opencivic/satark/internal/audit"
	"github.com/opencivic/satark/internal/chain"
	"github.com/opencivic/satark/internal/ledger"
	"github.com/opencivic/satark/internal/server/handler"
)

func setupRouter(t *testing.T) (*gin.Engine, *chain.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := chain.NewMemoryStore()
	engine := ledger.NewEngine(store, zap.NewNop())
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	verifier := ledger.NewVerifier(store)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewReportHandler(engine, verifier, zap.NewNop()).Register(v1)
	handler.NewLedgerHandler(store, verifier, zap.NewNop()).Register(v1)
	handler.NewAuditHandler(audit.NewExporter(store, verifier), zap.NewNop()).Register(v1)
	return r, store
}

func submitReport(t *testing.T, router *gin.Engine, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var receipt map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &receipt); err != nil {
		t.Fatal(err)
	}
	return receipt
}

func TestSubmit_201(t *testing.T) {
	router, _ := setupRouter(t)

	receipt := submitReport(t, router, `{"service_type":"passport_renewal","office_name":"RPO","amount_demanded":500}`)

	if idx := receipt["index"].(float64); idx != 1 {
		t.Errorf("index: got %v, want 1", idx)
	}
	code, _ := receipt["verification_code"].(string)
	if len(code) != 8 || code != strings.ToUpper(code) {
		t.Errorf("verification code %q: want 8 uppercase hex chars", code)
	}
	if receipt["hash"] == "" || receipt["prev_hash"] == "" {
		t.Error("receipt missing hash linkage")
	}
}

func TestSubmit_400_missingFields(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(`{"office_name":"RPO"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmit_sequentialReceiptsChain(t *testing.T) {
	router, _ := setupRouter(t)

	r1 := submitReport(t, router, `{"service_type":"passport_renewal","office_name":"RPO"}`)
	r2 := submitReport(t, router, `{"service_type":"ration_card","office_name":"Tehsil Office"}`)

	if r2["prev_hash"] != r1["hash"] {
		t.Errorf("second receipt prev_hash %v != first hash %v", r2["prev_hash"], r1["hash"])
	}
	if r2["index"].(float64) != 2 {
		t.Errorf("second index: got %v, want 2", r2["index"])
	}
}

func TestVerifyEntry_200(t *testing.T) {
	router, _ := setupRouter(t)

	receipt := submitReport(t, router, `{"service_type":"passport_renewal","office_name":"RPO"}`)
	id := receipt["entry_id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+id+"/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result map[string]any
	json.Unmarshal(w.Body.Bytes(), &result) //nolint:errcheck
	if result["valid"] != true || result["hash_matches"] != true || result["chain_continuity"] != true {
		t.Errorf("expected fully valid entry, got %v", result)
	}
}

func TestVerifyEntry_400_badID(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/not-a-uuid/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestVerifyEntry_404(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/6ba7b810-9dad-11d1-80b4-00c04fd430c8/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
