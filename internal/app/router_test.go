package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"toeicbank/internal/app/logger"
	"toeicbank/internal/importer"
)

func TestHealthzReportsEnvironment(t *testing.T) {
	log := logger.NewNop()
	importSvc := importer.NewService(nil, nil, importer.Config{}, log)
	router := NewRouter(Config{AppEnv: "staging"}, nil, log, importSvc)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		OK  bool   `json:"ok"`
		Env string `json:"env"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode healthz body: %v", err)
	}
	if !body.OK || body.Env != "staging" {
		t.Fatalf("healthz body = %+v", body)
	}
}
