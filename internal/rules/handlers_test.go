package rules

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandlers_ListEmpty(t *testing.T) {
	handlers := NewHandlers(newTestStore(t))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handlers.list(c); err != nil {
		t.Fatalf("list() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var doc document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(doc.Rules) != 0 {
		t.Errorf("expected empty rules array, got %d", len(doc.Rules))
	}
}

func TestHandlers_ReplaceThenList(t *testing.T) {
	store := newTestStore(t)
	handlers := NewHandlers(store)

	body := `{"rules":[{"name":"US Action","tag":"US-Action","conditions":{"countries":["US"],"genre_ids":[28]},"item_type":"movie","match_all_conditions":false,"is_negative_match":false}]}`

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/rules", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handlers.replace(c); err != nil {
		t.Fatalf("replace() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	ruleSet, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ruleSet) != 1 || ruleSet[0].Tag != "US-Action" {
		t.Errorf("unexpected stored rules: %+v", ruleSet)
	}
}

func TestHandlers_ReplaceRejectsInvalidRule(t *testing.T) {
	handlers := NewHandlers(newTestStore(t))

	body := `{"rules":[{"name":"bad","tag":"","conditions":{},"item_type":"all"}]}`

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/rules", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handlers.replace(c)
	if err == nil {
		t.Fatal("expected error for invalid rule")
	}

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("Expected HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", httpErr.Code, http.StatusBadRequest)
	}
}

func TestHandlers_RegisterRoutes(t *testing.T) {
	handlers := NewHandlers(newTestStore(t))

	e := echo.New()
	handlers.RegisterRoutes(e.Group("/api/rules"))

	registered := make(map[string]bool)
	for _, route := range e.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{"GET /api/rules", "PUT /api/rules"} {
		if !registered[want] {
			t.Errorf("expected route %s not registered", want)
		}
	}
}
