package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/triage/triage/internal/platform/auth"
)

func newTestHandler() (*echo.Echo, *Service) {
	e := echo.New()
	svc, _ := newTestService()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

func doRequest(e *echo.Echo, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "user-1")
	ctx = context.WithValue(ctx, auth.UserRoleKey, role)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestProtocolRoutes_AdminOnly(t *testing.T) {
	e, svc := newTestHandler()
	p := mustCreate(t, svc, &Protocol{Name: "Gripe", Symptoms: []string{"Febre"}})

	requests := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/protocols"},
		{http.MethodPost, "/api/v1/protocols"},
		{http.MethodGet, fmt.Sprintf("/api/v1/protocols/%s", p.ID)},
		{http.MethodPut, fmt.Sprintf("/api/v1/protocols/%s", p.ID)},
		{http.MethodDelete, fmt.Sprintf("/api/v1/protocols/%s", p.ID)},
	}
	for _, role := range []string{auth.RoleDoctor, auth.RolePatient} {
		for _, r := range requests {
			rec := doRequest(e, r.method, r.path, role, nil)
			if rec.Code != http.StatusForbidden {
				t.Errorf("%s %s as %s: expected 403, got %d", r.method, r.path, role, rec.Code)
			}
		}
	}
}

func TestCreateProtocol(t *testing.T) {
	e, _ := newTestHandler()

	rec := doRequest(e, http.MethodPost, "/api/v1/protocols", auth.RoleAdmin, map[string]interface{}{
		"name":            "Protocolo Gripe",
		"symptoms":        []string{"Febre", "Dor de Cabeça"},
		"recommendations": []string{"Repouso"},
		"exams":           []string{"Hemograma"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Protocol
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Name != "Protocolo Gripe" || len(p.Symptoms) != 2 {
		t.Errorf("unexpected protocol: %+v", p)
	}
}

func TestCreateProtocol_Invalid(t *testing.T) {
	e, _ := newTestHandler()

	rec := doRequest(e, http.MethodPost, "/api/v1/protocols", auth.RoleAdmin,
		map[string]interface{}{"name": "Gripe"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty symptom set, got %d", rec.Code)
	}
}

func TestGetProtocol_NotFound(t *testing.T) {
	e, _ := newTestHandler()

	rec := doRequest(e, http.MethodGet,
		"/api/v1/protocols/00000000-0000-0000-0000-000000000001", auth.RoleAdmin, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateProtocol(t *testing.T) {
	e, svc := newTestHandler()
	p := mustCreate(t, svc, &Protocol{Name: "Gripe", Symptoms: []string{"Febre"}})

	rec := doRequest(e, http.MethodPut, fmt.Sprintf("/api/v1/protocols/%s", p.ID), auth.RoleAdmin,
		map[string]interface{}{
			"name":     "Gripe revisado",
			"symptoms": []string{"Febre", "Tosse"},
		})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := svc.GetProtocol(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Gripe revisado" || len(got.Symptoms) != 2 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestArchiveProtocol(t *testing.T) {
	e, svc := newTestHandler()
	p := mustCreate(t, svc, &Protocol{Name: "Gripe", Symptoms: []string{"Febre"}})

	rec := doRequest(e, http.MethodDelete, fmt.Sprintf("/api/v1/protocols/%s", p.ID), auth.RoleAdmin, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := svc.GetProtocol(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("archived protocol must stay readable: %v", err)
	}
	if !got.Archived {
		t.Error("expected archived flag set")
	}
}

func TestListProtocols_ArchivedFilter(t *testing.T) {
	e, svc := newTestHandler()
	ctx := context.Background()
	mustCreate(t, svc, &Protocol{Name: "Ativo", Symptoms: []string{"Febre"}})
	archived := mustCreate(t, svc, &Protocol{Name: "Arquivado", Symptoms: []string{"Tosse"}})
	svc.ArchiveProtocol(ctx, archived.ID)

	var out struct {
		Data  []*Protocol `json:"data"`
		Total int         `json:"total"`
	}

	rec := doRequest(e, http.MethodGet, "/api/v1/protocols", auth.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Total != 1 || out.Data[0].Name != "Ativo" {
		t.Errorf("default listing must exclude archived, got total=%d", out.Total)
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/protocols?archived=1", auth.RoleAdmin, nil)
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Total != 2 {
		t.Errorf("archived=1 listing must include both, got total=%d", out.Total)
	}
}
