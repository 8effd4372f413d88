package report

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
	svc := NewService(newMockRepo(), nil)
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

// doRequest performs a request with the caller's identity already on the
// request context, as the auth middleware would leave it.
func doRequest(e *echo.Echo, method, path, userID, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != "" {
		ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
		ctx = context.WithValue(ctx, auth.UserRoleKey, role)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) *Report {
	t.Helper()
	var r Report
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return &r
}

func TestCreateReport(t *testing.T) {
	e, _ := newTestHandler()

	rec := doRequest(e, http.MethodPost, "/api/v1/reports", "patient-1", auth.RolePatient,
		map[string]interface{}{"symptoms": []string{"Febre", "Dor de Cabeça"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	r := decodeReport(t, rec)
	if r.Status != StatusPreliminary {
		t.Errorf("expected preliminary, got %q", r.Status)
	}
	if r.PatientRef != "patient-1" {
		t.Errorf("patient ref must come from the token, got %q", r.PatientRef)
	}
}

func TestCreateReport_RoleGates(t *testing.T) {
	e, _ := newTestHandler()
	body := map[string]interface{}{"symptoms": []string{"Febre"}}

	for _, role := range []string{auth.RoleDoctor, auth.RoleAdmin} {
		rec := doRequest(e, http.MethodPost, "/api/v1/reports", "user-1", role, body)
		if rec.Code != http.StatusForbidden {
			t.Errorf("role %s: expected 403, got %d", role, rec.Code)
		}
	}
}

func TestCreateReport_EmptySymptoms(t *testing.T) {
	e, _ := newTestHandler()

	rec := doRequest(e, http.MethodPost, "/api/v1/reports", "patient-1", auth.RolePatient,
		map[string]interface{}{"symptoms": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetReport_OwnerAndRoles(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})
	path := fmt.Sprintf("/api/v1/reports/%s", r.ID)

	tests := []struct {
		name   string
		userID string
		role   string
		want   int
	}{
		{"owner", "patient-1", auth.RolePatient, http.StatusOK},
		{"doctor", "doctor-1", auth.RoleDoctor, http.StatusOK},
		{"admin", "admin-1", auth.RoleAdmin, http.StatusOK},
		// A non-owner patient gets 404, not 403, so report IDs cannot be
		// probed for existence.
		{"other patient", "patient-2", auth.RolePatient, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodGet, path, tt.userID, tt.role, nil)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetReport_InvalidID(t *testing.T) {
	e, _ := newTestHandler()
	rec := doRequest(e, http.MethodGet, "/api/v1/reports/not-a-uuid", "doctor-1", auth.RoleDoctor, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListReports_Partitions(t *testing.T) {
	e, svc := newTestHandler()
	ctx := context.Background()

	svc.Submit(ctx, "patient-1", []string{"Febre"})
	r2, _ := svc.Submit(ctx, "patient-2", []string{"Tosse"})
	svc.RecordOpinion(ctx, r2.ID, "Suspeita de gripe")
	svc.Validate(ctx, r2.ID, "doctor-1")

	var out struct {
		Data  []*Report `json:"data"`
		Total int       `json:"total"`
	}

	rec := doRequest(e, http.MethodGet, "/api/v1/reports?status=preliminary", "doctor-1", auth.RoleDoctor, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Total != 1 || out.Data[0].Status != StatusPreliminary {
		t.Errorf("unexpected pending partition: total=%d", out.Total)
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/reports?status=other", "doctor-1", auth.RoleDoctor, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Total != 1 || out.Data[0].Status != StatusValidated {
		t.Errorf("unexpected other partition: total=%d", out.Total)
	}
}

func TestListReports_UnknownStatus(t *testing.T) {
	e, _ := newTestHandler()
	rec := doRequest(e, http.MethodGet, "/api/v1/reports?status=bogus", "doctor-1", auth.RoleDoctor, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListReports_PatientMustUseMine(t *testing.T) {
	e, svc := newTestHandler()
	ctx := context.Background()
	svc.Submit(ctx, "patient-1", []string{"Febre"})
	svc.Submit(ctx, "patient-2", []string{"Tosse"})

	rec := doRequest(e, http.MethodGet, "/api/v1/reports", "patient-1", auth.RolePatient, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient listing all reports, got %d", rec.Code)
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/reports?mine=1", "patient-1", auth.RolePatient, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Data  []*Report `json:"data"`
		Total int       `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Total != 1 || out.Data[0].PatientRef != "patient-1" {
		t.Errorf("mine=1 must return only the caller's reports, total=%d", out.Total)
	}
}

func TestPatchExams(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})
	path := fmt.Sprintf("/api/v1/reports/%s/exams", r.ID)

	rec := doRequest(e, http.MethodPatch, path, "doctor-1", auth.RoleDoctor,
		map[string]interface{}{"op": "add", "exam": map[string]string{"name": "Raio-X"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeReport(t, rec)
	if len(updated.Exams) != 1 || updated.Exams[0].Name != "Raio-X" {
		t.Fatalf("expected exam Raio-X, got %+v", updated.Exams)
	}

	rec = doRequest(e, http.MethodPatch, path, "doctor-1", auth.RoleDoctor,
		map[string]interface{}{"op": "remove", "index": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if updated = decodeReport(t, rec); len(updated.Exams) != 0 {
		t.Errorf("expected exams emptied, got %+v", updated.Exams)
	}
}

func TestPatchExams_BadOp(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})

	rec := doRequest(e, http.MethodPatch, fmt.Sprintf("/api/v1/reports/%s/exams", r.ID),
		"doctor-1", auth.RoleDoctor, map[string]interface{}{"op": "replace"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPatchEndpoints_DoctorOnly(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})

	paths := []string{
		fmt.Sprintf("/api/v1/reports/%s/exams", r.ID),
		fmt.Sprintf("/api/v1/reports/%s/recommendations", r.ID),
		fmt.Sprintf("/api/v1/reports/%s/opinion", r.ID),
	}
	for _, role := range []string{auth.RolePatient, auth.RoleAdmin} {
		for _, path := range paths {
			rec := doRequest(e, http.MethodPatch, path, "user-1", role,
				map[string]interface{}{"op": "add"})
			if rec.Code != http.StatusForbidden {
				t.Errorf("%s as %s: expected 403, got %d", path, role, rec.Code)
			}
		}
	}
}

func TestPatchRecommendations(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})
	path := fmt.Sprintf("/api/v1/reports/%s/recommendations", r.ID)

	rec := doRequest(e, http.MethodPatch, path, "doctor-1", auth.RoleDoctor,
		map[string]interface{}{"op": "add", "text": "Repouso"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if updated := decodeReport(t, rec); len(updated.Recommendations) != 1 {
		t.Errorf("expected 1 recommendation, got %+v", updated.Recommendations)
	}
}

func TestPatchOpinion(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})

	rec := doRequest(e, http.MethodPatch, fmt.Sprintf("/api/v1/reports/%s/opinion", r.ID),
		"doctor-1", auth.RoleDoctor, map[string]string{"text": "Suspeita de gripe"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeReport(t, rec)
	if updated.Opinion != "Suspeita de gripe" || updated.Status != StatusPreliminary {
		t.Errorf("unexpected state after opinion patch: %+v", updated)
	}
}

func TestValidateReport_WithoutOpinion(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})

	rec := doRequest(e, http.MethodPost, fmt.Sprintf("/api/v1/reports/%s/validate", r.ID),
		"doctor-1", auth.RoleDoctor, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestValidateReport(t *testing.T) {
	e, svc := newTestHandler()
	ctx := context.Background()
	r, _ := svc.Submit(ctx, "patient-1", []string{"Febre"})
	svc.RecordOpinion(ctx, r.ID, "Suspeita de gripe")

	rec := doRequest(e, http.MethodPost, fmt.Sprintf("/api/v1/reports/%s/validate", r.ID),
		"doctor-1", auth.RoleDoctor, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	validated := decodeReport(t, rec)
	if validated.Status != StatusValidated || validated.ValidatedBy != "doctor-1" {
		t.Errorf("unexpected state after validation: %+v", validated)
	}

	// Second validation hits the state machine, not the role gate.
	rec = doRequest(e, http.MethodPost, fmt.Sprintf("/api/v1/reports/%s/validate", r.ID),
		"doctor-2", auth.RoleDoctor, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on double validation, got %d", rec.Code)
	}
}

func TestCloseReport(t *testing.T) {
	e, svc := newTestHandler()
	ctx := context.Background()
	r, _ := svc.Submit(ctx, "patient-1", []string{"Febre"})
	svc.RecordOpinion(ctx, r.ID, "Suspeita de gripe")
	svc.Validate(ctx, r.ID, "doctor-1")
	path := fmt.Sprintf("/api/v1/reports/%s/close", r.ID)

	for _, role := range []string{auth.RolePatient, auth.RoleDoctor} {
		rec := doRequest(e, http.MethodPost, path, "user-1", role, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("role %s: expected 403, got %d", role, rec.Code)
		}
	}

	rec := doRequest(e, http.MethodPost, path, "admin-1", auth.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if closed := decodeReport(t, rec); closed.Status != StatusClosed {
		t.Errorf("expected closed, got %q", closed.Status)
	}
}

func TestCloseReport_Preliminary(t *testing.T) {
	e, svc := newTestHandler()
	r, _ := svc.Submit(context.Background(), "patient-1", []string{"Febre"})

	rec := doRequest(e, http.MethodPost, fmt.Sprintf("/api/v1/reports/%s/close", r.ID),
		"admin-1", auth.RoleAdmin, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}
