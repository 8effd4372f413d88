package report

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/triage/triage/internal/platform/auth"
	"github.com/triage/triage/internal/platform/errs"
	"github.com/triage/triage/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reports", h.CreateReport, auth.RequireRole(auth.RolePatient))
	api.GET("/reports", h.ListReports)
	api.GET("/reports/:id", h.GetReport)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.PATCH("/reports/:id/exams", h.PatchExams)
	doctor.PATCH("/reports/:id/recommendations", h.PatchRecommendations)
	doctor.PATCH("/reports/:id/opinion", h.PatchOpinion)
	doctor.POST("/reports/:id/validate", h.ValidateReport)

	api.POST("/reports/:id/close", h.CloseReport, auth.RequireRole(auth.RoleAdmin))
}

func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(errs.Status(err), err.Error())
}

func reportID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type createReportRequest struct {
	Symptoms []string `json:"symptoms"`
}

func (h *Handler) CreateReport(c echo.Context) error {
	var req createReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientRef := auth.UserIDFromContext(c.Request().Context())
	r, err := h.svc.Submit(c.Request().Context(), patientRef, req.Symptoms)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

// ListReports serves both dashboard partitions and the patient's own
// submissions. status=preliminary is the pending view; status=other is
// everything past preliminary. mine=1 restricts to the caller's reports and
// is the only listing a patient may request.
func (h *Handler) ListReports(c echo.Context) error {
	ctx := c.Request().Context()
	role := auth.RoleFromContext(ctx)
	pg := pagination.FromContext(c)

	if c.QueryParam("mine") == "1" {
		if err := auth.Authorize(role, auth.ActionReadReport, true); err != nil {
			return httpError(err)
		}
		items, total, err := h.svc.ListByPatient(ctx, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	if role != auth.RoleDoctor && role != auth.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "required role: doctor or admin")
	}

	var (
		items []*Report
		total int
		err   error
	)
	switch c.QueryParam("status") {
	case "", "preliminary":
		items, total, err = h.svc.ListPending(ctx, pg.Limit, pg.Offset)
	case "other":
		items, total, err = h.svc.ListOther(ctx, pg.Limit, pg.Offset)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "status must be preliminary or other")
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := h.svc.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	owner := r.OwnedBy(auth.UserIDFromContext(ctx))
	if err := auth.Authorize(auth.RoleFromContext(ctx), auth.ActionReadReport, owner); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type patchExamsRequest struct {
	Op    string `json:"op"`
	Exam  Exam   `json:"exam"`
	Index int    `json:"index"`
}

func (h *Handler) PatchExams(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req patchExamsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	var r *Report
	switch req.Op {
	case "add":
		r, err = h.svc.AddExam(ctx, id, req.Exam)
	case "remove":
		r, err = h.svc.RemoveExam(ctx, id, req.Index)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "op must be add or remove")
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type patchRecommendationsRequest struct {
	Op    string `json:"op"`
	Text  string `json:"text"`
	Index int    `json:"index"`
}

func (h *Handler) PatchRecommendations(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req patchRecommendationsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	var r *Report
	switch req.Op {
	case "add":
		r, err = h.svc.AddRecommendation(ctx, id, req.Text)
	case "remove":
		r, err = h.svc.RemoveRecommendation(ctx, id, req.Index)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "op must be add or remove")
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type patchOpinionRequest struct {
	Text string `json:"text"`
}

func (h *Handler) PatchOpinion(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req patchOpinionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.RecordOpinion(c.Request().Context(), id, req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ValidateReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := h.svc.Validate(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		// A missing opinion is a semantically complete but unprocessable
		// request, not a malformed one.
		if errors.Is(err, errs.ErrValidation) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) CloseReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Close(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}
