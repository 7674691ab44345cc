package reporting

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/securemed/mednotes/internal/platform/auth"
)

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	gen       *Generator
	schedules *ScheduleStore
	now       func() time.Time
}

// NewHandler creates a new reporting handler.
func NewHandler(gen *Generator, schedules *ScheduleStore) *Handler {
	return &Handler{gen: gen, schedules: schedules, now: time.Now}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleDoctor))
	read.GET("/reports/types", h.ListDefinitions)
	read.GET("/reports/daily", h.Daily)
	read.GET("/reports/weekly", h.Weekly)
	read.GET("/reports/patient/:patient_id", h.Patient)
	read.GET("/reports/risk-assessment", h.RiskAssessment)
	read.GET("/reports/department/:department", h.Department)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/reports/schedules", h.ListSchedules)
	admin.POST("/reports/schedules", h.CreateSchedule)
	admin.GET("/reports/schedules/:id", h.GetSchedule)
	admin.DELETE("/reports/schedules/:id", h.DeleteSchedule)
}

func (h *Handler) ListDefinitions(c echo.Context) error {
	return c.JSON(http.StatusOK, Definitions)
}

func parseDate(c echo.Context, name string, def time.Time) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s: expected YYYY-MM-DD", name))
	}
	return t, nil
}

// parseRange reads from/to dates; to is inclusive on the wire and defaults
// to today, from defaults to six days before to.
func (h *Handler) parseRange(c echo.Context) (time.Time, time.Time, error) {
	to, err := parseDate(c, "to", startOfDay(h.now().UTC()))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := parseDate(c, "from", to.AddDate(0, 0, -6))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "from must not be after to")
	}
	return from, to.AddDate(0, 0, 1), nil
}

// respond writes r in the format named by ?format=.
func respond(c echo.Context, r *Report, err error) error {
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	filename := strings.ReplaceAll(strings.ToLower(r.Type), " ", "_")
	switch c.QueryParam("format") {
	case "", FormatJSON:
		return c.JSON(http.StatusOK, r)
	case FormatMarkdown:
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(Markdown(r)))
	case FormatHTML:
		body, err := HTML(r)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.HTMLBlob(http.StatusOK, body)
	case FormatPDF:
		body, err := PDF(r)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename+".pdf"))
		return c.Blob(http.StatusOK, "application/pdf", body)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format must be one of json, markdown, html, pdf")
	}
}

// Daily handles GET /reports/daily?date=YYYY-MM-DD.
func (h *Handler) Daily(c echo.Context) error {
	day, err := parseDate(c, "date", h.now().UTC())
	if err != nil {
		return err
	}
	r, err := h.gen.Daily(c.Request().Context(), day)
	return respond(c, r, err)
}

// Weekly handles GET /reports/weekly?start=YYYY-MM-DD.
func (h *Handler) Weekly(c echo.Context) error {
	start, err := parseDate(c, "start", startOfDay(h.now().UTC()).AddDate(0, 0, -6))
	if err != nil {
		return err
	}
	r, err := h.gen.Weekly(c.Request().Context(), start)
	return respond(c, r, err)
}

func (h *Handler) Patient(c echo.Context) error {
	r, err := h.gen.Patient(c.Request().Context(), c.Param("patient_id"))
	return respond(c, r, err)
}

func (h *Handler) RiskAssessment(c echo.Context) error {
	from, to, err := h.parseRange(c)
	if err != nil {
		return err
	}
	r, err := h.gen.RiskAssessment(c.Request().Context(), from, to)
	return respond(c, r, err)
}

func (h *Handler) Department(c echo.Context) error {
	from, to, err := h.parseRange(c)
	if err != nil {
		return err
	}
	r, err := h.gen.Department(c.Request().Context(), c.Param("department"), from, to)
	return respond(c, r, err)
}

type scheduleRequest struct {
	ReportType string   `json:"report_type"`
	Frequency  string   `json:"frequency"`
	Recipients []string `json:"recipients"`
}

type scheduleResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Config  *Schedule `json:"config"`
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sch, err := h.schedules.Create(req.ReportType, req.Frequency, req.Recipients)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, scheduleResponse{
		Success: true,
		Message: fmt.Sprintf("%s scheduled for %s delivery", FindDefinition(sch.Kind).Name, sch.Frequency),
		Config:  sch,
	})
}

func (h *Handler) ListSchedules(c echo.Context) error {
	return c.JSON(http.StatusOK, h.schedules.List())
}

func (h *Handler) GetSchedule(c echo.Context) error {
	sch, err := h.schedules.Get(c.Param("id"))
	if errors.Is(err, ErrScheduleNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, sch)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	if err := h.schedules.Delete(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
