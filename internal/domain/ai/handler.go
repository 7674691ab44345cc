package ai

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
	"github.com/securemed/mednotes/internal/platform/auth"
	"github.com/securemed/mednotes/internal/platform/taskqueue"
)

const (
	overviewNotes = 10
	maxBatch      = 50
)

type Handler struct {
	analyzer   *Analyzer
	summarizer *Summarizer
	risk       *RiskService
	timeline   *TimelineService
	notes      NoteStore
	patients   PatientStore
	tasks      taskqueue.Dispatcher
}

func NewHandler(analyzer *Analyzer, summarizer *Summarizer, riskSvc *RiskService, timeline *TimelineService,
	notes NoteStore, patients PatientStore, tasks taskqueue.Dispatcher) *Handler {
	return &Handler{
		analyzer:   analyzer,
		summarizer: summarizer,
		risk:       riskSvc,
		timeline:   timeline,
		notes:      notes,
		patients:   patients,
		tasks:      tasks,
	}
}

// RegisterRoutes mounts the AI endpoints on api under /ai.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/ai", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.POST("/summarize/:note_id", h.Summarize)
	g.POST("/summarize/:note_id/sync", h.SummarizeSync)
	g.GET("/risk-report/:patient_id", h.RiskReport)
	g.GET("/high-risk-patients", h.HighRiskPatients)
	g.POST("/batch-summarize", h.BatchSummarize)
	g.GET("/ai-status", h.Status)
	g.POST("/patient-summary/:patient_id", h.PatientSummary)
	g.GET("/patient-timeline/:patient_id", h.PatientTimeline)
	g.POST("/risk-assessment/:patient_id", h.QueueRiskAssessment)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, note.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "note not found")
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, taskqueue.ErrQueueFull), errors.Is(err, taskqueue.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) enqueue(c echo.Context, endpoint string, payload any) (string, error) {
	task, err := taskqueue.NewTask(endpoint, payload)
	if err != nil {
		return "", err
	}
	return h.tasks.Enqueue(c.Request().Context(), task)
}

func (h *Handler) Summarize(c echo.Context) error {
	id, err := uuidParam(c, "note_id")
	if err != nil {
		return err
	}
	if _, err := h.notes.GetNote(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	taskID, err := h.enqueue(c, EndpointSummarize, summarizePayload{NoteID: id})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Note summarization task queued",
		"note_id": id,
		"task_id": taskID,
		"status":  "processing",
	})
}

func (h *Handler) SummarizeSync(c echo.Context) error {
	id, err := uuidParam(c, "note_id")
	if err != nil {
		return err
	}
	res, err := h.summarizer.ProcessNote(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) RiskReport(c echo.Context) error {
	id, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	report, err := h.risk.GenerateReport(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) HighRiskPatients(c echo.Context) error {
	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
		}
		limit = n
	}
	patients, err := h.risk.HighRiskPatients(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"high_risk_patients": patients,
		"count":              len(patients),
	})
}

type batchRequest struct {
	NoteIDs []uuid.UUID `json:"note_ids"`
}

type batchResult struct {
	NoteID    uuid.UUID `json:"note_id"`
	Success   bool      `json:"success"`
	Summary   string    `json:"summary,omitempty"`
	RiskLevel string    `json:"risk_level,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// BatchSummarize processes notes one after another. Unknown notes are
// skipped; other failures are reported per note.
func (h *Handler) BatchSummarize(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.NoteIDs) > maxBatch {
		return echo.NewHTTPError(http.StatusBadRequest, "too many note_ids (max "+strconv.Itoa(maxBatch)+")")
	}
	ctx := c.Request().Context()
	results := make([]batchResult, 0, len(req.NoteIDs))
	for _, id := range req.NoteIDs {
		res, err := h.summarizer.ProcessNote(ctx, id)
		if errors.Is(err, note.ErrNotFound) || errors.Is(err, patient.ErrNotFound) {
			continue
		}
		if err != nil {
			results = append(results, batchResult{NoteID: id, Error: err.Error()})
			continue
		}
		results = append(results, batchResult{
			NoteID:    id,
			Success:   true,
			Summary:   res.Summary,
			RiskLevel: string(res.RiskLevel),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Processed " + strconv.Itoa(len(results)) + " notes",
		"results": results,
	})
}

func (h *Handler) Status(c echo.Context) error {
	status := "disabled"
	if h.analyzer.Enabled() {
		status = "operational"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":           status,
		"llm_configured":   h.analyzer.Enabled(),
		"model":            h.analyzer.Model(),
		"keyword_fallback": true,
	})
}

func (h *Handler) PatientSummary(c echo.Context) error {
	id, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.patients.GetPatient(ctx, id)
	if err != nil {
		return httpError(err)
	}
	notes, err := h.notes.ListByPatient(ctx, id)
	if err != nil {
		return httpError(err)
	}
	texts := make([]string, 0, overviewNotes)
	for _, n := range notes {
		if len(texts) == overviewNotes {
			break
		}
		if n.Content != "" {
			texts = append(texts, n.Content)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"patient_id": id,
		"summary":    h.analyzer.PatientOverview(ctx, p.FullName(), texts),
	})
}

func (h *Handler) PatientTimeline(c echo.Context) error {
	id, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	view, err := h.timeline.Timeline(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) QueueRiskAssessment(c echo.Context) error {
	id, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	if _, err := h.patients.GetPatient(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	taskID, err := h.enqueue(c, EndpointRiskAssessment, riskAssessmentPayload{PatientID: id})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"message":    "Risk assessment task queued",
		"patient_id": id,
		"task_id":    taskID,
		"status":     "processing",
	})
}
