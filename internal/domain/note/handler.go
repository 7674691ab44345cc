package note

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/securemed/mednotes/internal/platform/auth"
	"github.com/securemed/mednotes/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RoleDoctor, auth.RoleNurse)

	read := api.Group("", role)
	read.GET("/notes", h.ListNotes)
	read.GET("/notes/:id", h.GetNote)

	write := api.Group("", role)
	write.POST("/notes", h.CreateNote)
	write.PUT("/notes/:id", h.UpdateNote)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "note not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type createRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	NoteType  string    `json:"note_type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
}

func (h *Handler) CreateNote(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n := &Note{
		PatientID: req.PatientID,
		NoteType:  req.NoteType,
		Title:     req.Title,
		Content:   req.Content,
		Status:    req.Status,
	}
	if err := h.svc.CreateNote(c.Request().Context(), n); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) GetNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.GetNote(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{NoteType: c.QueryParam("note_type")}
	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}
	items, total, err := h.svc.ListNotes(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Note{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.UpdateNote(c.Request().Context(), id, u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}
