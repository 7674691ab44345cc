package audit

import (
	"net/http"

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
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/audit-logs", h.ListLogs)
	admin.GET("/audit-logs/verify", h.VerifyChain)
}

func (h *Handler) ListLogs(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		UserID:       c.QueryParam("user_id"),
		ResourceType: c.QueryParam("resource_type"),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Log{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) VerifyChain(c echo.Context) error {
	v, err := h.svc.Verify(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, v)
}
