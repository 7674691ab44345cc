package notification

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/securemed/mednotes/internal/platform/auth"
)

// NotificationHandler exposes notification operations over HTTP via Echo.
type NotificationHandler struct {
	manager         *NotificationManager
	alertRecipients []string
}

// NewNotificationHandler creates a new NotificationHandler. alertRecipients
// receive critical alerts when a request does not name its own.
func NewNotificationHandler(mgr *NotificationManager, alertRecipients []string) *NotificationHandler {
	return &NotificationHandler{manager: mgr, alertRecipients: alertRecipients}
}

// RegisterRoutes registers all notification routes on the given Echo group.
func (h *NotificationHandler) RegisterRoutes(g *echo.Group) {
	send := g.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	send.POST("/notifications/send", h.HandleSend)
	send.POST("/notifications/send-template", h.HandleSendTemplate)
	send.POST("/notifications/critical-alert", h.HandleCriticalAlert)
	send.POST("/notifications/lab-results", h.HandleLabResults)
	send.POST("/notifications/medication-reminder", h.HandleMedicationReminder)
	send.POST("/notifications/follow-up", h.HandleFollowUp)
	send.POST("/notifications/discharge-instructions", h.HandleDischargeInstructions)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/notifications/stats", h.HandleStats)
	admin.GET("/notifications/:id", h.HandleGet)
	admin.GET("/notifications", h.HandleList)
	admin.POST("/notifications/:id/retry", h.HandleRetry)
}

type sendRequest struct {
	Type      NotificationType  `json:"type"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Priority  string            `json:"priority"`
	Metadata  map[string]string `json:"metadata"`
}

// HandleSend handles POST /notifications/send. A failed delivery still
// returns the recorded notification so the caller can retry it.
func (h *NotificationHandler) HandleSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient is required")
	}

	n := &Notification{
		Type:      req.Type,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Body:      req.Body,
		Priority:  req.Priority,
		Metadata:  req.Metadata,
	}
	_ = h.manager.Send(c.Request().Context(), n)
	return c.JSON(http.StatusCreated, n)
}

type sendTemplateRequest struct {
	TemplateID string            `json:"template_id"`
	Recipient  string            `json:"recipient"`
	Data       map[string]string `json:"data"`
}

// HandleSendTemplate handles POST /notifications/send-template.
func (h *NotificationHandler) HandleSendTemplate(c echo.Context) error {
	var req sendTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	n, err := h.manager.SendFromTemplate(c.Request().Context(), req.TemplateID, req.Data, req.Recipient)
	if err != nil && n == nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, n)
}

type criticalAlertRequest struct {
	PatientName string   `json:"patient_name"`
	Message     string   `json:"message"`
	Recipients  []string `json:"recipients"`
}

// deliveryResult summarizes a multi-recipient send.
type deliveryResult struct {
	Success       bool            `json:"success"`
	Notifications []*Notification `json:"notifications"`
	Error         string          `json:"error,omitempty"`
}

func newDeliveryResult(sent []*Notification, err error) deliveryResult {
	r := deliveryResult{Success: err == nil, Notifications: sent}
	if err != nil {
		r.Error = err.Error()
	}
	if r.Notifications == nil {
		r.Notifications = []*Notification{}
	}
	return r
}

// HandleCriticalAlert handles POST /notifications/critical-alert.
func (h *NotificationHandler) HandleCriticalAlert(c echo.Context) error {
	var req criticalAlertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.PatientName) == "" || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_name and message are required")
	}
	recipients := req.Recipients
	if len(recipients) == 0 {
		recipients = h.alertRecipients
	}
	if len(recipients) == 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "no alert recipients configured")
	}

	sent, err := h.manager.SendCriticalAlert(c.Request().Context(), recipients, req.PatientName, req.Message)
	return c.JSON(http.StatusOK, newDeliveryResult(sent, err))
}

type patientMessageRequest struct {
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PatientName  string `json:"patient_name"`
	Date         string `json:"date"`
	Reason       string `json:"reason"`
	Instructions string `json:"instructions"`
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Time         string `json:"time"`
}

func (h *NotificationHandler) bindPatientMessage(c echo.Context, needEmail, needPhone bool) (patientMessageRequest, error) {
	var req patientMessageRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if needEmail && req.Email == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	if needPhone && req.Phone == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	return req, nil
}

func single(n *Notification, err error) deliveryResult {
	var sent []*Notification
	if n != nil {
		sent = append(sent, n)
	}
	return newDeliveryResult(sent, err)
}

// HandleLabResults handles POST /notifications/lab-results.
func (h *NotificationHandler) HandleLabResults(c echo.Context) error {
	req, err := h.bindPatientMessage(c, true, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, single(h.manager.SendLabResults(c.Request().Context(), req.Email, req.PatientName)))
}

// HandleMedicationReminder handles POST /notifications/medication-reminder.
func (h *NotificationHandler) HandleMedicationReminder(c echo.Context) error {
	req, err := h.bindPatientMessage(c, false, true)
	if err != nil {
		return err
	}
	if req.Medication == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "medication is required")
	}
	return c.JSON(http.StatusOK, single(h.manager.SendMedicationReminder(c.Request().Context(), req.Phone, req.Medication, req.Dosage, req.Time)))
}

// HandleFollowUp handles POST /notifications/follow-up.
func (h *NotificationHandler) HandleFollowUp(c echo.Context) error {
	req, err := h.bindPatientMessage(c, true, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, single(h.manager.SendFollowUpReminder(c.Request().Context(), req.Email, req.PatientName, req.Date, req.Reason)))
}

// HandleDischargeInstructions handles POST /notifications/discharge-instructions.
func (h *NotificationHandler) HandleDischargeInstructions(c echo.Context) error {
	req, err := h.bindPatientMessage(c, true, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, single(h.manager.SendDischargeInstructions(c.Request().Context(), req.Email, req.PatientName, req.Instructions)))
}

// HandleGet handles GET /notifications/:id.
func (h *NotificationHandler) HandleGet(c echo.Context) error {
	n, err := h.manager.GetNotification(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?recipient=...
func (h *NotificationHandler) HandleList(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient query parameter is required")
	}

	list, err := h.manager.ListByRecipient(c.Request().Context(), recipient, 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if list == nil {
		list = []*Notification{}
	}
	return c.JSON(http.StatusOK, list)
}

// HandleRetry handles POST /notifications/:id/retry.
func (h *NotificationHandler) HandleRetry(c echo.Context) error {
	n, err := h.manager.Retry(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if n == nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

// HandleStats handles GET /notifications/stats.
func (h *NotificationHandler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.NotificationStats(c.Request().Context()))
}
