// Package handler provides HTTP request handlers for the application.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/middleware"
	"github.com/oadeyemi/clinic-messenger/internal/models"
	"github.com/oadeyemi/clinic-messenger/internal/repository"
	"github.com/oadeyemi/clinic-messenger/internal/scheduler"
	"github.com/oadeyemi/clinic-messenger/internal/service"
)

const (
	errorCodeInvalidRequest          = "INVALID_REQUEST"
	errorCodeMessageNotFound         = "MESSAGE_NOT_FOUND"
	errorCodeSessionNotFound         = "SESSION_NOT_FOUND"
	errorCodeSchedulerAlreadyRunning = "SCHEDULER_ALREADY_RUNNING"
	errorCodeSchedulerNotRunning     = "SCHEDULER_NOT_RUNNING"
	errorCodeLoginFailed             = "LOGIN_FAILED"
)

type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", h.QueueMessage)
		r.Get("/messages/stats", h.GetStats)
		r.Get("/messages/{id}", h.GetMessage)
		r.Post("/messages/{id}/receipt", h.RecordDeliveryReceipt)

		r.Post("/outbox/process", h.ProcessOutbox)

		r.Post("/scheduler/start", h.StartScheduler)
		r.Post("/scheduler/stop", h.StopScheduler)

		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
		r.Post("/auth/touch", h.TouchSession)
		r.Post("/users", h.RegisterUser)

		r.Get("/health", h.HealthCheck)
	})

	return r
}

type queueMessageRequest struct {
	PatientID    string         `json:"patient_id"`
	To           string         `json:"to"`
	Channel      models.Channel `json:"channel,omitempty"`
	Locale       string         `json:"locale,omitempty"`
	TemplateKey  string         `json:"template_key"`
	Payload      models.Payload `json:"payload,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
}

type queueMessageResponse struct {
	ID string `json:"id"`
}

// QueueMessage handles POST /api/v1/messages.
func (h *Handler) QueueMessage(w http.ResponseWriter, r *http.Request) {
	var req queueMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid request body")
		return
	}

	id, err := h.service.Outbox.QueueMessage(service.QueueMessageParams{
		PatientID:    req.PatientID,
		To:           req.To,
		Channel:      req.Channel,
		Locale:       req.Locale,
		TemplateKey:  req.TemplateKey,
		Payload:      req.Payload,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyRecipient) || errors.Is(err, service.ErrEmptyTemplateKey) {
			h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, err.Error())
			return
		}

		h.logger.Error("Failed to queue message",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to queue message")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, queueMessageResponse{ID: id.String()})
}

// GetMessage handles GET /api/v1/messages/{id}.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid message id")
		return
	}

	msg, err := h.service.Outbox.GetMessage(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendError(w, r, http.StatusNotFound, errorCodeMessageNotFound, "Message not found")
			return
		}

		h.logger.Error("Failed to get message",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to get message")
		return
	}

	render.JSON(w, r, msg)
}

// GetStats handles GET /api/v1/messages/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Outbox.GetStats()
	if err != nil {
		h.logger.Error("Failed to get outbox stats",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to get stats")
		return
	}

	render.JSON(w, r, stats)
}

type deliveryReceiptRequest struct {
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

// RecordDeliveryReceipt handles POST /api/v1/messages/{id}/receipt. Called by
// the external receipt integration when the provider confirms delivery.
func (h *Handler) RecordDeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid message id")
		return
	}

	var req deliveryReceiptRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid request body")
			return
		}
	}

	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	if err := h.service.Outbox.RecordDeliveryReceipt(id, receivedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendError(w, r, http.StatusNotFound, errorCodeMessageNotFound, "Message not found or not sent")
			return
		}

		h.logger.Error("Failed to record delivery receipt",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to record receipt")
		return
	}

	render.NoContent(w, r)
}

// ProcessOutbox handles POST /api/v1/outbox/process for manual runs.
func (h *Handler) ProcessOutbox(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Outbox.ProcessOutbox()
	if err != nil {
		h.logger.Error("Failed to process outbox",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to process outbox")
		return
	}

	render.JSON(w, r, result)
}

type schedulerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StartScheduler handles POST /api/v1/scheduler/start.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Scheduler.Start(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerAlreadyRunning, "Scheduler is already running")
			return
		}

		h.logger.Error("Failed to start scheduler",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to start scheduler")
		return
	}

	render.JSON(w, r, schedulerResponse{Status: "started", Message: "Scheduler started successfully"})
}

// StopScheduler handles POST /api/v1/scheduler/stop.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Scheduler.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerNotRunning, "Scheduler is not running")
			return
		}

		h.logger.Error("Failed to stop scheduler",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to stop scheduler")
		return
	}

	render.JSON(w, r, schedulerResponse{Status: "stopped", Message: "Scheduler stopped successfully"})
}

type loginRequest struct {
	Pin       string `json:"pin"`
	DeviceKey string `json:"device_key,omitempty"`
}

// Login handles POST /api/v1/auth/login. Failure modes map to statuses
// without revealing which users exist: 400 for a malformed PIN, 401 for no
// match, 423 while the lockout window is open.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid request body")
		return
	}

	result, err := h.service.Auth.Login(req.Pin, req.DeviceKey)
	if err != nil {
		h.logger.Error("Login failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Login failed")
		return
	}

	switch result.Outcome {
	case service.LoginOK:
		render.JSON(w, r, result)
	case service.LoginLockedOut:
		render.Status(r, http.StatusLocked)
		render.JSON(w, r, result)
	case service.LoginInvalidFormat:
		h.sendError(w, r, http.StatusBadRequest, errorCodeLoginFailed, "PIN must be exactly 6 digits")
	default:
		h.sendError(w, r, http.StatusUnauthorized, errorCodeLoginFailed, "Invalid credentials")
	}
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid request body")
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid session id")
		return
	}

	if err := h.service.Auth.Logout(sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendError(w, r, http.StatusNotFound, errorCodeSessionNotFound, "Session not found")
			return
		}

		h.logger.Error("Logout failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Logout failed")
		return
	}

	render.NoContent(w, r)
}

type touchSessionRequest struct {
	SessionID string `json:"session_id"`
}

// TouchSession handles POST /api/v1/auth/touch. Clients call it on user
// activity so the session's last-seen timestamp stays current.
func (h *Handler) TouchSession(w http.ResponseWriter, r *http.Request) {
	var req touchSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid request body")
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid session id")
		return
	}

	if err := h.service.Auth.Touch(sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendError(w, r, http.StatusNotFound, errorCodeSessionNotFound, "Session not found")
			return
		}

		h.logger.Error("Session touch failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Session touch failed")
		return
	}

	render.NoContent(w, r)
}

type registerUserRequest struct {
	Name string `json:"name"`
	Pin  string `json:"pin"`
}

// RegisterUser handles POST /api/v1/users.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid request body")
		return
	}

	user, err := h.service.Auth.RegisterUser(req.Name, req.Pin)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPin) {
			h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, err.Error())
			return
		}

		h.logger.Error("Failed to register user",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to register user")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user)
}

type healthResponse struct {
	Status               string               `json:"status"`
	Timestamp            time.Time            `json:"timestamp"`
	SchedulerStatus      string               `json:"scheduler_status,omitempty"`
	DatabaseStatus       string               `json:"database_status,omitempty"`
	RedisStatus          string               `json:"redis_status,omitempty"`
	CircuitBreakerStatus string               `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  service.CircuitState `json:"circuit_breaker_state,omitempty"`
}

// HealthCheck handles GET /api/v1/health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth()

	response := healthResponse{
		Status:               health.Status,
		Timestamp:            time.Now(),
		SchedulerStatus:      health.SchedulerStatus,
		DatabaseStatus:       health.DatabaseStatus,
		RedisStatus:          health.RedisStatus,
		CircuitBreakerStatus: health.CircuitBreakerStatus,
		CircuitBreakerState:  health.CircuitBreakerState,
	}

	if health.Status == service.HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, errorResponse{
		Error:     errorCode,
		Message:   message,
		Timestamp: time.Now(),
	})
}
