package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/handler"
	"github.com/oadeyemi/clinic-messenger/internal/models"
	"github.com/oadeyemi/clinic-messenger/internal/repository"
	"github.com/oadeyemi/clinic-messenger/internal/scheduler"
	"github.com/oadeyemi/clinic-messenger/internal/service"
	"github.com/oadeyemi/clinic-messenger/internal/service/mocks"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newTestHandler(svc *service.Service) http.Handler {
	return handler.NewHandler(svc, zap.NewNop()).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_QueueMessage(t *testing.T) {
	msgID, _ := uuid.NewV7()

	tests := []struct {
		name           string
		body           any
		setupMocks     func(*mocks.MockOutboxService)
		expectedStatus int
		checkBody      func(*testing.T, []byte)
	}{
		{
			name: "success",
			body: map[string]any{
				"patient_id":   "patient-7",
				"to":           "08031234567",
				"template_key": "appointment_reminder",
				"payload":      map[string]any{"name": "Ada"},
			},
			setupMocks: func(m *mocks.MockOutboxService) {
				m.EXPECT().QueueMessage(gomock.Any()).DoAndReturn(func(params service.QueueMessageParams) (uuid.UUID, error) {
					assert.Equal(t, "08031234567", params.To)
					assert.Equal(t, "appointment_reminder", params.TemplateKey)
					return msgID, nil
				})
			},
			expectedStatus: http.StatusCreated,
			checkBody: func(t *testing.T, body []byte) {
				var resp struct {
					ID string `json:"id"`
				}
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, msgID.String(), resp.ID)
			},
		},
		{
			name: "missing recipient",
			body: map[string]any{"template_key": "appointment_reminder"},
			setupMocks: func(m *mocks.MockOutboxService) {
				m.EXPECT().QueueMessage(gomock.Any()).Return(uuid.Nil, service.ErrEmptyRecipient)
			},
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body []byte) {
				var resp errorBody
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "INVALID_REQUEST", resp.Error)
			},
		},
		{
			name: "persistence error",
			body: map[string]any{"to": "08031234567", "template_key": "appointment_reminder"},
			setupMocks: func(m *mocks.MockOutboxService) {
				m.EXPECT().QueueMessage(gomock.Any()).Return(uuid.Nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, body []byte) {
				var resp errorBody
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "INTERNAL_ERROR", resp.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockOutbox := mocks.NewMockOutboxService(ctrl)
			tt.setupMocks(mockOutbox)

			h := newTestHandler(&service.Service{Outbox: mockOutbox})
			w := doJSON(t, h, http.MethodPost, "/api/v1/messages", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.checkBody(t, w.Body.Bytes())
		})
	}
}

func TestHandler_GetMessage(t *testing.T) {
	msgID, _ := uuid.NewV7()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockOutbox := mocks.NewMockOutboxService(ctrl)
		mockOutbox.EXPECT().GetMessage(msgID).Return(&models.OutboundMessage{
			ID:     msgID,
			To:     "+2348031234567",
			Status: models.MessageStatusSent,
		}, nil)

		h := newTestHandler(&service.Service{Outbox: mockOutbox})
		w := doJSON(t, h, http.MethodGet, "/api/v1/messages/"+msgID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp models.OutboundMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, msgID, resp.ID)
		assert.Equal(t, models.MessageStatusSent, resp.Status)
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockOutbox := mocks.NewMockOutboxService(ctrl)
		mockOutbox.EXPECT().GetMessage(msgID).Return(nil, repository.ErrNotFound)

		h := newTestHandler(&service.Service{Outbox: mockOutbox})
		w := doJSON(t, h, http.MethodGet, "/api/v1/messages/"+msgID.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		h := newTestHandler(&service.Service{})
		w := doJSON(t, h, http.MethodGet, "/api/v1/messages/not-a-uuid", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_RecordDeliveryReceipt(t *testing.T) {
	msgID, _ := uuid.NewV7()

	t.Run("success with explicit timestamp", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockOutbox := mocks.NewMockOutboxService(ctrl)

		receivedAt := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
		mockOutbox.EXPECT().RecordDeliveryReceipt(msgID, gomock.Any()).
			DoAndReturn(func(_ uuid.UUID, seen time.Time) error {
				assert.True(t, seen.Equal(receivedAt))
				return nil
			})

		h := newTestHandler(&service.Service{Outbox: mockOutbox})
		w := doJSON(t, h, http.MethodPost, "/api/v1/messages/"+msgID.String()+"/receipt",
			map[string]any{"received_at": receivedAt})

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("receipt for an unsent message", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockOutbox := mocks.NewMockOutboxService(ctrl)
		mockOutbox.EXPECT().RecordDeliveryReceipt(msgID, gomock.Any()).Return(repository.ErrNotFound)

		h := newTestHandler(&service.Service{Outbox: mockOutbox})
		w := doJSON(t, h, http.MethodPost, "/api/v1/messages/"+msgID.String()+"/receipt",
			map[string]any{})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_ProcessOutbox(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockOutbox := mocks.NewMockOutboxService(ctrl)
	mockOutbox.EXPECT().ProcessOutbox().Return(&service.ProcessResult{Sent: 4, Failed: 1}, nil)

	h := newTestHandler(&service.Service{Outbox: mockOutbox})
	w := doJSON(t, h, http.MethodPost, "/api/v1/outbox/process", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp service.ProcessResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Sent)
	assert.Equal(t, 1, resp.Failed)
}

func TestHandler_Scheduler(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setupMocks     func(*mocks.MockSchedulerService)
		expectedStatus int
	}{
		{
			name: "start success",
			path: "/api/v1/scheduler/start",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Start().Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "start conflict",
			path: "/api/v1/scheduler/start",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Start().Return(scheduler.ErrSchedulerAlreadyRunning)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "stop success",
			path: "/api/v1/scheduler/stop",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Stop().Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "stop conflict",
			path: "/api/v1/scheduler/stop",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Stop().Return(scheduler.ErrSchedulerNotRunning)
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockScheduler := mocks.NewMockSchedulerService(ctrl)
			tt.setupMocks(mockScheduler)

			h := newTestHandler(&service.Service{Scheduler: mockScheduler})
			w := doJSON(t, h, http.MethodPost, tt.path, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestHandler_Login(t *testing.T) {
	sessionID, _ := uuid.NewV7()
	userID := uuid.New()
	lockedUntil := time.Now().Add(10 * time.Minute)

	tests := []struct {
		name           string
		setupMocks     func(*mocks.MockAuthService)
		expectedStatus int
		checkBody      func(*testing.T, []byte)
	}{
		{
			name: "success",
			setupMocks: func(m *mocks.MockAuthService) {
				m.EXPECT().Login("123456", "reception-tablet").Return(&service.LoginResult{
					Outcome: service.LoginOK,
					Session: &models.AuthSession{ID: sessionID, UserID: userID},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body []byte) {
				var resp service.LoginResult
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, service.LoginOK, resp.Outcome)
				require.NotNil(t, resp.Session)
				assert.Equal(t, sessionID, resp.Session.ID)
			},
		},
		{
			name: "locked out",
			setupMocks: func(m *mocks.MockAuthService) {
				m.EXPECT().Login("123456", "reception-tablet").Return(&service.LoginResult{
					Outcome:     service.LoginLockedOut,
					LockedUntil: &lockedUntil,
				}, nil)
			},
			expectedStatus: http.StatusLocked,
			checkBody: func(t *testing.T, body []byte) {
				var resp service.LoginResult
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, service.LoginLockedOut, resp.Outcome)
				assert.NotNil(t, resp.LockedUntil)
			},
		},
		{
			name: "malformed pin",
			setupMocks: func(m *mocks.MockAuthService) {
				m.EXPECT().Login("123456", "reception-tablet").Return(&service.LoginResult{
					Outcome: service.LoginInvalidFormat,
				}, nil)
			},
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body []byte) {
				var resp errorBody
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "LOGIN_FAILED", resp.Error)
			},
		},
		{
			name: "wrong pin",
			setupMocks: func(m *mocks.MockAuthService) {
				m.EXPECT().Login("123456", "reception-tablet").Return(&service.LoginResult{
					Outcome: service.LoginInvalidCredentials,
				}, nil)
			},
			expectedStatus: http.StatusUnauthorized,
			checkBody: func(t *testing.T, body []byte) {
				var resp errorBody
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "LOGIN_FAILED", resp.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockAuth := mocks.NewMockAuthService(ctrl)
			tt.setupMocks(mockAuth)

			h := newTestHandler(&service.Service{Auth: mockAuth})
			w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login",
				map[string]any{"pin": "123456", "device_key": "reception-tablet"})

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.checkBody(t, w.Body.Bytes())
		})
	}
}

func TestHandler_Logout(t *testing.T) {
	sessionID, _ := uuid.NewV7()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockAuth := mocks.NewMockAuthService(ctrl)
		mockAuth.EXPECT().Logout(sessionID).Return(nil)

		h := newTestHandler(&service.Service{Auth: mockAuth})
		w := doJSON(t, h, http.MethodPost, "/api/v1/auth/logout",
			map[string]any{"session_id": sessionID.String()})

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockAuth := mocks.NewMockAuthService(ctrl)
		mockAuth.EXPECT().Logout(sessionID).Return(repository.ErrNotFound)

		h := newTestHandler(&service.Service{Auth: mockAuth})
		w := doJSON(t, h, http.MethodPost, "/api/v1/auth/logout",
			map[string]any{"session_id": sessionID.String()})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_TouchSession(t *testing.T) {
	sessionID, _ := uuid.NewV7()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockAuth := mocks.NewMockAuthService(ctrl)
		mockAuth.EXPECT().Touch(sessionID).Return(nil)

		h := newTestHandler(&service.Service{Auth: mockAuth})
		w := doJSON(t, h, http.MethodPost, "/api/v1/auth/touch",
			map[string]any{"session_id": sessionID.String()})

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockAuth := mocks.NewMockAuthService(ctrl)
		mockAuth.EXPECT().Touch(sessionID).Return(repository.ErrNotFound)

		h := newTestHandler(&service.Service{Auth: mockAuth})
		w := doJSON(t, h, http.MethodPost, "/api/v1/auth/touch",
			map[string]any{"session_id": sessionID.String()})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed session id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockAuth := mocks.NewMockAuthService(ctrl)

		h := newTestHandler(&service.Service{Auth: mockAuth})
		w := doJSON(t, h, http.MethodPost, "/api/v1/auth/touch",
			map[string]any{"session_id": "not-a-uuid"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_RegisterUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockAuth := mocks.NewMockAuthService(ctrl)
		mockAuth.EXPECT().RegisterUser("Nurse Adaeze", "123456").Return(&models.User{
			ID:       uuid.New(),
			Name:     "Nurse Adaeze",
			IsActive: true,
		}, nil)

		h := newTestHandler(&service.Service{Auth: mockAuth})
		w := doJSON(t, h, http.MethodPost, "/api/v1/users",
			map[string]any{"name": "Nurse Adaeze", "pin": "123456"})

		assert.Equal(t, http.StatusCreated, w.Code)

		// The PIN hash must never leak into the response.
		assert.NotContains(t, w.Body.String(), "pin_hash")
	})

	t.Run("bad pin", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockAuth := mocks.NewMockAuthService(ctrl)
		mockAuth.EXPECT().RegisterUser("Nurse Adaeze", "12345").Return(nil, service.ErrInvalidPin)

		h := newTestHandler(&service.Service{Auth: mockAuth})
		w := doJSON(t, h, http.MethodPost, "/api/v1/users",
			map[string]any{"name": "Nurse Adaeze", "pin": "12345"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		health         *service.HealthStatus
		expectedStatus int
	}{
		{
			name: "healthy",
			health: &service.HealthStatus{
				Status:          service.HealthStatusHealthy,
				SchedulerStatus: service.ComponentStatusRunning,
				DatabaseStatus:  service.ComponentStatusConnected,
				RedisStatus:     service.ComponentStatusConnected,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "unhealthy",
			health: &service.HealthStatus{
				Status:         service.HealthStatusUnhealthy,
				DatabaseStatus: service.ComponentStatusDisconnected,
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockHealth := mocks.NewMockHealthService(ctrl)
			mockHealth.EXPECT().GetHealth().Return(tt.health)

			h := newTestHandler(&service.Service{Health: mockHealth})
			w := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.health.Status, resp.Status)
		})
	}
}
