package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/oadeyemi/clinic-messenger/internal/config"
	"github.com/oadeyemi/clinic-messenger/internal/models"
)

type gatewayRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Content string `json:"content"`
}

type gatewayResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// webhookGateway delivers messages by POSTing them to the configured SMS or
// WhatsApp provider webhook.
type webhookGateway struct {
	cfg        *config.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookGateway creates the production Gateway backed by an HTTP webhook.
func NewWebhookGateway(cfg *config.GatewayConfig, logger *zap.Logger) Gateway {
	return &webhookGateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: logger,
	}
}

// Send posts one message to the provider. Provider rejections are reported in
// the result, not as errors.
func (g *webhookGateway) Send(ctx context.Context, channel models.Channel, to, body string) (*GatewayResult, error) {
	reqBody := gatewayRequest{
		To:      to,
		Channel: string(channel),
		Content: body,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-clinic-auth-key", g.cfg.AuthKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			g.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return &GatewayResult{
			Success: false,
			Error:   fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
		}, nil
	}

	var gwResp gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		// Provider accepted the message but sent no usable body; synthesize
		// an id so the send is still traceable.
		gwResp.MessageID = fmt.Sprintf("temp-%d", time.Now().UnixNano())
	}

	return &GatewayResult{
		Success:   true,
		MessageID: gwResp.MessageID,
	}, nil
}
