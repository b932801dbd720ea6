// Package messaging delivers user-facing messages through the backend:
// reactive replies from message handlers and proactive sends from workflow or
// activity code. Every delivery is stamped with the tenant that owns the
// conversation.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/metrics"
)

const sendPath = "/api/agent/message/send"

// Message kinds reported to metrics.
const (
	kindChat = "chat"
	kindData = "data"
)

// ErrMissingTenant is returned when a message has no tenant to stamp.
var ErrMissingTenant = errors.New("message tenant must not be empty")

// Message is the delivery envelope posted to the backend.
type Message struct {
	TenantID      string         `json:"tenantId"`
	ParticipantID string         `json:"participantId"`
	ThreadID      string         `json:"threadId,omitempty"`
	RequestID     string         `json:"requestId,omitempty"`
	Text          string         `json:"text,omitempty"`
	Data          any            `json:"data,omitempty"`
	Scope         string         `json:"scope,omitempty"`
	Hint          string         `json:"hint,omitempty"`
	WorkflowType  string         `json:"workflowType,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (m Message) kind() string {
	if m.Data != nil && m.Text == "" {
		return kindData
	}
	return kindChat
}

// Service posts messages to the delivery endpoint.
type Service struct {
	http   *httpx.Client
	logger *zap.Logger
}

// NewService builds the delivery service over the shared backend client.
func NewService(httpClient *httpx.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{http: httpClient, logger: logger}
}

// Send delivers one message. The X-Tenant-Id header always equals the
// message's tenant.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if msg.TenantID == "" {
		return ErrMissingTenant
	}
	if err := s.http.Post(ctx, sendPath, msg, msg.TenantID, nil); err != nil {
		metrics.MessagesSent.WithLabelValues(msg.kind(), "error").Inc()
		return fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues(msg.kind(), "ok").Inc()
	return nil
}
