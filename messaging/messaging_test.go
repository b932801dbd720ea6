package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap/zaptest"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

type capturedSend struct {
	mu      sync.Mutex
	tenants []string
	bodies  []Message
}

func newCaptureServer(t *testing.T, c *capturedSend) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		c.mu.Lock()
		c.tenants = append(c.tenants, r.Header.Get(httpx.TenantHeader))
		c.bodies = append(c.bodies, msg)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
}

func newService(t *testing.T, baseURL string) *Service {
	t.Helper()
	client, err := httpx.New(httpx.Config{BaseURL: baseURL, APIKey: "test-key"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewService(client, zaptest.NewLogger(t))
}

func TestSendStampsMessageTenant(t *testing.T) {
	captured := &capturedSend{}
	server := newCaptureServer(t, captured)
	defer server.Close()

	svc := newService(t, server.URL)
	err := svc.Send(context.Background(), Message{
		TenantID:      "acme",
		ParticipantID: "u1",
		Text:          "hello",
	})
	require.NoError(t, err)
	require.Len(t, captured.tenants, 1)
	assert.Equal(t, "acme", captured.tenants[0])
	assert.Equal(t, "hello", captured.bodies[0].Text)
}

func TestSendRejectsEmptyTenant(t *testing.T) {
	svc := newService(t, "http://localhost:1")
	err := svc.Send(context.Background(), Message{ParticipantID: "u1", Text: "hi"})
	assert.ErrorIs(t, err, ErrMissingTenant)
}

func TestSendChatUsesAmbientTenant(t *testing.T) {
	captured := &capturedSend{}
	server := newCaptureServer(t, captured)
	defer server.Close()

	svc := newService(t, server.URL)
	messenger := NewMessenger(svc)
	rc := runctx.ForActivity(context.Background(), runctx.Info{
		TenantID:     "acme",
		WorkflowType: "MyAgent:Chat",
	}, registry.New())

	require.NoError(t, messenger.SendChat(rc, "u1", "ping", nil))
	require.Len(t, captured.bodies, 1)
	assert.Equal(t, "acme", captured.tenants[0])
	assert.Equal(t, "MyAgent:Chat", captured.bodies[0].WorkflowType)
}

func TestSendChatWithoutTenantFails(t *testing.T) {
	messenger := NewMessenger(newService(t, "http://localhost:1"))
	rc := runctx.ForClient(context.Background(), runctx.Info{}, registry.New())
	err := messenger.SendChat(rc, "u1", "ping", nil)
	assert.ErrorIs(t, err, runctx.ErrNoAmbientContext)
}

func TestSendAsRestrictedToOwnAgent(t *testing.T) {
	captured := &capturedSend{}
	server := newCaptureServer(t, captured)
	defer server.Close()

	reg := registry.New()
	require.NoError(t, reg.RegisterAgent(&registry.AgentDefinition{
		Name: "MyAgent",
		Workflows: []*registry.WorkflowDefinition{
			{Agent: "MyAgent", ShortName: "Chat", WorkflowType: "MyAgent:Chat", IsDefault: true},
			{Agent: "MyAgent", ShortName: "Digest", WorkflowType: "MyAgent:Digest"},
		},
	}))
	require.NoError(t, reg.RegisterAgent(&registry.AgentDefinition{
		Name: "OtherAgent",
		Workflows: []*registry.WorkflowDefinition{
			{Agent: "OtherAgent", ShortName: "Chat", WorkflowType: "OtherAgent:Chat", IsDefault: true},
		},
	}))

	messenger := NewMessenger(newService(t, server.URL))
	rc := runctx.ForActivity(context.Background(), runctx.Info{
		TenantID:     "acme",
		AgentName:    "MyAgent",
		WorkflowType: "MyAgent:Chat",
	}, reg)

	err := messenger.SendAs(rc, "OtherAgent:Chat", "u1", "spoofed", nil)
	assert.ErrorIs(t, err, ErrImpersonationDenied)

	require.NoError(t, messenger.SendAs(rc, "MyAgent:Digest", "u1", "digest", nil))
	require.Len(t, captured.bodies, 1)
	assert.Equal(t, "MyAgent:Digest", captured.bodies[0].WorkflowType)
}

func TestReplyFromWorkflowStampsWorkflowTenant(t *testing.T) {
	captured := &capturedSend{}
	server := newCaptureServer(t, captured)
	defer server.Close()

	svc := newService(t, server.URL)
	acts := NewActivities(svc)

	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(acts.Send, activity.RegisterOptions{Name: ActivitySend})

	wf := func(ctx workflow.Context) error {
		rc := runctx.ForWorkflow(ctx, runctx.Info{
			TenantID:     "contoso",
			WorkflowType: "GlobalNotifier:Alerts",
			SystemScoped: true,
		}, registry.New())
		umc := NewUserMessageContext(rc, svc, Message{
			TenantID:      "contoso",
			ParticipantID: "u2",
			RequestID:     "req-1",
		})
		return umc.Reply("ok")
	}
	env.RegisterWorkflow(wf)
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Len(t, captured.tenants, 1)
	assert.Equal(t, "contoso", captured.tenants[0])
	assert.Equal(t, "ok", captured.bodies[0].Text)
	assert.Equal(t, "req-1", captured.bodies[0].RequestID)
}
