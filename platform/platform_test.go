package platform

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/agent"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
)

func newLocalPlatform(t *testing.T) *Platform {
	t.Helper()
	p, err := New(Options{
		ServerURL: "http://localhost:1",
		TenantID:  "acme",
		LocalMode: true,
	})
	require.NoError(t, err)
	return p
}

func TestNewLocalModeAssemblesServices(t *testing.T) {
	p := newLocalPlatform(t)
	assert.Equal(t, "acme", p.DefaultTenant())
	assert.NotNil(t, p.Messenger)
	assert.NotNil(t, p.Dispatcher)
	assert.NotNil(t, p.Tasks)
	assert.NotNil(t, p.Schedules)
	assert.NotNil(t, p.Knowledge)
	assert.NotNil(t, p.Documents)
	assert.NotNil(t, p.Secrets)
	assert.NotNil(t, p.Usage)
	assert.NotNil(t, p.Engine())
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrServerURLRequired)

	_, err = New(Options{ServerURL: "https://api.example.com"})
	assert.ErrorIs(t, err, ErrCredentialRequired)
}

func TestRegisterAgentAppliesDefaultTenant(t *testing.T) {
	p := newLocalPlatform(t)

	a := agent.New("MyAgent")
	a.AddWorkflow("Chat").AsDefault().OnUserMessage(func(*messaging.UserMessageContext) error { return nil })
	a.AddTaskWorkflow()
	require.NoError(t, p.RegisterAgent(a))

	def, ok := p.Registry().Agent("MyAgent")
	require.True(t, ok)
	assert.Equal(t, "acme", def.Tenant)

	wf, ok := p.Registry().WorkflowByType("MyAgent:Chat")
	require.True(t, ok)
	assert.True(t, wf.IsDefault)
	_, ok = p.Registry().WorkflowByType("MyAgent:" + registry.TaskWorkflowShortName)
	assert.True(t, ok)
}

func TestRegisterAgentRejectsDuplicates(t *testing.T) {
	p := newLocalPlatform(t)

	first := agent.New("MyAgent")
	first.AddWorkflow("Chat").OnUserMessage(func(*messaging.UserMessageContext) error { return nil })
	require.NoError(t, p.RegisterAgent(first))

	second := agent.New("MyAgent")
	second.AddWorkflow("Other").OnUserMessage(func(*messaging.UserMessageContext) error { return nil })
	assert.ErrorIs(t, p.RegisterAgent(second), registry.ErrAgentExists)
}

func TestBackendClientWarningsReachConsole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// The console core binds os.Stderr at construction, so the redirect has to
	// happen before New.
	orig := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	p, err := New(Options{ServerURL: srv.URL, TenantID: "acme", LocalMode: true})
	require.NoError(t, err)

	// A 500 is retryable; the first failed attempt logs a warning before the
	// backoff sleep, so a short deadline keeps the test fast.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = p.HTTP().Get(ctx, "/anything", nil, "acme", nil)
	require.Error(t, err)

	os.Stderr = orig
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), "retrying", "retry warnings must not be swallowed")
}

func TestSystemScopedAgentHasNoTenant(t *testing.T) {
	p := newLocalPlatform(t)

	a := agent.New("GlobalNotifier").SystemScoped()
	a.AddWorkflow("Alerts").OnUserMessage(func(*messaging.UserMessageContext) error { return nil })
	require.NoError(t, p.RegisterAgent(a))

	def, ok := p.Registry().Agent("GlobalNotifier")
	require.True(t, ok)
	assert.True(t, def.SystemScoped)
	assert.Empty(t, def.Tenant)
}
