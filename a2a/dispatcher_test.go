package a2a

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

type signalCall struct {
	workflowID string
	name       string
	arg        any
}

type fakeEngine struct {
	engine.API

	signals     []signalCall
	queryResult any
	queryCalls  int
	updateCalls int
}

func (f *fakeEngine) SignalWorkflow(ctx context.Context, workflowID, name string, arg any) error {
	f.signals = append(f.signals, signalCall{workflowID: workflowID, name: name, arg: arg})
	return nil
}

func (f *fakeEngine) QueryWorkflowRaw(ctx context.Context, workflowID, name string, args ...any) ([]byte, error) {
	f.queryCalls++
	return json.Marshal(f.queryResult)
}

func (f *fakeEngine) UpdateWorkflowRaw(ctx context.Context, workflowID, name string, args ...any) ([]byte, error) {
	f.updateCalls++
	return json.Marshal(f.queryResult)
}

type status struct {
	Pending int `json:"pending"`
}

func TestQueryFromWorkflowRoutesThroughActivity(t *testing.T) {
	eng := &fakeEngine{queryResult: status{Pending: 3}}
	acts := NewActivities(eng, registry.New())
	d := NewDispatcher(eng, acts)

	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(acts.Query, activity.RegisterOptions{Name: ActivityQuery})

	wf := func(ctx workflow.Context) (status, error) {
		rc := runctx.ForWorkflow(ctx, runctx.Info{TenantID: "acme"}, registry.New())
		return Query[status](d, rc, Target{WorkflowType: "Other:Worker", Suffix: "b-1"}, "GetStatus")
	}
	env.RegisterWorkflow(wf)
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out status
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, 3, out.Pending)
	assert.Equal(t, 1, eng.queryCalls, "exactly one engine query expected")
}

func TestQueryOutsideWorkflowGoesDirect(t *testing.T) {
	eng := &fakeEngine{queryResult: status{Pending: 7}}
	d := NewDispatcher(eng, NewActivities(eng, registry.New()))
	rc := runctx.ForClient(context.Background(), runctx.Info{TenantID: "acme"}, registry.New())

	out, err := Query[status](d, rc, Target{WorkflowID: "acme:Other:Worker:b-1"}, "GetStatus")
	require.NoError(t, err)
	assert.Equal(t, 7, out.Pending)
}

func TestCrossTenantDispatchRefused(t *testing.T) {
	eng := &fakeEngine{}
	d := NewDispatcher(eng, NewActivities(eng, registry.New()))
	rc := runctx.ForActivity(context.Background(), runctx.Info{TenantID: "acme"}, registry.New())

	err := d.SendSignal(rc, Target{WorkflowID: "contoso:Other:Worker:b-1"}, "poke", nil)
	assert.ErrorIs(t, err, ErrCrossTenant)
	assert.Empty(t, eng.signals)
}

func TestSystemScopedCrossTenantAllowed(t *testing.T) {
	eng := &fakeEngine{}
	d := NewDispatcher(eng, NewActivities(eng, registry.New()))
	rc := runctx.ForActivity(context.Background(), runctx.Info{
		TenantID:     "acme",
		SystemScoped: true,
	}, registry.New())

	require.NoError(t, d.SendSignal(rc, Target{WorkflowID: "contoso:Other:Worker:b-1"}, "poke", "hi"))
	require.Len(t, eng.signals, 1)
	assert.Equal(t, "contoso:Other:Worker:b-1", eng.signals[0].workflowID)
	assert.Equal(t, "poke", eng.signals[0].name)
}

func TestResolveBuildsIDFromTriple(t *testing.T) {
	eng := &fakeEngine{}
	d := NewDispatcher(eng, NewActivities(eng, registry.New()))
	rc := runctx.ForActivity(context.Background(), runctx.Info{TenantID: "acme"}, registry.New())

	id, err := d.Resolve(rc, Target{WorkflowType: "Other:Worker", Suffix: "b-1"})
	require.NoError(t, err)
	assert.Equal(t, "acme:Other:Worker:b-1", id)
}

func TestSendChatToBuiltInCapturesFirstReply(t *testing.T) {
	reg := registry.New()
	handler := messaging.Handler(func(ctx *messaging.UserMessageContext) error {
		if err := ctx.Reply("pong"); err != nil {
			return err
		}
		return ctx.Reply("ignored second reply")
	})
	require.NoError(t, reg.RegisterAgent(&registry.AgentDefinition{
		Name: "Other",
		Workflows: []*registry.WorkflowDefinition{
			{Agent: "Other", ShortName: "Worker", WorkflowType: "Other:Worker", IsDefault: true, Handler: handler},
		},
	}))

	eng := &fakeEngine{}
	d := NewDispatcher(eng, NewActivities(eng, reg))
	rc := runctx.ForActivity(context.Background(), runctx.Info{TenantID: "acme"}, reg)

	reply, err := d.SendChatToBuiltIn(rc, "Other:Worker", "ping")
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "pong", reply.Text)
	assert.Equal(t, "acme", reply.TenantID)
}

func TestSendChatToBuiltInNoHandler(t *testing.T) {
	eng := &fakeEngine{}
	d := NewDispatcher(eng, NewActivities(eng, registry.New()))
	rc := runctx.ForActivity(context.Background(), runctx.Info{TenantID: "acme"}, registry.New())

	_, err := d.SendChatToBuiltIn(rc, "Missing:Worker", "ping")
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestBuiltInChatQueueDerivation(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.RegisterAgent(&registry.AgentDefinition{
		Name:   "Other",
		Tenant: "acme",
		Workflows: []*registry.WorkflowDefinition{
			{Agent: "Other", ShortName: "Worker", WorkflowType: "Other:Worker", IsDefault: true},
		},
	}))
	require.NoError(t, reg.RegisterAgent(&registry.AgentDefinition{
		Name:         "Ops",
		SystemScoped: true,
		Workflows: []*registry.WorkflowDefinition{
			{Agent: "Ops", ShortName: "Audit", WorkflowType: "Ops:Audit", IsDefault: true},
		},
	}))

	queue, err := builtInChatQueue(reg, "Other:Worker", "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme:Other:Worker", queue, "tenant-scoped target gets the tenant-prefixed queue")

	queue, err = builtInChatQueue(reg, "Ops:Audit", "acme")
	require.NoError(t, err)
	assert.Equal(t, "Ops:Audit", queue, "system-scoped target shares one queue per type")

	queue, err = builtInChatQueue(reg, "Remote:Worker", "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme:Remote:Worker", queue, "unregistered target assumed tenant-scoped")
}

func TestSendChatToBuiltInDispatchesOnTargetQueue(t *testing.T) {
	reg := registry.New()
	handler := messaging.Handler(func(ctx *messaging.UserMessageContext) error {
		return ctx.Reply("pong")
	})
	require.NoError(t, reg.RegisterAgent(&registry.AgentDefinition{
		Name:   "Other",
		Tenant: "acme",
		Workflows: []*registry.WorkflowDefinition{
			{Agent: "Other", ShortName: "Worker", WorkflowType: "Other:Worker", IsDefault: true, Handler: handler},
		},
	}))

	eng := &fakeEngine{}
	acts := NewActivities(eng, reg)
	d := NewDispatcher(eng, acts)

	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(acts.SendChat, activity.RegisterOptions{Name: ActivityChat})

	var dispatchQueue string
	env.SetOnActivityStartedListener(func(info *activity.Info, ctx context.Context, args converter.EncodedValues) {
		dispatchQueue = info.TaskQueue
	})

	wf := func(ctx workflow.Context) (string, error) {
		rc := runctx.ForWorkflow(ctx, runctx.Info{TenantID: "acme"}, reg)
		reply, err := d.SendChatToBuiltIn(rc, "Other:Worker", "ping")
		if err != nil {
			return "", err
		}
		return reply.Text, nil
	}
	env.RegisterWorkflow(wf)
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, "pong", out)
	assert.Equal(t, "acme:Other:Worker", dispatchQueue, "chat activity must land on the target's queue")
}

func TestUpdateOutsideWorkflow(t *testing.T) {
	eng := &fakeEngine{queryResult: map[string]any{"accepted": true}}
	d := NewDispatcher(eng, NewActivities(eng, registry.New()))
	rc := runctx.ForClient(context.Background(), runctx.Info{TenantID: "acme"}, registry.New())

	out, err := Update[map[string]any](d, rc, Target{WorkflowID: "acme:Other:Worker:b-1"}, "SetMode", "fast")
	require.NoError(t, err)
	assert.Equal(t, true, out["accepted"])
	assert.Equal(t, 1, eng.updateCalls)
}
