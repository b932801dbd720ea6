package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
)

func noopHandler(*messaging.UserMessageContext) error { return nil }

func TestDefinitionComposesWorkflowTypes(t *testing.T) {
	a := New("MyAgent")
	a.AddWorkflow("Chat").AsDefault().OnUserMessage(noopHandler)
	a.AddTaskWorkflow()

	def, err := a.Definition("acme")
	require.NoError(t, err)
	assert.Equal(t, "MyAgent", def.Name)
	assert.Equal(t, "acme", def.Tenant)
	require.Len(t, def.Workflows, 2)

	chat := def.Workflows[0]
	assert.Equal(t, "MyAgent:Chat", chat.WorkflowType)
	assert.Equal(t, "Chat", chat.ShortName)
	assert.True(t, chat.IsDefault)
	assert.Equal(t, 1, chat.Workers)

	task := def.Workflows[1]
	assert.Equal(t, "MyAgent:"+registry.TaskWorkflowShortName, task.WorkflowType)
	assert.True(t, task.IsTask)
	assert.Nil(t, task.Handler)
}

func TestDefinitionTenantResolution(t *testing.T) {
	bound := New("Bound").WithTenant("contoso")
	bound.AddWorkflow("Chat").OnUserMessage(noopHandler)
	def, err := bound.Definition("acme")
	require.NoError(t, err)
	assert.Equal(t, "contoso", def.Tenant)

	system := New("Global").SystemScoped()
	system.AddWorkflow("Alerts").OnUserMessage(noopHandler)
	def, err = system.Definition("acme")
	require.NoError(t, err)
	assert.True(t, def.SystemScoped)
	assert.Empty(t, def.Tenant)
}

func TestDefinitionWorkerCount(t *testing.T) {
	a := New("MyAgent")
	a.AddWorkflow("Chat").WithWorkers(4).OnUserMessage(noopHandler)
	a.AddWorkflow("Digest").WithWorkers(0).OnUserMessage(noopHandler)

	def, err := a.Definition("acme")
	require.NoError(t, err)
	assert.Equal(t, 4, def.Workflows[0].Workers)
	assert.Equal(t, 1, def.Workflows[1].Workers)
}

func TestDefinitionRejectsIncompleteDeclarations(t *testing.T) {
	_, err := New("Empty").Definition("acme")
	assert.ErrorIs(t, err, ErrNoWorkflows)

	a := New("MyAgent")
	a.AddWorkflow("Chat")
	_, err = a.Definition("acme")
	assert.ErrorIs(t, err, ErrNoHandler)
}
