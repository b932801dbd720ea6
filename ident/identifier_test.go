package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		tenant   string
		wfType   string
		suffixes []string
	}{
		{"acme", "MyAgent", nil},
		{"acme", "MyAgent", []string{"Chat", "run-123"}},
		{"contoso", "GlobalNotifier", []string{"Alerts", "u2"}},
		{"t1", "a", []string{""}},
	}
	for _, tc := range cases {
		id, err := Build(tc.tenant, tc.wfType, tc.suffixes...)
		require.NoError(t, err)
		parsed, err := Parse(id)
		require.NoError(t, err, "id %q", id)
		assert.Equal(t, tc.tenant, parsed.Tenant)
		assert.Equal(t, tc.wfType, parsed.WorkflowType)
		assert.Equal(t, id, parsed.Full)
	}
}

func TestParseRejectsMalformedIDs(t *testing.T) {
	for _, id := range []string{"", "justone", ":MyAgent", "acme:"} {
		_, err := Parse(id)
		assert.ErrorIs(t, err, ErrInvalidWorkflowID, "id %q", id)
	}
}

func TestBuildOmitsEmptySuffix(t *testing.T) {
	for _, tc := range []struct {
		suffixes []string
		want     string
	}{
		{nil, "acme:MyAgent:Chat"},
		{[]string{""}, "acme:MyAgent:Chat"},
		{[]string{"u1"}, "acme:MyAgent:Chat:u1"},
	} {
		id, err := Build("acme", "MyAgent:Chat", tc.suffixes...)
		require.NoError(t, err)
		assert.Equal(t, tc.want, id)
	}

	_, err := Build("", "MyAgent:Chat")
	assert.ErrorIs(t, err, ErrInvalidWorkflowID)
	_, err = Build("acme", "")
	assert.ErrorIs(t, err, ErrInvalidWorkflowID)
}

func TestExtractTenant(t *testing.T) {
	tenant, err := ExtractTenant("contoso:MyAgent:Chat:run-1")
	require.NoError(t, err)
	assert.Equal(t, "contoso", tenant)

	_, err = ExtractTenant("nodelimiter")
	assert.ErrorIs(t, err, ErrInvalidWorkflowID)
}

func TestTaskQueueDerivation(t *testing.T) {
	q, err := TaskQueue("MyAgent:Chat", true, "")
	require.NoError(t, err)
	assert.Equal(t, "MyAgent:Chat", q)

	// Tenant is ignored for system-scoped queues
	q, err = TaskQueue("MyAgent:Chat", true, "acme")
	require.NoError(t, err)
	assert.Equal(t, "MyAgent:Chat", q)

	q, err = TaskQueue("MyAgent:Chat", false, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme:MyAgent:Chat", q)

	_, err = TaskQueue("MyAgent:Chat", false, "")
	assert.ErrorIs(t, err, ErrMissingTenant)
}

func TestValidateIsolation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	assert.True(t, ValidateIsolation("contoso", "acme", true, logger))
	assert.True(t, ValidateIsolation("acme", "acme", false, logger))
	assert.False(t, ValidateIsolation("contoso", "acme", false, logger))
	assert.False(t, ValidateIsolation("contoso", "acme", false, nil))
}
