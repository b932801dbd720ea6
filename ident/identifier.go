// Package ident is the single source of truth for the workflow identifier
// protocol: `tenant:workflowType[:suffix...]`. Task queue names and tenant
// isolation checks are derived here and nowhere else.
package ident

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Typed errors for identifier parsing and queue derivation
var (
	ErrInvalidWorkflowID = errors.New("invalid workflow id")
	ErrMissingTenant     = errors.New("tenant required for non-system-scoped task queue")
)

const separator = ":"

// Identifier is a parsed workflow identifier.
type Identifier struct {
	Tenant       string
	WorkflowType string
	Full         string
}

// Parse splits a workflow id into its tenant and workflow type components.
// The id must have at least two non-empty leading components.
func Parse(id string) (Identifier, error) {
	parts := strings.Split(id, separator)
	if len(parts) < 2 {
		return Identifier{}, fmt.Errorf("%w: %q has fewer than two components", ErrInvalidWorkflowID, id)
	}
	if parts[0] == "" {
		return Identifier{}, fmt.Errorf("%w: %q has an empty tenant component", ErrInvalidWorkflowID, id)
	}
	if parts[1] == "" {
		return Identifier{}, fmt.Errorf("%w: %q has an empty workflow type component", ErrInvalidWorkflowID, id)
	}
	return Identifier{
		Tenant:       parts[0],
		WorkflowType: parts[1],
		Full:         id,
	}, nil
}

// ExtractTenant returns the tenant component of a workflow id.
func ExtractTenant(id string) (string, error) {
	parsed, err := Parse(id)
	if err != nil {
		return "", err
	}
	return parsed.Tenant, nil
}

// ExtractWorkflowType returns the workflow type component of a workflow id.
func ExtractWorkflowType(id string) (string, error) {
	parsed, err := Parse(id)
	if err != nil {
		return "", err
	}
	return parsed.WorkflowType, nil
}

// Build joins tenant, workflow type and optional suffixes into a canonical
// workflow id. Empty suffixes are omitted.
func Build(tenant, workflowType string, suffixes ...string) (string, error) {
	if tenant == "" {
		return "", fmt.Errorf("%w: empty tenant", ErrInvalidWorkflowID)
	}
	if workflowType == "" {
		return "", fmt.Errorf("%w: empty workflow type", ErrInvalidWorkflowID)
	}
	parts := make([]string, 0, 2+len(suffixes))
	parts = append(parts, tenant, workflowType)
	for _, s := range suffixes {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, separator), nil
}

// TaskQueue derives the engine task queue for a workflow type. System-scoped
// agents share one queue per workflow type; tenant-scoped agents get a queue
// prefixed with their tenant.
func TaskQueue(workflowType string, systemScoped bool, tenant string) (string, error) {
	if systemScoped {
		return workflowType, nil
	}
	if tenant == "" {
		return "", fmt.Errorf("%w: workflow type %q", ErrMissingTenant, workflowType)
	}
	return tenant + separator + workflowType, nil
}

// ValidateIsolation reports whether an execution owned by idTenant may be
// processed by a worker bound to expectedTenant. System-scoped workers accept
// any tenant. A mismatch is logged as a warning when a logger is provided.
func ValidateIsolation(idTenant, expectedTenant string, systemScoped bool, logger *zap.Logger) bool {
	if systemScoped {
		return true
	}
	if idTenant == expectedTenant {
		return true
	}
	if logger != nil {
		logger.Warn("Tenant isolation mismatch",
			zap.String("id_tenant", idTenant),
			zap.String("expected_tenant", expectedTenant),
		)
	}
	return false
}
