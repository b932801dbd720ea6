// Package task implements the human-in-the-loop task workflow: a durable
// state machine holding a draft under review, completed by a named action
// signal or by timeout, plus the starter and external facade around it.
package task

import "time"

// Signal, query and workflow naming.
const (
	SignalUpdateDraft   = "update-draft"
	SignalPerformAction = "perform-action"
	// Legacy aliases kept for older callers. They feed the same state machine.
	SignalApprove = "approve"
	SignalReject  = "reject"

	QueryGetTaskInfo = "get-task-info"
)

// Request creates one task.
type Request struct {
	// TaskID is unique within tenant and workflow type. Empty generates one.
	TaskID        string         `json:"taskId"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	ParticipantID string         `json:"participantId"`
	DraftWork     string         `json:"draftWork,omitempty"`
	// Actions is the whitelist of allowed action names. Empty implies
	// approve/reject.
	Actions  []string       `json:"actions,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timeout completes the task with TimedOut set when it elapses. Zero waits
	// forever.
	Timeout time.Duration `json:"timeout,omitempty"`
	// CreatorWorkflowID, when set, receives a task-created data message. Its
	// delivery failure never fails the task.
	CreatorWorkflowID string `json:"creatorWorkflowId,omitempty"`
}

// ActionRequest completes a task with a named action.
type ActionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment,omitempty"`
}

// Info is the deterministic snapshot served by the task info query.
type Info struct {
	TaskID          string         `json:"taskId"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	ParticipantID   string         `json:"participantId"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CurrentDraft    string         `json:"currentDraft"`
	IsCompleted     bool           `json:"isCompleted"`
	PerformedAction string         `json:"performedAction,omitempty"`
	Comment         string         `json:"comment,omitempty"`
	Actions         []string       `json:"actions,omitempty"`
	InitialWork     string         `json:"initialWork"`
	FinalWork       string         `json:"finalWork,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	TimedOut        bool           `json:"timedOut"`
}

// Result is the task workflow's return value.
type Result struct {
	TaskID          string     `json:"taskId"`
	InitialWork     string     `json:"initialWork"`
	FinalWork       string     `json:"finalWork,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	PerformedAction string     `json:"performedAction,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	TimedOut        bool       `json:"timedOut"`
	Completed       bool       `json:"completed"`
}
