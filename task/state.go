package task

import (
	"slices"
	"time"
)

// implied whitelist when the request declares no actions.
var impliedActions = []string{"approve", "reject"}

// state is the task's durable state. It lives in workflow memory and is
// rebuilt deterministically on replay.
type state struct {
	req         Request
	draft       string
	initialWork string
	finalWork   string
	completed   bool
	action      string
	comment     string
	completedAt *time.Time
	timedOut    bool
}

func newState(req Request) *state {
	return &state{req: req, draft: req.DraftWork, initialWork: req.DraftWork}
}

// allowed reports whether action is in the whitelist.
func (s *state) allowed(action string) bool {
	actions := s.req.Actions
	if len(actions) == 0 {
		actions = impliedActions
	}
	return slices.Contains(actions, action)
}

// updateDraft replaces the draft while pending. Returns false once completed.
func (s *state) updateDraft(text string) bool {
	if s.completed {
		return false
	}
	s.draft = text
	return true
}

// perform transitions Pending to Completed for a whitelisted action. Invalid
// or late actions leave the state unchanged.
func (s *state) perform(req ActionRequest, now time.Time) bool {
	if s.completed || !s.allowed(req.Action) {
		return false
	}
	s.action = req.Action
	s.comment = req.Comment
	s.finalWork = s.draft
	s.completedAt = &now
	s.completed = true
	return true
}

// expire completes the task by timeout with no performed action.
func (s *state) expire(now time.Time) {
	if s.completed {
		return
	}
	s.timedOut = true
	s.completedAt = &now
	s.completed = true
}

func (s *state) info() Info {
	return Info{
		TaskID:          s.req.TaskID,
		Title:           s.req.Title,
		Description:     s.req.Description,
		ParticipantID:   s.req.ParticipantID,
		Metadata:        s.req.Metadata,
		CurrentDraft:    s.draft,
		IsCompleted:     s.completed,
		PerformedAction: s.action,
		Comment:         s.comment,
		Actions:         s.req.Actions,
		InitialWork:     s.initialWork,
		FinalWork:       s.finalWork,
		CompletedAt:     s.completedAt,
		TimedOut:        s.timedOut,
	}
}

func (s *state) result() *Result {
	return &Result{
		TaskID:          s.req.TaskID,
		InitialWork:     s.initialWork,
		FinalWork:       s.finalWork,
		CompletedAt:     s.completedAt,
		PerformedAction: s.action,
		Comment:         s.comment,
		TimedOut:        s.timedOut,
		Completed:       !s.timedOut,
	}
}
