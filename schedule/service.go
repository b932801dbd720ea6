// Package schedule exposes the tenant-safe scheduling facade: a fluent
// builder for cron, interval and calendar schedules, management operations,
// and the activity used when schedules are created from workflow code.
//
// Every schedule id is rewritten to `{tenant}:{id}` so tenants cannot address
// each other's schedules.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// ErrUnsupportedInWorkflow is returned for schedule operations that cannot
// run deterministically inside workflow code.
var ErrUnsupportedInWorkflow = errors.New("schedule operation not supported inside workflow code")

// AlreadyExistsError reports an idempotency conflict on create.
type AlreadyExistsError struct {
	ScheduleID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("schedule already exists: %s", e.ScheduleID)
}

func (e *AlreadyExistsError) Unwrap() error { return engine.ErrScheduleExists }

// Service manages schedules for the current tenant.
type Service struct {
	engine engine.API
	logger *zap.Logger
}

// NewService builds the schedule facade over the engine client.
func NewService(engineAPI engine.API, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engineAPI, logger: logger}
}

// Create starts a fluent schedule definition under the caller's tenant.
func (s *Service) Create(rc *runctx.Context, id string) *Builder {
	return newBuilder(s, rc, id)
}

// qualify rewrites a user-supplied schedule id to its tenant-scoped form.
func (s *Service) qualify(rc *runctx.Context, id string) (string, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("schedule id must not be empty")
	}
	return tenant + ":" + id, nil
}

// Describe fetches the tenant's schedule snapshot.
func (s *Service) Describe(rc *runctx.Context, id string) (*engine.ScheduleDescription, error) {
	if rc.InWorkflow() {
		return nil, ErrUnsupportedInWorkflow
	}
	qualified, err := s.qualify(rc, id)
	if err != nil {
		return nil, err
	}
	return s.engine.DescribeSchedule(rc.Std(), qualified)
}

// Pause pauses the schedule with a note.
func (s *Service) Pause(rc *runctx.Context, id, note string) error {
	return s.manage(rc, id, func(qualified string) error {
		return s.engine.PauseSchedule(rc.Std(), qualified, note)
	})
}

// Unpause resumes a paused schedule.
func (s *Service) Unpause(rc *runctx.Context, id, note string) error {
	return s.manage(rc, id, func(qualified string) error {
		return s.engine.UnpauseSchedule(rc.Std(), qualified, note)
	})
}

// Trigger fires one immediate run.
func (s *Service) Trigger(rc *runctx.Context, id string) error {
	return s.manage(rc, id, func(qualified string) error {
		return s.engine.TriggerSchedule(rc.Std(), qualified)
	})
}

// Delete removes the schedule.
func (s *Service) Delete(rc *runctx.Context, id string) error {
	return s.manage(rc, id, func(qualified string) error {
		return s.engine.DeleteSchedule(rc.Std(), qualified)
	})
}

// Backfill replays missed actions over [start, end].
func (s *Service) Backfill(rc *runctx.Context, id string, start, end time.Time) error {
	return s.manage(rc, id, func(qualified string) error {
		return s.engine.BackfillSchedule(rc.Std(), qualified, start, end)
	})
}

// List returns the user-supplied ids of the caller tenant's schedules.
func (s *Service) List(rc *runctx.Context) ([]string, error) {
	if rc.InWorkflow() {
		return nil, ErrUnsupportedInWorkflow
	}
	tenant, err := rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	all, err := s.engine.ListSchedules(rc.Std())
	if err != nil {
		return nil, err
	}
	prefix := tenant + ":"
	var ids []string
	for _, id := range all {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, strings.TrimPrefix(id, prefix))
		}
	}
	return ids, nil
}

func (s *Service) manage(rc *runctx.Context, id string, op func(qualified string) error) error {
	if rc.InWorkflow() {
		return ErrUnsupportedInWorkflow
	}
	qualified, err := s.qualify(rc, id)
	if err != nil {
		return err
	}
	return op(qualified)
}
