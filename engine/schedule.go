package engine

import (
	"context"
	"errors"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// Schedule spec kinds.
const (
	SpecCron     = "cron"
	SpecInterval = "interval"
	SpecCalendar = "calendar"
)

// ScheduleSpec is the engine-neutral schedule timing descriptor. It is
// JSON-serializable so workflows can pass it through activities.
type ScheduleSpec struct {
	Kind     string        `json:"kind"`
	Cron     string        `json:"cron,omitempty"`
	Timezone string        `json:"timezone,omitempty"`
	Every    time.Duration `json:"every,omitempty"`
	Offset   time.Duration `json:"offset,omitempty"`
	At       time.Time     `json:"at,omitempty"`
}

// ScheduleOptions describes a schedule create request.
type ScheduleOptions struct {
	ID               string
	Spec             ScheduleSpec
	WorkflowType     string
	WorkflowID       string
	TaskQueue        string
	Input            []any
	Memo             map[string]any
	Paused           bool
	Note             string
	Overlap          enumspb.ScheduleOverlapPolicy
	RetryPolicy      *temporal.RetryPolicy
	ExecutionTimeout time.Duration
}

// ScheduleDescription is a snapshot of an existing schedule.
type ScheduleDescription struct {
	ID            string
	Paused        bool
	Note          string
	NextRunTimes  []time.Time
	RecentActions []time.Time
}

func toClientSpec(spec ScheduleSpec) client.ScheduleSpec {
	out := client.ScheduleSpec{TimeZoneName: spec.Timezone}
	switch spec.Kind {
	case SpecCron:
		out.CronExpressions = []string{spec.Cron}
	case SpecInterval:
		out.Intervals = []client.ScheduleIntervalSpec{{Every: spec.Every, Offset: spec.Offset}}
	case SpecCalendar:
		at := spec.At
		out.Calendars = []client.ScheduleCalendarSpec{{
			Second:     []client.ScheduleRange{{Start: at.Second()}},
			Minute:     []client.ScheduleRange{{Start: at.Minute()}},
			Hour:       []client.ScheduleRange{{Start: at.Hour()}},
			DayOfMonth: []client.ScheduleRange{{Start: at.Day()}},
			Month:      []client.ScheduleRange{{Start: int(at.Month())}},
			Year:       []client.ScheduleRange{{Start: at.Year()}},
		}}
	}
	return out
}

// CreateSchedule creates a schedule whose action starts the configured
// workflow. Duplicate ids map to ErrScheduleExists.
func (e *Client) CreateSchedule(ctx context.Context, opts ScheduleOptions) error {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return err
	}
	_, err = tc.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:   opts.ID,
		Spec: toClientSpec(opts.Spec),
		Action: &client.ScheduleWorkflowAction{
			ID:                 opts.WorkflowID,
			Workflow:           opts.WorkflowType,
			TaskQueue:          opts.TaskQueue,
			Args:               opts.Input,
			Memo:               opts.Memo,
			RetryPolicy:        opts.RetryPolicy,
			WorkflowRunTimeout: opts.ExecutionTimeout,
		},
		Overlap: opts.Overlap,
		Paused:  opts.Paused,
		Note:    opts.Note,
	})
	if err != nil {
		var exists *serviceerror.AlreadyExists
		if errors.As(err, &exists) || errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
			return ErrScheduleExists
		}
		return err
	}
	e.logger.Info("Schedule created", zap.String("schedule_id", opts.ID))
	return nil
}

// DescribeSchedule fetches a schedule snapshot.
func (e *Client) DescribeSchedule(ctx context.Context, id string) (*ScheduleDescription, error) {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := tc.ScheduleClient().GetHandle(ctx, id).Describe(ctx)
	if err != nil {
		return nil, mapScheduleErr(err)
	}
	out := &ScheduleDescription{ID: id}
	if desc.Schedule.State != nil {
		out.Paused = desc.Schedule.State.Paused
		out.Note = desc.Schedule.State.Note
	}
	out.NextRunTimes = desc.Info.NextActionTimes
	for _, a := range desc.Info.RecentActions {
		out.RecentActions = append(out.RecentActions, a.ActualTime)
	}
	return out, nil
}

// PauseSchedule pauses a schedule with a note.
func (e *Client) PauseSchedule(ctx context.Context, id, note string) error {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return err
	}
	err = tc.ScheduleClient().GetHandle(ctx, id).Pause(ctx, client.SchedulePauseOptions{Note: note})
	return mapScheduleErr(err)
}

// UnpauseSchedule resumes a paused schedule.
func (e *Client) UnpauseSchedule(ctx context.Context, id, note string) error {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return err
	}
	err = tc.ScheduleClient().GetHandle(ctx, id).Unpause(ctx, client.ScheduleUnpauseOptions{Note: note})
	return mapScheduleErr(err)
}

// TriggerSchedule fires one immediate run.
func (e *Client) TriggerSchedule(ctx context.Context, id string) error {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return err
	}
	err = tc.ScheduleClient().GetHandle(ctx, id).Trigger(ctx, client.ScheduleTriggerOptions{})
	return mapScheduleErr(err)
}

// DeleteSchedule removes a schedule.
func (e *Client) DeleteSchedule(ctx context.Context, id string) error {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return err
	}
	err = tc.ScheduleClient().GetHandle(ctx, id).Delete(ctx)
	return mapScheduleErr(err)
}

// ListSchedules returns all schedule ids visible to this namespace. Callers
// apply tenant filtering.
func (e *Client) ListSchedules(ctx context.Context) ([]string, error) {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return nil, err
	}
	iter, err := tc.ScheduleClient().List(ctx, client.ScheduleListOptions{})
	if err != nil {
		return nil, err
	}
	var ids []string
	for iter.HasNext() {
		entry, err := iter.Next()
		if err != nil {
			return nil, err
		}
		ids = append(ids, entry.ID)
	}
	return ids, nil
}

// BackfillSchedule replays missed actions over [start, end].
func (e *Client) BackfillSchedule(ctx context.Context, id string, start, end time.Time) error {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return err
	}
	err = tc.ScheduleClient().GetHandle(ctx, id).Backfill(ctx, client.ScheduleBackfillOptions{
		Backfill: []client.ScheduleBackfill{{
			Start:   start,
			End:     end,
			Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_ALLOW_ALL,
		}},
	})
	return mapScheduleErr(err)
}

func mapScheduleErr(err error) error {
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return ErrScheduleMissing
	}
	return err
}
