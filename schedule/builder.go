package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/ident"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Builder accumulates one schedule definition. Helpers validate eagerly and
// defer errors to Start.
type Builder struct {
	svc *Service
	rc  *runctx.Context
	id  string

	spec         engine.ScheduleSpec
	workflowType string
	input        []any
	memo         map[string]any
	retry        *temporal.RetryPolicy
	timeout      time.Duration
	overlap      enumspb.ScheduleOverlapPolicy
	paused       bool
	note         string

	err error
}

func newBuilder(svc *Service, rc *runctx.Context, id string) *Builder {
	return &Builder{svc: svc, rc: rc, id: id, workflowType: rc.WorkflowType()}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) cronSpec(expr string) *Builder {
	if _, err := cronParser.Parse(expr); err != nil {
		return b.fail(fmt.Errorf("invalid cron expression %q: %w", expr, err))
	}
	b.spec.Kind = engine.SpecCron
	b.spec.Cron = expr
	return b
}

// Daily runs every day at hour:minute.
func (b *Builder) Daily(hour, minute int) *Builder {
	return b.cronSpec(fmt.Sprintf("%d %d * * *", minute, hour))
}

// Weekly runs on the given weekday at hour:minute.
func (b *Builder) Weekly(day time.Weekday, hour, minute int) *Builder {
	return b.cronSpec(fmt.Sprintf("%d %d * * %d", minute, hour, int(day)))
}

// Monthly runs on the given day of month at hour:minute.
func (b *Builder) Monthly(dayOfMonth, hour, minute int) *Builder {
	return b.cronSpec(fmt.Sprintf("%d %d %d * *", minute, hour, dayOfMonth))
}

// Hourly runs every hour at the given minute.
func (b *Builder) Hourly(minute int) *Builder {
	return b.cronSpec(fmt.Sprintf("%d * * * *", minute))
}

// Weekdays runs Monday through Friday at hour:minute.
func (b *Builder) Weekdays(hour, minute int) *Builder {
	return b.cronSpec(fmt.Sprintf("%d %d * * 1-5", minute, hour))
}

// EverySeconds runs on a fixed interval of n seconds.
func (b *Builder) EverySeconds(n int) *Builder {
	return b.WithIntervalSchedule(time.Duration(n)*time.Second, 0)
}

// EveryMinutes runs on a fixed interval of n minutes.
func (b *Builder) EveryMinutes(n int) *Builder {
	return b.WithIntervalSchedule(time.Duration(n)*time.Minute, 0)
}

// EveryHours runs on a fixed interval of n hours.
func (b *Builder) EveryHours(n int) *Builder {
	return b.WithIntervalSchedule(time.Duration(n)*time.Hour, 0)
}

// EveryDays runs on a fixed interval of n days.
func (b *Builder) EveryDays(n int) *Builder {
	return b.WithIntervalSchedule(time.Duration(n)*24*time.Hour, 0)
}

// WithCronSchedule sets a raw five-field cron expression.
func (b *Builder) WithCronSchedule(expr string) *Builder {
	return b.cronSpec(expr)
}

// WithIntervalSchedule sets a fixed interval with an optional phase offset.
func (b *Builder) WithIntervalSchedule(every, offset time.Duration) *Builder {
	if every <= 0 {
		return b.fail(fmt.Errorf("interval must be positive, got %s", every))
	}
	b.spec = engine.ScheduleSpec{Kind: engine.SpecInterval, Every: every, Offset: offset, Timezone: b.spec.Timezone}
	return b
}

// WithCalendarSchedule sets a one-shot run at the given instant. Not
// available from workflow code.
func (b *Builder) WithCalendarSchedule(at time.Time) *Builder {
	b.spec = engine.ScheduleSpec{Kind: engine.SpecCalendar, At: at, Timezone: b.spec.Timezone}
	return b
}

// WithTimezone sets the IANA timezone for cron and calendar specs. Default is
// UTC.
func (b *Builder) WithTimezone(tz string) *Builder {
	if _, err := time.LoadLocation(tz); err != nil {
		return b.fail(fmt.Errorf("invalid timezone %q: %w", tz, err))
	}
	b.spec.Timezone = tz
	return b
}

// ForWorkflow targets another workflow type instead of the caller's.
func (b *Builder) ForWorkflow(workflowType string) *Builder {
	b.workflowType = workflowType
	return b
}

// WithInput sets the arguments passed to each scheduled run.
func (b *Builder) WithInput(args ...any) *Builder {
	b.input = args
	return b
}

// WithMemo attaches extra memo fields to scheduled runs.
func (b *Builder) WithMemo(memo map[string]any) *Builder {
	b.memo = memo
	return b
}

// WithRetryPolicy sets the retry policy for scheduled runs.
func (b *Builder) WithRetryPolicy(p *temporal.RetryPolicy) *Builder {
	b.retry = p
	return b
}

// WithTimeout bounds each scheduled run's execution time.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// SkipIfRunning skips a run while the previous one is still executing.
func (b *Builder) SkipIfRunning() *Builder {
	return b.WithOverlapPolicy(enumspb.SCHEDULE_OVERLAP_POLICY_SKIP)
}

// AllowOverlap lets runs execute concurrently.
func (b *Builder) AllowOverlap() *Builder {
	return b.WithOverlapPolicy(enumspb.SCHEDULE_OVERLAP_POLICY_ALLOW_ALL)
}

// BufferOne queues at most one run behind the current one.
func (b *Builder) BufferOne() *Builder {
	return b.WithOverlapPolicy(enumspb.SCHEDULE_OVERLAP_POLICY_BUFFER_ONE)
}

// CancelOther cancels the running execution before starting the new one.
func (b *Builder) CancelOther() *Builder {
	return b.WithOverlapPolicy(enumspb.SCHEDULE_OVERLAP_POLICY_CANCEL_OTHER)
}

// TerminateOther terminates the running execution before starting the new
// one.
func (b *Builder) TerminateOther() *Builder {
	return b.WithOverlapPolicy(enumspb.SCHEDULE_OVERLAP_POLICY_TERMINATE_OTHER)
}

// WithOverlapPolicy sets the overlap policy directly.
func (b *Builder) WithOverlapPolicy(p enumspb.ScheduleOverlapPolicy) *Builder {
	b.overlap = p
	return b
}

// StartPaused creates the schedule paused with a note.
func (b *Builder) StartPaused(paused bool, note string) *Builder {
	b.paused = paused
	b.note = note
	return b
}

// Handle references a created schedule.
type Handle struct {
	svc *Service
	rc  *runctx.Context
	// ID is the tenant-qualified schedule id.
	ID string
	// UserID is the id the caller supplied.
	UserID string
	// Created is false when an identical id already existed and the create was
	// treated as idempotent (workflow path only).
	Created bool
}

// Start creates the schedule. From workflow code, cron and interval specs are
// created through the schedule activity and duplicate ids are treated as
// success; outside, duplicates surface as AlreadyExistsError.
func (b *Builder) Start() (*Handle, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.spec.Kind == "" {
		return nil, fmt.Errorf("schedule %q has no timing spec", b.id)
	}
	tenant, err := b.rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	qualified, err := b.svc.qualify(b.rc, b.id)
	if err != nil {
		return nil, err
	}
	workflowID, err := ident.Build(tenant, b.workflowType, b.id)
	if err != nil {
		return nil, err
	}
	queue, err := ident.TaskQueue(b.workflowType, b.rc.SystemScoped(), tenant)
	if err != nil {
		return nil, err
	}

	memo := map[string]any{
		runctx.MemoTenantID:     tenant,
		runctx.MemoSystemScoped: b.rc.SystemScoped(),
	}
	for k, v := range b.memo {
		memo[k] = v
	}
	opts := engine.ScheduleOptions{
		ID:               qualified,
		Spec:             b.spec,
		WorkflowType:     b.workflowType,
		WorkflowID:       workflowID,
		TaskQueue:        queue,
		Input:            b.input,
		Memo:             memo,
		Paused:           b.paused,
		Note:             b.note,
		Overlap:          b.overlap,
		RetryPolicy:      b.retry,
		ExecutionTimeout: b.timeout,
	}

	handle := &Handle{svc: b.svc, rc: b.rc, ID: qualified, UserID: b.id, Created: true}
	if b.rc.InWorkflow() {
		if b.spec.Kind == engine.SpecCalendar {
			return nil, fmt.Errorf("%w: calendar spec", ErrUnsupportedInWorkflow)
		}
		result, err := executor.Execute(b.rc, ActivityCreateIfNotExists, []any{opts},
			func(ctx context.Context) (*CreateResult, error) {
				return NewActivities(b.svc.engine).CreateIfNotExists(ctx, opts)
			})
		if err != nil {
			return nil, err
		}
		handle.Created = result.Created
		return handle, nil
	}

	if err := b.svc.engine.CreateSchedule(b.rc.Std(), opts); err != nil {
		if errors.Is(err, engine.ErrScheduleExists) {
			return nil, &AlreadyExistsError{ScheduleID: qualified}
		}
		return nil, err
	}
	b.svc.logger.Info("Schedule created",
		zap.String("schedule_id", qualified),
		zap.String("workflow_type", b.workflowType),
	)
	return handle, nil
}

// Pause pauses this schedule.
func (h *Handle) Pause(note string) error { return h.svc.Pause(h.rc, h.UserID, note) }

// Unpause resumes this schedule.
func (h *Handle) Unpause(note string) error { return h.svc.Unpause(h.rc, h.UserID, note) }

// Trigger fires one immediate run of this schedule.
func (h *Handle) Trigger() error { return h.svc.Trigger(h.rc, h.UserID) }

// Delete removes this schedule.
func (h *Handle) Delete() error { return h.svc.Delete(h.rc, h.UserID) }

// Describe fetches this schedule's snapshot.
func (h *Handle) Describe() (*engine.ScheduleDescription, error) {
	return h.svc.Describe(h.rc, h.UserID)
}
