package schedule

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
)

// ActivityCreateIfNotExists is the pre-registered activity name for schedule
// creation from workflow code.
const ActivityCreateIfNotExists = "ScheduleActivity.CreateIfNotExists"

// CreateResult reports whether the create call made a new schedule or found
// an existing one.
type CreateResult struct {
	ScheduleID string `json:"scheduleId"`
	Created    bool   `json:"created"`
}

// Activities hosts the schedule activity implementations.
type Activities struct {
	engine engine.API
}

// NewActivities binds the schedule activities to the engine client.
func NewActivities(engineAPI engine.API) *Activities {
	return &Activities{engine: engineAPI}
}

// CreateIfNotExists creates a schedule, treating an existing id as success so
// workflow retries and replays stay idempotent.
func (a *Activities) CreateIfNotExists(ctx context.Context, opts engine.ScheduleOptions) (*CreateResult, error) {
	err := a.engine.CreateSchedule(ctx, opts)
	if errors.Is(err, engine.ErrScheduleExists) {
		activity.GetLogger(ctx).Info("Schedule already exists, skipping create",
			"schedule_id", opts.ID,
		)
		return &CreateResult{ScheduleID: opts.ID, Created: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &CreateResult{ScheduleID: opts.ID, Created: true}, nil
}
