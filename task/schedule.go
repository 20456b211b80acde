package task

import (
	"fmt"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/tasker"
)

// Schedules accept standard 5-field cron and descriptors ("@hourly",
// "@every 30s"). Seconds fields are rejected.
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a periodic task schedule. Registration calls it so an
// invalid expression never reaches the registry; nothing here fires tasks.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// resolveSchedule validates the schedule of a periodic task and rejects a
// schedule on a regular one.
func (d *Definition) resolveSchedule(t Task) error {
	expr := d.opts.Schedule
	if expr == "" {
		if s, ok := t.(Scheduled); ok {
			expr = s.Schedule()
		}
	}

	if d.kind == Regular {
		if expr != "" {
			return fmt.Errorf("task %q: schedule set on a regular task: %w", d.name, tasker.ErrInvalidTask)
		}
		return nil
	}

	if expr == "" {
		return fmt.Errorf("task %q: periodic task has no schedule: %w", d.name, tasker.ErrInvalidTask)
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("task %q: invalid schedule %q: %w: %w", d.name, expr, tasker.ErrInvalidTask, err)
	}
	d.schedule = expr
	d.sched = sched
	return nil
}
