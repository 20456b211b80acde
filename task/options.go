package task

import "time"

// Options configures a definition at registration time.
type Options struct {
	// Name overrides the task's declared name.
	Name string

	// Queue is the queue invocations of this task are submitted to.
	Queue string

	// Timeout is the maximum duration a single invocation may run.
	// Zero means unlimited.
	Timeout time.Duration

	// Schedule overrides a periodic task's declared cron expression.
	Schedule string
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Queue:   "default",
		Timeout: 5 * time.Minute,
	}
}

// Option is a functional option for registration.
type Option func(*Options)

// WithName registers the task under name instead of its declared name.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithQueue sets the queue for the task's invocations.
func WithQueue(q string) Option {
	return func(o *Options) { o.Queue = q }
}

// WithTimeout sets the per-invocation execution deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithSchedule overrides the cron expression of a periodic task.
func WithSchedule(expr string) Option {
	return func(o *Options) { o.Schedule = expr }
}
