// Package middleware provides composable middleware for invocation
// execution.
//
// A [Middleware] wraps the call into a task behavior. Middleware are
// composed into a chain using [Chain] and applied by the worker before
// each invocation runs. The first middleware in the slice is the
// outermost wrapper.
//
//	// recover → logging → handler
//	chain := middleware.Chain(middleware.Recover(logger), middleware.Logging(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs task name, queue, group position, duration and outcome
//   - [Recover] catches panics and converts them to errors
//   - [Timeout] cancels the invocation context after its timeout
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records per-task duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, inv *invocation.Invocation, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
