// Package engine wires the Tasker subsystems together and implements the
// submission half of the execution layer.
//
// # Building an Engine
//
//	eng, err := engine.New(memory.New(),
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	    engine.WithCatalog(remote.NewCatalog(reports.Rebuild)),
//	    engine.WithExtension(myExtension),
//	    engine.WithQueueConfig(queue.Config{
//	        Name:      "critical",
//	        RateLimit: 100,
//	    }),
//	)
//
// New installs the reserved tasks (dispatch.TaskPing and
// dispatch.TaskExecuteRemote) into the registry.
//
// # Registering Tasks
//
//	err := eng.Registry().Register("email.send", task.Typed(sendEmail))
//	err = eng.Autodiscover(ctx) // replay discovery.Provide setups
//
// # Submitting Work
//
//	h, err := eng.Submit(ctx, "email.send", task.A(EmailInput{To: "user@example.com"}))
//	v, err := h.Wait(ctx)
//
//	squares, err := eng.Dispatch().Map(ctx, "math.square", groups, 10*time.Second)
//
// # Options
//
//   - [WithConfig]: replace the default configuration
//   - [WithRegistry]: use an existing task registry
//   - [WithCatalog]: allow-list functions for remote execution
//   - [WithDiscoverer]: add a discovery source
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the execution chain
//   - [WithQueueConfig]: configure per-queue rate limits and concurrency
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
