// Package queue provides per-queue rate limiting and concurrency caps for
// the worker pool.
//
// Queues are named lanes that group related invocations. Each task
// definition carries a queue (default "default"), and the pool polls the
// queues listed in [tasker.Config.Queues].
//
// # Per-Queue Configuration
//
//	queue.Config{
//	    Name:           "email",
//	    MaxConcurrency: 5,  // max 5 concurrent email invocations
//	    RateLimit:      10, // max 10 invocations/s dequeued from this queue
//	    RateBurst:      20, // allow bursts up to 20
//	}
//
// Pass configs when building the engine:
//
//	engine.New(store,
//	    engine.WithQueueConfig(
//	        queue.Config{Name: "critical", MaxConcurrency: 20},
//	        queue.Config{Name: "bulk", RateLimit: 5, RateBurst: 10},
//	    ),
//	)
//
// # Manager
//
// [Manager] is consulted before each dequeue. It uses a token-bucket rate
// limiter (golang.org/x/time/rate) and an active-count gate.
//
//	if m.Acquire(q) {
//	    defer m.Release(q)
//	    if inv := dequeue(q); inv != nil {
//	        m.Commit(q)
//	        // execute
//	    }
//	}
//
// Queues without a [Config] have no limits beyond the pool-wide concurrency.
package queue
