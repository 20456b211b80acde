//go:build integration

package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/store/redis"
	"github.com/xraph/tasker/store/storetest"
)

// setupTestClient starts a Redis container and returns a client to it.
func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := testcontainers.TerminateContainer(container); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	opts, err := goredis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestConformance(t *testing.T) {
	client := setupTestClient(t)
	s := redis.New(client)

	storetest.Run(t, func(t *testing.T) invocation.Store {
		t.Helper()
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("flushdb: %v", err)
		}
		return s
	})
}

func TestDequeue_StaleQueueMemberIsDropped(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)
	s := redis.New(client)

	base := time.Now().UTC().Add(-time.Minute)
	live := storetest.NewInvocation("live", "default", base.Add(time.Second))
	if err := s.Enqueue(ctx, live); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// A queue member whose hash vanished, ahead of the live one.
	stale := id.NewInvocationID()
	err := client.ZAdd(ctx, "tasker:queue:default", goredis.Z{
		Score:  float64(base.UnixMicro()),
		Member: stale.String(),
	}).Err()
	if err != nil {
		t.Fatalf("zadd: %v", err)
	}

	got, err := s.Dequeue(ctx, []string{"default"}, id.NewWorkerID(), 2)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 1 || got[0].TaskName != "live" {
		t.Fatalf("got %v, want [live]", storetest.Names(got))
	}

	if n, _ := client.Exists(ctx, "tasker:inv:"+stale.String()).Result(); n != 0 {
		t.Fatal("claim recreated a hash for the stale member")
	}
	if _, err := s.Get(ctx, stale); !errors.Is(err, tasker.ErrInvocationNotFound) {
		t.Fatalf("Get stale = %v, want ErrInvocationNotFound", err)
	}
	if n, _ := client.ZCard(ctx, "tasker:queue:default").Result(); n != 0 {
		t.Fatalf("queue still holds %d members", n)
	}
}

func TestOpen(t *testing.T) {
	if _, _, err := redis.Open("not a url"); err == nil {
		t.Fatal("Open accepted an invalid url")
	}
}
