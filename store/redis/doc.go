// Package redis implements store.Store on Redis with go-redis v9.
//
// Each invocation is a Hash. Pending invocations sit in one Sorted Set per
// queue scored by creation time, so ZPOPMIN hands out the oldest first.
// Group members are indexed in a Sorted Set scored by their group index.
//
// The caller owns the client lifecycle; Close never closes it:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
