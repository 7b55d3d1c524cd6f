// Package store defines the thin contract the Queue Service, Worker
// Pool, and Control Plane use to talk to the backing list/key store,
// and a concrete Redis implementation of it.
package store

import (
	"context"
	"time"
)

// KV is a single blocking-pop result: the key it came from and the
// popped value.
type KV struct {
	Key   string
	Value string
}

// Store is the contract §6 names: blocking left-pop, right-push,
// left-push, list-range, list-remove, list-set, list-length,
// get/set with optional TTL, delete, ping. Nothing above this
// interface knows it is talking to Redis specifically.
type Store interface {
	RPush(ctx context.Context, key string, values ...string) error
	LPush(ctx context.Context, key string, values ...string) error
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) (*KV, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)
	LSet(ctx context.Context, key string, index int64, value string) error
	LLen(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
