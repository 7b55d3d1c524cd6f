package main

import (
	"context"
	"fmt"
	"time"

	"github.com/maumercado/task-queue-go/internal/logger"
)

// Example task handlers, registered against demo queues so the
// process has something to run out of the box.

func echoHandler(ctx context.Context, kwargs map[string]interface{}) error {
	logger.Info().Interface("kwargs", kwargs).Msg("echo handler processing task")
	return nil
}

func sleepHandler(ctx context.Context, kwargs map[string]interface{}) error {
	duration := 1 * time.Second
	if d, ok := kwargs["duration_ms"].(float64); ok {
		duration = time.Duration(d) * time.Millisecond
	}

	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func computeHandler(ctx context.Context, kwargs map[string]interface{}) error {
	a, _ := kwargs["a"].(float64)
	b, _ := kwargs["b"].(float64)
	logger.Info().Float64("a", a).Float64("b", b).Float64("sum", a+b).Msg("compute handler processing task")
	return nil
}

func failHandler(ctx context.Context, kwargs map[string]interface{}) error {
	return fmt.Errorf("fail handler: intentional failure")
}
