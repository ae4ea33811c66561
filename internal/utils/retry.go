package utils

import (
	"context"
	"time"
)

// Retry 在 shouldRetry 返回 true 时按指数退避重试 operation，
// 最多执行 retries+1 次。退避: base, 2*base, 4*base ...
func Retry(ctx context.Context, retries int, base time.Duration, shouldRetry func(error) bool, operation func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = operation()
		if err == nil || attempt >= retries || !shouldRetry(err) {
			return err
		}

		delay := base * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}
