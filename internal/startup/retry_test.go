package startup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		MaxAttempts:  4,
		Multiplier:   2,
	}
}

func TestIsNetworkError(t *testing.T) {
	assert.False(t, IsNetworkError(nil))
	assert.False(t, IsNetworkError(errors.New("jellyfin fetch movies: status 401")))
	assert.False(t, IsNetworkError(context.Canceled))
	assert.True(t, IsNetworkError(fmt.Errorf("jellyfin ping: %w", &net.OpError{Op: "dial", Err: errors.New("refused")})))
	assert.True(t, IsNetworkError(errors.New("Get \"http://jellyfin:8096\": dial tcp: lookup jellyfin: no such host")))
}

func TestWithRetry_SucceedsAfterNetworkErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "ping", fastConfig(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, zerolog.Nop())

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("status 401")
	err := WithRetry(context.Background(), "ping", fastConfig(), func(context.Context) error {
		calls++
		return permanent
	}, zerolog.Nop())

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "ping", fastConfig(), func(context.Context) error {
		calls++
		return errors.New("i/o timeout")
	}, zerolog.Nop())

	assert.EqualError(t, err, "i/o timeout")
	assert.Equal(t, 4, calls)
}

func TestWithRetry_CustomRetryable(t *testing.T) {
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return err.Error() == "status 503" }

	calls := 0
	err := WithRetry(context.Background(), "ping", cfg, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("status 503")
		}
		return nil
	}, zerolog.Nop())

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour

	err := WithRetry(ctx, "ping", cfg, func(context.Context) error {
		cancel()
		return errors.New("connection refused")
	}, zerolog.Nop())

	assert.ErrorIs(t, err, context.Canceled)
}
