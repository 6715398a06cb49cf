package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilguard/doppel/pkg/utils"
)

var (
	errTemporary = errors.New("temporary error")
	errOther     = errors.New("operation failed")
)

func fastRetryOptions() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds first try", func(t *testing.T) {
		t.Parallel()

		calls := 0
		result, err := utils.WithRetry(context.Background(), func() (int, error) {
			calls++
			return 42, nil
		}, fastRetryOptions())

		require.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		result, err := utils.WithRetry(context.Background(), func() (string, error) {
			calls++
			if calls < 3 {
				return "", errTemporary
			}
			return "ok", nil
		}, fastRetryOptions())

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts retries", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_, err := utils.WithRetry(context.Background(), func() (int, error) {
			calls++
			return 0, errTemporary
		}, fastRetryOptions())

		require.ErrorIs(t, err, errTemporary)
		assert.Equal(t, 4, calls) // initial attempt plus three retries
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_, err := utils.WithRetry(context.Background(), func() (int, error) {
			calls++
			return 0, utils.Permanent(errOther)
		}, fastRetryOptions())

		require.ErrorIs(t, err, errOther)
		assert.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := utils.WithRetry(ctx, func() (int, error) {
			return 0, errTemporary
		}, fastRetryOptions())

		require.Error(t, err)
	})
}

func TestGetTransportRetryOptions(t *testing.T) {
	t.Parallel()

	opts := utils.GetTransportRetryOptions()
	assert.Equal(t, uint64(3), opts.MaxRetries)
	assert.Equal(t, time.Second, opts.InitialInterval)
	assert.Equal(t, 30*time.Second, opts.MaxInterval)
}
