package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want bool
	}{
		{"API rate limit exceeded for user", true},
		{"secondary rate limit hit, retry after 60s", true},
		{"429 Too Many Requests", true},
		{"permission denied", false},
		{"not found", false},
		{"", false},
	}
	for _, tc := range cases {
		var err error
		if tc.msg != "" {
			err = errors.New(tc.msg)
		}
		if got := IsRateLimited(err); got != tc.want {
			t.Errorf("IsRateLimited(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestDoRetriesOnlyRateLimited(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("permission denied")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts, "non-rate-limit errors must not be retried")
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("rate limit exceeded")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("rate limit exceeded")
	})
	require.Error(t, err)
	require.Equal(t, MaxRetries+1, attempts, "base attempt plus MaxRetries retries")
}
