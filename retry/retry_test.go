package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailua-zk/kailua-go/kerrors"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Retryable:   kerrors.Retryable,
	}, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return kerrors.New(kerrors.RpcUnavailable, "dial failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	wantErr := kerrors.New(kerrors.PreimageMismatch, "bad hash")
	err := Do(context.Background(), DefaultPolicy(), func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wantErr, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Retryable: kerrors.Retryable}
	err := Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return kerrors.New(kerrors.RpcUnavailable, "still down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Do(ctx, DefaultPolicy(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected no attempts after cancellation, got %d", attempts)
	}
}
