package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errGatewayBusy = errors.New("embed gateway: 503 model loading")
	errEmptyBatch  = errors.New("embed gateway: 400 input is empty")
)

func embedClassifier(err error) ErrorClassification {
	if errors.Is(err, errGatewayBusy) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	// Malformed batches are the caller's fault; repeating them is pointless
	// and they say nothing about gateway health.
	return ErrorClassification{Retryable: false, RecordFailure: false}
}

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesBusyGateway(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "ollama_embed", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errGatewayBusy
		}
		return nil
	}, embedClassifier)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteFailsFastOnMalformedBatch(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "ollama_embed", func(context.Context) error {
		attempts++
		return errEmptyBatch
	}, embedClassifier)
	if !errors.Is(err, errEmptyBatch) {
		t.Fatalf("expected empty-batch error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteWithoutClassifierNeverRetries(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "ollama_embed", func(context.Context) error {
		attempts++
		return errGatewayBusy
	}, nil)
	if !errors.Is(err, errGatewayBusy) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt without a classifier, got %d", attempts)
	}
}

func TestExecuteAbandonsBackoffWhenContextCanceled(t *testing.T) {
	cfg := fastConfig()
	// A broken wait would hang the test for an hour; cancellation must win.
	cfg.RetryInitialBackoff = time.Hour
	cfg.RetryMaxBackoff = time.Hour
	exec := NewExecutor(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := exec.Execute(ctx, "ollama_embed", func(context.Context) error {
		attempts++
		cancel()
		return errGatewayBusy
	}, embedClassifier)
	if !errors.Is(err, errGatewayBusy) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterGatewayFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "ollama_embed", func(context.Context) error {
			return errGatewayBusy
		}, func(error) ErrorClassification {
			return ErrorClassification{Retryable: false, RecordFailure: true}
		})
		if !errors.Is(err, errGatewayBusy) {
			t.Fatalf("expected gateway error on call %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "ollama_embed", func(context.Context) error {
		t.Fatal("open circuit must not reach the gateway")
		return nil
	}, embedClassifier)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open-circuit error, got %v", err)
	}
}

func TestExecuteKeepsBreakersPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})
	recording := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "ollama_embed", func(context.Context) error {
			return errGatewayBusy
		}, recording)
	}

	// The chunk publish path must stay closed while the embed breaker is open.
	err := exec.Execute(context.Background(), "nats_publish", func(context.Context) error {
		return nil
	}, recording)
	if err != nil {
		t.Fatalf("expected publish to pass through its own breaker, got %v", err)
	}
}
