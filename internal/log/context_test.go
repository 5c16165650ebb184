package log

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext = %q, want req-123", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext on bare context = %q, want empty", got)
	}
}

func TestJobIDRoundTrip(t *testing.T) {
	ctx := ContextWithJobID(context.Background(), "run-456")
	if got := JobIDFromContext(ctx); got != "run-456" {
		t.Errorf("JobIDFromContext = %q, want run-456", got)
	}
	if got := JobIDFromContext(context.Background()); got != "" {
		t.Errorf("JobIDFromContext on bare context = %q, want empty", got)
	}
}

func TestWithContextAddsRequestAndJobID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithJobID(ctx, "run-1")
	l := WithContext(ctx, Base())
	if l.GetLevel() < 0 {
		t.Fatal("expected a usable logger")
	}
}

func TestWithComponentFromContext(t *testing.T) {
	Configure(Config{})
	ctx := ContextWithRequestID(context.Background(), "req-abc")
	l := WithComponentFromContext(ctx, "reconciler")
	if l.GetLevel() < 0 {
		t.Fatal("expected a usable logger")
	}
}
