package requestctx

import (
	"context"
	"testing"
)

func TestRequestContextValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithClientIP(ctx, "203.0.113.9")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := GetClientIP(ctx); got != "203.0.113.9" {
		t.Fatalf("expected client ip, got %q", got)
	}
	if GetRequestID(context.Background()) != "" {
		t.Fatal("expected empty request id on bare context")
	}
}
