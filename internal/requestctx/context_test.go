package requestctx

import (
	"context"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), &Context{RequestID: "req-1", Subject: "admin@example.com"})
	rc, ok := FromContext(ctx)
	if !ok {
		t.Fatalf("expected request context")
	}
	if rc.Subject != "admin@example.com" {
		t.Fatalf("unexpected subject %q", rc.Subject)
	}
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
}

func TestMissingContext(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	if _, ok := FromContext(WithContext(context.Background(), nil)); ok {
		t.Fatalf("nil request context must not be reported")
	}
}

func TestThrottleKey(t *testing.T) {
	var missing *Context
	cases := map[string]struct {
		rc   *Context
		want string
	}{
		"subject":     {&Context{Subject: "ops"}, "sub:ops"},
		"anonymous":   {&Context{RequestID: "r"}, "ip:10.0.0.1"},
		"nil context": {missing, "ip:10.0.0.1"},
	}
	for name, tc := range cases {
		if got := tc.rc.ThrottleKey("10.0.0.1"); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", name, tc.want, got)
		}
	}
}
