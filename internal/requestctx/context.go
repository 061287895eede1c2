// Package requestctx carries per-request identity from the admin middleware
// down to the upstream client.
package requestctx

import "context"

type ctxKey struct{}

// LocalsKey names the fiber.Locals slot holding the *Context.
const LocalsKey = "requestctx"

// Context carries the per-request identity forwarded to the backend.
type Context struct {
	RequestID string
	// Subject is the admin named by the bearer token, empty when auth is off.
	Subject string
}

// ThrottleKey identifies the caller for rate limiting: the subject when one
// authenticated, otherwise the supplied client address.
func (rc *Context) ThrottleKey(clientIP string) string {
	if rc != nil && rc.Subject != "" {
		return "sub:" + rc.Subject
	}
	return "ip:" + clientIP
}

// WithContext returns a copy of parent carrying rc.
func WithContext(parent context.Context, rc *Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, ctxKey{}, rc)
}

func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, _ := ctx.Value(ctxKey{}).(*Context)
	return rc, rc != nil
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if rc, ok := FromContext(ctx); ok {
		return rc.RequestID
	}
	return ""
}
