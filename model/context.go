package model

import (
	"context"
	"errors"
	"slices"
)

// RequestContext is the identity behind an authenticated request, read from
// the token claims. Offices are the office names the token grants directly;
// the access policy adds to them. Read-only once attached to a context.
type RequestContext struct {
	SubjectID     string
	Email         string
	Roles         []string
	Offices       []string
	CorrelationID string
	TraceID       string
	SpanID        string
}

var errNoSubject = errors.New("model: token names no subject")

// Validate rejects a context without SubjectID. Submissions and saved
// configurations are attributed to it.
func (rc *RequestContext) Validate() error {
	if rc.SubjectID == "" {
		return errNoSubject
	}
	return nil
}

// HasRole reports whether the token carries role.
func (rc *RequestContext) HasRole(role string) bool {
	return slices.Contains(rc.Roles, role)
}

type contextKey struct{}

// WithRequestContext attaches rctx to ctx.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom returns the RequestContext attached to ctx, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
