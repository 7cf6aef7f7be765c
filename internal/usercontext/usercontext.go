// Package usercontext carries the authenticated caller identity through
// request contexts. Authentication itself happens upstream; handlers only
// see the resolved user id.
package usercontext

import (
	"context"
	"strings"
)

type contextKey struct{}

// WithUserID returns a context carrying the caller's user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext extracts the caller's user id, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(contextKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
