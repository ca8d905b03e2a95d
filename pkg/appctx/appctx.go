// Package appctx carries request-scoped values (a logger and a trace id)
// through a context.Context so handlers deep in the call stack don't need
// them threaded explicitly.
package appctx

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type traceKey struct{}

// WithLogger returns a context with an associated logger.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// GetLogger returns the logger associated with the given context, or a
// disabled logger if none was attached.
func GetLogger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithTrace returns a context with an associated request id.
func WithTrace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// GetTrace returns the request id stored in the context, generating a
// fresh one if none is present.
func GetTrace(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
