package services

import (
	"context"
	"strings"
)

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	cardKey      contextKey = "card"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// Values are trimmed; a blank value leaves ctx unchanged.
func withValue(ctx context.Context, key contextKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobID annotates context with the fetch job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the fetch job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, jobIDKey)
}

// WithCard annotates context with the card entry currently being processed.
func WithCard(ctx context.Context, name string) context.Context {
	return withValue(ctx, cardKey, name)
}

// CardFromContext returns the card entry label if present.
func CardFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, cardKey)
}

// WithStage annotates context with the source or step handling the call.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, stageKey)
}

// WithRequestID annotates context with an API request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, requestIDKey)
}
