package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// FamilyKey is the context key for the backup family name.
	FamilyKey contextKey = "family"

	// RunIDKey is the context key for the run identifier.
	RunIDKey contextKey = "run_id"

	// TriggerKey is the context key for what started a run
	// ("cli", "schedule", "watch").
	TriggerKey contextKey = "trigger"
)

// WithFamily adds a family name to the context.
func WithFamily(ctx context.Context, family string) context.Context {
	return context.WithValue(ctx, FamilyKey, family)
}

// GetFamily retrieves the family name from the context.
func GetFamily(ctx context.Context) string {
	if family, ok := ctx.Value(FamilyKey).(string); ok {
		return family
	}
	return ""
}

// WithRunID adds a run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run identifier from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithTrigger records what started the current run.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, TriggerKey, trigger)
}

// GetTrigger retrieves the run trigger from the context.
func GetTrigger(ctx context.Context) string {
	if trigger, ok := ctx.Value(TriggerKey).(string); ok {
		return trigger
	}
	return ""
}

// extractContextFields returns the context fields as attributes.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var fields []slog.Attr
	if family := GetFamily(ctx); family != "" {
		fields = append(fields, slog.String(string(FamilyKey), family))
	}
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, slog.String(string(RunIDKey), runID))
	}
	if trigger := GetTrigger(ctx); trigger != "" {
		fields = append(fields, slog.String(string(TriggerKey), trigger))
	}
	return fields
}
