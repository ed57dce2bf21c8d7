// Package audit emits structured events for every authorization denial and
// every successful mutation, consumed by the external review collaborator.
// Events are JSON lines on the shared logger; this core persists no audit log
// of its own.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mailpoint.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Outcome values for audit events.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
)

// Event is the structured record of one authorization-relevant action.
type Event struct {
	ActorID    string
	Capability string
	TargetCode string
	Outcome    string
	Detail     map[string]any
}

// Record writes the event as a JSON line enriched with request context.
func Record(ctx context.Context, e Event) error {
	if strings.TrimSpace(e.Capability) == "" {
		return errors.New("audit: capability is required")
	}
	entry := map[string]any{
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
		"type":        "audit",
		"actor_id":    e.ActorID,
		"capability":  e.Capability,
		"target_code": e.TargetCode,
		"outcome":     e.Outcome,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if len(e.Detail) > 0 {
		detail := make(map[string]any, len(e.Detail))
		for k, v := range e.Detail {
			detail[k] = v
		}
		entry["detail"] = detail
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
