package audit

// Package audit emits operator-visible audit events for sensitive
// actions (impersonation, membership mutations). Emission is
// fire-and-forget: a failing sink is logged and never blocks the action.

import (
	"context"
	"log/slog"
	"time"
)

// Action names the audited operation.
type Action string

const (
	ActionImpersonationStarted Action = "impersonation_started"
	ActionImpersonationStopped Action = "impersonation_stopped"
	ActionMembershipChanged    Action = "membership_changed"
)

// Event is one audit record.
type Event struct {
	Action       Action    `json:"action"`
	TenantID     string    `json:"tenant_id,omitempty"`
	ActorUserID  string    `json:"actor_user_id"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Sink receives audit events.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SlogSink writes audit events to the structured log.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink creates a log-backed sink.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{Logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, ev Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"action", string(ev.Action),
		"tenant_id", ev.TenantID,
		"actor_user_id", ev.ActorUserID,
		"target_user_id", ev.TargetUserID,
		"timestamp", ev.Timestamp,
	)
	return nil
}

// Emit sends ev to sink without letting a sink failure propagate. The
// timestamp is filled in when unset.
func Emit(ctx context.Context, sink Sink, logger *slog.Logger, ev Event) {
	if sink == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := sink.Emit(ctx, ev); err != nil && logger != nil {
		logger.WarnContext(ctx, "audit emit failed", "action", string(ev.Action), "error", err)
	}
}
