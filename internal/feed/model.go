package feed

import (
	"errors"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

// Phase is the coarse lifecycle stage of a run shown to users.
type Phase string

const (
	PhaseQueued        Phase = "queued"
	PhaseUnderstanding Phase = "understanding"
	PhaseWorking       Phase = "working"
	PhaseReviewing     Phase = "reviewing"
	PhaseComplete      Phase = "complete"
	PhaseError         Phase = "error"
)

// Terminal reports whether the phase is absorbing (complete or error).
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// ActivityItem is one human-facing step of a run. Timestamps are unix milliseconds.
type ActivityItem struct {
	ID          string `json:"id" jsonschema_description:"Stream record id that produced this activity"`
	RunID       string `json:"runId"`
	Timestamp   int64  `json:"timestamp"`
	Phase       Phase  `json:"phase" jsonschema:"enum=queued,enum=understanding,enum=working,enum=reviewing,enum=complete,enum=error"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Progress    *int   `json:"progress,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
	ToolName    string `json:"toolName,omitempty"`
	ToolArgs    string `json:"toolArgs,omitempty"`
}

// Run is the reconstructed state of one task. Timestamps are unix milliseconds.
type Run struct {
	RunID      string         `json:"runId"`
	Task       string         `json:"task"`
	Phase      Phase          `json:"phase" jsonschema:"enum=queued,enum=understanding,enum=working,enum=reviewing,enum=complete,enum=error"`
	Progress   int            `json:"progress" jsonschema:"minimum=0,maximum=100"`
	StartedAt  int64          `json:"startedAt"`
	UpdatedAt  int64          `json:"updatedAt"`
	Activities []ActivityItem `json:"activities"`
	Specialist string         `json:"specialist,omitempty"`

	// Zero until the run first enters a terminal phase.
	ExpiresAt time.Time `json:"-"`
}

// clone returns a copy that shares nothing mutable with r.
func (r *Run) clone() Run {
	out := *r
	out.Activities = make([]ActivityItem, len(r.Activities))
	copy(out.Activities, r.Activities)
	return out
}

func (r *Run) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
