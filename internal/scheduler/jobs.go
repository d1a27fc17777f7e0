// Package scheduler runs the matchmaking engine's periodic tasks and deferred
// confirmation timeouts.
package scheduler

import (
	"context"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
)

// Handler is the engine side of every job. *matchmaking.Engine implements it.
type Handler interface {
	SearchTick(ctx context.Context) (matchmaking.TickResult, error)
	PurgeExpiredRejects(ctx context.Context) (matchmaking.PurgeResult, error)
	RunTimeoutCheck(ctx context.Context, check matchmaking.TimeoutCheck) error
}

// Intervals configures the periodic jobs.
type Intervals struct {
	SearchTick  time.Duration
	RejectSweep time.Duration
}

// SearchTickArgs runs one matchmaking pass.
type SearchTickArgs struct{}

func (SearchTickArgs) Kind() string { return "search_tick" }

// RejectSweepArgs purges expired rejects.
type RejectSweepArgs struct{}

func (RejectSweepArgs) Kind() string { return "reject_sweep" }

// ConfirmationTimeoutArgs carries the guarded timeout check. The expected
// acceptedAt travels with the job so the check can tell it went stale.
type ConfirmationTimeoutArgs struct {
	Check matchmaking.TimeoutCheck `json:"check"`
}

func (ConfirmationTimeoutArgs) Kind() string { return "confirmation_timeout" }
