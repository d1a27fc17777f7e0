// Package matchmaking implements the lobby state machine, the matchmaker, the
// confirmation handshake, the reject ledger and the message tracker.
//
// The engine holds no mutable state of its own: everything lives behind a
// store.Repository and every multi-row change runs in one unit of work.
package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
)

// TimeoutCheck is the payload of a deferred confirmation timeout.
// ExpectedAcceptedAt is the player's acceptedAt at scheduling time (nil before accepting).
type TimeoutCheck struct {
	PlayerDiscordID    string     `json:"player_id"`
	LobbyID            int64      `json:"lobby_id"`
	ExpectedAcceptedAt *time.Time `json:"expected_accepted_at"`
}

// Scheduler runs a TimeoutCheck once at the given instant.
type Scheduler interface {
	ScheduleTimeoutCheck(ctx context.Context, check TimeoutCheck, at time.Time) error
}

// Notifier hands lobby events to the presentation layer. A MatchStarted event is
// the hand-off to the external session start.
type Notifier interface {
	Publish(ctx context.Context, ev events.LobbyEvent) error
}

// Metrics receives engine counters.
type Metrics interface {
	MatchFound(mode string)
	MatchStarted()
	MatchCancelled(reason string)
	RejectsPurged(n int)
	SearchTick(searching int, matched int, took time.Duration)
}

// Config holds the engine's timing knobs.
type Config struct {
	// ConfirmationGrace is how long matched players have to accept.
	ConfirmationGrace time.Duration
	// DefaultRejectMargin applies when a reject is recorded without an explicit margin.
	DefaultRejectMargin time.Duration
}

// DefaultConfig mirrors the defaults of internal/config.
func DefaultConfig() Config {
	return Config{
		ConfirmationGrace:   3 * time.Minute,
		DefaultRejectMargin: 30 * time.Minute,
	}
}

// Engine exposes every matchmaking operation to the presentation layer and the scheduler.
type Engine struct {
	repo      store.Repository
	scheduler Scheduler
	notifier  Notifier
	metrics   Metrics
	log       logrus.FieldLogger
	cfg       Config

	now func() time.Time
}

// NewEngine wires an engine. scheduler, notifier and metrics may be nil.
func NewEngine(repo store.Repository, scheduler Scheduler, notifier Notifier, metrics Metrics, logger logrus.FieldLogger, cfg Config) *Engine {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.ConfirmationGrace <= 0 {
		cfg.ConfirmationGrace = DefaultConfig().ConfirmationGrace
	}
	if cfg.DefaultRejectMargin <= 0 {
		cfg.DefaultRejectMargin = DefaultConfig().DefaultRejectMargin
	}
	return &Engine{
		repo:      repo,
		scheduler: scheduler,
		notifier:  notifier,
		metrics:   metrics,
		log:       logger.WithField("component", "matchmaking"),
		cfg:       cfg,
		now:       defaultNow,
	}
}

// defaultNow truncates to microseconds so stamps survive a PostgreSQL round trip unchanged.
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) publish(ctx context.Context, ev events.LobbyEvent) error {
	if e.notifier == nil {
		return nil
	}
	if err := e.notifier.Publish(ctx, ev); err != nil {
		e.log.WithError(err).WithField("event", ev.Type).Error("failed to publish lobby event")
		return err
	}
	return nil
}

func (e *Engine) scheduleTimeout(ctx context.Context, check TimeoutCheck) {
	if e.scheduler == nil {
		return
	}
	at := e.now().Add(e.cfg.ConfirmationGrace)
	if err := e.scheduler.ScheduleTimeoutCheck(ctx, check, at); err != nil {
		// the search tick expires confirmations whose timer never ran
		e.log.WithError(err).WithFields(logrus.Fields{
			"player": check.PlayerDiscordID,
			"lobby":  check.LobbyID,
		}).Error("failed to schedule confirmation timeout")
	}
}

// lookupPlayer translates a store miss into NotFound(Player).
func lookupPlayer(ctx context.Context, q store.Queries, discordID string) (*models.Player, error) {
	p, err := q.GetPlayerByDiscordID(ctx, discordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(EntityPlayer, discordID)
	}
	return p, err
}

type nopMetrics struct{}

func (nopMetrics) MatchFound(string)                  {}
func (nopMetrics) MatchStarted()                      {}
func (nopMetrics) MatchCancelled(string)              {}
func (nopMetrics) RejectsPurged(int)                  {}
func (nopMetrics) SearchTick(int, int, time.Duration) {}
