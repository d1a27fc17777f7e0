package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sirupsen/logrus"
)

const queueMatchmaking = "matchmaking"

var errUnbound = errors.New("scheduler: no handler bound")

// Service schedules jobs in PostgreSQL through River, so pending timeouts
// survive a restart.
type Service struct {
	client  *river.Client[pgx.Tx]
	handler Handler
	log     logrus.FieldLogger
}

// Migrate creates or upgrades River's own tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}

// NewService registers the workers and periodic jobs. Bind a handler before Start.
func NewService(pool *pgxpool.Pool, intervals Intervals, logger logrus.FieldLogger) (*Service, error) {
	s := &Service{log: logger.WithField("component", "river_queue")}

	workers := river.NewWorkers()
	river.AddWorker(workers, &searchTickWorker{s: s})
	river.AddWorker(workers, &rejectSweepWorker{s: s})
	river.AddWorker(workers, &timeoutWorker{s: s})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			queueMatchmaking:   {MaxWorkers: 1},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(intervals.SearchTick),
				func() (river.JobArgs, *river.InsertOpts) {
					return SearchTickArgs{}, &river.InsertOpts{Queue: queueMatchmaking}
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
			river.NewPeriodicJob(
				river.PeriodicInterval(intervals.RejectSweep),
				func() (river.JobArgs, *river.InsertOpts) {
					return RejectSweepArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	s.client = client
	return s, nil
}

// Bind sets the handler the workers call.
func (s *Service) Bind(h Handler) {
	s.handler = h
}

func (s *Service) Start(ctx context.Context) error {
	if s.handler == nil {
		return errUnbound
	}
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.log.Info("scheduler started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.log.Info("scheduler stopped")
	return nil
}

// ScheduleTimeoutCheck inserts a one-shot confirmation_timeout job running at at.
func (s *Service) ScheduleTimeoutCheck(ctx context.Context, check matchmaking.TimeoutCheck, at time.Time) error {
	res, err := s.client.Insert(ctx, ConfirmationTimeoutArgs{Check: check}, &river.InsertOpts{
		Queue:       queueMatchmaking,
		ScheduledAt: at,
		MaxAttempts: 3,
	})
	if err != nil {
		return fmt.Errorf("failed to schedule confirmation timeout: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"job":    res.Job.ID,
		"player": check.PlayerDiscordID,
		"lobby":  check.LobbyID,
		"at":     at,
	}).Debug("confirmation timeout scheduled")
	return nil
}

type searchTickWorker struct {
	river.WorkerDefaults[SearchTickArgs]
	s *Service
}

func (w *searchTickWorker) Work(ctx context.Context, _ *river.Job[SearchTickArgs]) error {
	if w.s.handler == nil {
		return errUnbound
	}
	_, err := w.s.handler.SearchTick(ctx)
	return err
}

type rejectSweepWorker struct {
	river.WorkerDefaults[RejectSweepArgs]
	s *Service
}

func (w *rejectSweepWorker) Work(ctx context.Context, _ *river.Job[RejectSweepArgs]) error {
	if w.s.handler == nil {
		return errUnbound
	}
	_, err := w.s.handler.PurgeExpiredRejects(ctx)
	return err
}

type timeoutWorker struct {
	river.WorkerDefaults[ConfirmationTimeoutArgs]
	s *Service
}

func (w *timeoutWorker) Work(ctx context.Context, job *river.Job[ConfirmationTimeoutArgs]) error {
	if w.s.handler == nil {
		return errUnbound
	}
	return w.s.handler.RunTimeoutCheck(ctx, job.Args.Check)
}

var _ matchmaking.Scheduler = (*Service)(nil)
