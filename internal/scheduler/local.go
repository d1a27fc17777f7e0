package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sirupsen/logrus"
)

// Local runs the same jobs in process. Pending timeouts are lost on exit, which
// the search tick recovers from by expiring stale confirmations.
type Local struct {
	intervals Intervals
	handler   Handler
	log       logrus.FieldLogger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLocal(intervals Intervals, logger logrus.FieldLogger) *Local {
	return &Local{
		intervals: intervals,
		log:       logger.WithField("component", "local_scheduler"),
		timers:    make(map[*time.Timer]struct{}),
	}
}

func (l *Local) Bind(h Handler) {
	l.handler = h
}

// Start launches the periodic loops. They stop when ctx is done or Stop is called.
func (l *Local) Start(ctx context.Context) error {
	if l.handler == nil {
		return errUnbound
	}
	l.mu.Lock()
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	l.every(l.intervals.SearchTick, "search_tick", func(ctx context.Context) error {
		_, err := l.handler.SearchTick(ctx)
		return err
	})
	l.every(l.intervals.RejectSweep, "reject_sweep", func(ctx context.Context) error {
		_, err := l.handler.PurgeExpiredRejects(ctx)
		return err
	})
	return nil
}

func (l *Local) every(d time.Duration, name string, run func(context.Context) error) {
	if d <= 0 {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			if err := run(l.ctx); err != nil {
				l.log.WithError(err).WithField("job", name).Error("job failed")
			}
			select {
			case <-l.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the loops and every pending timeout.
func (l *Local) Stop(context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	for t := range l.timers {
		t.Stop()
	}
	clear(l.timers)
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}

func (l *Local) ScheduleTimeoutCheck(_ context.Context, check matchmaking.TimeoutCheck, at time.Time) error {
	if l.handler == nil {
		return errUnbound
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(time.Until(at), func() {
		l.mu.Lock()
		delete(l.timers, t)
		ctx := l.ctx
		l.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := l.handler.RunTimeoutCheck(ctx, check); err != nil {
			l.log.WithError(err).WithField("player", check.PlayerDiscordID).Error("timeout check failed")
		}
	})
	l.timers[t] = struct{}{}
	return nil
}

var _ matchmaking.Scheduler = (*Local)(nil)
