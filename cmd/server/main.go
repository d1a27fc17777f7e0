// cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sergioBarril/smashbotjs-sub001/internal/config"
	"github.com/sergioBarril/smashbotjs-sub001/internal/database"
	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/sergioBarril/smashbotjs-sub001/internal/handlers"
	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sergioBarril/smashbotjs-sub001/internal/metrics"
	"github.com/sergioBarril/smashbotjs-sub001/internal/profile"
	"github.com/sergioBarril/smashbotjs-sub001/internal/scheduler"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "smashbot-lobbies",
		Usage: "matchmaking and lobby engine for the smashbot Discord bot",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the scheduled tasks",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or upgrade the database schema",
				Action: migrate,
			},
			{
				Name:   "sweep",
				Usage:  "purge expired player rejects once",
				Action: sweep,
			},
			{
				Name:   "tick",
				Usage:  "run one search tick",
				Action: tick,
			},
			{
				Name:  "events",
				Usage: "print lobby events as they are queued (consumes them)",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "wait", Value: 5 * time.Second, Usage: "blocking pop timeout"},
				},
				Action: tailEvents,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

// deps is everything a command may need, built from the environment.
type deps struct {
	cfg    *config.Config
	log    *logrus.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	repo   store.Repository
	closer []func()
}

func (d *deps) Close() {
	for i := len(d.closer) - 1; i >= 0; i-- {
		d.closer[i]()
	}
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, log: cfg.Logger()}

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL, d.log)
		if err != nil {
			return nil, err
		}
		d.pool = pool
		d.repo = database.NewStore(pool)
		d.closer = append(d.closer, pool.Close)
	} else {
		d.log.Warn("DATABASE_URL not set, using the in-memory store")
		d.repo = store.NewMemoryStore()
	}

	if cfg.RedisAddr != "" {
		rdb, err := events.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.rdb = rdb
		d.closer = append(d.closer, func() { _ = rdb.Close() })
	}
	return d, nil
}

func (d *deps) notifier() matchmaking.Notifier {
	if d.rdb == nil {
		return nil
	}
	return events.NewRedisPublisher(d.rdb, d.cfg.LobbyEventsQueue)
}

func (d *deps) engineConfig() matchmaking.Config {
	return matchmaking.Config{
		ConfirmationGrace:   d.cfg.ConfirmationGrace,
		DefaultRejectMargin: d.cfg.RejectDefaultMargin,
	}
}

type jobRunner interface {
	matchmaking.Scheduler
	Bind(scheduler.Handler)
	Start(context.Context) error
	Stop(context.Context) error
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	intervals := scheduler.Intervals{
		SearchTick:  d.cfg.SearchTickInterval,
		RejectSweep: d.cfg.RejectSweepInterval,
	}
	var jobs jobRunner
	if d.pool != nil {
		svc, err := scheduler.NewService(d.pool, intervals, d.log)
		if err != nil {
			return err
		}
		jobs = svc
	} else {
		jobs = scheduler.NewLocal(intervals, d.log)
	}

	engine := matchmaking.NewEngine(d.repo, jobs, d.notifier(), m, d.log, d.engineConfig())
	jobs.Bind(engine)
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := jobs.Stop(stopCtx); err != nil {
			d.log.WithError(err).Error("failed to stop scheduler")
		}
	}()

	api := handlers.NewAPI(engine, profile.NewService(d.repo, d.log), d.log)
	srv := &http.Server{
		Addr:              net.JoinHostPort("", d.cfg.Port),
		Handler:           api.Router(metrics.Handler(reg)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		d.log.Infof("Running on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	d.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(c *cli.Context) error {
	d, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer d.Close()
	if d.pool == nil {
		return errors.New("migrate needs DATABASE_URL")
	}
	if err := database.Migrate(c.Context, d.pool); err != nil {
		return err
	}
	if err := scheduler.Migrate(c.Context, d.pool); err != nil {
		return err
	}
	d.log.Info("migrations applied")
	return nil
}

// oneShot builds an engine without a scheduler for commands that run a single task.
func oneShot(c *cli.Context, run func(context.Context, *matchmaking.Engine) (any, error)) error {
	d, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer d.Close()

	engine := matchmaking.NewEngine(d.repo, nil, d.notifier(), nil, d.log, d.engineConfig())
	res, err := run(c.Context, engine)
	if err != nil {
		return err
	}
	return json.NewEncoder(c.App.Writer).Encode(res)
}

func sweep(c *cli.Context) error {
	return oneShot(c, func(ctx context.Context, e *matchmaking.Engine) (any, error) {
		return e.PurgeExpiredRejects(ctx)
	})
}

func tick(c *cli.Context) error {
	return oneShot(c, func(ctx context.Context, e *matchmaking.Engine) (any, error) {
		return e.SearchTick(ctx)
	})
}

func tailEvents(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	if d.rdb == nil {
		return errors.New("events needs REDIS_ADDR")
	}

	queue := events.NewRedisPublisher(d.rdb, d.cfg.LobbyEventsQueue)
	enc := json.NewEncoder(c.App.Writer)
	for ctx.Err() == nil {
		ev, err := queue.Pop(ctx, c.Duration("wait"))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ev == nil {
			continue
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
