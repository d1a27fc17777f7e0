package matchmaking

import (
	"context"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
)

// PurgeResult is the outcome of one reject sweep. Expired is counted before the
// delete in the same unit of work, so it always equals Removed.
type PurgeResult struct {
	Expired int `json:"expired"`
	Removed int `json:"removed"`
}

// RecordReject stores a cool-down between two players, replacing any previous one
// for the same pair. A zero margin uses the configured default.
func (e *Engine) RecordReject(ctx context.Context, rejecterID, rejectedID string, margin time.Duration) (*models.PlayerReject, error) {
	if margin <= 0 {
		margin = e.cfg.DefaultRejectMargin
	}
	var reject models.PlayerReject
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		rejecter, err := lookupPlayer(ctx, q, rejecterID)
		if err != nil {
			return err
		}
		rejected, err := lookupPlayer(ctx, q, rejectedID)
		if err != nil {
			return err
		}
		reject = models.PlayerReject{
			RejecterID: rejecter.ID,
			RejectedID: rejected.ID,
			RejectedAt: e.now(),
			TimeMargin: marginMinutes(margin),
		}
		return q.UpsertReject(ctx, reject)
	})
	if err != nil {
		return nil, err
	}
	return &reject, nil
}

// IsRejected reports whether a live cool-down exists between a and b in either direction.
func (e *Engine) IsRejected(ctx context.Context, a, b string) (bool, error) {
	blocked := false
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		pa, err := lookupPlayer(ctx, q, a)
		if err != nil {
			return err
		}
		pb, err := lookupPlayer(ctx, q, b)
		if err != nil {
			return err
		}
		now := e.now()
		rejects, err := q.ListLiveRejects(ctx, []int64{pa.ID}, now)
		if err != nil {
			return err
		}
		blocked = NewRejectIndex(rejects, now).Blocked(pa.ID, pb.ID)
		return nil
	})
	return blocked, err
}

// PurgeExpiredRejects removes every reject whose own margin has elapsed.
func (e *Engine) PurgeExpiredRejects(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult
	now := e.now()
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		var err error
		if res.Expired, err = q.CountExpiredRejects(ctx, now); err != nil {
			return err
		}
		res.Removed, err = q.DeleteExpiredRejects(ctx, now)
		return err
	})
	if err != nil {
		return PurgeResult{}, err
	}

	e.metrics.RejectsPurged(res.Removed)
	e.log.WithFields(logrus.Fields{
		"expired": res.Expired,
		"removed": res.Removed,
	}).Info("reject sweep finished")
	if res.Removed > 0 {
		ev := events.New(events.RejectsPurged)
		ev.Count = res.Removed
		_ = e.publish(ctx, ev)
	}
	return res, nil
}
