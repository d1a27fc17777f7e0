package database

import (
	"context"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

// expiry is the per-row end of a reject's cool-down.
const expiry = `rejected_at + make_interval(mins => time_margin)`

func (q *queries) UpsertReject(ctx context.Context, r models.PlayerReject) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO player_reject (rejecter_id, rejected_id, rejected_at, time_margin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rejecter_id, rejected_id) DO UPDATE
		SET rejected_at = EXCLUDED.rejected_at, time_margin = EXCLUDED.time_margin
	`, r.RejecterID, r.RejectedID, r.RejectedAt, r.TimeMargin)
	return err
}

func (q *queries) ListLiveRejects(ctx context.Context, playerIDs []int64, now time.Time) ([]models.PlayerReject, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT rejecter_id, rejected_id, rejected_at, time_margin
		FROM player_reject
		WHERE (rejecter_id = ANY($1) OR rejected_id = ANY($1))
		  AND `+expiry+` > $2
	`, playerIDs, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rejects []models.PlayerReject
	for rows.Next() {
		var r models.PlayerReject
		if err := rows.Scan(&r.RejecterID, &r.RejectedID, &r.RejectedAt, &r.TimeMargin); err != nil {
			return nil, err
		}
		r.RejectedAt = r.RejectedAt.UTC()
		rejects = append(rejects, r)
	}
	return rejects, rows.Err()
}

func (q *queries) CountExpiredRejects(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM player_reject WHERE `+expiry+` <= $1`, now).Scan(&n)
	return n, err
}

func (q *queries) DeleteExpiredRejects(ctx context.Context, now time.Time) (int, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM player_reject WHERE `+expiry+` <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
