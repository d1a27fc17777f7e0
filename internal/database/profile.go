package database

import (
	"context"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

func (q *queries) ListCharacters(ctx context.Context, playerID int64) ([]models.PlayerCharacter, error) {
	rows, err := q.db.Query(ctx,
		`SELECT player_id, name, kind FROM player_character WHERE player_id = $1 ORDER BY name`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PlayerCharacter
	for rows.Next() {
		var c models.PlayerCharacter
		if err := rows.Scan(&c.PlayerID, &c.Name, &c.Kind); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) InsertCharacter(ctx context.Context, c models.PlayerCharacter) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO player_character (player_id, name, kind) VALUES ($1, $2, $3)`, c.PlayerID, c.Name, c.Kind)
	return err
}

func (q *queries) DeleteCharacter(ctx context.Context, playerID int64, name string) error {
	return affected(q.db.Exec(ctx,
		`DELETE FROM player_character WHERE player_id = $1 AND name = $2`, playerID, name))
}

func (q *queries) ListRegions(ctx context.Context, playerID int64) ([]models.PlayerRegion, error) {
	rows, err := q.db.Query(ctx,
		`SELECT player_id, name FROM player_region WHERE player_id = $1 ORDER BY name`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PlayerRegion
	for rows.Next() {
		var r models.PlayerRegion
		if err := rows.Scan(&r.PlayerID, &r.Name); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) InsertRegion(ctx context.Context, r models.PlayerRegion) error {
	_, err := q.db.Exec(ctx, `INSERT INTO player_region (player_id, name) VALUES ($1, $2)`, r.PlayerID, r.Name)
	return err
}

func (q *queries) DeleteRegion(ctx context.Context, playerID int64, name string) error {
	return affected(q.db.Exec(ctx,
		`DELETE FROM player_region WHERE player_id = $1 AND name = $2`, playerID, name))
}

func (q *queries) GetYuzuPlayer(ctx context.Context, playerID, guildID int64) (*models.YuzuPlayer, error) {
	var y models.YuzuPlayer
	err := q.db.QueryRow(ctx, `
		SELECT player_id, guild_id, yuzu, parsec FROM yuzu_player
		WHERE player_id = $1 AND guild_id = $2
	`, playerID, guildID).Scan(&y.PlayerID, &y.GuildID, &y.Yuzu, &y.Parsec)
	if err != nil {
		return nil, notFound(err)
	}
	return &y, nil
}

func (q *queries) UpsertYuzuPlayer(ctx context.Context, y models.YuzuPlayer) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO yuzu_player (player_id, guild_id, yuzu, parsec)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, guild_id) DO UPDATE
		SET yuzu = EXCLUDED.yuzu, parsec = EXCLUDED.parsec
	`, y.PlayerID, y.GuildID, y.Yuzu, y.Parsec)
	return err
}
