package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

const lobbySelect = `
	SELECT l.id, l.guild_id, l.mode, l.status, l.matched_tier_id, l.created_at, l.updated_at,
	       ARRAY(SELECT lt.tier_id FROM lobby_tier lt WHERE lt.lobby_id = l.id ORDER BY lt.tier_id)
	FROM lobby l`

func scanLobby(row pgx.Row) (*models.Lobby, error) {
	var l models.Lobby
	err := row.Scan(&l.ID, &l.GuildID, &l.Mode, &l.Status, &l.MatchedTierID, &l.CreatedAt, &l.UpdatedAt, &l.TierIDs)
	if err != nil {
		return nil, err
	}
	l.CreatedAt, l.UpdatedAt = l.CreatedAt.UTC(), l.UpdatedAt.UTC()
	return &l, nil
}

func (q *queries) GetLobby(ctx context.Context, id int64) (*models.Lobby, error) {
	l, err := scanLobby(q.db.QueryRow(ctx, lobbySelect+` WHERE l.id = $1`, id))
	return l, notFound(err)
}

func (q *queries) LockLobby(ctx context.Context, id int64) (*models.Lobby, error) {
	l, err := scanLobby(q.db.QueryRow(ctx, lobbySelect+` WHERE l.id = $1 FOR UPDATE OF l`, id))
	return l, notFound(err)
}

func (q *queries) GetOpenLobbyByPlayer(ctx context.Context, playerID int64) (*models.Lobby, error) {
	l, err := scanLobby(q.db.QueryRow(ctx, lobbySelect+`
		JOIN lobby_player lp ON lp.lobby_id = l.id
		WHERE lp.player_id = $1 AND l.status <> 'PLAYING'
		LIMIT 1`, playerID))
	return l, notFound(err)
}

func (q *queries) ListLobbiesByStatus(ctx context.Context, status models.LobbyStatus) ([]models.Lobby, error) {
	rows, err := q.db.Query(ctx, lobbySelect+` WHERE l.status = $1 ORDER BY l.created_at, l.id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lobbies []models.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		lobbies = append(lobbies, *l)
	}
	return lobbies, rows.Err()
}

func (q *queries) InsertLobby(ctx context.Context, lobby *models.Lobby) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO lobby (guild_id, mode, status, matched_tier_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, lobby.GuildID, lobby.Mode, lobby.Status, lobby.MatchedTierID, lobby.CreatedAt, lobby.UpdatedAt).Scan(&lobby.ID)
}

func (q *queries) UpdateLobby(ctx context.Context, lobby *models.Lobby) error {
	return affected(q.db.Exec(ctx, `
		UPDATE lobby
		SET mode = $2, status = $3, matched_tier_id = $4, updated_at = $5
		WHERE id = $1
	`, lobby.ID, lobby.Mode, lobby.Status, lobby.MatchedTierID, lobby.UpdatedAt))
}

func (q *queries) DeleteLobby(ctx context.Context, id int64) error {
	return affected(q.db.Exec(ctx, `DELETE FROM lobby WHERE id = $1`, id))
}

func (q *queries) AddLobbyTiers(ctx context.Context, lobbyID int64, tierIDs []int64) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO lobby_tier (lobby_id, tier_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`, lobbyID, tierIDs)
	return err
}

func (q *queries) GetLobbyPlayers(ctx context.Context, lobbyID int64) ([]models.LobbyPlayer, error) {
	rows, err := q.db.Query(ctx, `
		SELECT lobby_id, player_id, status, accepted_at, search_tier_ids
		FROM lobby_player
		WHERE lobby_id = $1
		ORDER BY player_id
	`, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var players []models.LobbyPlayer
	for rows.Next() {
		var lp models.LobbyPlayer
		if err := rows.Scan(&lp.LobbyID, &lp.PlayerID, &lp.Status, &lp.AcceptedAt, &lp.SearchTierIDs); err != nil {
			return nil, err
		}
		if lp.AcceptedAt != nil {
			t := lp.AcceptedAt.UTC()
			lp.AcceptedAt = &t
		}
		players = append(players, lp)
	}
	return players, rows.Err()
}

func (q *queries) InsertLobbyPlayer(ctx context.Context, lp *models.LobbyPlayer) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO lobby_player (lobby_id, player_id, status, accepted_at, search_tier_ids)
		VALUES ($1, $2, $3, $4, $5)
	`, lp.LobbyID, lp.PlayerID, lp.Status, lp.AcceptedAt, searchTiers(lp.SearchTierIDs))
	return err
}

func (q *queries) UpdateLobbyPlayer(ctx context.Context, lp *models.LobbyPlayer) error {
	return affected(q.db.Exec(ctx, `
		UPDATE lobby_player
		SET status = $3, accepted_at = $4, search_tier_ids = $5
		WHERE lobby_id = $1 AND player_id = $2
	`, lp.LobbyID, lp.PlayerID, lp.Status, lp.AcceptedAt, searchTiers(lp.SearchTierIDs)))
}

func (q *queries) DeleteLobbyPlayer(ctx context.Context, lobbyID, playerID int64) error {
	return affected(q.db.Exec(ctx,
		`DELETE FROM lobby_player WHERE lobby_id = $1 AND player_id = $2`, lobbyID, playerID))
}

// searchTiers keeps the NOT NULL column happy for players that never searched.
func searchTiers(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
