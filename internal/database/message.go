package database

import (
	"context"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

func (q *queries) InsertMessage(ctx context.Context, m *models.Message) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO message (lobby_id, player_id, tier_id, type, discord_id, channel_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, m.LobbyID, m.PlayerID, m.TierID, m.Type, m.DiscordID, m.ChannelID).Scan(&m.ID)
}

// ListLobbyMessages joins on the lobby's current members, so players merged in
// by a match bring their messages along.
func (q *queries) ListLobbyMessages(ctx context.Context, lobbyID int64, typ models.MessageType) ([]models.Message, error) {
	rows, err := q.db.Query(ctx, `
		SELECT m.id, m.lobby_id, m.player_id, m.tier_id, m.type, m.discord_id, m.channel_id
		FROM message m
		JOIN lobby_player lp ON lp.player_id = m.player_id AND lp.lobby_id = $1
		WHERE m.type = $2
		ORDER BY m.id
	`, lobbyID, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.LobbyID, &m.PlayerID, &m.TierID, &m.Type, &m.DiscordID, &m.ChannelID); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (q *queries) DeleteLobbyMessages(ctx context.Context, lobbyID int64, typ models.MessageType) (int, error) {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM message
		WHERE type = $2
		  AND player_id IN (SELECT player_id FROM lobby_player WHERE lobby_id = $1)
	`, lobbyID, typ)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q *queries) MoveMessages(ctx context.Context, playerID, lobbyID int64) error {
	_, err := q.db.Exec(ctx, `UPDATE message SET lobby_id = $2 WHERE player_id = $1`, playerID, lobbyID)
	return err
}
