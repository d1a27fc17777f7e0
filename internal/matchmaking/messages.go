package matchmaking

import (
	"context"
	"errors"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
)

// SaveSearchTierMessage records the announcement posted for the player's search in
// a tier. With yuzu set, the guild's special-mode tier is used instead of tierDiscordID.
func (e *Engine) SaveSearchTierMessage(ctx context.Context, playerID, tierDiscordID, messageID string, yuzu bool) (*models.Message, error) {
	var msg models.Message
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := openLobby(ctx, q, player)
		if err != nil {
			return err
		}

		var tier *models.Tier
		if yuzu {
			tier, err = q.GetYuzuTier(ctx, lobby.GuildID)
		} else {
			tier, err = q.GetTierByDiscordID(ctx, lobby.GuildID, tierDiscordID)
		}
		if errors.Is(err, store.ErrNotFound) {
			return notFound(EntityTier, tierDiscordID)
		}
		if err != nil {
			return err
		}

		tierID := tier.ID
		msg = models.Message{
			LobbyID:   lobby.ID,
			PlayerID:  player.ID,
			TierID:    &tierID,
			Type:      models.MessageLobbyTier,
			DiscordID: messageID,
			ChannelID: tier.ChannelID,
		}
		return q.InsertMessage(ctx, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SavePlayerMessage records a direct message sent to the player about their lobby.
func (e *Engine) SavePlayerMessage(ctx context.Context, playerID, messageID, channelID string) (*models.Message, error) {
	var msg models.Message
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := openLobby(ctx, q, player)
		if err != nil {
			return err
		}
		msg = models.Message{
			LobbyID:   lobby.ID,
			PlayerID:  player.ID,
			Type:      models.MessageLobbyPlayer,
			DiscordID: messageID,
			ChannelID: channelID,
		}
		return q.InsertMessage(ctx, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessagesFromEveryone returns the messages of the given type owned by any
// player currently in the lobby, including players merged in by a match.
func (e *Engine) GetMessagesFromEveryone(ctx context.Context, lobbyID int64, typ models.MessageType) ([]models.Message, error) {
	if !typ.Valid() {
		return nil, &ValidationError{Field: "message type", Value: string(typ)}
	}
	msgs := []models.Message{}
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.GetLobby(ctx, lobbyID); errors.Is(err, store.ErrNotFound) {
			return notFound(EntityLobby, "")
		} else if err != nil {
			return err
		}
		found, err := q.ListLobbyMessages(ctx, lobbyID, typ)
		msgs = append(msgs, found...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteMessages forgets the lobby's messages of the given type once the
// presentation layer retracted them.
func (e *Engine) DeleteMessages(ctx context.Context, lobbyID int64, typ models.MessageType) (int, error) {
	if !typ.Valid() {
		return 0, &ValidationError{Field: "message type", Value: string(typ)}
	}
	var n int
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		var err error
		n, err = q.DeleteLobbyMessages(ctx, lobbyID, typ)
		return err
	})
	return n, err
}
