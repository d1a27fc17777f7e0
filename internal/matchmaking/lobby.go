package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
)

// StartSearchRequest carries the external identities of a new search.
type StartSearchRequest struct {
	PlayerID string
	GuildID  string
	Mode     string
	TierIDs  []string
}

// SearchResult is returned by operations that attempt an immediate match.
// When Matched is false, Players only holds the requester.
type SearchResult struct {
	Matched bool            `json:"matched"`
	Players []models.Player `json:"players"`
	Guild   models.Guild    `json:"guild"`
	Lobby   models.Lobby    `json:"lobby"`
	Tier    *models.Tier    `json:"tier,omitempty"`
}

// StartSearch creates a SEARCHING lobby owned by the player with the given tiers attached.
// The player row is created on first use.
func (e *Engine) StartSearch(ctx context.Context, req StartSearchRequest) (*models.Lobby, error) {
	mode, err := models.ParseLobbyMode(req.Mode)
	if err != nil {
		return nil, &ValidationError{Field: "mode", Value: req.Mode}
	}

	var lobby models.Lobby
	err = e.repo.InTx(ctx, func(q store.Queries) error {
		guild, err := q.GetGuildByDiscordID(ctx, req.GuildID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(EntityGuild, req.GuildID)
		}
		if err != nil {
			return err
		}

		player, err := q.UpsertPlayer(ctx, req.PlayerID)
		if err != nil {
			return err
		}

		switch _, err := q.GetOpenLobbyByPlayer(ctx, player.ID); {
		case err == nil:
			return ErrAlreadySearching
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		tiers, err := resolveTiers(ctx, q, guild.ID, req.TierIDs)
		if err != nil {
			return err
		}
		if err := checkYuzu(ctx, q, player, guild, tiers); err != nil {
			return err
		}

		now := e.now()
		lobby = models.Lobby{
			GuildID:   guild.ID,
			Mode:      mode,
			Status:    models.StatusSearching,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := q.InsertLobby(ctx, &lobby); err != nil {
			return err
		}
		if err := q.InsertLobbyPlayer(ctx, &models.LobbyPlayer{
			LobbyID:  lobby.ID,
			PlayerID: player.ID,
			Status:   models.StatusSearching,
		}); err != nil {
			return err
		}
		if len(tiers) > 0 {
			if err := q.AddLobbyTiers(ctx, lobby.ID, tierIDs(tiers)); err != nil {
				return err
			}
			lobby.TierIDs = tierIDs(tiers)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"player": req.PlayerID,
		"guild":  req.GuildID,
		"lobby":  lobby.ID,
		"mode":   mode,
	}).Info("search started")
	return &lobby, nil
}

// AddTiers attaches tiers to the player's open lobby and returns every tier now attached.
// No upper bound is enforced here.
func (e *Engine) AddTiers(ctx context.Context, playerID string, tierDiscordIDs []string) ([]models.Tier, error) {
	var attached []models.Tier
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := openLobby(ctx, q, player)
		if err != nil {
			return err
		}
		guild, err := q.GetGuild(ctx, lobby.GuildID)
		if err != nil {
			return fmt.Errorf("load guild of lobby %d: %w", lobby.ID, err)
		}
		tiers, err := resolveTiers(ctx, q, guild.ID, tierDiscordIDs)
		if err != nil {
			return err
		}
		if err := checkYuzu(ctx, q, player, guild, tiers); err != nil {
			return err
		}
		if err := q.AddLobbyTiers(ctx, lobby.ID, tierIDs(tiers)); err != nil {
			return err
		}
		updated, err := q.GetLobby(ctx, lobby.ID)
		if err != nil {
			return err
		}
		attached, err = q.GetTiers(ctx, updated.TierIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attached, nil
}

// GetSearchingTiers returns the tiers of the player's open lobby. A player without
// a lobby, or a lobby without tiers, yields an empty list.
func (e *Engine) GetSearchingTiers(ctx context.Context, playerID string) ([]models.Tier, error) {
	tiers := []models.Tier{}
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := q.GetOpenLobbyByPlayer(ctx, player.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(lobby.TierIDs) == 0 {
			return nil
		}
		found, err := q.GetTiers(ctx, lobby.TierIDs)
		if err != nil {
			return err
		}
		tiers = append(tiers, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// IsSearching reports whether the player's open lobby has at least one tier.
func (e *Engine) IsSearching(ctx context.Context, playerID string) (bool, error) {
	tiers, err := e.GetSearchingTiers(ctx, playerID)
	if err != nil {
		return false, err
	}
	return len(tiers) > 0, nil
}

// GiveUp moves a SEARCHING lobby to AFK.
func (e *Engine) GiveUp(ctx context.Context, playerID string) error {
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := openLobby(ctx, q, player)
		if err != nil {
			return err
		}
		lobby, err = q.LockLobby(ctx, lobby.ID)
		if err != nil {
			return err
		}
		if lobby.Status != models.StatusSearching {
			return &ValidationError{Field: "lobby status", Value: string(lobby.Status)}
		}
		return e.setStatus(ctx, q, lobby, models.StatusAFK)
	})
	if err != nil {
		return err
	}
	e.log.WithField("player", playerID).Info("lobby went afk")
	return nil
}

// RemoveAfkLobby deletes the player's lobby, which must be AFK.
func (e *Engine) RemoveAfkLobby(ctx context.Context, playerID string) error {
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		lobby, err := afkLobby(ctx, q, playerID)
		if err != nil {
			return err
		}
		return q.DeleteLobby(ctx, lobby.ID)
	})
	if err != nil {
		return err
	}
	e.log.WithField("player", playerID).Info("afk lobby removed")
	return nil
}

// SearchAgainAfkLobby puts an AFK lobby back to SEARCHING and attempts one
// immediate match with the same rule as the search tick. The status change
// commits on its own so the match attempt takes no lock before merge does.
func (e *Engine) SearchAgainAfkLobby(ctx context.Context, playerID string) (*SearchResult, error) {
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		lobby, err := afkLobby(ctx, q, playerID)
		if err != nil {
			return err
		}
		return e.setStatus(ctx, q, lobby, models.StatusSearching)
	})
	if err != nil {
		return nil, err
	}
	return e.matchSearching(ctx, playerID)
}

// TryMatch attempts an immediate match for a SEARCHING lobby without waiting for the tick.
func (e *Engine) TryMatch(ctx context.Context, playerID string) (*SearchResult, error) {
	return e.matchSearching(ctx, playerID)
}

// matchAttempts bounds how often an immediate match is retried after losing a
// merge to a concurrent one.
const matchAttempts = 3

// matchSearching runs the immediate match for the player's SEARCHING lobby. A
// merge that finds its lobbies changed is retried on fresh state; by then the
// player is usually in CONFIRMATION already and gets the status error.
func (e *Engine) matchSearching(ctx context.Context, playerID string) (*SearchResult, error) {
	var (
		result  *SearchResult
		outcome *matchOutcome
		err     error
	)
	for i := 0; i < matchAttempts; i++ {
		err = e.repo.InTx(ctx, func(q store.Queries) error {
			player, err := lookupPlayer(ctx, q, playerID)
			if err != nil {
				return err
			}
			lobby, err := openLobby(ctx, q, player)
			if err != nil {
				return err
			}
			if lobby.Status != models.StatusSearching {
				return &ValidationError{Field: "lobby status", Value: string(lobby.Status)}
			}
			result, outcome, err = e.matchNow(ctx, q, *lobby, playerID)
			return err
		})
		if !errors.Is(err, errLobbyMoved) {
			break
		}
		e.log.WithField("player", playerID).Debug("lobby changed during match, retrying")
	}
	if err != nil {
		return nil, err
	}
	e.afterMatch(ctx, outcome)
	return result, nil
}

// setStatus moves a lobby and every one of its players to status.
func (e *Engine) setStatus(ctx context.Context, q store.Queries, lobby *models.Lobby, status models.LobbyStatus) error {
	lobby.Status = status
	lobby.UpdatedAt = e.now()
	if status == models.StatusSearching || status == models.StatusAFK {
		lobby.MatchedTierID = nil
	}
	if err := q.UpdateLobby(ctx, lobby); err != nil {
		return err
	}
	players, err := q.GetLobbyPlayers(ctx, lobby.ID)
	if err != nil {
		return err
	}
	for i := range players {
		players[i].Status = status
		if status != models.StatusPlaying {
			players[i].AcceptedAt = nil
		}
		if err := q.UpdateLobbyPlayer(ctx, &players[i]); err != nil {
			return err
		}
	}
	return nil
}

func openLobby(ctx context.Context, q store.Queries, player *models.Player) (*models.Lobby, error) {
	lobby, err := q.GetOpenLobbyByPlayer(ctx, player.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(EntityLobby, player.DiscordID)
	}
	return lobby, err
}

// afkLobby returns the player's lobby if it is AFK. A lobby in another state is
// NotFound(AFKLobby); no lobby at all is NotFound(Lobby).
func afkLobby(ctx context.Context, q store.Queries, playerID string) (*models.Lobby, error) {
	player, err := lookupPlayer(ctx, q, playerID)
	if err != nil {
		return nil, err
	}
	lobby, err := openLobby(ctx, q, player)
	if err != nil {
		return nil, err
	}
	lobby, err = q.LockLobby(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	if lobby.Status != models.StatusAFK {
		return nil, notFound(EntityAFKLobby, playerID)
	}
	return lobby, nil
}

func resolveTiers(ctx context.Context, q store.Queries, guildID int64, discordIDs []string) ([]models.Tier, error) {
	tiers := make([]models.Tier, 0, len(discordIDs))
	for _, id := range discordIDs {
		t, err := q.GetTierByDiscordID(ctx, guildID, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(EntityTier, id)
		}
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, *t)
	}
	return tiers, nil
}

// checkYuzu requires a usable YuzuPlayer profile when any of the tiers is special-mode.
func checkYuzu(ctx context.Context, q store.Queries, player *models.Player, guild *models.Guild, tiers []models.Tier) error {
	for _, t := range tiers {
		if !t.Yuzu {
			continue
		}
		y, err := q.GetYuzuPlayer(ctx, player.ID, guild.ID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !y.CanPlay()) {
			return notFound(EntityYuzuPlayer, player.DiscordID)
		}
		return err
	}
	return nil
}

func tierIDs(tiers []models.Tier) []int64 {
	ids := make([]int64, len(tiers))
	for i, t := range tiers {
		ids[i] = t.ID
	}
	return ids
}
