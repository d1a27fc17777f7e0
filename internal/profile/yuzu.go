package profile

import (
	"context"
	"errors"

	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
)

// Toggle is how a netplay flag should change.
type Toggle string

const (
	ToggleOn   Toggle = "on"
	ToggleOff  Toggle = "off"
	ToggleFlip Toggle = "toggle"
	// ToggleKeep leaves the flag untouched. It is not accepted by ParseToggle.
	ToggleKeep Toggle = ""
)

// ParseToggle accepts "on", "off" and "toggle".
func ParseToggle(s string) (Toggle, error) {
	switch t := Toggle(s); t {
	case ToggleOn, ToggleOff, ToggleFlip:
		return t, nil
	}
	return "", &matchmaking.ValidationError{Field: "toggle mode", Value: s}
}

// Apply returns the new value of a flag currently set to cur.
func (t Toggle) Apply(cur bool) bool {
	switch t {
	case ToggleOn:
		return true
	case ToggleOff:
		return false
	case ToggleFlip:
		return !cur
	}
	return cur
}

// SetYuzu updates the player's netplay setup in a guild, creating it if needed.
func (s *Service) SetYuzu(ctx context.Context, playerID, guildID string, yuzu, parsec Toggle) (*models.YuzuPlayer, error) {
	var out models.YuzuPlayer
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		guild, err := q.GetGuildByDiscordID(ctx, guildID)
		if errors.Is(err, store.ErrNotFound) {
			return &matchmaking.NotFoundError{Entity: matchmaking.EntityGuild, Context: guildID}
		}
		if err != nil {
			return err
		}
		player, err := q.UpsertPlayer(ctx, playerID)
		if err != nil {
			return err
		}

		out = models.YuzuPlayer{PlayerID: player.ID, GuildID: guild.ID}
		current, err := q.GetYuzuPlayer(ctx, player.ID, guild.ID)
		switch {
		case err == nil:
			out = *current
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		out.Yuzu = yuzu.Apply(out.Yuzu)
		out.Parsec = parsec.Apply(out.Parsec)
		return q.UpsertYuzuPlayer(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"player": playerID,
		"guild":  guildID,
		"yuzu":   out.Yuzu,
		"parsec": out.Parsec,
	}).Info("netplay setup updated")
	return &out, nil
}

// GetYuzu returns the player's netplay setup in a guild.
func (s *Service) GetYuzu(ctx context.Context, playerID, guildID string) (*models.YuzuPlayer, error) {
	var out *models.YuzuPlayer
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		guild, err := q.GetGuildByDiscordID(ctx, guildID)
		if errors.Is(err, store.ErrNotFound) {
			return &matchmaking.NotFoundError{Entity: matchmaking.EntityGuild, Context: guildID}
		}
		if err != nil {
			return err
		}
		player, err := lookup(ctx, q, playerID)
		if err != nil {
			return err
		}
		out, err = q.GetYuzuPlayer(ctx, player.ID, guild.ID)
		if errors.Is(err, store.ErrNotFound) {
			return &matchmaking.NotFoundError{Entity: matchmaking.EntityYuzuPlayer, Context: playerID}
		}
		return err
	})
	return out, err
}
