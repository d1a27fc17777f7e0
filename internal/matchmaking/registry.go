package matchmaking

import (
	"context"
	"errors"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
)

// RegisterGuild creates or updates a guild keyed by its Discord id.
func (e *Engine) RegisterGuild(ctx context.Context, guild models.Guild) (*models.Guild, error) {
	if guild.DiscordID == "" {
		return nil, &ValidationError{Field: "guild", Value: guild.DiscordID}
	}
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		return q.UpsertGuild(ctx, &guild)
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("guild", guild.DiscordID).Info("guild registered")
	return &guild, nil
}

// RegisterTier creates or updates a tier of a registered guild, keyed by its role id.
func (e *Engine) RegisterTier(ctx context.Context, guildDiscordID string, tier models.Tier) (*models.Tier, error) {
	if tier.DiscordID == "" {
		return nil, &ValidationError{Field: "tier", Value: tier.DiscordID}
	}
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		guild, err := q.GetGuildByDiscordID(ctx, guildDiscordID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(EntityGuild, guildDiscordID)
		}
		if err != nil {
			return err
		}
		tier.GuildID = guild.ID
		return q.UpsertTier(ctx, &tier)
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"guild":  guildDiscordID,
		"tier":   tier.DiscordID,
		"weight": tier.Weight,
	}).Info("tier registered")
	return &tier, nil
}

// GetGuildTier resolves a tier of a registered guild.
func (e *Engine) GetGuildTier(ctx context.Context, guildDiscordID, tierDiscordID string) (*models.Tier, error) {
	var tier *models.Tier
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		guild, err := q.GetGuildByDiscordID(ctx, guildDiscordID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(EntityGuild, guildDiscordID)
		}
		if err != nil {
			return err
		}
		tier, err = q.GetTierByDiscordID(ctx, guild.ID, tierDiscordID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(EntityTier, tierDiscordID)
		}
		return err
	})
	return tier, err
}
