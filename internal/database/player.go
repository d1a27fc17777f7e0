package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

func (q *queries) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	var p models.Player
	err := q.db.QueryRow(ctx, `SELECT id, discord_id FROM player WHERE id = $1`, id).
		Scan(&p.ID, &p.DiscordID)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (q *queries) GetPlayerByDiscordID(ctx context.Context, discordID string) (*models.Player, error) {
	var p models.Player
	err := q.db.QueryRow(ctx, `SELECT id, discord_id FROM player WHERE discord_id = $1`, discordID).
		Scan(&p.ID, &p.DiscordID)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (q *queries) UpsertPlayer(ctx context.Context, discordID string) (*models.Player, error) {
	var p models.Player
	err := q.db.QueryRow(ctx, `
		INSERT INTO player (discord_id) VALUES ($1)
		ON CONFLICT (discord_id) DO UPDATE SET discord_id = EXCLUDED.discord_id
		RETURNING id, discord_id
	`, discordID).Scan(&p.ID, &p.DiscordID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const guildColumns = `id, discord_id, search_channel_id, yuzu_role_id`

func scanGuild(row pgx.Row) (*models.Guild, error) {
	var g models.Guild
	if err := row.Scan(&g.ID, &g.DiscordID, &g.SearchChannelID, &g.YuzuRoleID); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (q *queries) GetGuild(ctx context.Context, id int64) (*models.Guild, error) {
	return scanGuild(q.db.QueryRow(ctx, `SELECT `+guildColumns+` FROM guild WHERE id = $1`, id))
}

func (q *queries) GetGuildByDiscordID(ctx context.Context, discordID string) (*models.Guild, error) {
	return scanGuild(q.db.QueryRow(ctx, `SELECT `+guildColumns+` FROM guild WHERE discord_id = $1`, discordID))
}

func (q *queries) UpsertGuild(ctx context.Context, guild *models.Guild) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO guild (discord_id, search_channel_id, yuzu_role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (discord_id) DO UPDATE
		SET search_channel_id = EXCLUDED.search_channel_id,
		    yuzu_role_id = EXCLUDED.yuzu_role_id
		RETURNING id
	`, guild.DiscordID, guild.SearchChannelID, guild.YuzuRoleID).Scan(&guild.ID)
}

const tierColumns = `id, guild_id, discord_id, channel_id, weight, threshold, yuzu`

func scanTier(row pgx.Row) (*models.Tier, error) {
	var t models.Tier
	if err := row.Scan(&t.ID, &t.GuildID, &t.DiscordID, &t.ChannelID, &t.Weight, &t.Threshold, &t.Yuzu); err != nil {
		return nil, err
	}
	return &t, nil
}

func (q *queries) GetTierByDiscordID(ctx context.Context, guildID int64, discordID string) (*models.Tier, error) {
	t, err := scanTier(q.db.QueryRow(ctx,
		`SELECT `+tierColumns+` FROM tier WHERE guild_id = $1 AND discord_id = $2`, guildID, discordID))
	return t, notFound(err)
}

func (q *queries) GetYuzuTier(ctx context.Context, guildID int64) (*models.Tier, error) {
	t, err := scanTier(q.db.QueryRow(ctx,
		`SELECT `+tierColumns+` FROM tier WHERE guild_id = $1 AND yuzu ORDER BY id LIMIT 1`, guildID))
	return t, notFound(err)
}

func (q *queries) GetTiers(ctx context.Context, ids []int64) ([]models.Tier, error) {
	tiers := []models.Tier{}
	if len(ids) == 0 {
		return tiers, nil
	}
	rows, err := q.db.Query(ctx, `SELECT `+tierColumns+` FROM tier WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, *t)
	}
	return tiers, rows.Err()
}

func (q *queries) UpsertTier(ctx context.Context, tier *models.Tier) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO tier (guild_id, discord_id, channel_id, weight, threshold, yuzu)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (guild_id, discord_id) DO UPDATE
		SET channel_id = EXCLUDED.channel_id,
		    weight = EXCLUDED.weight,
		    threshold = EXCLUDED.threshold,
		    yuzu = EXCLUDED.yuzu
		RETURNING id
	`, tier.GuildID, tier.DiscordID, tier.ChannelID, tier.Weight, tier.Threshold, tier.Yuzu).Scan(&tier.ID)
}
