package matchmaking

import (
	"testing"

	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSearch(t *testing.T) {
	f := newFixture(t)

	lobby := f.search("p1", "t1", "t2")
	assert.Equal(t, models.StatusSearching, lobby.Status)
	assert.Equal(t, models.ModeFriendlies, lobby.Mode)
	assert.ElementsMatch(t, []int64{f.tierID("t1"), f.tierID("t2")}, lobby.TierIDs)

	got, members := f.lobbyOf("p1")
	require.NotNil(t, got)
	assert.Equal(t, lobby.ID, got.ID)
	require.Len(t, members, 1)
	assert.Equal(t, models.StatusSearching, members[0].Status)
	assert.Nil(t, members[0].AcceptedAt)

	_, err := f.engine.StartSearch(f.ctx, StartSearchRequest{PlayerID: "p1", GuildID: guildID})
	assert.ErrorIs(t, err, ErrAlreadySearching)
}

func TestStartSearchErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.StartSearch(f.ctx, StartSearchRequest{PlayerID: "p1", GuildID: "nowhere"})
	assert.True(t, IsNotFound(err, EntityGuild), "got %v", err)

	_, err = f.engine.StartSearch(f.ctx, StartSearchRequest{PlayerID: "p1", GuildID: guildID, TierIDs: []string{"t9"}})
	assert.True(t, IsNotFound(err, EntityTier), "got %v", err)

	_, err = f.engine.StartSearch(f.ctx, StartSearchRequest{PlayerID: "p1", GuildID: guildID, Mode: "casual"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = f.engine.StartSearch(f.ctx, StartSearchRequest{PlayerID: "p1", GuildID: guildID, TierIDs: []string{"yuzu"}})
	assert.True(t, IsNotFound(err, EntityYuzuPlayer), "got %v", err)

	lobby, _ := f.lobbyOf("p1")
	assert.Nil(t, lobby, "failed searches leave no lobby behind")
}

func TestStartSearchYuzuTier(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.InTx(f.ctx, func(q store.Queries) error {
		p, err := q.UpsertPlayer(f.ctx, "p1")
		if err != nil {
			return err
		}
		g, err := q.GetGuildByDiscordID(f.ctx, guildID)
		if err != nil {
			return err
		}
		return q.UpsertYuzuPlayer(f.ctx, models.YuzuPlayer{PlayerID: p.ID, GuildID: g.ID, Parsec: true})
	}))

	lobby := f.search("p1", "yuzu")
	assert.Equal(t, []int64{f.tierID("yuzu")}, lobby.TierIDs)
}

func TestGetSearchingTiers(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.GetSearchingTiers(f.ctx, "ghost")
	assert.True(t, IsNotFound(err, EntityPlayer), "got %v", err)

	f.search("p1")
	tiers, err := f.engine.GetSearchingTiers(f.ctx, "p1")
	require.NoError(t, err)
	assert.NotNil(t, tiers)
	assert.Empty(t, tiers)

	searching, err := f.engine.IsSearching(f.ctx, "p1")
	require.NoError(t, err)
	assert.False(t, searching)

	_, err = f.engine.AddTiers(f.ctx, "p1", []string{"t3", "t1"})
	require.NoError(t, err)
	_, err = f.engine.AddTiers(f.ctx, "p1", []string{"t1"})
	require.NoError(t, err)

	tiers, err = f.engine.GetSearchingTiers(f.ctx, "p1")
	require.NoError(t, err)
	var ids []string
	for _, tier := range tiers {
		ids = append(ids, tier.DiscordID)
	}
	assert.ElementsMatch(t, []string{"t1", "t3"}, ids)

	searching, err = f.engine.IsSearching(f.ctx, "p1")
	require.NoError(t, err)
	assert.True(t, searching)
}

func TestAddTiersWithoutLobby(t *testing.T) {
	f := newFixture(t)
	f.search("p1")
	require.NoError(t, f.engine.GiveUp(f.ctx, "p1"))
	require.NoError(t, f.engine.RemoveAfkLobby(f.ctx, "p1"))

	_, err := f.engine.AddTiers(f.ctx, "p1", []string{"t1"})
	assert.True(t, IsNotFound(err, EntityLobby), "got %v", err)

	tiers, err := f.engine.GetSearchingTiers(f.ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, tiers)
}

func TestRemoveAfkLobby(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t1")

	err := f.engine.RemoveAfkLobby(f.ctx, "p1")
	assert.True(t, IsNotFound(err, EntityAFKLobby), "a SEARCHING lobby is not AFK: %v", err)

	require.NoError(t, f.engine.GiveUp(f.ctx, "p1"))
	assert.Equal(t, models.StatusAFK, f.statusOf("p1"))

	require.NoError(t, f.engine.RemoveAfkLobby(f.ctx, "p1"))
	err = f.engine.RemoveAfkLobby(f.ctx, "p1")
	assert.True(t, IsNotFound(err, EntityLobby), "second removal finds no lobby: %v", err)

	err = f.engine.RemoveAfkLobby(f.ctx, "ghost")
	assert.True(t, IsNotFound(err, EntityPlayer), "got %v", err)
}

func TestGiveUpRequiresSearching(t *testing.T) {
	f := newFixture(t)

	err := f.engine.GiveUp(f.ctx, "ghost")
	assert.True(t, IsNotFound(err, EntityPlayer), "got %v", err)

	f.match("p1", "p2")
	err = f.engine.GiveUp(f.ctx, "p1")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, models.StatusConfirmation, f.statusOf("p1"))
}

func TestSearchAgainAfkLobbyWithoutOpponent(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t1")
	require.NoError(t, f.engine.GiveUp(f.ctx, "p1"))

	res, err := f.engine.SearchAgainAfkLobby(f.ctx, "p1")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	require.Len(t, res.Players, 1)
	assert.Equal(t, "p1", res.Players[0].DiscordID)
	assert.Equal(t, guildID, res.Guild.DiscordID)
	assert.Nil(t, res.Tier)
	assert.Equal(t, models.StatusSearching, f.statusOf("p1"))
	assert.Empty(t, f.sched.all())
}

func TestSearchAgainAfkLobbyMatches(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t2")
	f.search("p2", "t1", "t2")
	require.NoError(t, f.engine.GiveUp(f.ctx, "p2"))

	res, err := f.engine.SearchAgainAfkLobby(f.ctx, "p2")
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Len(t, res.Players, 2)
	require.NotNil(t, res.Tier)
	assert.Equal(t, "t2", res.Tier.DiscordID)
	assert.Equal(t, models.StatusConfirmation, res.Lobby.Status)

	lobby, members := f.lobbyOf("p1")
	require.NotNil(t, lobby)
	assert.Equal(t, models.StatusConfirmation, lobby.Status)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.Equal(t, models.StatusConfirmation, m.Status)
		assert.Nil(t, m.AcceptedAt)
	}

	checks := f.sched.all()
	require.Len(t, checks, 2, "one timeout check per matched player")
	for _, c := range checks {
		assert.Nil(t, c.check.ExpectedAcceptedAt)
		assert.Equal(t, lobby.ID, c.check.LobbyID)
		assert.Equal(t, f.clock.Now().Add(DefaultConfig().ConfirmationGrace), c.at)
	}
	assert.Len(t, f.notes.ofType(events.MatchFound), 1)
}

func TestSearchAgainAfkLobbyErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.SearchAgainAfkLobby(f.ctx, "ghost")
	assert.True(t, IsNotFound(err, EntityPlayer), "got %v", err)

	f.search("p1", "t1")
	_, err = f.engine.SearchAgainAfkLobby(f.ctx, "p1")
	assert.True(t, IsNotFound(err, EntityAFKLobby), "got %v", err)

	require.NoError(t, f.engine.GiveUp(f.ctx, "p1"))
	require.NoError(t, f.engine.RemoveAfkLobby(f.ctx, "p1"))
	_, err = f.engine.SearchAgainAfkLobby(f.ctx, "p1")
	assert.True(t, IsNotFound(err, EntityLobby), "got %v", err)
}
