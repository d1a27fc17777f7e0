package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
)

// errLobbyMoved aborts a planned merge whose lobbies changed since the plan was made.
var errLobbyMoved = errors.New("lobby is no longer searching")

// matchOutcome is what a committed merge leaves for the post-commit side effects.
type matchOutcome struct {
	lobby   models.Lobby
	guild   models.Guild
	tier    models.Tier
	players []models.Player
}

// TickResult summarizes one run of the search tick.
type TickResult struct {
	Searching int `json:"searching"`
	Matched   int `json:"matched"`
	Expired   int `json:"expired"`
	HandedOff int `json:"handed_off"`
}

// SearchTick groups every compatible pair of SEARCHING lobbies, expires
// confirmations whose timeout never fired and retries failed session hand-offs.
// A pair whose lobbies changed between planning and commit is skipped; the next
// tick picks it up again.
func (e *Engine) SearchTick(ctx context.Context) (TickResult, error) {
	start := time.Now()
	logger := e.log.WithField("task", "search_tick")
	var (
		res      TickResult
		pairings []Pairing
		errs     []error
	)

	err := e.repo.InTx(ctx, func(q store.Queries) error {
		pool, err := loadSearchPool(ctx, q)
		if err != nil {
			return err
		}
		res.Searching = len(pool)
		rejects, err := q.ListLiveRejects(ctx, poolPlayers(pool), e.now())
		if err != nil {
			return err
		}
		pairings = PlanPairings(pool, NewRejectIndex(rejects, e.now()))
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, p := range pairings {
		var outcome *matchOutcome
		err := e.repo.InTx(ctx, func(q store.Queries) error {
			var err error
			outcome, err = e.merge(ctx, q, p.Host.Lobby.ID, p.Guest.Lobby.ID, p.Tier)
			if errors.Is(err, errLobbyMoved) {
				outcome = nil
				return nil
			}
			return err
		})
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"host":  p.Host.Lobby.ID,
				"guest": p.Guest.Lobby.ID,
			}).Error("failed to merge lobbies")
			errs = append(errs, err)
			continue
		}
		if outcome != nil {
			res.Matched++
			e.afterMatch(ctx, outcome)
		}
	}

	expired, err := e.expireStaleConfirmations(ctx)
	res.Expired = expired
	if err != nil {
		errs = append(errs, err)
	}

	handed, err := e.retryHandoffs(ctx)
	res.HandedOff = handed
	if err != nil {
		errs = append(errs, err)
	}

	took := time.Since(start)
	e.metrics.SearchTick(res.Searching, res.Matched, took)
	logger.WithFields(logrus.Fields{
		"searching":  res.Searching,
		"matched":    res.Matched,
		"expired":    res.Expired,
		"handed_off": res.HandedOff,
		"took":       took,
	}).Debug("search tick finished")
	return res, errors.Join(errs...)
}

// matchNow looks for the best opponent of one lobby and merges with it.
// It runs inside the caller's unit of work and reads without locking: merge
// takes both row locks in id order and re-checks that the pair still searches.
func (e *Engine) matchNow(ctx context.Context, q store.Queries, lobby models.Lobby, requester string) (*SearchResult, *matchOutcome, error) {
	self, err := loadCandidate(ctx, q, lobby)
	if err != nil {
		return nil, nil, err
	}
	pool, err := loadSearchPool(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	rejects, err := q.ListLiveRejects(ctx, self.Players, e.now())
	if err != nil {
		return nil, nil, err
	}

	opponent, tier, ok := BestOpponent(self, pool, NewRejectIndex(rejects, e.now()))
	if !ok {
		guild, err := q.GetGuild(ctx, lobby.GuildID)
		if err != nil {
			return nil, nil, err
		}
		player, err := q.GetPlayerByDiscordID(ctx, requester)
		if err != nil {
			return nil, nil, err
		}
		return &SearchResult{
			Matched: false,
			Players: []models.Player{*player},
			Guild:   *guild,
			Lobby:   lobby,
		}, nil, nil
	}

	host, guest := self, opponent
	if opponent.olderThan(self) {
		host, guest = opponent, self
	}
	outcome, err := e.merge(ctx, q, host.Lobby.ID, guest.Lobby.ID, tier)
	if err != nil {
		return nil, nil, err
	}
	return &SearchResult{
		Matched: true,
		Players: outcome.players,
		Guild:   outcome.guild,
		Lobby:   outcome.lobby,
		Tier:    &tier,
	}, outcome, nil
}

// merge moves the guest lobby's players into the host lobby, puts everyone in
// CONFIRMATION with no acceptance and deletes the guest shell.
func (e *Engine) merge(ctx context.Context, q store.Queries, hostID, guestID int64, tier models.Tier) (*matchOutcome, error) {
	// lock in id order so two concurrent merges cannot deadlock
	first, second := hostID, guestID
	if second < first {
		first, second = second, first
	}
	locked := make(map[int64]*models.Lobby, 2)
	for _, id := range []int64{first, second} {
		l, err := q.LockLobby(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errLobbyMoved
		}
		if err != nil {
			return nil, err
		}
		if l.Status != models.StatusSearching {
			return nil, errLobbyMoved
		}
		locked[id] = l
	}
	host, guest := locked[hostID], locked[guestID]

	hostPlayers, err := q.GetLobbyPlayers(ctx, host.ID)
	if err != nil {
		return nil, err
	}
	guestPlayers, err := q.GetLobbyPlayers(ctx, guest.ID)
	if err != nil {
		return nil, err
	}

	for i := range hostPlayers {
		lp := &hostPlayers[i]
		lp.Status = models.StatusConfirmation
		lp.AcceptedAt = nil
		lp.SearchTierIDs = searchTiers(*lp, host, len(hostPlayers))
		if err := q.UpdateLobbyPlayer(ctx, lp); err != nil {
			return nil, err
		}
	}
	for _, lp := range guestPlayers {
		if err := q.DeleteLobbyPlayer(ctx, guest.ID, lp.PlayerID); err != nil {
			return nil, err
		}
		moved := models.LobbyPlayer{
			LobbyID:       host.ID,
			PlayerID:      lp.PlayerID,
			Status:        models.StatusConfirmation,
			SearchTierIDs: searchTiers(lp, guest, len(guestPlayers)),
		}
		if err := q.InsertLobbyPlayer(ctx, &moved); err != nil {
			return nil, err
		}
		if err := q.MoveMessages(ctx, lp.PlayerID, host.ID); err != nil {
			return nil, err
		}
	}
	if err := q.DeleteLobby(ctx, guest.ID); err != nil {
		return nil, err
	}

	tierID := tier.ID
	host.Status = models.StatusConfirmation
	host.MatchedTierID = &tierID
	host.UpdatedAt = e.now()
	if err := q.UpdateLobby(ctx, host); err != nil {
		return nil, err
	}

	guild, err := q.GetGuild(ctx, host.GuildID)
	if err != nil {
		return nil, err
	}
	members, err := q.GetLobbyPlayers(ctx, host.ID)
	if err != nil {
		return nil, err
	}
	players, err := loadPlayers(ctx, q, members)
	if err != nil {
		return nil, err
	}
	return &matchOutcome{lobby: *host, guild: *guild, tier: tier, players: players}, nil
}

// searchTiers is the tier set a player goes back to when the match unwinds. A
// solo lobby's tiers are the player's own and may have grown since an earlier
// match recorded them.
func searchTiers(lp models.LobbyPlayer, lobby *models.Lobby, members int) []int64 {
	if members == 1 || len(lp.SearchTierIDs) == 0 {
		return lobby.TierIDs
	}
	return lp.SearchTierIDs
}

// afterMatch runs the side effects of a committed merge: one deferred timeout
// check per matched player and the match_found event.
func (e *Engine) afterMatch(ctx context.Context, outcome *matchOutcome) {
	if outcome == nil {
		return
	}
	for _, p := range outcome.players {
		e.scheduleTimeout(ctx, TimeoutCheck{
			PlayerDiscordID: p.DiscordID,
			LobbyID:         outcome.lobby.ID,
		})
	}

	ev := events.New(events.MatchFound)
	ev.GuildID = outcome.guild.DiscordID
	ev.LobbyID = outcome.lobby.ID
	ev.TierID = outcome.lobby.MatchedTierID
	ev.Players = discordIDs(outcome.players)
	_ = e.publish(ctx, ev)

	e.metrics.MatchFound(string(outcome.lobby.Mode))
	e.log.WithFields(logrus.Fields{
		"lobby":   outcome.lobby.ID,
		"guild":   outcome.guild.DiscordID,
		"tier":    outcome.tier.DiscordID,
		"players": ev.Players,
	}).Info("match found")
}

// expireStaleConfirmations unwinds confirmations left untouched for twice the grace
// window, which only happens when their timeout job was lost.
func (e *Engine) expireStaleConfirmations(ctx context.Context) (int, error) {
	var stale []models.Lobby
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		lobbies, err := q.ListLobbiesByStatus(ctx, models.StatusConfirmation)
		if err != nil {
			return err
		}
		cutoff := e.now().Add(-2 * e.cfg.ConfirmationGrace)
		for _, l := range lobbies {
			if l.UpdatedAt.Before(cutoff) {
				stale = append(stale, l)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	var errs []error
	for _, l := range stale {
		res, err := e.cancelLobby(ctx, l.ID, l.UpdatedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res != nil {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

func loadCandidate(ctx context.Context, q store.Queries, lobby models.Lobby) (Candidate, error) {
	members, err := q.GetLobbyPlayers(ctx, lobby.ID)
	if err != nil {
		return Candidate{}, err
	}
	tiers, err := q.GetTiers(ctx, lobby.TierIDs)
	if err != nil {
		return Candidate{}, err
	}
	c := Candidate{Lobby: lobby, Tiers: tiers}
	for _, m := range members {
		c.Players = append(c.Players, m.PlayerID)
	}
	return c, nil
}

// loadSearchPool returns every SEARCHING lobby as a candidate, oldest first.
func loadSearchPool(ctx context.Context, q store.Queries) ([]Candidate, error) {
	lobbies, err := q.ListLobbiesByStatus(ctx, models.StatusSearching)
	if err != nil {
		return nil, err
	}
	pool := make([]Candidate, 0, len(lobbies))
	for _, l := range lobbies {
		c, err := loadCandidate(ctx, q, l)
		if err != nil {
			return nil, err
		}
		pool = append(pool, c)
	}
	return pool, nil
}

func poolPlayers(pool []Candidate) []int64 {
	var ids []int64
	for _, c := range pool {
		ids = append(ids, c.Players...)
	}
	return ids
}

func loadPlayers(ctx context.Context, q store.Queries, members []models.LobbyPlayer) ([]models.Player, error) {
	players := make([]models.Player, 0, len(members))
	for _, m := range members {
		p, err := q.GetPlayer(ctx, m.PlayerID)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, nil
}

func discordIDs(players []models.Player) []string {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.DiscordID
	}
	return ids
}
