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

// AcceptResult is returned by AcceptMatch. Players holds the other lobby players
// until everyone has accepted, then all of them.
type AcceptResult struct {
	HasEveryoneAccepted bool            `json:"has_everyone_accepted"`
	Players             []models.Player `json:"players"`
	AcceptedAt          time.Time       `json:"accepted_at"`
	Guild               models.Guild    `json:"guild"`
	Lobby               models.Lobby    `json:"lobby"`
}

// CancelResult describes an unwound match.
type CancelResult struct {
	Lobby     models.Lobby    `json:"lobby"`
	Guild     models.Guild    `json:"guild"`
	Searching []models.Player `json:"searching"`
	Afk       []models.Player `json:"afk"`
}

// AcceptMatch stamps the player's acceptance and checks for consensus in the same
// unit of work, so concurrent accepts on one lobby cannot lose each other's stamp.
// An existing stamp is kept.
func (e *Engine) AcceptMatch(ctx context.Context, playerID string) (*AcceptResult, error) {
	var (
		res     AcceptResult
		players []models.Player
	)
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := confirmationLobby(ctx, q, player)
		if err != nil {
			return err
		}

		members, err := q.GetLobbyPlayers(ctx, lobby.ID)
		if err != nil {
			return err
		}
		for i := range members {
			lp := &members[i]
			if lp.PlayerID != player.ID {
				continue
			}
			if lp.AcceptedAt == nil {
				now := e.now()
				lp.AcceptedAt = &now
				if err := q.UpdateLobbyPlayer(ctx, lp); err != nil {
					return err
				}
			}
			res.AcceptedAt = *lp.AcceptedAt
		}

		// re-read inside the same unit of work
		members, err = q.GetLobbyPlayers(ctx, lobby.ID)
		if err != nil {
			return err
		}
		res.HasEveryoneAccepted = true
		for _, lp := range members {
			if !lp.HasAccepted() {
				res.HasEveryoneAccepted = false
				break
			}
		}
		if res.HasEveryoneAccepted {
			if err := e.setStatus(ctx, q, lobby, models.StatusPlaying); err != nil {
				return err
			}
		}

		players, err = loadPlayers(ctx, q, members)
		if err != nil {
			return err
		}
		guild, err := q.GetGuild(ctx, lobby.GuildID)
		if err != nil {
			return err
		}
		res.Guild, res.Lobby = *guild, *lobby
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.HasEveryoneAccepted {
		res.Players = players
	} else {
		for _, p := range players {
			if p.DiscordID != playerID {
				res.Players = append(res.Players, p)
			}
		}
	}

	log := e.log.WithFields(logrus.Fields{
		"player": playerID,
		"lobby":  res.Lobby.ID,
	})
	if !res.HasEveryoneAccepted {
		accepted := res.AcceptedAt
		e.scheduleTimeout(ctx, TimeoutCheck{
			PlayerDiscordID:    playerID,
			LobbyID:            res.Lobby.ID,
			ExpectedAcceptedAt: &accepted,
		})
		log.Info("match accepted")
		return &res, nil
	}

	log.Info("everyone accepted")
	e.metrics.MatchStarted()
	// a failed hand-off leaves the lobby PLAYING for the search tick to retry
	_ = e.handoff(ctx, res.Lobby, res.Guild, players)
	return &res, nil
}

// TimeOutCheck reports whether a pending confirmation genuinely timed out. It is
// false when the player is gone, the player is no longer in the lobby the check
// was scheduled for, that lobby left CONFIRMATION or the player's acceptedAt is
// no longer the one observed when the check was scheduled.
func (e *Engine) TimeOutCheck(ctx context.Context, check TimeoutCheck) (bool, error) {
	timedOut := false
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		lobby, err := expiredLobby(ctx, q, check)
		timedOut = lobby != nil
		return err
	})
	return timedOut, err
}

// RunTimeoutCheck is what the deferred timer executes: the guarded check and,
// when the confirmation really expired, the unwind, both in one unit of work.
func (e *Engine) RunTimeoutCheck(ctx context.Context, check TimeoutCheck) error {
	var res *CancelResult
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		lobby, err := expiredLobby(ctx, q, check)
		if err != nil || lobby == nil {
			return err
		}
		lobby, err = q.LockLobby(ctx, lobby.ID)
		if err != nil {
			return err
		}
		res, err = e.unwind(ctx, q, lobby, timeoutStatus)
		return err
	})
	if err != nil {
		return err
	}
	if res == nil {
		e.log.WithFields(logrus.Fields{
			"player": check.PlayerDiscordID,
			"lobby":  check.LobbyID,
		}).Debug("timeout check is stale")
		return nil
	}
	e.afterCancel(ctx, res, events.MatchTimedOut, "timeout")
	return nil
}

// expiredLobby returns the player's lobby when the guarded timeout condition holds, nil otherwise.
func expiredLobby(ctx context.Context, q store.Queries, check TimeoutCheck) (*models.Lobby, error) {
	player, err := q.GetPlayerByDiscordID(ctx, check.PlayerDiscordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lobby, err := q.GetOpenLobbyByPlayer(ctx, player.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// a rematch puts the player in a new lobby; the old lobby's timer must not touch it
	if lobby.ID != check.LobbyID || lobby.Status != models.StatusConfirmation {
		return nil, nil
	}

	members, err := q.GetLobbyPlayers(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	everyone := true
	for _, lp := range members {
		if lp.PlayerID == player.ID && !sameStamp(lp.AcceptedAt, check.ExpectedAcceptedAt) {
			return nil, nil
		}
		if !lp.HasAccepted() {
			everyone = false
		}
	}
	if everyone {
		return nil, nil
	}
	return lobby, nil
}

// CancelMatch unwinds a timed out confirmation: players who accepted search again,
// the others go AFK.
func (e *Engine) CancelMatch(ctx context.Context, playerID string) (*CancelResult, error) {
	var res *CancelResult
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := confirmationLobby(ctx, q, player)
		if err != nil {
			return err
		}
		res, err = e.unwind(ctx, q, lobby, timeoutStatus)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.afterCancel(ctx, res, events.MatchTimedOut, "timeout")
	return res, nil
}

// cancelLobby is CancelMatch for a lobby found by the search tick. It does nothing
// when the lobby changed since seenAt.
func (e *Engine) cancelLobby(ctx context.Context, lobbyID int64, seenAt time.Time) (*CancelResult, error) {
	var res *CancelResult
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		lobby, err := q.LockLobby(ctx, lobbyID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if lobby.Status != models.StatusConfirmation || !lobby.UpdatedAt.Equal(seenAt) {
			return nil
		}
		res, err = e.unwind(ctx, q, lobby, timeoutStatus)
		return err
	})
	if err != nil || res == nil {
		return nil, err
	}
	e.afterCancel(ctx, res, events.MatchTimedOut, "expired")
	return res, nil
}

// DeclineMatch unwinds the player's confirmation: the decliner goes AFK, everyone
// else searches again, and the decliner may not be matched with them until margin
// elapses. A zero margin uses the configured default.
func (e *Engine) DeclineMatch(ctx context.Context, playerID string, margin time.Duration) (*CancelResult, error) {
	if margin <= 0 {
		margin = e.cfg.DefaultRejectMargin
	}
	var res *CancelResult
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookupPlayer(ctx, q, playerID)
		if err != nil {
			return err
		}
		lobby, err := confirmationLobby(ctx, q, player)
		if err != nil {
			return err
		}
		members, err := q.GetLobbyPlayers(ctx, lobby.ID)
		if err != nil {
			return err
		}
		now := e.now()
		for _, lp := range members {
			if lp.PlayerID == player.ID {
				continue
			}
			if err := q.UpsertReject(ctx, models.PlayerReject{
				RejecterID: player.ID,
				RejectedID: lp.PlayerID,
				RejectedAt: now,
				TimeMargin: marginMinutes(margin),
			}); err != nil {
				return err
			}
		}
		res, err = e.unwind(ctx, q, lobby, func(lp models.LobbyPlayer) models.LobbyStatus {
			if lp.PlayerID == player.ID {
				return models.StatusAFK
			}
			return models.StatusSearching
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.afterCancel(ctx, res, events.MatchDeclined, "declined")
	return res, nil
}

// FinishSession removes a PLAYING lobby once its session was handed off.
func (e *Engine) FinishSession(ctx context.Context, lobbyID int64) error {
	return e.repo.InTx(ctx, func(q store.Queries) error {
		lobby, err := q.LockLobby(ctx, lobbyID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(EntityLobby, "")
		}
		if err != nil {
			return err
		}
		if lobby.Status != models.StatusPlaying {
			return &ValidationError{Field: "lobby status", Value: string(lobby.Status)}
		}
		return q.DeleteLobby(ctx, lobby.ID)
	})
}

// handoff publishes match_started and removes the lobby once the event is out.
func (e *Engine) handoff(ctx context.Context, lobby models.Lobby, guild models.Guild, players []models.Player) error {
	ev := events.New(events.MatchStarted)
	ev.GuildID = guild.DiscordID
	ev.LobbyID = lobby.ID
	ev.TierID = lobby.MatchedTierID
	ev.Players = discordIDs(players)
	if err := e.publish(ctx, ev); err != nil {
		return err
	}
	if err := e.FinishSession(ctx, lobby.ID); err != nil {
		e.log.WithError(err).WithField("lobby", lobby.ID).Error("failed to remove started lobby")
		return err
	}
	return nil
}

// retryHandoffs hands off PLAYING lobbies whose first hand-off failed.
func (e *Engine) retryHandoffs(ctx context.Context) (int, error) {
	type pending struct {
		lobby   models.Lobby
		guild   models.Guild
		players []models.Player
	}
	var todo []pending
	err := e.repo.InTx(ctx, func(q store.Queries) error {
		lobbies, err := q.ListLobbiesByStatus(ctx, models.StatusPlaying)
		if err != nil {
			return err
		}
		for _, l := range lobbies {
			guild, err := q.GetGuild(ctx, l.GuildID)
			if err != nil {
				return err
			}
			members, err := q.GetLobbyPlayers(ctx, l.ID)
			if err != nil {
				return err
			}
			players, err := loadPlayers(ctx, q, members)
			if err != nil {
				return err
			}
			todo = append(todo, pending{lobby: l, guild: *guild, players: players})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	done := 0
	var errs []error
	for _, p := range todo {
		if err := e.handoff(ctx, p.lobby, p.guild, p.players); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// unwind dissolves a matched lobby. Every player gets a lobby of their own with
// the tiers they were searching with, in the status picked by statusFor.
func (e *Engine) unwind(ctx context.Context, q store.Queries, lobby *models.Lobby, statusFor func(models.LobbyPlayer) models.LobbyStatus) (*CancelResult, error) {
	members, err := q.GetLobbyPlayers(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	guild, err := q.GetGuild(ctx, lobby.GuildID)
	if err != nil {
		return nil, err
	}
	res := &CancelResult{Lobby: *lobby, Guild: *guild}

	now := e.now()
	for _, lp := range members {
		if err := q.DeleteLobbyPlayer(ctx, lobby.ID, lp.PlayerID); err != nil {
			return nil, err
		}
		status := statusFor(lp)
		own := models.Lobby{
			GuildID:   lobby.GuildID,
			Mode:      lobby.Mode,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := q.InsertLobby(ctx, &own); err != nil {
			return nil, err
		}
		if err := q.InsertLobbyPlayer(ctx, &models.LobbyPlayer{
			LobbyID:       own.ID,
			PlayerID:      lp.PlayerID,
			Status:        status,
			SearchTierIDs: lp.SearchTierIDs,
		}); err != nil {
			return nil, err
		}
		if len(lp.SearchTierIDs) > 0 {
			if err := q.AddLobbyTiers(ctx, own.ID, lp.SearchTierIDs); err != nil {
				return nil, err
			}
		}
		if err := q.MoveMessages(ctx, lp.PlayerID, own.ID); err != nil {
			return nil, err
		}

		player, err := q.GetPlayer(ctx, lp.PlayerID)
		if err != nil {
			return nil, err
		}
		if status == models.StatusSearching {
			res.Searching = append(res.Searching, *player)
		} else {
			res.Afk = append(res.Afk, *player)
		}
	}
	if err := q.DeleteLobby(ctx, lobby.ID); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) afterCancel(ctx context.Context, res *CancelResult, typ events.Type, reason string) {
	ev := events.New(typ)
	ev.GuildID = res.Guild.DiscordID
	ev.LobbyID = res.Lobby.ID
	ev.TierID = res.Lobby.MatchedTierID
	ev.Players = discordIDs(append(append([]models.Player{}, res.Searching...), res.Afk...))
	if typ == events.MatchTimedOut {
		ev.Accepted = discordIDs(res.Searching)
	}
	_ = e.publish(ctx, ev)

	e.metrics.MatchCancelled(reason)
	e.log.WithFields(logrus.Fields{
		"lobby":     res.Lobby.ID,
		"reason":    reason,
		"searching": discordIDs(res.Searching),
		"afk":       discordIDs(res.Afk),
	}).Info("match cancelled")
}

// confirmationLobby locks the player's lobby, which must be in CONFIRMATION.
func confirmationLobby(ctx context.Context, q store.Queries, player *models.Player) (*models.Lobby, error) {
	lobby, err := openLobby(ctx, q, player)
	if err != nil {
		return nil, err
	}
	lobby, err = q.LockLobby(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	if lobby.Status != models.StatusConfirmation {
		return nil, notFound(EntityLobby, player.DiscordID)
	}
	return lobby, nil
}

// timeoutStatus sends players who accepted back to search and the rest AFK.
func timeoutStatus(lp models.LobbyPlayer) models.LobbyStatus {
	if lp.HasAccepted() {
		return models.StatusSearching
	}
	return models.StatusAFK
}

func sameStamp(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// marginMinutes rounds a reject margin up to whole minutes, never below one.
func marginMinutes(d time.Duration) int {
	m := int((d + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
