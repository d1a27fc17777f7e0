// Package profile manages what a player declares about themselves: characters,
// regions and their netplay setup.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus"
)

// Per-player caps.
var characterLimits = map[models.CharacterKind]int{
	models.CharacterMain:   2,
	models.CharacterSecond: 3,
	models.CharacterPocket: 5,
}

const regionLimit = 3

// Service runs profile changes as units of work on the shared repository.
type Service struct {
	repo store.Repository
	log  logrus.FieldLogger
}

func NewService(repo store.Repository, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{repo: repo, log: logger.WithField("component", "profile")}
}

// AddCharacter declares a character. Declaring it again with the same kind is a
// no-op; with another kind it moves, subject to the new kind's cap.
func (s *Service) AddCharacter(ctx context.Context, playerID, name string, kind models.CharacterKind) ([]models.PlayerCharacter, error) {
	limit, ok := characterLimits[kind]
	if !ok {
		return nil, &matchmaking.ValidationError{Field: "character kind", Value: string(kind)}
	}
	name = normalize(name)
	if name == "" {
		return nil, &matchmaking.ValidationError{Field: "character", Value: name}
	}

	var out []models.PlayerCharacter
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		player, err := q.UpsertPlayer(ctx, playerID)
		if err != nil {
			return err
		}
		current, err := q.ListCharacters(ctx, player.ID)
		if err != nil {
			return err
		}

		var sameKind []string
		for _, c := range current {
			if c.Name == name {
				if c.Kind == kind {
					out = current
					return nil
				}
				if err := q.DeleteCharacter(ctx, player.ID, name); err != nil {
					return err
				}
				continue
			}
			if c.Kind == kind {
				sameKind = append(sameKind, c.Name)
			}
		}
		if len(sameKind) >= limit {
			return &matchmaking.CapacityError{Kind: string(kind) + " characters", Limit: limit, Current: sameKind}
		}
		if err := q.InsertCharacter(ctx, models.PlayerCharacter{PlayerID: player.ID, Name: name, Kind: kind}); err != nil {
			return err
		}
		out, err = q.ListCharacters(ctx, player.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"player": playerID, "character": name, "kind": kind}).Debug("character added")
	return out, nil
}

// RemoveCharacter forgets a declared character.
func (s *Service) RemoveCharacter(ctx context.Context, playerID, name string) error {
	name = normalize(name)
	return s.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookup(ctx, q, playerID)
		if err != nil {
			return err
		}
		err = q.DeleteCharacter(ctx, player.ID, name)
		if errors.Is(err, store.ErrNotFound) {
			return &matchmaking.NotFoundError{Entity: matchmaking.EntityCharacter, Context: name}
		}
		return err
	})
}

// ListCharacters returns the player's characters. An unknown player has none.
func (s *Service) ListCharacters(ctx context.Context, playerID string) ([]models.PlayerCharacter, error) {
	out := []models.PlayerCharacter{}
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		player, err := q.GetPlayerByDiscordID(ctx, playerID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found, err := q.ListCharacters(ctx, player.ID)
		out = append(out, found...)
		return err
	})
	return out, err
}

// AddRegion declares a region, at most regionLimit per player. Duplicates are a no-op.
func (s *Service) AddRegion(ctx context.Context, playerID, name string) ([]models.PlayerRegion, error) {
	name = normalize(name)
	if name == "" {
		return nil, &matchmaking.ValidationError{Field: "region", Value: name}
	}
	var out []models.PlayerRegion
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		player, err := q.UpsertPlayer(ctx, playerID)
		if err != nil {
			return err
		}
		current, err := q.ListRegions(ctx, player.ID)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(current))
		for _, r := range current {
			if r.Name == name {
				out = current
				return nil
			}
			names = append(names, r.Name)
		}
		if len(names) >= regionLimit {
			return &matchmaking.CapacityError{Kind: "regions", Limit: regionLimit, Current: names}
		}
		if err := q.InsertRegion(ctx, models.PlayerRegion{PlayerID: player.ID, Name: name}); err != nil {
			return err
		}
		out, err = q.ListRegions(ctx, player.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListRegions returns the player's regions. An unknown player has none.
func (s *Service) ListRegions(ctx context.Context, playerID string) ([]models.PlayerRegion, error) {
	out := []models.PlayerRegion{}
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		player, err := q.GetPlayerByDiscordID(ctx, playerID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found, err := q.ListRegions(ctx, player.ID)
		out = append(out, found...)
		return err
	})
	return out, err
}

// RemoveRegion forgets a declared region.
func (s *Service) RemoveRegion(ctx context.Context, playerID, name string) error {
	name = normalize(name)
	return s.repo.InTx(ctx, func(q store.Queries) error {
		player, err := lookup(ctx, q, playerID)
		if err != nil {
			return err
		}
		err = q.DeleteRegion(ctx, player.ID, name)
		if errors.Is(err, store.ErrNotFound) {
			return &matchmaking.NotFoundError{Entity: matchmaking.EntityRegion, Context: name}
		}
		return err
	})
}

func lookup(ctx context.Context, q store.Queries, playerID string) (*models.Player, error) {
	player, err := q.GetPlayerByDiscordID(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &matchmaking.NotFoundError{Entity: matchmaking.EntityPlayer, Context: playerID}
	}
	return player, err
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
