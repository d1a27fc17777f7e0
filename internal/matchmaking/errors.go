package matchmaking

import (
	"errors"
	"fmt"
	"strings"
)

// Entity names the kind of record a NotFoundError refers to.
type Entity string

const (
	EntityPlayer     Entity = "Player"
	EntityGuild      Entity = "Guild"
	EntityLobby      Entity = "Lobby"
	EntityAFKLobby   Entity = "AFKLobby"
	EntityTier       Entity = "Tier"
	EntityYuzuPlayer Entity = "YuzuPlayer"
	EntityCharacter  Entity = "Character"
	EntityRegion     Entity = "Region"
)

// ErrAlreadySearching is returned by StartSearch when the player already owns an open lobby.
var ErrAlreadySearching = errors.New("player already has an open lobby")

// NotFoundError is raised for a missing record. It is user facing and recoverable.
type NotFoundError struct {
	Entity  Entity
	Context string
}

func (e *NotFoundError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Context)
}

func notFound(entity Entity, context string) error {
	return &NotFoundError{Entity: entity, Context: context}
}

// IsNotFound reports whether err is a NotFoundError for the given entity.
func IsNotFound(err error, entity Entity) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Entity == entity
}

// ValidationError is raised for an input outside a bounded enumeration.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// CapacityError is raised when an insertion would exceed a fixed per-player cap.
// Current holds the collection as it is, so the caller can list it.
type CapacityError struct {
	Kind    string
	Limit   int
	Current []string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("too many %s (limit %d): %s", e.Kind, e.Limit, strings.Join(e.Current, ", "))
}
