// Package player defines club members. A player is created once on
// registration and never changes or disappears afterwards.
package player

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// Player is a registered club member.
type Player struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// New validates the name and builds a Player.
func New(id, name string, now time.Time) (*Player, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("player", "New", shared.ErrInvalidID, "player id is required")
	}
	clean, err := shared.NewPlayerName(name)
	if err != nil {
		return nil, err
	}
	return &Player{ID: id, Name: clean, RegisteredAt: now}, nil
}

// Names indexes display names by player id.
func Names(players []*Player) map[string]string {
	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}
	return names
}

// SortByName orders players by name, then id.
func SortByName(players []*Player) {
	slices.SortFunc(players, func(a, b *Player) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
}
