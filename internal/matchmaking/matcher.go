package matchmaking

import (
	"sort"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

// Candidate is a SEARCHING lobby as seen by the matchmaker.
type Candidate struct {
	Lobby   models.Lobby
	Players []int64
	Tiers   []models.Tier
}

// anchor is the lowest tier weight the lobby searches with.
func (c Candidate) anchor() int {
	lowest := 0
	for i, t := range c.Tiers {
		if i == 0 || t.Weight < lowest {
			lowest = t.Weight
		}
	}
	return lowest
}

// olderThan orders candidates FIFO: creation time, then id.
func (c Candidate) olderThan(o Candidate) bool {
	if !c.Lobby.CreatedAt.Equal(o.Lobby.CreatedAt) {
		return c.Lobby.CreatedAt.Before(o.Lobby.CreatedAt)
	}
	return c.Lobby.ID < o.Lobby.ID
}

// RejectIndex answers whether two players are inside a live reject cool-down,
// in either direction.
type RejectIndex map[[2]int64]struct{}

// NewRejectIndex keeps only the rejects still live at now.
func NewRejectIndex(rejects []models.PlayerReject, now time.Time) RejectIndex {
	idx := make(RejectIndex, len(rejects)*2)
	for _, r := range rejects {
		if !r.Live(now) {
			continue
		}
		idx[[2]int64{r.RejecterID, r.RejectedID}] = struct{}{}
		idx[[2]int64{r.RejectedID, r.RejecterID}] = struct{}{}
	}
	return idx
}

// Blocked reports whether a and b may not be matched.
func (idx RejectIndex) Blocked(a, b int64) bool {
	_, ok := idx[[2]int64{a, b}]
	return ok
}

// Compatible reports whether two SEARCHING lobbies can be merged:
// same guild and mode, no shared player, intersecting tiers and no live reject
// between any player of a and any player of b.
func Compatible(a, b Candidate, rejects RejectIndex) bool {
	if a.Lobby.ID == b.Lobby.ID {
		return false
	}
	if a.Lobby.GuildID != b.Lobby.GuildID || a.Lobby.Mode != b.Lobby.Mode {
		return false
	}
	if a.Lobby.Status != models.StatusSearching || b.Lobby.Status != models.StatusSearching {
		return false
	}
	for _, pa := range a.Players {
		for _, pb := range b.Players {
			if pa == pb || rejects.Blocked(pa, pb) {
				return false
			}
		}
	}
	_, ok := MatchTier(a, b)
	return ok
}

// MatchTier picks the shared tier the match is made on: the one closest to both
// anchors, then the lower weight, then the lower id.
func MatchTier(a, b Candidate) (models.Tier, bool) {
	inB := make(map[int64]bool, len(b.Tiers))
	for _, t := range b.Tiers {
		inB[t.ID] = true
	}
	var shared []models.Tier
	for _, t := range a.Tiers {
		if inB[t.ID] {
			shared = append(shared, t)
		}
	}
	if len(shared) == 0 {
		return models.Tier{}, false
	}

	aa, ab := a.anchor(), b.anchor()
	cost := func(t models.Tier) int { return abs(t.Weight-aa) + abs(t.Weight-ab) }
	sort.Slice(shared, func(i, j int) bool {
		ci, cj := cost(shared[i]), cost(shared[j])
		if ci != cj {
			return ci < cj
		}
		if shared[i].Weight != shared[j].Weight {
			return shared[i].Weight < shared[j].Weight
		}
		return shared[i].ID < shared[j].ID
	})
	return shared[0], true
}

// BestOpponent returns the compatible lobby of pool that a should be matched with:
// smallest anchor weight difference, then oldest lobby, then lowest id.
func BestOpponent(a Candidate, pool []Candidate, rejects RejectIndex) (Candidate, models.Tier, bool) {
	var (
		best     Candidate
		bestTier models.Tier
		found    bool
	)
	for _, b := range pool {
		if !Compatible(a, b, rejects) {
			continue
		}
		if found && !better(a, b, best) {
			continue
		}
		tier, _ := MatchTier(a, b)
		best, bestTier, found = b, tier, true
	}
	return best, bestTier, found
}

// better reports whether b is a strictly better opponent for a than cur.
func better(a, b, cur Candidate) bool {
	db, dc := abs(a.anchor()-b.anchor()), abs(a.anchor()-cur.anchor())
	if db != dc {
		return db < dc
	}
	return b.olderThan(cur)
}

// Pairing is a planned match. Host is the older lobby and survives the merge.
type Pairing struct {
	Host  Candidate
	Guest Candidate
	Tier  models.Tier
}

// PlanPairings walks the pool oldest first and greedily pairs every lobby with its
// best remaining opponent. Each lobby appears in at most one pairing.
func PlanPairings(pool []Candidate, rejects RejectIndex) []Pairing {
	ordered := make([]Candidate, len(pool))
	copy(ordered, pool)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].olderThan(ordered[j]) })

	taken := make(map[int64]bool, len(ordered))
	var pairings []Pairing
	for i, a := range ordered {
		if taken[a.Lobby.ID] {
			continue
		}
		var rest []Candidate
		for _, b := range ordered[i+1:] {
			if !taken[b.Lobby.ID] {
				rest = append(rest, b)
			}
		}
		b, tier, ok := BestOpponent(a, rest, rejects)
		if !ok {
			continue
		}
		taken[a.Lobby.ID], taken[b.Lobby.ID] = true, true
		pairings = append(pairings, Pairing{Host: a, Guest: b, Tier: tier})
	}
	return pairings
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
