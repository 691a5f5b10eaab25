package store

import (
	"sort"

	"shiftdraw/internal/models"
)

// Filter selects results in Query. Zero fields match everything.
type Filter struct {
	Group    models.Group
	PersonID string
	CardID   string
}

// ByGroup selects the results of one group.
func ByGroup(g models.Group) Filter { return Filter{Group: g} }

// ByPerson selects the result held by one person.
func ByPerson(id string) Filter { return Filter{PersonID: id} }

// ByCard selects the result holding one card.
func ByCard(id string) Filter { return Filter{CardID: id} }

func (f Filter) match(r models.Result) bool {
	if f.Group != "" && r.Group() != f.Group {
		return false
	}
	if f.PersonID != "" && r.PersonID != f.PersonID {
		return false
	}
	if f.CardID != "" && r.Card.ID != f.CardID {
		return false
	}
	return true
}

// Results is the ledger of committed draws. Entries are never edited; they
// only leave when their person is removed.
type Results struct {
	entries []models.Result // commit order
}

// NewResults creates an empty ledger.
func NewResults() *Results {
	return &Results{entries: make([]models.Result, 0)}
}

// Append commits a batch atomically. Nothing is stored if any card or
// person in the batch is already used in its group.
func (s *Results) Append(batch []models.Result) error {
	type key struct {
		group models.Group
		id    string
	}
	usedCards := make(map[key]bool)
	usedPeople := make(map[key]bool)
	for _, r := range s.entries {
		g := r.Group()
		usedCards[key{g, r.Card.ID}] = true
		usedPeople[key{g, r.PersonID}] = true
	}

	for _, r := range batch {
		g, ok := models.GroupOfCard(r.Card.ID)
		if !ok {
			return &models.InvalidCardIDError{ID: r.Card.ID}
		}
		if usedCards[key{g, r.Card.ID}] {
			return &models.ConflictError{Group: g, CardID: r.Card.ID}
		}
		if usedPeople[key{g, r.PersonID}] {
			return &models.ConflictError{Group: g, PersonID: r.PersonID}
		}
		usedCards[key{g, r.Card.ID}] = true
		usedPeople[key{g, r.PersonID}] = true
	}

	s.entries = append(s.entries, batch...)
	return nil
}

// RemoveByPerson drops every result of a person and reports how many went.
func (s *Results) RemoveByPerson(personID string) int {
	kept := make([]models.Result, 0, len(s.entries))
	for _, r := range s.entries {
		if r.PersonID != personID {
			kept = append(kept, r)
		}
	}
	removed := len(s.entries) - len(kept)
	s.entries = kept
	return removed
}

// Query returns the results matching f in commit order.
func (s *Results) Query(f Filter) []models.Result {
	out := make([]models.Result, 0)
	for _, r := range s.entries {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// All returns a copy of the ledger.
func (s *Results) All() []models.Result {
	return s.Query(Filter{})
}

// Len is the number of committed results.
func (s *Results) Len() int {
	return len(s.entries)
}

// Clear empties the ledger.
func (s *Results) Clear() {
	s.entries = make([]models.Result, 0)
}

// SortForDisplay orders results joker first, then by ascending rank.
func SortForDisplay(results []models.Result) []models.Result {
	sorted := make([]models.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Card, sorted[j].Card
		if a.IsJoker() != b.IsJoker() {
			return a.IsJoker()
		}
		return a.Rank < b.Rank
	})
	return sorted
}
