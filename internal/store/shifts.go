package store

import (
	"strings"

	"github.com/google/uuid"
	"shiftdraw/internal/models"
)

// A shift import row is a header when its first field starts with one of
// headerPrefixes or equals one of headerWords.
var (
	headerPrefixes = []string{"班次", "休假"}
	headerWords    = []string{"shift", "name"}
)

// Shifts owns the mapping from holiday slot to required card.
type Shifts struct {
	shifts []models.ShiftDefinition
}

// NewShifts creates an empty mapping table.
func NewShifts() *Shifts {
	return &Shifts{shifts: make([]models.ShiftDefinition, 0)}
}

// Add maps a shift name to a card id, which must exist in one of the decks.
func (s *Shifts) Add(name, requiredCard string) (models.ShiftDefinition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ShiftDefinition{}, models.ErrEmptyName
	}
	if _, _, ok := models.LookupCard(requiredCard); !ok {
		return models.ShiftDefinition{}, &models.InvalidCardIDError{ID: requiredCard}
	}
	shift := models.ShiftDefinition{ID: uuid.New().String(), Name: name, RequiredCard: requiredCard}
	s.shifts = append(s.shifts, shift)
	return shift, nil
}

// AddFor maps a shift to the card named by a group and a rank-or-joker token.
func (s *Shifts) AddFor(name string, group models.Group, token string) (models.ShiftDefinition, error) {
	if !group.Valid() {
		return models.ShiftDefinition{}, models.ErrUnknownGroup
	}
	return s.Add(name, models.CardForToken(group, token))
}

// BulkImport reads "name, groupHint, rankToken" lines. Header rows and
// lines with fewer than three fields are skipped without complaint.
func (s *Shifts) BulkImport(raw string) []models.ShiftDefinition {
	imported := make([]models.ShiftDefinition, 0)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := lineSplitter.Split(line, -1)
		if len(parts) < 3 || isHeaderField(parts[0]) {
			continue
		}
		group := models.ResolveGroupHint(parts[1], models.GroupCamera)
		shift, err := s.AddFor(parts[0], group, strings.TrimSpace(parts[2]))
		if err != nil {
			continue
		}
		imported = append(imported, shift)
	}
	return imported
}

func isHeaderField(field string) bool {
	field = strings.ToLower(strings.TrimSpace(field))
	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(field, prefix) {
			return true
		}
	}
	for _, word := range headerWords {
		if field == word {
			return true
		}
	}
	return false
}

// Remove deletes a shift by id.
func (s *Shifts) Remove(id string) error {
	for i, shift := range s.shifts {
		if shift.ID == id {
			s.shifts = append(s.shifts[:i], s.shifts[i+1:]...)
			return nil
		}
	}
	return models.ErrShiftNotFound
}

// List returns the shifts in the order they were added.
func (s *Shifts) List() []models.ShiftDefinition {
	out := make([]models.ShiftDefinition, len(s.shifts))
	copy(out, s.shifts)
	return out
}

// Len is the number of shifts.
func (s *Shifts) Len() int {
	return len(s.shifts)
}

// Clear empties the table.
func (s *Shifts) Clear() {
	s.shifts = make([]models.ShiftDefinition, 0)
}
