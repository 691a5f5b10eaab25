package store

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"shiftdraw/internal/models"
)

// lineSplitter accepts both the ASCII comma and the full-width comma.
var lineSplitter = regexp.MustCompile(`,|，`)

// Roster owns the people taking part in the draw. It is not safe for
// concurrent use; callers serialize access per session.
type Roster struct {
	people []*models.Person // insertion order
	byName map[string]*models.Person
	byID   map[string]*models.Person
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		people: make([]*models.Person, 0),
		byName: make(map[string]*models.Person),
		byID:   make(map[string]*models.Person),
	}
}

// Add puts a single person on the roster. Names are trimmed and must be
// unique across both groups.
func (r *Roster) Add(name string, group models.Group) (*models.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrEmptyName
	}
	if !group.Valid() {
		return nil, models.ErrUnknownGroup
	}
	if _, exists := r.byName[name]; exists {
		return nil, &models.DuplicateNameError{Name: name}
	}
	return r.insert(name, group), nil
}

func (r *Roster) insert(name string, group models.Group) *models.Person {
	p := &models.Person{ID: uuid.New().String(), Name: name, Group: group}
	r.people = append(r.people, p)
	r.byName[name] = p
	r.byID[p.ID] = p
	return p
}

// BulkAdd imports one person per line in the form "name[, groupHint]".
// Names already on the roster or earlier in the same batch are skipped and
// reported as duplicates; the rest of the batch is still added.
func (r *Roster) BulkAdd(raw string, defaultGroup models.Group) (added []*models.Person, duplicates []string) {
	added = make([]*models.Person, 0)
	duplicates = make([]string, 0)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := lineSplitter.Split(line, -1)
		name := strings.TrimSpace(parts[0])
		group := defaultGroup
		if len(parts) > 1 {
			group = models.ResolveGroupHint(parts[1], defaultGroup)
		}
		if name == "" {
			continue
		}

		// The batch is staged into byName as it goes, so in-batch repeats
		// are caught by the same lookup as existing names.
		if _, exists := r.byName[name]; exists {
			duplicates = append(duplicates, name)
			continue
		}
		added = append(added, r.insert(name, group))
	}
	return added, duplicates
}

// Remove deletes a person. Removing their Result is the caller's job.
func (r *Roster) Remove(id string) (*models.Person, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, models.ErrPersonNotFound
	}
	delete(r.byID, id)
	delete(r.byName, p.Name)
	for i, q := range r.people {
		if q.ID == id {
			r.people = append(r.people[:i], r.people[i+1:]...)
			break
		}
	}
	return p, nil
}

// Get returns a person by id.
func (r *Roster) Get(id string) (*models.Person, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// List returns every person in insertion order.
func (r *Roster) List() []models.Person {
	out := make([]models.Person, 0, len(r.people))
	for _, p := range r.people {
		out = append(out, *p)
	}
	return out
}

// ListGroup returns the members of a group in insertion order.
func (r *Roster) ListGroup(group models.Group) []models.Person {
	out := make([]models.Person, 0)
	for _, p := range r.people {
		if p.Group == group {
			out = append(out, *p)
		}
	}
	return out
}

// Len is the number of people on the roster.
func (r *Roster) Len() int {
	return len(r.people)
}

// Clear empties the roster.
func (r *Roster) Clear() {
	r.people = make([]*models.Person, 0)
	r.byName = make(map[string]*models.Person)
	r.byID = make(map[string]*models.Person)
}
