package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/logger"
	"shiftdraw/internal/models"
	"shiftdraw/internal/store"
)

// LotterySession holds the data for a single user/tenant.
type LotterySession struct {
	mu sync.Mutex

	Roster  *store.Roster
	Results *store.Results
	Shifts  *store.Shifts

	rng     *rand.Rand
	reveals map[models.Group]pendingReveal

	LastActivity time.Time
}

// pendingReveal is the latest draw of a group whose cards are still face down.
type pendingReveal struct {
	at     time.Time
	people map[string]bool
}

// revealing reports whether any group of the session is still being revealed.
func (session *LotterySession) revealing(now time.Time) bool {
	for _, r := range session.reveals {
		if now.Before(r.at) {
			return true
		}
	}
	return false
}

// LotteryService manages multiple lottery sessions.
type LotteryService struct {
	mu       sync.RWMutex
	sessions map[string]*LotterySession // Key: tenantID

	revealDelay time.Duration
	sessionTTL  time.Duration
	now         func() time.Time
	newRand     func() *rand.Rand
}

// Option configures a LotteryService.
type Option func(*LotteryService)

// WithRevealDelay sets how long freshly drawn cards stay face down.
func WithRevealDelay(d time.Duration) Option {
	return func(s *LotteryService) { s.revealDelay = d }
}

// WithSessionTTL sets how long an idle session survives the janitor.
func WithSessionTTL(d time.Duration) Option {
	return func(s *LotteryService) { s.sessionTTL = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *LotteryService) { s.now = now }
}

// WithRandSeed makes every new session shuffle from the same fixed seed.
func WithRandSeed(seed int64) Option {
	return func(s *LotteryService) {
		s.newRand = func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
	}
}

// NewLotteryService creates and initializes a new LotteryService.
func NewLotteryService(opts ...Option) *LotteryService {
	s := &LotteryService{
		sessions:    make(map[string]*LotterySession),
		revealDelay: 1200 * time.Millisecond,
		sessionTTL:  time.Hour,
		now:         time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getSession returns a session for a tenant, creating one if it doesn't exist.
func (s *LotteryService) getSession(tenantID string) *LotterySession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[tenantID]
	if !exists {
		session = &LotterySession{
			Roster:  store.NewRoster(),
			Results: store.NewResults(),
			Shifts:  store.NewShifts(),
			rng:     s.newRand(),
			reveals: make(map[models.Group]pendingReveal),
		}
		s.sessions[tenantID] = session
	}
	session.LastActivity = s.now()
	return session
}

// withSession runs fn while holding the tenant's session lock, so each
// operation on a tenant completes before the next one starts.
func (s *LotteryService) withSession(tenantID string, fn func(*LotterySession)) {
	session := s.getSession(tenantID)
	session.mu.Lock()
	defer session.mu.Unlock()
	fn(session)
}

// RosterEntry is a roster member together with their draw status.
type RosterEntry struct {
	models.Person
	Drawn bool         `json:"drawn"`
	Card  *models.Card `json:"card,omitempty"`
}

// BulkAddReport is the outcome of a roster import.
type BulkAddReport struct {
	Added      []models.Person `json:"added"`
	Duplicates []string        `json:"duplicates"`
}

// AddPerson adds a single person to a tenant's roster.
func (s *LotteryService) AddPerson(tenantID, name string, group models.Group) (models.Person, error) {
	var (
		person *models.Person
		err    error
	)
	s.withSession(tenantID, func(session *LotterySession) {
		person, err = session.Roster.Add(name, group)
	})
	if err != nil {
		return models.Person{}, err
	}
	logger.Infof("tenant %s: added %s to %s", tenantID, person.Name, person.Group)
	return *person, nil
}

// BulkAddPeople imports "name[, groupHint]" lines into a tenant's roster.
func (s *LotteryService) BulkAddPeople(tenantID, raw string, defaultGroup models.Group) (BulkAddReport, error) {
	if !defaultGroup.Valid() {
		return BulkAddReport{}, models.ErrUnknownGroup
	}
	report := BulkAddReport{Added: make([]models.Person, 0)}
	s.withSession(tenantID, func(session *LotterySession) {
		added, dups := session.Roster.BulkAdd(raw, defaultGroup)
		for _, p := range added {
			report.Added = append(report.Added, *p)
		}
		report.Duplicates = dups
	})
	if len(report.Duplicates) > 0 {
		logger.Warningf("tenant %s: skipped duplicate names %v", tenantID, report.Duplicates)
	}
	logger.Infof("tenant %s: imported %d people", tenantID, len(report.Added))
	return report, nil
}

// RemovePerson takes a person off the roster together with their result.
// A person who already holds a card is only removed when confirmed is set.
func (s *LotteryService) RemovePerson(tenantID, personID string, confirmed bool) error {
	var err error
	s.withSession(tenantID, func(session *LotterySession) {
		if _, ok := session.Roster.Get(personID); !ok {
			err = models.ErrPersonNotFound
			return
		}
		if len(session.Results.Query(store.ByPerson(personID))) > 0 && !confirmed {
			err = models.ErrConfirmationRequired
			return
		}
		// Both stores change under the same session lock.
		if _, err = session.Roster.Remove(personID); err != nil {
			return
		}
		session.Results.RemoveByPerson(personID)
	})
	if err != nil {
		return err
	}
	logger.Infof("tenant %s: removed person %s", tenantID, personID)
	return nil
}

// ClearRoster empties the roster and every result of a tenant. Shifts stay.
func (s *LotteryService) ClearRoster(tenantID string) {
	s.withSession(tenantID, func(session *LotterySession) {
		session.Roster.Clear()
		session.Results.Clear()
		session.reveals = make(map[models.Group]pendingReveal)
	})
	logger.Infof("tenant %s: cleared roster and results", tenantID)
}

// Roster lists a tenant's people with their draw status.
func (s *LotteryService) Roster(tenantID string) []RosterEntry {
	var entries []RosterEntry
	s.withSession(tenantID, func(session *LotterySession) {
		entries = make([]RosterEntry, 0, session.Roster.Len())
		for _, p := range session.Roster.List() {
			entry := RosterEntry{Person: p}
			if rs := session.Results.Query(store.ByPerson(p.ID)); len(rs) > 0 {
				c := rs[0].Card
				entry.Drawn = true
				entry.Card = &c
			}
			entries = append(entries, entry)
		}
	})
	return entries
}

// DrawOutcome describes a committed draw. The new results are already in the
// ledger; RevealAt is when the board turns the cards face up.
type DrawOutcome struct {
	Group    models.Group    `json:"group"`
	Results  []models.Result `json:"results"`
	RevealAt time.Time       `json:"revealAt"`
}

// Draw deals cards to every pending member of group and commits them in one
// batch. Drawing with nobody pending changes nothing, even while a reveal
// runs. Only one draw per tenant may be awaiting its reveal at a time.
func (s *LotteryService) Draw(tenantID string, group models.Group) (*DrawOutcome, error) {
	var (
		outcome *DrawOutcome
		err     error
	)
	s.withSession(tenantID, func(session *LotterySession) {
		now := s.now()
		var planned []models.Result
		planned, err = PlanDraw(session.rng, group, session.Roster.ListGroup(group), session.Results.Query(store.ByGroup(group)))
		if err != nil {
			return
		}
		if len(planned) == 0 {
			outcome = &DrawOutcome{Group: group, Results: make([]models.Result, 0)}
			return
		}
		if session.revealing(now) {
			err = models.ErrDrawInProgress
			return
		}
		if err = session.Results.Append(planned); err != nil {
			return
		}

		reveal := pendingReveal{at: now.Add(s.revealDelay), people: make(map[string]bool, len(planned))}
		for _, r := range planned {
			reveal.people[r.PersonID] = true
		}
		session.reveals[group] = reveal
		outcome = &DrawOutcome{Group: group, Results: planned, RevealAt: reveal.at}
	})
	if err != nil {
		logger.Warningf("tenant %s: draw for %s failed: %v", tenantID, group, err)
		return nil, err
	}
	logger.Infof("tenant %s: drew %d cards for %s", tenantID, len(outcome.Results), group)
	return outcome, nil
}

// BoardSlot is one card-shaped place on a group's draw board.
type BoardSlot struct {
	PersonID   string       `json:"personId"`
	PersonName string       `json:"personName"`
	Drawn      bool         `json:"drawn"`
	FaceUp     bool         `json:"faceUp"`
	Card       *models.Card `json:"card,omitempty"`
}

// Board is the per-group view of the draw table.
type Board struct {
	Group          models.Group `json:"group"`
	Label          string       `json:"label"`
	TotalCards     int          `json:"totalCards"`
	RemainingCards int          `json:"remainingCards"`
	AllDrawn       bool         `json:"allDrawn"`
	Revealing      bool         `json:"revealing"`
	RevealAt       time.Time    `json:"revealAt,omitempty"`
	Slots          []BoardSlot  `json:"slots"`
}

// Board returns the draw board of a group. Cards dealt by the latest draw
// whose reveal time has not come yet are reported face down; earlier cards
// stay face up.
func (s *LotteryService) Board(tenantID string, group models.Group) (Board, error) {
	if !group.Valid() {
		return Board{}, models.ErrUnknownGroup
	}
	var board Board
	s.withSession(tenantID, func(session *LotterySession) {
		reveal := session.reveals[group]
		revealing := s.now().Before(reveal.at)
		results := session.Results.Query(store.ByGroup(group))
		byPerson := make(map[string]models.Card, len(results))
		for _, r := range results {
			byPerson[r.PersonID] = r.Card
		}

		board = Board{
			Group:          group,
			Label:          group.Label(),
			TotalCards:     models.TotalSize(group),
			RemainingCards: models.TotalSize(group) - len(results),
			Revealing:      revealing,
			Slots:          make([]BoardSlot, 0),
		}
		if revealing {
			board.RevealAt = reveal.at
		}

		members := session.Roster.ListGroup(group)
		board.AllDrawn = len(members) > 0
		for _, p := range members {
			slot := BoardSlot{PersonID: p.ID, PersonName: p.Name}
			if c, ok := byPerson[p.ID]; ok {
				slot.Drawn = true
				if !revealing || !reveal.people[p.ID] {
					card := c
					slot.FaceUp = true
					slot.Card = &card
				}
			} else {
				board.AllDrawn = false
			}
			board.Slots = append(board.Slots, slot)
		}
	})
	return board, nil
}

// GroupResults is a group's part of the result listing.
type GroupResults struct {
	Group   models.Group    `json:"group"`
	Label   string          `json:"label"`
	Results []models.Result `json:"results"`
}

// Results returns the ledger grouped by group, joker first then by rank.
func (s *LotteryService) Results(tenantID string) []GroupResults {
	out := make([]GroupResults, 0, len(models.Groups))
	s.withSession(tenantID, func(session *LotterySession) {
		for _, g := range models.Groups {
			out = append(out, GroupResults{
				Group:   g,
				Label:   g.Label(),
				Results: store.SortForDisplay(session.Results.Query(store.ByGroup(g))),
			})
		}
	})
	return out
}

// AddShift maps a shift to the card picked by group and rank-or-joker token.
func (s *LotteryService) AddShift(tenantID, name string, group models.Group, token string) (models.ShiftDefinition, error) {
	var (
		shift models.ShiftDefinition
		err   error
	)
	s.withSession(tenantID, func(session *LotterySession) {
		shift, err = session.Shifts.AddFor(name, group, token)
	})
	if err != nil {
		return models.ShiftDefinition{}, err
	}
	logger.Infof("tenant %s: shift %q requires %s", tenantID, shift.Name, shift.RequiredCard)
	return shift, nil
}

// AddShiftCard maps a shift directly to a card id.
func (s *LotteryService) AddShiftCard(tenantID, name, cardID string) (models.ShiftDefinition, error) {
	var (
		shift models.ShiftDefinition
		err   error
	)
	s.withSession(tenantID, func(session *LotterySession) {
		shift, err = session.Shifts.Add(name, cardID)
	})
	if err != nil {
		return models.ShiftDefinition{}, err
	}
	logger.Infof("tenant %s: shift %q requires %s", tenantID, shift.Name, shift.RequiredCard)
	return shift, nil
}

// BulkImportShifts imports "name, groupHint, rankToken" lines.
func (s *LotteryService) BulkImportShifts(tenantID, raw string) []models.ShiftDefinition {
	var imported []models.ShiftDefinition
	s.withSession(tenantID, func(session *LotterySession) {
		imported = session.Shifts.BulkImport(raw)
	})
	logger.Infof("tenant %s: imported %d shifts", tenantID, len(imported))
	return imported
}

// RemoveShift deletes a shift mapping.
func (s *LotteryService) RemoveShift(tenantID, shiftID string) error {
	var err error
	s.withSession(tenantID, func(session *LotterySession) {
		err = session.Shifts.Remove(shiftID)
	})
	return err
}

// Shifts lists a tenant's shift mappings.
func (s *LotteryService) Shifts(tenantID string) []models.ShiftDefinition {
	var shifts []models.ShiftDefinition
	s.withSession(tenantID, func(session *LotterySession) {
		shifts = session.Shifts.List()
	})
	return shifts
}

// Schedule projects the current results onto the shift table.
func (s *LotteryService) Schedule(tenantID string) []ScheduleEntry {
	var entries []ScheduleEntry
	s.withSession(tenantID, func(session *LotterySession) {
		entries = ProjectSchedule(session.Shifts.List(), session.Results.All())
	})
	return entries
}

// GroupSummary counts a group's progress.
type GroupSummary struct {
	Group          models.Group `json:"group"`
	Label          string       `json:"label"`
	People         int          `json:"people"`
	Drawn          int          `json:"drawn"`
	Pending        int          `json:"pending"`
	TotalCards     int          `json:"totalCards"`
	RemainingCards int          `json:"remainingCards"`
}

// Summary reports people and card counts for every group.
func (s *LotteryService) Summary(tenantID string) []GroupSummary {
	out := make([]GroupSummary, 0, len(models.Groups))
	s.withSession(tenantID, func(session *LotterySession) {
		for _, g := range models.Groups {
			people := len(session.Roster.ListGroup(g))
			drawn := len(session.Results.Query(store.ByGroup(g)))
			out = append(out, GroupSummary{
				Group:          g,
				Label:          g.Label(),
				People:         people,
				Drawn:          drawn,
				Pending:        people - drawn,
				TotalCards:     models.TotalSize(g),
				RemainingCards: models.TotalSize(g) - drawn,
			})
		}
	})
	return out
}

// CleanUpInactiveSessions removes sessions that have been idle longer than the session TTL.
func (s *LotteryService) CleanUpInactiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for tenantID, session := range s.sessions {
		if s.now().Sub(session.LastActivity) > s.sessionTTL {
			logger.Infof("Removing inactive session for tenant: %s", tenantID)
			delete(s.sessions, tenantID)
			removed++
		}
	}
	return removed
}

// ClearSession removes all data associated with a specific tenant.
func (s *LotteryService) ClearSession(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tenantID)
	logger.Infof("Cleared session for tenant: %s", tenantID)
}
