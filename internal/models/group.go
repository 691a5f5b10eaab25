package models

import (
	"fmt"
	"strings"
)

// Group is one of the two fixed cohorts drawing from their own deck.
type Group string

const (
	GroupCamera   Group = "camera"
	GroupEngineer Group = "engineer"
)

// Groups lists every group in display order.
var Groups = []Group{GroupCamera, GroupEngineer}

// Valid reports whether g is one of the known groups.
func (g Group) Valid() bool {
	return g == GroupCamera || g == GroupEngineer
}

// Label returns the human readable name of the group.
func (g Group) Label() string {
	switch g {
	case GroupCamera:
		return "攝影班"
	case GroupEngineer:
		return "工程班"
	}
	return string(g)
}

// Suit returns the suit of the group's deck.
func (g Group) Suit() Suit {
	switch g {
	case GroupCamera:
		return SuitSpades
	case GroupEngineer:
		return SuitHearts
	}
	return ""
}

// ParseGroup accepts the exact group tag.
func ParseGroup(s string) (Group, error) {
	g := Group(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownGroup, s)
	}
	return g, nil
}

// ResolveGroupHint maps a free-text hint from an import line to a group.
// The letters H and S mean camera, D means engineer. Hints that match
// neither group resolve to fallback.
func ResolveGroupHint(hint string, fallback Group) Group {
	h := strings.TrimSpace(hint)
	if h == "" {
		return fallback
	}
	lower := strings.ToLower(h)
	upper := strings.ToUpper(h)

	switch {
	case strings.Contains(h, "攝") || strings.Contains(lower, "cam") || strings.Contains(lower, "photo") || upper == "H" || upper == "S":
		return GroupCamera
	case strings.Contains(h, "工") || strings.Contains(lower, "eng") || upper == "D":
		return GroupEngineer
	}
	return fallback
}
