package services

import (
	"shiftdraw/internal/models"
)

// NotDrawnPlaceholder is shown for a shift whose card nobody holds yet.
const NotDrawnPlaceholder = "尚未抽籤"

// ScheduleEntry is one line of the final holiday schedule.
type ScheduleEntry struct {
	ShiftID      string `json:"shiftId"`
	ShiftName    string `json:"shiftName"`
	RequiredCard string `json:"requiredCard"`
	CardLabel    string `json:"cardLabel"`
	GroupLabel   string `json:"groupLabel"`
	PersonName   string `json:"personName"`
	Drawn        bool   `json:"drawn"`
}

// ProjectSchedule joins shifts with results on card id. It keeps no state
// and is meant to be re-run on every read.
func ProjectSchedule(shifts []models.ShiftDefinition, results []models.Result) []ScheduleEntry {
	holder := make(map[string]models.Result, len(results))
	for _, r := range results {
		holder[r.Card.ID] = r
	}

	entries := make([]ScheduleEntry, 0, len(shifts))
	for _, shift := range shifts {
		entry := ScheduleEntry{
			ShiftID:      shift.ID,
			ShiftName:    shift.Name,
			RequiredCard: shift.RequiredCard,
			CardLabel:    shift.RequiredCard,
			PersonName:   NotDrawnPlaceholder,
		}
		if c, g, ok := models.LookupCard(shift.RequiredCard); ok {
			entry.CardLabel = c.String()
			entry.GroupLabel = g.Label()
		}
		if r, ok := holder[shift.RequiredCard]; ok {
			entry.PersonName = r.PersonName
			entry.Drawn = true
		}
		entries = append(entries, entry)
	}
	return entries
}
