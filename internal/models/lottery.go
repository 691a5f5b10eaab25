package models

// Person is a roster member waiting for, or holding, a card.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group Group  `json:"group"`
}

// Result is a committed pairing of a person and a card. PersonName is a
// snapshot taken at draw time so later roster changes do not rewrite history.
type Result struct {
	PersonID   string `json:"personId"`
	PersonName string `json:"personName"`
	Card       Card   `json:"card"`
}

// Group returns the group whose deck the result's card came from.
func (r Result) Group() Group {
	g, _ := GroupOfCard(r.Card.ID)
	return g
}

// ShiftDefinition maps a named holiday slot to the card that claims it.
type ShiftDefinition struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RequiredCard string `json:"requiredCard"`
}
