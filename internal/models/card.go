package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Suit marks which deck a card belongs to.
type Suit string

const (
	SuitSpades Suit = "S"
	SuitHearts Suit = "H"
	SuitJoker  Suit = "X"
)

// JokerID is the identity of the single joker, which lives in the camera deck.
const JokerID = "Joker"

const (
	cameraRanks   = 10
	engineerRanks = 7
)

// Card is an immutable playing card. Two cards are equal when their IDs are.
type Card struct {
	ID   string `json:"id"`
	Suit Suit   `json:"suit"`
	Rank int    `json:"rank"` // 0 for the joker
}

// IsJoker reports whether c is the joker.
func (c Card) IsJoker() bool {
	return c.ID == JokerID
}

// String renders the card the way it is shown on the board, e.g. "♠ A" or "JOKER".
func (c Card) String() string {
	if c.IsJoker() {
		return "JOKER"
	}
	icon := string(c.Suit)
	switch c.Suit {
	case SuitSpades:
		icon = "♠"
	case SuitHearts:
		icon = "♥"
	}
	rank := strconv.Itoa(c.Rank)
	if c.Rank == 1 {
		rank = "A"
	}
	return icon + " " + rank
}

// CardID builds the identity of a numbered card, e.g. "S-3".
func CardID(suit Suit, rank int) string {
	return fmt.Sprintf("%s-%d", suit, rank)
}

// DeckFor returns the fixed ordered deck of a group. The slice is a fresh
// copy on every call; unknown groups get an empty deck.
func DeckFor(g Group) []Card {
	switch g {
	case GroupCamera:
		deck := make([]Card, 0, cameraRanks+1)
		for rank := 1; rank <= cameraRanks; rank++ {
			deck = append(deck, Card{ID: CardID(SuitSpades, rank), Suit: SuitSpades, Rank: rank})
		}
		return append(deck, Card{ID: JokerID, Suit: SuitJoker, Rank: 0})
	case GroupEngineer:
		deck := make([]Card, 0, engineerRanks)
		for rank := 1; rank <= engineerRanks; rank++ {
			deck = append(deck, Card{ID: CardID(SuitHearts, rank), Suit: SuitHearts, Rank: rank})
		}
		return deck
	}
	return nil
}

// TotalSize is the number of cards in a group's deck.
func TotalSize(g Group) int {
	switch g {
	case GroupCamera:
		return cameraRanks + 1
	case GroupEngineer:
		return engineerRanks
	}
	return 0
}

// MaxRank is the highest numbered card of a group's deck.
func MaxRank(g Group) int {
	switch g {
	case GroupCamera:
		return cameraRanks
	case GroupEngineer:
		return engineerRanks
	}
	return 0
}

// LookupCard finds a card by id across both decks.
func LookupCard(id string) (Card, Group, bool) {
	for _, g := range Groups {
		for _, c := range DeckFor(g) {
			if c.ID == id {
				return c, g, true
			}
		}
	}
	return Card{}, "", false
}

// GroupOfCard returns the group whose deck holds the card id.
func GroupOfCard(id string) (Group, bool) {
	_, g, ok := LookupCard(id)
	return g, ok
}

// IsJokerToken reports whether an import/form token designates the joker.
func IsJokerToken(token string) bool {
	t := strings.TrimSpace(token)
	return strings.EqualFold(t, "joker") || t == "0" || t == "鬼牌"
}

// CardForToken resolves a rank-or-joker token for a group into a card id.
// Digits are extracted from the token; a missing rank becomes 1 and ranks
// are clamped to the group's range.
func CardForToken(g Group, token string) string {
	if IsJokerToken(token) {
		return JokerID
	}
	var digits strings.Builder
	for _, r := range token {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	limit := MaxRank(g)
	rank, err := strconv.Atoi(digits.String())
	var numErr *strconv.NumError
	switch {
	case errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange):
		rank = limit
	case err != nil || rank < 1:
		rank = 1
	}
	if rank > limit {
		rank = limit
	}
	return CardID(g.Suit(), rank)
}
