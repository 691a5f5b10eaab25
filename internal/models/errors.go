package models

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrDuplicateName        = errors.New("name already exists in roster")
	ErrEmptyName            = errors.New("name cannot be empty")
	ErrUnknownGroup         = errors.New("unknown group")
	ErrPersonNotFound       = errors.New("person not found")
	ErrShiftNotFound        = errors.New("shift not found")
	ErrDeckExhausted        = errors.New("not enough cards left in deck")
	ErrInvalidCardID        = errors.New("card id does not exist in any deck")
	ErrConflict             = errors.New("card or person already has a result")
	ErrConfirmationRequired = errors.New("person already has a drawn card, confirmation required")
	ErrDrawInProgress       = errors.New("a draw is still being revealed")
	ErrExternalService      = errors.New("external service failed")
)

// DuplicateNameError is returned when a name is already on the roster.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateName, e.Name)
}

func (e *DuplicateNameError) Is(target error) bool { return target == ErrDuplicateName }

// DeckExhaustedError reports a draw that needs more cards than remain.
type DeckExhaustedError struct {
	Group     Group
	Needed    int
	Available int
}

func (e *DeckExhaustedError) Error() string {
	return fmt.Sprintf("%s for %s: %d people pending, %d cards available", ErrDeckExhausted, e.Group, e.Needed, e.Available)
}

func (e *DeckExhaustedError) Is(target error) bool { return target == ErrDeckExhausted }

// InvalidCardIDError is returned when a shift references a card no deck holds.
type InvalidCardIDError struct {
	ID string
}

func (e *InvalidCardIDError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidCardID, e.ID)
}

func (e *InvalidCardIDError) Is(target error) bool { return target == ErrInvalidCardID }

// ConflictError guards the result ledger against reuse of a card or person.
type ConflictError struct {
	Group    Group
	CardID   string
	PersonID string
}

func (e *ConflictError) Error() string {
	if e.CardID != "" {
		return fmt.Sprintf("%s: card %s in group %s", ErrConflict, e.CardID, e.Group)
	}
	return fmt.Sprintf("%s: person %s in group %s", ErrConflict, e.PersonID, e.Group)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ExternalServiceError wraps a failure of an outside collaborator.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrExternalService, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrExternalService, e.Op, e.Err)
}

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

func (e *ExternalServiceError) Unwrap() error { return e.Err }
