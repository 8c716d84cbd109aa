package entity

import "fmt"

// IntegrityError reports a required entity that is absent, which means an
// event arrived before the event that creates its prerequisites.
type IntegrityError struct {
	Entity string
	ID     string
	Err    error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

func integrity(entity, id string, err error) error {
	return &IntegrityError{Entity: entity, ID: id, Err: err}
}
