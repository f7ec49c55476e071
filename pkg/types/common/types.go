// Package common holds the small shared identifier vocabulary used across
// the domain and infrastructure layers.
package common

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a string alias for UUID v4.
type ID string

// UserID is a string alias for a user identifier.  The engine uses the
// special value SystemUser for annotations it produces itself.
type UserID string

// SystemUser marks engine-produced annotations that have not been confirmed
// by a human reviewer.
const SystemUser UserID = "system"

// Validate checks if the ID is a valid UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}
	return nil
}

// NewID generates a new UUID v4.
func NewID() ID {
	return ID(uuid.New().String())
}
