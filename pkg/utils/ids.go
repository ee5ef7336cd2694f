package utils

import "github.com/google/uuid"

// UUIDv7Generator produces time-ordered UUIDs.
type UUIDv7Generator struct{}

// NewID returns a UUIDv7, falling back to a random UUID if the clock
// source fails.
func (UUIDv7Generator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
