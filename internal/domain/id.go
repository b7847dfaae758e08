package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for application-owned records. UUIDv7 ids
// sort by creation time, which keeps event listings stable.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
