package util

import (
	"github.com/google/uuid"
)

// NewID returns a time-ordered identifier, so row keys sort by creation.
func NewID(prefix string) string {
	id := uuid.Must(uuid.NewV7()).String()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
