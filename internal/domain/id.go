package domain

import (
	"github.com/google/uuid"
)

// GUIDPrefix is the namespace prefix of every file identifier minted by the engine.
const GUIDPrefix = "dg.4DFC/"

// NewID generates a UUIDv7 string for application-owned entities (runs).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewFileGUID generates a random file identifier of the form dg.4DFC/<uuid>.
func NewFileGUID() string {
	return GUIDPrefix + uuid.NewString()
}
