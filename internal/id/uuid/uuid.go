// Package uuid generates run identifiers and IndexNow keys.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator creates identifiers backed by google/uuid.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a time-ordered UUIDv7 string, used to tag one command run.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewKey returns a random 32 character hex key suitable for IndexNow,
// which accepts 8-128 characters of [a-zA-Z0-9-].
func (Generator) NewKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}
