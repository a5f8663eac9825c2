package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything that can be dispatched.
type Event interface {
	// EventID uniquely identifies this occurrence.
	EventID() string
	// Kind is the dotted event name listeners match against.
	Kind() string
}

// Base carries the fields common to most events and can be embedded.
type Base struct {
	ID         string    `json:"id"`
	EventKind  string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewBase creates a Base with a fresh ID and the current time.
func NewBase(kind string) Base {
	return Base{
		ID:         NewID(),
		EventKind:  kind,
		OccurredAt: time.Now(),
	}
}

func (b Base) EventID() string { return b.ID }
func (b Base) Kind() string    { return b.EventKind }

// NewID returns a random event identifier.
func NewID() string {
	return uuid.New().String()
}
