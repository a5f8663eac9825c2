package sse

// Broadcaster delivers a message to every subscribed client whose filter
// matches. Implementations must not block the caller.
type Broadcaster interface {
	Broadcast(msg Message)
}
