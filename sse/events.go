package sse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kbukum/extkit/event"
	"github.com/kbukum/extkit/extension"
)

// Event names written to the stream.
const (
	EventTypeConnected    = "connected"
	EventTypeKeepAlive    = "keepalive"
	EventTypeInstantiated = "instantiated"
)

// InstantiatedPayload is the data of an "instantiated" event.
type InstantiatedPayload struct {
	ID           string `json:"id"`
	Extension    string `json:"extension"`
	Point        string `json:"point"`
	Name         string `json:"name,omitempty"`
	Version      string `json:"version"`
	Singleton    bool   `json:"singleton"`
	InstanceType string `json:"instance_type"`
}

// Forward returns an event handler that publishes every
// extension.InstantiatedEvent to b. Other events are ignored.
func Forward(b Broadcaster) event.Handler {
	return func(_ context.Context, e event.Event) error {
		ie, ok := e.(*extension.InstantiatedEvent)
		if !ok {
			return nil
		}
		data, err := json.Marshal(InstantiatedPayload{
			ID:           ie.EventID(),
			Extension:    ie.Record.Key(),
			Point:        ie.Record.PointKey(),
			Name:         ie.Record.Name(),
			Version:      ie.Record.Version(),
			Singleton:    ie.Record.Singleton(),
			InstanceType: fmt.Sprintf("%T", ie.Instance),
		})
		if err != nil {
			return err
		}
		b.Broadcast(Message{Extension: ie.Record.Key(), Event: EventTypeInstantiated, Data: data})
		return nil
	}
}
