package extension

import "github.com/kbukum/extkit/event"

// KindInstantiated is the kind of InstantiatedEvent.
const KindInstantiated = "extension.instantiated"

// InstantiatedEvent is dispatched once per constructed instance, after
// construction and before the instance is returned to the caller.
type InstantiatedEvent struct {
	event.Base
	Record   *Record
	Instance any
}

func newInstantiatedEvent(rec *Record, instance any) *InstantiatedEvent {
	return &InstantiatedEvent{
		Base:     event.NewBase(KindInstantiated),
		Record:   rec,
		Instance: instance,
	}
}
