// Package events publishes domain events to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/go-faster/jx"
)

// Event types.
const (
	OrderCreated     = "order.created"
	OrderPaid        = "order.paid"
	OrderFailed      = "order.failed"
	ProductRestocked = "product.restocked"
)

// Payload is the domain-specific body of an event.
type Payload interface {
	Encode(e *jx.Encoder)
}

// Event is a single published fact. Key selects the partition so that
// events about the same entity stay ordered.
type Event struct {
	Type    string
	Key     string
	Time    time.Time
	Payload Payload
}

// Encode writes the event envelope.
func (ev Event) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(ev.Type)
	e.FieldStart("key")
	e.Str(ev.Key)
	e.FieldStart("time")
	e.Str(ev.Time.UTC().Format(time.RFC3339Nano))
	if ev.Payload != nil {
		e.FieldStart("data")
		ev.Payload.Encode(e)
	}
	e.ObjEnd()
}

// Bytes returns the encoded event.
func (ev Event) Bytes() []byte {
	var e jx.Encoder
	ev.Encode(&e)
	return e.Bytes()
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, ...Event) error { return nil }

var _ Publisher = Nop{}
