package chat

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// EventType tags a streamed chat event.
type EventType string

// Event types, in the order a stream emits them: any number of tokens,
// one suggestions event, an optional navigation event and a final done.
// An error event may precede done when the model fails mid-reply.
const (
	EventToken       EventType = "token"
	EventSuggestions EventType = "suggestions"
	EventNavigation  EventType = "navigation"
	EventError       EventType = "error"
	EventDone        EventType = "done"
)

// Navigation asks the client to open a storefront page.
type Navigation struct {
	Path    string
	Message string
}

// Event is one streamed chat event. Only the fields of its Type are set.
type Event struct {
	Type        EventType
	Content     string
	Suggestions []string
	Navigation  *Navigation
	Message     string
}

// TokenEvent returns a token event.
func TokenEvent(content string) Event { return Event{Type: EventToken, Content: content} }

// SuggestionsEvent returns a suggestions event.
func SuggestionsEvent(s []string) Event { return Event{Type: EventSuggestions, Suggestions: s} }

// NavigationEvent returns a navigation event.
func NavigationEvent(n *Navigation) Event { return Event{Type: EventNavigation, Navigation: n} }

// DoneEvent returns the terminal event.
func DoneEvent() Event { return Event{Type: EventDone} }

// Encode writes the wire form of the event.
func (ev Event) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(ev.Type))
	switch ev.Type {
	case EventToken:
		e.FieldStart("content")
		e.Str(ev.Content)
	case EventSuggestions:
		e.FieldStart("suggestions")
		encodeStrings(e, ev.Suggestions)
	case EventNavigation:
		e.FieldStart("command")
		ev.Navigation.Encode(e)
	case EventError:
		e.FieldStart("message")
		e.Str(ev.Message)
	}
	e.ObjEnd()
}

// Bytes returns the encoded event.
func (ev Event) Bytes() []byte {
	var e jx.Encoder
	ev.Encode(&e)
	return e.Bytes()
}

// Encode writes the navigation command object.
func (n *Navigation) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str("navigation")
	if n != nil {
		e.FieldStart("path")
		e.Str(n.Path)
		e.FieldStart("message")
		e.Str(n.Message)
	}
	e.ObjEnd()
}

// Decode reads a navigation command object.
func (n *Navigation) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "path":
			n.Path, err = d.Str()
		case "message":
			n.Message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// Decode reads an event. Unknown types and events missing their
// type-specific field are rejected.
func (ev *Event) Decode(d *jx.Decoder) error {
	*ev = Event{}
	var hasContent, hasSuggestions bool
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			s, err := d.Str()
			if err != nil {
				return err
			}
			ev.Type = EventType(s)
		case "content":
			s, err := d.Str()
			if err != nil {
				return err
			}
			ev.Content = s
			hasContent = true
		case "suggestions":
			s, err := decodeStrings(d)
			if err != nil {
				return err
			}
			ev.Suggestions = s
			hasSuggestions = true
		case "command":
			ev.Navigation = &Navigation{}
			return ev.Navigation.Decode(d)
		case "message":
			s, err := d.Str()
			if err != nil {
				return err
			}
			ev.Message = s
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "decode chat event")
	}

	switch ev.Type {
	case EventToken:
		if !hasContent {
			return errors.New("token event without content")
		}
	case EventSuggestions:
		if !hasSuggestions {
			return errors.New("suggestions event without suggestions")
		}
	case EventNavigation:
		if ev.Navigation == nil || ev.Navigation.Path == "" {
			return errors.New("navigation event without path")
		}
	case EventError, EventDone:
	case "":
		return errors.New("chat event without type")
	default:
		return errors.Errorf("unknown chat event type %q", ev.Type)
	}
	return nil
}

// DecodeEvent decodes one event payload.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := ev.Decode(jx.DecodeBytes(data)); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func encodeStrings(e *jx.Encoder, s []string) {
	e.ArrStart()
	for _, v := range s {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	if err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}
