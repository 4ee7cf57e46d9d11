package chat

import (
	"io"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/pkg/sse"
)

// Consume reads a chat event stream until done, calling onEvent for every
// decoded event when it is non-nil, and returns the accumulated reply.
func Consume(r *sse.Reader, onEvent func(Event)) (*Reply, error) {
	var (
		b     strings.Builder
		reply Reply
	)
	for {
		data, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			return nil, err
		}
		if onEvent != nil {
			onEvent(ev)
		}

		switch ev.Type {
		case EventToken:
			b.WriteString(ev.Content)
		case EventSuggestions:
			reply.Suggestions = ev.Suggestions
		case EventNavigation:
			reply.Navigation = ev.Navigation
		case EventError:
			reply.Error = ev.Message
		case EventDone:
			reply.Message = b.String()
			return &reply, nil
		}
	}
}
