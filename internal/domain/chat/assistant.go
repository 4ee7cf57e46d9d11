// Package chat implements the storefront's AI sales assistant: intent and
// suggestion rules, the streamed event protocol and the reply flow around
// a hosted language model.
package chat

import (
	"context"
	"iter"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// Canned replies used when the model cannot answer.
const (
	UnavailableMessage = "I apologize, but I'm experiencing technical difficulties. However, you can browse our products above! What would you like to know about our store?"
	BusyMessage        = "I apologize, but I'm receiving a lot of requests right now! 😅 While I catch my breath, feel free to browse our products above. I'll be back to full speed shortly!"
	TroubleMessage     = "I'm having trouble connecting right now. Please try again in a moment."
)

var (
	// UnavailableSuggestions accompany UnavailableMessage.
	UnavailableSuggestions = []string{"Show me all products", "Browse categories", "Tell me about your store"}
	// BusySuggestions accompany BusyMessage.
	BusySuggestions = []string{"Show me all products", "What categories do you have?", "Tell me about your store"}
	// TroubleSuggestions accompany TroubleMessage.
	TroubleSuggestions = []string{"Show me formal shirts", "What's on sale?", "Show trending products", "Help me find casual wear"}
)

var (
	// ErrRateLimited is returned by a Model when the provider throttles.
	ErrRateLimited = errors.New("language model rate limited")
	// ErrEmptyMessage is returned for a blank shopper message.
	ErrEmptyMessage = errors.New("message is required")
)

// Prompt is a single-turn model request.
type Prompt struct {
	System  string
	Message string
}

// Model streams a completion as text fragments. Iteration stops at the
// first error.
type Model interface {
	Stream(ctx context.Context, p Prompt) iter.Seq2[string, error]
}

// Reply is a complete, non-streamed assistant answer.
type Reply struct {
	Message     string
	Suggestions []string
	Navigation  *Navigation
	// Error is set when the stream reported a failure.
	Error string
}

// Assistant answers shopper messages.
type Assistant struct {
	products product.Repository
	model    Model
	persona  Persona
}

// NewAssistant creates an Assistant. A nil model makes every reply the
// canned unavailable answer.
func NewAssistant(products product.Repository, model Model, persona Persona) *Assistant {
	if persona.Name == "" {
		persona = DefaultPersona
	}
	return &Assistant{products: products, model: model, persona: persona}
}

// Reply returns the whole answer at once. Upstream failures other than
// rate limiting are returned so the caller can serve TroubleMessage.
func (a *Assistant) Reply(ctx context.Context, message string) (*Reply, error) {
	var (
		b     strings.Builder
		reply Reply
	)
	err := a.Stream(ctx, message, func(ev Event) error {
		switch ev.Type {
		case EventToken:
			b.WriteString(ev.Content)
		case EventSuggestions:
			reply.Suggestions = ev.Suggestions
		case EventNavigation:
			reply.Navigation = ev.Navigation
		case EventError:
			return errors.New(ev.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reply.Message = b.String()
	return &reply, nil
}

// Stream answers message as a sequence of events passed to emit. Errors
// are returned only when nothing was emitted yet or emit itself fails;
// a model failure after that point is reported as an error event.
func (a *Assistant) Stream(ctx context.Context, message string, emit func(Event) error) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	lg := zctx.From(ctx)

	if a.model == nil {
		return emitAll(emit,
			TokenEvent(UnavailableMessage),
			SuggestionsEvent(UnavailableSuggestions),
			DoneEvent(),
		)
	}

	products, err := a.products.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	nav := DetectNavigation(message, products)

	prompt := Prompt{System: a.persona.SystemPrompt(products), Message: message}
	tokens := 0
	for tok, err := range a.model.Stream(ctx, prompt) {
		if err != nil {
			switch {
			case tokens == 0 && errors.Is(err, ErrRateLimited):
				lg.Warn("Language model rate limited")
				return emitAll(emit,
					TokenEvent(BusyMessage),
					SuggestionsEvent(BusySuggestions),
					DoneEvent(),
				)
			case tokens == 0:
				return errors.Wrap(err, "model stream")
			default:
				lg.Error("Language model stream failed", zap.Int("tokens", tokens), zap.Error(err))
				return emitAll(emit,
					Event{Type: EventError, Message: TroubleMessage},
					DoneEvent(),
				)
			}
		}
		if tok == "" {
			continue
		}
		if err := emit(TokenEvent(tok)); err != nil {
			return err
		}
		tokens++
	}

	tail := []Event{SuggestionsEvent(Suggestions(message, products))}
	if nav != nil {
		tail = append(tail, NavigationEvent(nav))
	}
	tail = append(tail, DoneEvent())
	return emitAll(emit, tail...)
}

func emitAll(emit func(Event) error, events ...Event) error {
	for _, ev := range events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}
