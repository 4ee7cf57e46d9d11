package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/chat"
	"github.com/xenking/storefront/pkg/sse"
)

// chat answers a shopper message. The reply is streamed as server-sent
// events when the client accepts an event stream or sets "stream": true.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var (
		message string
		stream  = strings.Contains(r.Header.Get("Accept"), sse.ContentType)
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "message":
			message, err = d.Str()
		case "stream":
			stream, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if stream {
		h.streamChat(w, r, message)
		return
	}

	// The server write timeout is shorter than a full model completion.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(h.cfg.ReplyTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		zctx.From(r.Context()).Debug("Extend write deadline", zap.Error(err))
	}

	reply, err := h.Assistant.Reply(r.Context(), message)
	if err != nil {
		h.chatFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(reply.Message)
		e.FieldStart("suggestions")
		strs(e, reply.Suggestions)
		if reply.Navigation != nil {
			e.FieldStart("navigation")
			reply.Navigation.Encode(e)
		}
		e.ObjEnd()
	})
}

func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, message string) {
	sw := sse.NewWriter(w, h.cfg.StreamTimeout)
	emitted := false
	err := h.Assistant.Stream(r.Context(), message, func(ev chat.Event) error {
		emitted = true
		return sw.Data(ev.Bytes())
	})
	switch {
	case err == nil:
	case !emitted:
		h.chatFailed(w, r, err)
	default:
		// Headers are gone; the client sees a truncated stream.
		zctx.From(r.Context()).Warn("Chat stream interrupted", zap.Error(err))
	}
}

// chatFailed answers with the canned trouble reply. An empty message is a
// plain client error.
func (h *Handler) chatFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, chat.ErrEmptyMessage) {
		writeError(w, r, err)
		return
	}
	zctx.From(r.Context()).Error("Chat failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(http.StatusInternalServerError)
		e.FieldStart("message")
		e.Str(chat.TroubleMessage)
		e.FieldStart("suggestions")
		strs(e, chat.TroubleSuggestions)
		e.ObjEnd()
	})
}
