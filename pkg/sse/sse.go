// Package sse implements the data-only subset of server-sent events used
// for streamed chat replies and upstream LLM completions.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Writer writes "data:" events to an HTTP response and flushes each one.
type Writer struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
	started bool
}

// NewWriter wraps w. A positive timeout is applied as a fresh write
// deadline before every event.
func NewWriter(w http.ResponseWriter, timeout time.Duration) *Writer {
	return &Writer{w: w, rc: http.NewResponseController(w), timeout: timeout}
}

func (w *Writer) start() {
	if w.started {
		return
	}
	w.started = true
	h := w.w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.w.WriteHeader(http.StatusOK)
}

// Data writes one event whose payload is data. Payloads must not contain
// newlines.
func (w *Writer) Data(data []byte) error {
	if bytes.ContainsAny(data, "\r\n") {
		return errors.New("sse: payload contains a newline")
	}
	w.start()
	if w.timeout > 0 {
		if err := w.rc.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return errors.Wrap(err, "set write deadline")
		}
	}

	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	if _, err := w.w.Write(buf); err != nil {
		return errors.Wrap(err, "write event")
	}
	if err := w.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "flush event")
	}
	return nil
}

// Reader reads the data payloads of an event stream. Comment, event, id
// and retry lines are skipped; multiple data lines of one event are joined
// with "\n".
type Reader struct {
	sc *bufio.Scanner
}

// NewReader creates a Reader over r. Lines may be up to 1MiB long.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{sc: sc}
}

// Next returns the payload of the next event that has data, or io.EOF.
func (r *Reader) Next() ([]byte, error) {
	var (
		data    []byte
		hasData bool
	)
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			if hasData {
				return data, nil
			}
			continue
		}
		value, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		value = bytes.TrimPrefix(value, []byte(" "))
		if hasData {
			data = append(data, '\n')
		}
		data = append(data, value...)
		hasData = true
	}
	if err := r.sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read event stream")
	}
	if hasData {
		return data, nil
	}
	return nil, io.EOF
}
