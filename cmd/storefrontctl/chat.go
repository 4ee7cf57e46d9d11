package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/spf13/cobra"

	"github.com/xenking/storefront/internal/domain/chat"
	"github.com/xenking/storefront/pkg/sse"
)

func newChatCmd() *cobra.Command {
	var (
		baseURL string
		token   string
		guestID string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "chat MESSAGE",
		Short: "Ask the sales assistant and print the streamed reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := newChatRequest(cmd, baseURL, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			if guestID != "" {
				req.Header.Set("X-Guest-ID", guestID)
			}

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return errors.Wrap(err, "send")
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return errors.Errorf("assistant returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
			}
			return printStream(cmd.OutOrStdout(), resp.Body)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "storefront base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&guestID, "guest", "", "guest id sent as X-Guest-ID")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall request timeout")
	return cmd
}

func newChatRequest(cmd *cobra.Command, baseURL, message string) (*http.Request, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("message")
	e.Str(message)
	e.FieldStart("stream")
	e.Bool(true)
	e.ObjEnd()

	url := strings.TrimRight(baseURL, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", sse.ContentType)
	return req, nil
}

// printStream writes tokens as they arrive, then the suggestions and the
// navigation hint of the finished reply.
func printStream(out io.Writer, body io.Reader) error {
	reply, err := chat.Consume(sse.NewReader(body), func(ev chat.Event) {
		if ev.Type == chat.EventToken {
			_, _ = io.WriteString(out, ev.Content)
		}
	})
	if err != nil {
		return errors.Wrap(err, "read stream")
	}
	_, _ = fmt.Fprintln(out)

	if reply.Error != "" {
		_, _ = fmt.Fprintf(out, "error: %s\n", reply.Error)
	}
	for _, s := range reply.Suggestions {
		_, _ = fmt.Fprintf(out, "> %s\n", s)
	}
	if n := reply.Navigation; n != nil {
		_, _ = fmt.Fprintf(out, "-> %s (%s)\n", n.Path, n.Message)
	}
	return nil
}
