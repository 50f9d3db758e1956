// Package notify posts tool failures to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

const (
	defaultTimeout = 5 * time.Second
	maxArgsChars   = 300
	maxErrorChars  = 500
)

// Notifier reports tool failures. Implementations must not block the caller
// for long and must never fail the tool response.
type Notifier interface {
	ToolFailed(ctx context.Context, tool string, args map[string]any, err error)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) ToolFailed(context.Context, string, map[string]any, error) {}

// Slack posts Block Kit messages to an incoming webhook.
type Slack struct {
	WebhookURL string
	Server     string
	HTTP       *http.Client
}

// New returns a Slack notifier, or Nop when webhookURL is empty.
func New(webhookURL, server string) Notifier {
	if strings.TrimSpace(webhookURL) == "" {
		return Nop{}
	}
	return &Slack{
		WebhookURL: webhookURL,
		Server:     server,
		HTTP:       &http.Client{Timeout: defaultTimeout},
	}
}

// ToolFailed sends the notification in the background. Delivery errors are
// logged at debug level only.
func (s *Slack) ToolFailed(ctx context.Context, tool string, args map[string]any, err error) {
	payload, marshalErr := json.Marshal(s.message(tool, args, err))
	if marshalErr != nil {
		return
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
		defer cancel()
		if sendErr := s.post(sendCtx, payload); sendErr != nil {
			if logger := observability.Logger(); logger != nil {
				logger.Debug("Slack notification failed", zap.String("tool", tool), zap.Error(sendErr))
			}
		}
	}()
}

func (s *Slack) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

type textObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type block struct {
	Type   string       `json:"type"`
	Text   *textObject  `json:"text,omitempty"`
	Fields []textObject `json:"fields,omitempty"`
}

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

func (s *Slack) message(tool string, args map[string]any, err error) message {
	errText := "unknown error"
	if err != nil {
		errText = err.Error()
	}

	return message{
		Text: fmt.Sprintf("Tool error in `%s`", s.Server),
		Blocks: []block{
			{Type: "header", Text: &textObject{Type: "plain_text", Text: "Tool Error", Emoji: true}},
			{Type: "section", Fields: []textObject{
				{Type: "mrkdwn", Text: "*Server:*\n" + s.Server},
				{Type: "mrkdwn", Text: "*Tool:*\n" + tool},
			}},
			{Type: "section", Text: &textObject{Type: "mrkdwn", Text: "*Arguments:*\n```" + clip(formatArgs(args), maxArgsChars) + "```"}},
			{Type: "section", Text: &textObject{Type: "mrkdwn", Text: "*Error:*\n```" + clip(errText, maxErrorChars) + "```"}},
		},
	}
}

func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
