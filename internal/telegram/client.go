// Package telegram is a minimal Telegram Bot API client covering the
// two surfaces the bot needs: sending HTML messages and long-polling
// chat updates.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// maxMessageLength is the Telegram Bot API limit for message text.
const maxMessageLength = 4096

// Client talks to the Telegram Bot API. Stateless and safe for
// concurrent use.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithLogger replaces slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for the given bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: defaultBaseURL,
		// Long polls hold the connection open; keep the timeout above
		// the getUpdates poll window.
		client: &http.Client{Timeout: 50 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram: encoding %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram: %s failed: %s", method, envelope.Description)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram: decoding %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends HTML-formatted text to a chat. Text longer than
// the API limit is truncated.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength-3] + "..."
	}
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

// GetMe returns the bot's own username; used by the doctor command to
// verify the token.
func (c *Client) GetMe(ctx context.Context) (string, error) {
	var me struct {
		Username string `json:"username"`
	}
	if err := c.call(ctx, "getMe", map[string]any{}, &me); err != nil {
		return "", err
	}
	return me.Username, nil
}

// Update is one long-poll update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From struct {
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	} `json:"from"`
}

// Listen long-polls getUpdates and invokes handler for every incoming
// message until ctx is cancelled. Handler errors are logged and do not
// stop the loop.
func (c *Client) Listen(ctx context.Context, handler func(ctx context.Context, msg *Message) error) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var updates []Update
		err := c.call(ctx, "getUpdates", map[string]any{
			"offset":  offset,
			"timeout": 30,
		}, &updates)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("telegram: getUpdates failed, retrying", "error", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil {
				continue
			}
			if err := handler(ctx, update.Message); err != nil {
				c.logger.Error("telegram: message handler failed",
					"chat", update.Message.Chat.ID, "error", err)
			}
		}
	}
}
