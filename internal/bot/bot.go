// Package bot is the event-dispatch and policy core. A single
// dispatcher routes named webhook events to per-event handlers; each
// handler reads the immutable payload, consults the brain, and issues
// a bounded set of calls against the repository client and the
// notification sink.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nervosnetwork/nervos-bot/internal/brain"
	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

// Check-run and label names the policies publish.
const (
	dummyCICheckName     = "Dummy CI"
	ciCheckName          = "Nervos CI"
	integrationCheckName = "Nervos Integration"

	hotfixLabel         = "hotfix"
	breakingChangeLabel = "breaking change"
	readyToMergeLabel   = "s:ready-to-merge"
)

// Notifier is the outbound chat sink. Implemented by telegram.Client.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type handlerFunc func(ctx context.Context, rc repository.Client, payload []byte) error

type commandFunc func(ctx context.Context, rc repository.Client, event *commentContext, args string) error

// Bot dispatches webhook events to policy handlers.
type Bot struct {
	brain    *brain.Brain
	notify   Notifier
	logger   *slog.Logger
	login    string // the App's login, e.g. "nervos-bot[bot]"
	handlers map[string]handlerFunc
	commands map[string]commandFunc

	now func() time.Time
}

// New builds the dispatcher. The handler map is fixed here, at
// startup, over the closed event set; anything else is a no-op.
// notify may be nil, disabling chat notifications.
func New(b *brain.Brain, notify Notifier, logger *slog.Logger, login string) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	bot := &Bot{
		brain:  b,
		notify: notify,
		logger: logger,
		login:  login,
		now:    time.Now,
	}
	bot.handlers = map[string]handlerFunc{
		"pull_request":  bot.handlePullRequest,
		"push":          bot.handlePush,
		"issue_comment": bot.handleIssueComment,
		"issues":        bot.handleIssues,
		"check_run":     bot.handleCheckRun,
	}
	bot.commands = map[string]commandFunc{
		"give":        bot.cmdGiveMeFive,
		"dummy-ci":    bot.cmdDummyCI,
		"dummy":       bot.cmdDummy,
		"integration": bot.cmdIntegration,
		"publish":     bot.cmdPublish,
		"help":        bot.cmdHelp,
	}
	return bot
}

// Dispatch routes one webhook delivery. It never returns an error:
// handler failures are logged and swallowed so the front door can
// acknowledge every authenticated delivery. A failure signal would
// only provoke redelivery storms.
func (b *Bot) Dispatch(ctx context.Context, event string, payload []byte, rc repository.Client) {
	handler, ok := b.handlers[event]
	if !ok {
		b.logger.Debug("bot: no handler for event", "event", event)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bot: handler panicked", "event", event, "panic", r)
		}
	}()

	if err := handler(ctx, rc, payload); err != nil {
		b.logger.Error("bot: handler failed", "event", event, "error", err)
	}
}

// appSlug is the App's slug as it appears on check-runs it authored.
func (b *Bot) appSlug() string {
	return strings.TrimSuffix(b.login, "[bot]")
}

// canWrite reports whether user has push access to the repository.
func (b *Bot) canWrite(ctx context.Context, rc repository.Client, repo, user string) (bool, error) {
	permission, err := rc.PermissionLevel(ctx, repo, user)
	if err != nil {
		return false, err
	}
	return permission == "admin" || permission == "write", nil
}

func unmarshalEvent(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
