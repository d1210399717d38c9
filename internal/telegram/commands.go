package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
)

// Sender is the outbound half of Client, split out so command handling
// can be tested without HTTP.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// NewCommandHandler returns a message handler for the chat listener.
// issueRepo is the "owner/name" repository that /issue links into; it
// may be empty, disabling the command.
func NewCommandHandler(sender Sender, issueRepo string) func(ctx context.Context, msg *Message) error {
	return func(ctx context.Context, msg *Message) error {
		command, args, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")

		switch command {
		case "/start":
			return sender.SendMessage(ctx, msg.Chat.ID,
				fmt.Sprintf("Hello, %s", html.EscapeString(msg.From.FirstName)))
		case "/stop":
			return sender.SendMessage(ctx, msg.Chat.ID,
				fmt.Sprintf("Bye, %s", html.EscapeString(msg.From.FirstName)))
		case "/issue":
			if issueRepo == "" {
				return nil
			}
			number, err := strconv.Atoi(strings.TrimSpace(args))
			if err != nil || number <= 0 {
				return nil
			}
			link := fmt.Sprintf("https://github.com/%s/issues/%d", issueRepo, number)
			return sender.SendMessage(ctx, msg.Chat.ID,
				fmt.Sprintf(`<a href="%s">%s#%d</a>`, link, html.EscapeString(issueRepo), number))
		}
		// Unrecognised chatter is not the bot's business.
		return nil
	}
}
