package bot

import (
	"context"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

func (b *Bot) handleIssues(ctx context.Context, rc repository.Client, payload []byte) error {
	var event gogithub.IssuesEvent
	if err := unmarshalEvent(payload, &event); err != nil {
		return err
	}
	if event.GetAction() != "opened" || event.GetIssue() == nil {
		return nil
	}
	return b.syncBoardCards(ctx, rc, event.GetRepo().GetName(), event.GetIssue().GetID(), "Issue")
}

// syncBoardCards files a card for the new item in every configured
// project-board column. A card that already exists, or an item already
// tracked elsewhere on the same board, is left alone.
func (b *Bot) syncBoardCards(ctx context.Context, rc repository.Client, project string, contentID int64, contentType string) error {
	for _, columnID := range b.brain.BoardColumns(project) {
		if _, err := rc.EnsureProjectCard(ctx, columnID, contentID, contentType); err != nil {
			return err
		}
	}
	return nil
}
