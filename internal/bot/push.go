package bot

import (
	"context"
	"strings"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

// handlePush stamps the dummy check on direct pushes so protected
// branches stay mergeable without waiting on a PR event.
func (b *Bot) handlePush(ctx context.Context, rc repository.Client, payload []byte) error {
	var event gogithub.PushEvent
	if err := unmarshalEvent(payload, &event); err != nil {
		return err
	}

	after := event.GetAfter()
	if after == "" || strings.Trim(after, "0") == "" {
		// Branch deletions push the zero SHA.
		return nil
	}

	repo := event.GetRepo()
	return b.postDummyCI(ctx, rc, repo.GetFullName(), repo.GetName(), after)
}
