package bot

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

func forkMirrorRef(number int) string {
	return fmt.Sprintf("refs/heads/pr-mirror/%d", number)
}

// syncForkMirror copies a fork PR's head into an in-repo branch so CI
// systems that only build in-repo refs can test the contribution. The
// mirror tracks the head on every synchronize and is removed when the
// PR closes. Only contributors with push access get mirrored; the
// branch runs with repo credentials.
func (b *Bot) syncForkMirror(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	repo := event.GetRepo()
	if !b.brain.CIFork(repo.GetName()) {
		return nil
	}

	pr := event.GetPullRequest()
	head := pr.GetHead()
	if head.GetRepo().GetID() == repo.GetID() {
		// Same-repo branches already have in-repo refs.
		return nil
	}

	mirror := forkMirrorRef(pr.GetNumber())

	if event.GetAction() == "closed" {
		return rc.DeleteRef(ctx, repo.GetFullName(), mirror)
	}

	author := pr.GetUser().GetLogin()
	ok, err := b.canWrite(ctx, rc, repo.GetFullName(), author)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	sha := head.GetSHA()
	outcome, err := rc.EnsureRef(ctx, repo.GetFullName(), mirror, sha)
	if err != nil {
		return err
	}
	if outcome == repository.AlreadyExists {
		current, err := rc.GetRef(ctx, repo.GetFullName(), mirror)
		if err != nil {
			return err
		}
		if current.SHA != sha {
			return rc.UpdateRef(ctx, repo.GetFullName(), mirror, sha, true)
		}
	}
	return nil
}
