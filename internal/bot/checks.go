package bot

import (
	"context"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

// upsertCheckRun publishes a check-run, updating in place when this
// bot already recorded one with the same name on the same commit.
// Webhook delivery is at-least-once; without the upsert every
// redelivery would stack a duplicate check entry on the commit.
func (b *Bot) upsertCheckRun(ctx context.Context, rc repository.Client, repo string, req repository.CheckRunRequest) error {
	runs, err := rc.ListCheckRuns(ctx, repo, req.HeadSHA)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if run.Name == req.Name && run.AppSlug == b.appSlug() && run.HeadSHA == req.HeadSHA {
			return rc.UpdateCheckRun(ctx, repo, run.ID, req)
		}
	}
	return rc.CreateCheckRun(ctx, repo, req)
}

// postDummyCI records the always-green check-run that satisfies
// "require branches to be up to date" protection on projects without
// a real CI requirement.
func (b *Bot) postDummyCI(ctx context.Context, rc repository.Client, repoFullName, project, sha string) error {
	if !b.brain.DummyCI(project) || sha == "" {
		return nil
	}
	return b.upsertCheckRun(ctx, rc, repoFullName, repository.CheckRunRequest{
		Name:          dummyCICheckName,
		HeadSHA:       sha,
		Status:        "completed",
		Conclusion:    "success",
		CompletedAt:   b.now().UTC(),
		OutputTitle:   "CI that does nothing",
		OutputSummary: `This status check is required to enable "Require branches to be up to date before merging"`,
	})
}

// handleCheckRun mirrors completed check-runs from foreign CI apps so
// branch protection can require a check under this bot's name.
func (b *Bot) handleCheckRun(ctx context.Context, rc repository.Client, payload []byte) error {
	var event gogithub.CheckRunEvent
	if err := unmarshalEvent(payload, &event); err != nil {
		return err
	}

	project := event.GetRepo().GetName()
	if !b.brain.CISync(project) || event.GetAction() != "completed" {
		return nil
	}

	run := event.GetCheckRun()
	if run == nil || run.GetApp().GetSlug() == b.appSlug() {
		// Never mirror our own runs; that loops forever.
		return nil
	}

	title := run.GetOutput().GetTitle()
	if title == "" {
		title = run.GetName()
	}
	summary := run.GetOutput().GetSummary()
	if summary == "" {
		summary = "Mirrored from " + run.GetApp().GetName()
	}

	return b.upsertCheckRun(ctx, rc, event.GetRepo().GetFullName(), repository.CheckRunRequest{
		Name:          "Synced: " + run.GetName(),
		HeadSHA:       run.GetHeadSHA(),
		Status:        "completed",
		Conclusion:    run.GetConclusion(),
		CompletedAt:   b.now().UTC(),
		DetailsURL:    run.GetHTMLURL(),
		OutputTitle:   title,
		OutputSummary: summary,
	})
}
