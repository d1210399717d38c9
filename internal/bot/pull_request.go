package bot

import (
	"context"
	"fmt"
	"strings"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

// handlePullRequest runs the pull-request policy set. Policies are
// independent; a single event may trigger several of them.
func (b *Bot) handlePullRequest(ctx context.Context, rc repository.Client, payload []byte) error {
	var event gogithub.PullRequestEvent
	if err := unmarshalEvent(payload, &event); err != nil {
		return err
	}
	if event.GetPullRequest() == nil || event.GetRepo() == nil {
		b.logger.Warn("bot: pull_request payload missing fields, skipping")
		return nil
	}

	if err := b.tagBaseBranchTitle(ctx, rc, &event); err != nil {
		return err
	}
	if err := b.applyHoldTransition(ctx, rc, &event); err != nil {
		return err
	}
	if err := b.labelBreakingChange(ctx, rc, &event); err != nil {
		return err
	}
	if err := b.labelBackportTarget(ctx, rc, &event); err != nil {
		return err
	}

	repo := event.GetRepo()
	pr := event.GetPullRequest()

	switch event.GetAction() {
	case "opened":
		if err := b.assignReviewer(ctx, rc, &event); err != nil {
			return err
		}
		if err := b.labelHotfix(ctx, rc, &event); err != nil {
			return err
		}
		if err := b.syncBoardCards(ctx, rc, repo.GetName(), pr.GetID(), "PullRequest"); err != nil {
			return err
		}
		if err := b.postDummyCI(ctx, rc, repo.GetFullName(), repo.GetName(), pr.GetHead().GetSHA()); err != nil {
			return err
		}
		return b.syncForkMirror(ctx, rc, &event)
	case "synchronize":
		if err := b.postDummyCI(ctx, rc, repo.GetFullName(), repo.GetName(), pr.GetHead().GetSHA()); err != nil {
			return err
		}
		return b.syncForkMirror(ctx, rc, &event)
	case "closed":
		if pr.GetMerged() {
			if err := b.createBackportIssue(ctx, rc, &event); err != nil {
				return err
			}
			if err := b.notifyMerged(ctx, &event); err != nil {
				return err
			}
		}
		return b.syncForkMirror(ctx, rc, &event)
	}
	return nil
}

// titleOrBaseEdited reports whether this event may have changed the
// title tag inputs: a fresh PR, or an edit touching title or base.
func titleOrBaseEdited(event *gogithub.PullRequestEvent) bool {
	if event.GetAction() == "opened" {
		return true
	}
	changes := event.GetChanges()
	return changes != nil && (changes.Title != nil || changes.Base != nil)
}

// titleEdited is the narrower gate for policies keyed on the title
// text alone.
func titleEdited(event *gogithub.PullRequestEvent) bool {
	if event.GetAction() == "opened" {
		return true
	}
	changes := event.GetChanges()
	return changes != nil && changes.Title != nil
}

// previousTitle returns the title before this event. An opened PR has
// no prior title.
func previousTitle(event *gogithub.PullRequestEvent) string {
	if event.GetAction() == "opened" {
		return ""
	}
	return event.GetChanges().GetTitle().GetFrom()
}

// tagBaseBranchTitle prepends "[ᚬ<base>]" to titles of PRs that do
// not target the default branch, so reviewers see the target at a
// glance. Safe to re-run: the substring check keeps it idempotent.
func (b *Bot) tagBaseBranchTitle(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	if !titleOrBaseEdited(event) {
		return nil
	}

	repo := event.GetRepo()
	pr := event.GetPullRequest()
	base := pr.GetBase().GetRef()
	if base == "" || base == repo.GetDefaultBranch() {
		return nil
	}

	tag := baseBranchTag(base)
	title := pr.GetTitle()
	if strings.Contains(title, tag) {
		return nil
	}

	return rc.UpdatePullRequestTitle(ctx, repo.GetFullName(), pr.GetNumber(), tag+" "+title)
}

// applyHoldTransition runs the {HOLD, NOT_HOLD} state machine over
// the title edit. Entering hold blocks the PR with a request-changes
// review; leaving hold withdraws every such review the bot authored.
// Self-loops are no-ops.
func (b *Bot) applyHoldTransition(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	if event.GetSender().GetLogin() == b.login {
		// Our own title updates (e.g. base tagging) must not re-run
		// the gate.
		return nil
	}
	if !titleEdited(event) {
		return nil
	}

	repo := event.GetRepo()
	pr := event.GetPullRequest()
	sender := event.GetSender().GetLogin()

	fromHold := titleHasHold(previousTitle(event))
	toHold := titleHasHold(pr.GetTitle())

	if !fromHold && toHold {
		body := fmt.Sprintf("Hold as requested by @%s.", sender)
		return rc.CreateReview(ctx, repo.GetFullName(), pr.GetNumber(), "REQUEST_CHANGES", body)
	}

	if fromHold && !toHold {
		reviews, err := rc.ListReviews(ctx, repo.GetFullName(), pr.GetNumber())
		if err != nil {
			return err
		}
		for _, review := range reviews {
			if review.UserLogin != b.login || review.State != "CHANGES_REQUESTED" {
				continue
			}
			message := fmt.Sprintf("Unhold as requested by @%s.", sender)
			if err := rc.DismissReview(ctx, repo.GetFullName(), pr.GetNumber(), review.ID, message); err != nil {
				return err
			}
		}
	}
	return nil
}

// labelHotfix marks PRs opened against a release branch.
func (b *Bot) labelHotfix(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	pr := event.GetPullRequest()
	if !strings.HasPrefix(pr.GetBase().GetRef(), "rc/") {
		return nil
	}
	return rc.AddLabels(ctx, event.GetRepo().GetFullName(), pr.GetNumber(), []string{hotfixLabel})
}

// labelBreakingChange flags PRs whose body declares a breaking
// change. Runs on every pull_request event, not just opens.
func (b *Bot) labelBreakingChange(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	pr := event.GetPullRequest()
	if !strings.Contains(strings.ToLower(pr.GetBody()), breakingChangeLabel) {
		return nil
	}
	return rc.AddLabels(ctx, event.GetRepo().GetFullName(), pr.GetNumber(), []string{breakingChangeLabel})
}

// labelBackportTarget tags fix PRs against the default branch with
// the latest release branch, queueing them for backport.
func (b *Bot) labelBackportTarget(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	repo := event.GetRepo()
	if !b.brain.Backport(repo.GetName()) || !titleEdited(event) {
		return nil
	}

	pr := event.GetPullRequest()
	if pr.GetBase().GetRef() != repo.GetDefaultBranch() {
		return nil
	}
	if titleIsFix(previousTitle(event)) || !titleIsFix(pr.GetTitle()) {
		return nil
	}

	refs, err := rc.ListMatchingRefs(ctx, repo.GetFullName(), "heads/rc/")
	if err != nil {
		return err
	}
	latest, ok := latestRCRef(refs)
	if !ok {
		return nil
	}

	parts := strings.Split(latest.Ref, "/")
	label := fmt.Sprintf("backport rc/%s", parts[len(parts)-1])
	return rc.AddLabels(ctx, repo.GetFullName(), pr.GetNumber(), []string{label})
}

// createBackportIssue opens a tracking issue when a PR labelled for
// backport merges, assigned to the author when they have push access.
func (b *Bot) createBackportIssue(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	pr := event.GetPullRequest()

	var backportLabels []string
	for _, label := range pr.Labels {
		if strings.HasPrefix(label.GetName(), "backport ") {
			backportLabels = append(backportLabels, label.GetName())
		}
	}
	if len(backportLabels) == 0 {
		return nil
	}

	var allLabels []string
	for _, label := range pr.Labels {
		allLabels = append(allLabels, label.GetName())
	}

	repo := event.GetRepo().GetFullName()
	title := fmt.Sprintf("Backport #%d", pr.GetNumber())
	issue := repository.NewIssue{
		Title: title,
		Body:  fmt.Sprintf("%s `%s`", title, strings.Join(allLabels, "`, `")),
	}

	author := pr.GetUser().GetLogin()
	if author != "" {
		ok, err := b.canWrite(ctx, rc, repo, author)
		if err != nil {
			return err
		}
		if ok {
			issue.Assignees = []string{author}
		}
	}

	_, err := rc.CreateIssue(ctx, repo, issue)
	return err
}

// assignReviewer picks the next reviewer from the project's rotation
// and announces the assignment.
func (b *Bot) assignReviewer(ctx context.Context, rc repository.Client, event *gogithub.PullRequestEvent) error {
	repo := event.GetRepo()
	pr := event.GetPullRequest()

	reviewer, ok := b.brain.NextReviewer(repo.GetName(), pr.GetUser().GetLogin())
	if !ok {
		return nil
	}

	if err := rc.AddAssignees(ctx, repo.GetFullName(), pr.GetNumber(), []string{reviewer}); err != nil {
		return err
	}
	comment := fmt.Sprintf("@%s is assigned as the chief reviewer", reviewer)
	return rc.CreateComment(ctx, repo.GetFullName(), pr.GetNumber(), comment)
}

// notifyMerged fans a merged-PR notification out to the project's
// chats. Dependency-bot chores are excluded; nobody wants those.
func (b *Bot) notifyMerged(ctx context.Context, event *gogithub.PullRequestEvent) error {
	if b.notify == nil {
		return nil
	}

	pr := event.GetPullRequest()
	if strings.Contains(pr.GetTitle(), "chore(deps): ") {
		return nil
	}

	text := formatMergedPR(pr.GetNumber(), pr.GetTitle(), pr.GetHTMLURL())
	for _, chatID := range b.brain.MergeChats(event.GetRepo().GetName()) {
		if err := b.notify.SendMessage(ctx, chatID, text); err != nil {
			return err
		}
	}
	return nil
}
