package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

var (
	mentionRe           = regexp.MustCompile(`^@nervos-bot(?:-user)?\s+(\S+)\s*(.*)`)
	borsRe              = regexp.MustCompile(`^bors:?\s+r[+=]`)
	ciMarkerRe          = regexp.MustCompile(`(?m)^CI: (success|failure)\b`)
	integrationMarkerRe = regexp.MustCompile(`(?m)^Integration: (success|failure)\b`)
)

// commentContext is the slice of an issue_comment payload the command
// handlers consume.
type commentContext struct {
	repo          string // "owner/name"
	project       string // bare repository name
	number        int
	isPullRequest bool
	sender        string
	commentID     int64
	commentURL    string
	body          string
}

// handleIssueComment parses freshly created comments for bot mentions,
// bors approvals and CI result markers. Edited and deleted comments
// are ignored, as is anything the bot said itself.
func (b *Bot) handleIssueComment(ctx context.Context, rc repository.Client, payload []byte) error {
	var event gogithub.IssueCommentEvent
	if err := unmarshalEvent(payload, &event); err != nil {
		return err
	}
	if event.GetAction() != "created" || event.GetComment() == nil || event.GetIssue() == nil {
		return nil
	}
	sender := event.GetSender().GetLogin()
	if sender == b.login {
		return nil
	}

	cc := &commentContext{
		repo:          event.GetRepo().GetFullName(),
		project:       event.GetRepo().GetName(),
		number:        event.GetIssue().GetNumber(),
		isPullRequest: event.GetIssue().IsPullRequest(),
		sender:        sender,
		commentID:     event.GetComment().GetID(),
		commentURL:    event.GetComment().GetHTMLURL(),
		body:          event.GetComment().GetBody(),
	}

	if name, args, ok := parseMention(cc.body); ok {
		command, known := b.commands[name]
		if !known {
			b.logger.Debug("bot: unknown command", "command", name, "sender", cc.sender)
			return nil
		}
		return command(ctx, rc, cc, args)
	}

	if parseBors(cc.body) && cc.isPullRequest {
		return b.markReadyToMerge(ctx, rc, cc)
	}

	return b.relayCIMarkers(ctx, rc, cc)
}

// parseMention matches "@nervos-bot <command> [args]" at the start of
// a comment. The "-user" suffix covers the personal-token deployment
// where the bot posts under a plain user account.
func parseMention(body string) (command, args string, ok bool) {
	m := mentionRe.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

func parseBors(body string) bool {
	return borsRe.MatchString(strings.TrimSpace(body))
}

// markReadyToMerge labels a PR for the merge queue on a bors
// approval. No permission gate: the merge queue itself enforces who
// may approve, the label only routes the PR into it.
func (b *Bot) markReadyToMerge(ctx context.Context, rc repository.Client, cc *commentContext) error {
	return rc.AddLabels(ctx, cc.repo, cc.number, []string{readyToMergeLabel})
}

// relayCIMarkers republishes "CI: success" style result lines posted
// by an external pipeline as check-runs on the PR head.
func (b *Bot) relayCIMarkers(ctx context.Context, rc repository.Client, cc *commentContext) error {
	if !b.brain.CISync(cc.project) || !cc.isPullRequest {
		return nil
	}

	ci := ciMarkerRe.FindStringSubmatch(cc.body)
	integration := integrationMarkerRe.FindStringSubmatch(cc.body)
	if ci == nil && integration == nil {
		return nil
	}

	ok, err := b.canWrite(ctx, rc, cc.repo, cc.sender)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	pr, err := rc.GetPullRequest(ctx, cc.repo, cc.number)
	if err != nil {
		return err
	}

	if ci != nil {
		if err := b.postResultCheck(ctx, rc, cc, ciCheckName, ci[1], pr.HeadSHA); err != nil {
			return err
		}
	}
	if integration != nil {
		if err := b.postResultCheck(ctx, rc, cc, integrationCheckName, integration[1], pr.HeadSHA); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) postResultCheck(ctx context.Context, rc repository.Client, cc *commentContext, name, result, sha string) error {
	return b.upsertCheckRun(ctx, rc, cc.repo, repository.CheckRunRequest{
		Name:          name,
		HeadSHA:       sha,
		Status:        "completed",
		Conclusion:    result,
		CompletedAt:   b.now().UTC(),
		DetailsURL:    cc.commentURL,
		OutputTitle:   name,
		OutputSummary: fmt.Sprintf("Reported by @%s in %s", cc.sender, cc.commentURL),
	})
}

// cmdGiveMeFive approves the PR on behalf of the requester. The full
// phrase "give me five" is required; a bare "give" does nothing.
func (b *Bot) cmdGiveMeFive(ctx context.Context, rc repository.Client, cc *commentContext, args string) error {
	if args != "me five" || !cc.isPullRequest {
		return nil
	}

	ok, err := b.canWrite(ctx, rc, cc.repo, cc.sender)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := rc.CreateCommentReaction(ctx, cc.repo, cc.commentID, "hooray"); err != nil {
		return err
	}
	body := fmt.Sprintf("🚢 requested by @%s in %s", cc.sender, cc.commentURL)
	return rc.CreateReview(ctx, cc.repo, cc.number, "APPROVE", body)
}

// cmdDummyCI refreshes the dummy check on demand, for when a delivery
// was lost and the check never landed. An explicit sha argument covers
// commits the webhook never mentioned; without one the PR head is
// used.
func (b *Bot) cmdDummyCI(ctx context.Context, rc repository.Client, cc *commentContext, args string) error {
	ok, err := b.canWrite(ctx, rc, cc.repo, cc.sender)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	sha := ""
	if fields := strings.Fields(args); len(fields) > 0 {
		sha = fields[0]
	}
	if sha == "" {
		if !cc.isPullRequest {
			return nil
		}
		pr, err := rc.GetPullRequest(ctx, cc.repo, cc.number)
		if err != nil {
			return err
		}
		sha = pr.HeadSHA
	}
	return b.postDummyCI(ctx, rc, cc.repo, cc.project, sha)
}

// cmdDummy handles the two-word spelling "dummy ci <sha>".
func (b *Bot) cmdDummy(ctx context.Context, rc repository.Client, cc *commentContext, args string) error {
	rest, ok := strings.CutPrefix(args, "ci")
	if !ok {
		return nil
	}
	return b.cmdDummyCI(ctx, rc, cc, strings.TrimSpace(rest))
}

// cmdIntegration queues the integration check on the PR head so the
// external pipeline's later result marker has a run to resolve.
func (b *Bot) cmdIntegration(ctx context.Context, rc repository.Client, cc *commentContext, _ string) error {
	if !cc.isPullRequest {
		return nil
	}

	ok, err := b.canWrite(ctx, rc, cc.repo, cc.sender)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	pr, err := rc.GetPullRequest(ctx, cc.repo, cc.number)
	if err != nil {
		return err
	}
	if pr.HeadSHA == "" {
		return nil
	}
	return b.upsertCheckRun(ctx, rc, cc.repo, repository.CheckRunRequest{
		Name:          integrationCheckName,
		HeadSHA:       pr.HeadSHA,
		Status:        "queued",
		OutputTitle:   integrationCheckName,
		OutputSummary: fmt.Sprintf("Queued by @%s", cc.sender),
	})
}

const internalRepoSuffix = "-internal"

// cmdPublish copies an open issue from a private "-internal"
// repository to its public counterpart, cross-links the copy and
// closes the original. Pull requests and issues outside internal
// repositories are silently ignored.
func (b *Bot) cmdPublish(ctx context.Context, rc repository.Client, cc *commentContext, _ string) error {
	if cc.isPullRequest || !strings.HasSuffix(cc.project, internalRepoSuffix) {
		return nil
	}

	owner, name, err := repository.SplitRepo(cc.repo)
	if err != nil {
		return err
	}
	publicRepo := owner + "/" + strings.TrimSuffix(name, internalRepoSuffix)

	issue, err := rc.GetIssue(ctx, cc.repo, cc.number)
	if err != nil {
		return err
	}
	if issue.State != "open" {
		return nil
	}

	published, err := rc.CreateIssue(ctx, publicRepo, repository.NewIssue{
		Title:     issue.Title,
		Body:      issue.Body,
		Labels:    issue.Labels,
		Assignees: issue.Assignees,
	})
	if err != nil {
		return err
	}

	link := fmt.Sprintf("Published as %s", published.HTMLURL)
	if err := rc.CreateComment(ctx, cc.repo, cc.number, link); err != nil {
		return err
	}
	return rc.CloseIssue(ctx, cc.repo, cc.number)
}

func (b *Bot) cmdHelp(ctx context.Context, rc repository.Client, cc *commentContext, _ string) error {
	help := strings.Join([]string{
		"Available commands:",
		"",
		"* `give me five`: approve the pull request on your behalf",
		"* `dummy-ci`: refresh the Dummy CI check on the pull request head",
		"* `integration`: queue the integration check on the pull request head",
		"* `publish`: copy this issue to the public counterpart repository",
	}, "\n")
	return rc.CreateComment(ctx, cc.repo, cc.number, help)
}
