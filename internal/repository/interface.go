// Package repository defines the capability surface the bot consumes
// against a repository host, plus its go-github implementation. The
// bot never talks to go-github directly; handlers are tested against
// a fake of this interface.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EnsureOutcome reports how an idempotent create finished. Webhook
// delivery is at-least-once, so "it was already there" is a success,
// not an error.
type EnsureOutcome int

const (
	Created EnsureOutcome = iota
	AlreadyExists
)

// Client abstracts the authenticated, installation-scoped repository
// API. repo arguments are "owner/name" full names as carried in
// webhook payloads.
type Client interface {
	// GetPullRequest fetches the subset of PR fields the comment
	// handlers need (comment payloads do not carry the head sha).
	GetPullRequest(ctx context.Context, repo string, number int) (PullRequest, error)

	// UpdatePullRequestTitle replaces a pull request's title.
	UpdatePullRequestTitle(ctx context.Context, repo string, number int, title string) error

	// AddLabels attaches labels to an issue or pull request.
	AddLabels(ctx context.Context, repo string, number int, labels []string) error

	// AddAssignees assigns users to an issue or pull request.
	AddAssignees(ctx context.Context, repo string, number int, assignees []string) error

	// CreateComment posts an issue/PR comment.
	CreateComment(ctx context.Context, repo string, number int, body string) error

	// CreateReview submits a pull request review. event is one of
	// "APPROVE", "REQUEST_CHANGES", "COMMENT".
	CreateReview(ctx context.Context, repo string, number int, event, body string) error

	// ListReviews returns the reviews on a pull request.
	ListReviews(ctx context.Context, repo string, number int) ([]Review, error)

	// DismissReview dismisses a review with a message.
	DismissReview(ctx context.Context, repo string, number int, reviewID int64, message string) error

	// GetRef resolves a ref like "heads/pr-mirror/42".
	GetRef(ctx context.Context, repo, ref string) (Ref, error)

	// EnsureRef creates "refs/heads/..." pointing at sha, mapping the
	// reference-already-exists conflict to AlreadyExists.
	EnsureRef(ctx context.Context, repo, ref, sha string) (EnsureOutcome, error)

	// UpdateRef moves an existing ref to sha.
	UpdateRef(ctx context.Context, repo, ref, sha string, force bool) error

	// DeleteRef removes a ref; deleting a missing ref is a no-op.
	DeleteRef(ctx context.Context, repo, ref string) error

	// ListMatchingRefs returns refs under a prefix like "heads/rc/".
	ListMatchingRefs(ctx context.Context, repo, prefix string) ([]Ref, error)

	// ListCheckRuns returns the check-runs recorded for a commit.
	ListCheckRuns(ctx context.Context, repo, sha string) ([]CheckRun, error)

	// CreateCheckRun records a new check-run.
	CreateCheckRun(ctx context.Context, repo string, req CheckRunRequest) error

	// UpdateCheckRun patches an existing check-run in place. The head
	// sha is immutable and is never sent on update.
	UpdateCheckRun(ctx context.Context, repo string, id int64, req CheckRunRequest) error

	// PermissionLevel returns a user's permission on the repository
	// ("admin", "write", "read", "none").
	PermissionLevel(ctx context.Context, repo, user string) (string, error)

	// GetIssue fetches an issue.
	GetIssue(ctx context.Context, repo string, number int) (Issue, error)

	// CreateIssue opens an issue and returns it.
	CreateIssue(ctx context.Context, repo string, issue NewIssue) (Issue, error)

	// CloseIssue closes an issue.
	CloseIssue(ctx context.Context, repo string, number int) error

	// EnsureProjectCard adds an issue/PR card to a classic project
	// column, mapping the association-already-exists conflict to
	// AlreadyExists.
	EnsureProjectCard(ctx context.Context, columnID, contentID int64, contentType string) (EnsureOutcome, error)

	// CreateCommentReaction reacts to an issue comment (e.g. "hooray").
	CreateCommentReaction(ctx context.Context, repo string, commentID int64, reaction string) error
}

// PullRequest carries the PR fields consumed by comment handlers.
type PullRequest struct {
	Number  int
	Title   string
	HeadSHA string
	HTMLURL string
}

// Review is a pull request review.
type Review struct {
	ID        int64
	UserLogin string
	State     string // "APPROVED", "CHANGES_REQUESTED", ...
}

// Ref is a git reference.
type Ref struct {
	Ref string
	SHA string
}

// CheckRun identifies an existing check-run on a commit.
type CheckRun struct {
	ID      int64
	Name    string
	HeadSHA string
	AppSlug string
}

// CheckRunRequest describes a check-run to create or update.
type CheckRunRequest struct {
	Name        string
	HeadSHA     string
	Status      string // "queued", "in_progress", "completed"
	Conclusion  string // set only when Status == "completed"
	CompletedAt time.Time
	DetailsURL  string

	OutputTitle   string
	OutputSummary string
}

// NewIssue describes an issue to create.
type NewIssue struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// Issue carries the issue fields the handlers consume.
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     string
	Labels    []string
	Assignees []string
	HTMLURL   string
}

// SplitRepo splits an "owner/name" full name.
func SplitRepo(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("repository: invalid full name %q", fullName)
	}
	return owner, name, nil
}
