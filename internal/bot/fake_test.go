package bot

import (
	"context"
	"fmt"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

// fakeRepo records every mutating call and serves canned reads.
type fakeRepo struct {
	calls []string

	pullRequests map[string]repository.PullRequest // "repo#number"
	issues       map[string]repository.Issue
	reviews      []repository.Review
	refs         map[string]repository.Ref // existing refs by ref name
	checkRuns    []repository.CheckRun
	permissions  map[string]string // by login

	createdIssue repository.Issue
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		pullRequests: map[string]repository.PullRequest{},
		issues:       map[string]repository.Issue{},
		refs:         map[string]repository.Ref{},
		permissions:  map[string]string{},
	}
}

func (f *fakeRepo) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// callsTo returns the recorded calls whose name matches op.
func (f *fakeRepo) callsTo(op string) []string {
	var out []string
	for _, call := range f.calls {
		if len(call) >= len(op) && call[:len(op)] == op {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakeRepo) GetPullRequest(_ context.Context, repo string, number int) (repository.PullRequest, error) {
	return f.pullRequests[fmt.Sprintf("%s#%d", repo, number)], nil
}

func (f *fakeRepo) UpdatePullRequestTitle(_ context.Context, repo string, number int, title string) error {
	f.record("UpdatePullRequestTitle(%s#%d, %q)", repo, number, title)
	return nil
}

func (f *fakeRepo) AddLabels(_ context.Context, repo string, number int, labels []string) error {
	f.record("AddLabels(%s#%d, %v)", repo, number, labels)
	return nil
}

func (f *fakeRepo) AddAssignees(_ context.Context, repo string, number int, assignees []string) error {
	f.record("AddAssignees(%s#%d, %v)", repo, number, assignees)
	return nil
}

func (f *fakeRepo) CreateComment(_ context.Context, repo string, number int, body string) error {
	f.record("CreateComment(%s#%d, %q)", repo, number, body)
	return nil
}

func (f *fakeRepo) CreateReview(_ context.Context, repo string, number int, event, body string) error {
	f.record("CreateReview(%s#%d, %s, %q)", repo, number, event, body)
	return nil
}

func (f *fakeRepo) ListReviews(context.Context, string, int) ([]repository.Review, error) {
	return f.reviews, nil
}

func (f *fakeRepo) DismissReview(_ context.Context, repo string, number int, reviewID int64, message string) error {
	f.record("DismissReview(%s#%d, %d, %q)", repo, number, reviewID, message)
	return nil
}

func (f *fakeRepo) GetRef(_ context.Context, _, ref string) (repository.Ref, error) {
	return f.refs[ref], nil
}

func (f *fakeRepo) EnsureRef(_ context.Context, repo, ref, sha string) (repository.EnsureOutcome, error) {
	f.record("EnsureRef(%s, %s, %s)", repo, ref, sha)
	if _, ok := f.refs[ref]; ok {
		return repository.AlreadyExists, nil
	}
	f.refs[ref] = repository.Ref{Ref: ref, SHA: sha}
	return repository.Created, nil
}

func (f *fakeRepo) UpdateRef(_ context.Context, repo, ref, sha string, force bool) error {
	f.record("UpdateRef(%s, %s, %s, force=%v)", repo, ref, sha, force)
	f.refs[ref] = repository.Ref{Ref: ref, SHA: sha}
	return nil
}

func (f *fakeRepo) DeleteRef(_ context.Context, repo, ref string) error {
	f.record("DeleteRef(%s, %s)", repo, ref)
	delete(f.refs, ref)
	return nil
}

func (f *fakeRepo) ListMatchingRefs(_ context.Context, _, prefix string) ([]repository.Ref, error) {
	var out []repository.Ref
	for _, ref := range f.refs {
		if len(ref.Ref) >= len("refs/"+prefix) && ref.Ref[:len("refs/"+prefix)] == "refs/"+prefix {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCheckRuns(context.Context, string, string) ([]repository.CheckRun, error) {
	return f.checkRuns, nil
}

func (f *fakeRepo) CreateCheckRun(_ context.Context, repo string, req repository.CheckRunRequest) error {
	f.record("CreateCheckRun(%s, %s@%s, %s/%s)", repo, req.Name, req.HeadSHA, req.Status, req.Conclusion)
	return nil
}

func (f *fakeRepo) UpdateCheckRun(_ context.Context, repo string, id int64, req repository.CheckRunRequest) error {
	f.record("UpdateCheckRun(%s, %d, %s, %s/%s)", repo, id, req.Name, req.Status, req.Conclusion)
	return nil
}

func (f *fakeRepo) PermissionLevel(_ context.Context, _, user string) (string, error) {
	if level, ok := f.permissions[user]; ok {
		return level, nil
	}
	return "none", nil
}

func (f *fakeRepo) GetIssue(_ context.Context, repo string, number int) (repository.Issue, error) {
	return f.issues[fmt.Sprintf("%s#%d", repo, number)], nil
}

func (f *fakeRepo) CreateIssue(_ context.Context, repo string, issue repository.NewIssue) (repository.Issue, error) {
	f.record("CreateIssue(%s, %q, assignees=%v)", repo, issue.Title, issue.Assignees)
	return f.createdIssue, nil
}

func (f *fakeRepo) CloseIssue(_ context.Context, repo string, number int) error {
	f.record("CloseIssue(%s#%d)", repo, number)
	return nil
}

func (f *fakeRepo) EnsureProjectCard(_ context.Context, columnID, contentID int64, contentType string) (repository.EnsureOutcome, error) {
	f.record("EnsureProjectCard(%d, %d, %s)", columnID, contentID, contentType)
	return repository.Created, nil
}

func (f *fakeRepo) CreateCommentReaction(_ context.Context, repo string, commentID int64, reaction string) error {
	f.record("CreateCommentReaction(%s, %d, %s)", repo, commentID, reaction)
	return nil
}

var _ repository.Client = (*fakeRepo)(nil)

// fakeNotifier records sent chat messages.
type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) SendMessage(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, fmt.Sprintf("%d: %s", chatID, text))
	return nil
}
