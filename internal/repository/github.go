package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v68/github"
)

// GitHub implements Client on top of go-github.
type GitHub struct {
	client *gogithub.Client
}

// Compile-time interface satisfaction check.
var _ Client = (*GitHub)(nil)

// NewGitHub wraps an installation-authenticated go-github client.
func NewGitHub(client *gogithub.Client) *GitHub {
	return &GitHub{client: client}
}

func (g *GitHub) GetPullRequest(ctx context.Context, repo string, number int) (PullRequest, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return PullRequest{}, err
	}
	pr, _, err := g.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return PullRequest{}, fmt.Errorf("getting %s#%d: %w", repo, number, err)
	}
	return PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		HeadSHA: pr.GetHead().GetSHA(),
		HTMLURL: pr.GetHTMLURL(),
	}, nil
}

func (g *GitHub) UpdatePullRequestTitle(ctx context.Context, repo string, number int, title string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	_, _, err = g.client.PullRequests.Edit(ctx, owner, name, number, &gogithub.PullRequest{
		Title: gogithub.Ptr(title),
	})
	if err != nil {
		return fmt.Errorf("updating title of %s#%d: %w", repo, number, err)
	}
	return nil
}

func (g *GitHub) AddLabels(ctx context.Context, repo string, number int, labels []string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	if _, _, err := g.client.Issues.AddLabelsToIssue(ctx, owner, name, number, labels); err != nil {
		return fmt.Errorf("adding labels to %s#%d: %w", repo, number, err)
	}
	return nil
}

func (g *GitHub) AddAssignees(ctx context.Context, repo string, number int, assignees []string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	if _, _, err := g.client.Issues.AddAssignees(ctx, owner, name, number, assignees); err != nil {
		return fmt.Errorf("assigning %v to %s#%d: %w", assignees, repo, number, err)
	}
	return nil
}

func (g *GitHub) CreateComment(ctx context.Context, repo string, number int, body string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	comment := &gogithub.IssueComment{Body: gogithub.Ptr(body)}
	if _, _, err := g.client.Issues.CreateComment(ctx, owner, name, number, comment); err != nil {
		return fmt.Errorf("commenting on %s#%d: %w", repo, number, err)
	}
	return nil
}

func (g *GitHub) CreateReview(ctx context.Context, repo string, number int, event, body string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	review := &gogithub.PullRequestReviewRequest{
		Event: gogithub.Ptr(event),
		Body:  gogithub.Ptr(body),
	}
	if _, _, err := g.client.PullRequests.CreateReview(ctx, owner, name, number, review); err != nil {
		return fmt.Errorf("creating %s review on %s#%d: %w", event, repo, number, err)
	}
	return nil
}

func (g *GitHub) ListReviews(ctx context.Context, repo string, number int) ([]Review, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	var reviews []Review
	opts := &gogithub.ListOptions{PerPage: 100}
	for {
		page, resp, err := g.client.PullRequests.ListReviews(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing reviews of %s#%d: %w", repo, number, err)
		}
		for _, review := range page {
			reviews = append(reviews, Review{
				ID:        review.GetID(),
				UserLogin: review.GetUser().GetLogin(),
				State:     review.GetState(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

func (g *GitHub) DismissReview(ctx context.Context, repo string, number int, reviewID int64, message string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	dismissal := &gogithub.PullRequestReviewDismissalRequest{Message: gogithub.Ptr(message)}
	if _, _, err := g.client.PullRequests.DismissReview(ctx, owner, name, number, reviewID, dismissal); err != nil {
		return fmt.Errorf("dismissing review %d on %s#%d: %w", reviewID, repo, number, err)
	}
	return nil
}

func (g *GitHub) GetRef(ctx context.Context, repo, ref string) (Ref, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return Ref{}, err
	}
	reference, _, err := g.client.Git.GetRef(ctx, owner, name, ref)
	if err != nil {
		return Ref{}, fmt.Errorf("getting ref %s in %s: %w", ref, repo, err)
	}
	return Ref{Ref: reference.GetRef(), SHA: reference.GetObject().GetSHA()}, nil
}

func (g *GitHub) EnsureRef(ctx context.Context, repo, ref, sha string) (EnsureOutcome, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return Created, err
	}
	reference := &gogithub.Reference{
		Ref:    gogithub.Ptr(ref),
		Object: &gogithub.GitObject{SHA: gogithub.Ptr(sha)},
	}
	_, _, err = g.client.Git.CreateRef(ctx, owner, name, reference)
	if isAlreadyExists(err) {
		return AlreadyExists, nil
	}
	if err != nil {
		return Created, fmt.Errorf("creating ref %s in %s: %w", ref, repo, err)
	}
	return Created, nil
}

func (g *GitHub) UpdateRef(ctx context.Context, repo, ref, sha string, force bool) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	reference := &gogithub.Reference{
		Ref:    gogithub.Ptr(ref),
		Object: &gogithub.GitObject{SHA: gogithub.Ptr(sha)},
	}
	if _, _, err := g.client.Git.UpdateRef(ctx, owner, name, reference, force); err != nil {
		return fmt.Errorf("updating ref %s in %s: %w", ref, repo, err)
	}
	return nil
}

func (g *GitHub) DeleteRef(ctx context.Context, repo, ref string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	_, err = g.client.Git.DeleteRef(ctx, owner, name, ref)
	if err != nil && !isMissingRef(err) {
		return fmt.Errorf("deleting ref %s in %s: %w", ref, repo, err)
	}
	return nil
}

func (g *GitHub) ListMatchingRefs(ctx context.Context, repo, prefix string) ([]Ref, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	opts := &gogithub.ReferenceListOptions{Ref: prefix, ListOptions: gogithub.ListOptions{PerPage: 100}}
	for {
		page, resp, err := g.client.Git.ListMatchingRefs(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing refs %s in %s: %w", prefix, repo, err)
		}
		for _, reference := range page {
			refs = append(refs, Ref{Ref: reference.GetRef(), SHA: reference.GetObject().GetSHA()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return refs, nil
}

func (g *GitHub) ListCheckRuns(ctx context.Context, repo, sha string) ([]CheckRun, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	var runs []CheckRun
	opts := &gogithub.ListCheckRunsOptions{ListOptions: gogithub.ListOptions{PerPage: 100}}
	for {
		results, resp, err := g.client.Checks.ListCheckRunsForRef(ctx, owner, name, sha, opts)
		if err != nil {
			return nil, fmt.Errorf("listing check-runs for %s@%s: %w", repo, sha, err)
		}
		for _, run := range results.CheckRuns {
			runs = append(runs, CheckRun{
				ID:      run.GetID(),
				Name:    run.GetName(),
				HeadSHA: run.GetHeadSHA(),
				AppSlug: run.GetApp().GetSlug(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return runs, nil
}

func (g *GitHub) CreateCheckRun(ctx context.Context, repo string, req CheckRunRequest) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	opts := gogithub.CreateCheckRunOptions{
		Name:    req.Name,
		HeadSHA: req.HeadSHA,
		Status:  gogithub.Ptr(req.Status),
		Output:  checkRunOutput(req),
	}
	if req.Conclusion != "" {
		opts.Conclusion = gogithub.Ptr(req.Conclusion)
	}
	if !req.CompletedAt.IsZero() {
		opts.CompletedAt = &gogithub.Timestamp{Time: req.CompletedAt}
	}
	if req.DetailsURL != "" {
		opts.DetailsURL = gogithub.Ptr(req.DetailsURL)
	}
	if _, _, err := g.client.Checks.CreateCheckRun(ctx, owner, name, opts); err != nil {
		return fmt.Errorf("creating check-run %q on %s@%s: %w", req.Name, repo, req.HeadSHA, err)
	}
	return nil
}

func (g *GitHub) UpdateCheckRun(ctx context.Context, repo string, id int64, req CheckRunRequest) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	// UpdateCheckRunOptions has no head sha field; the API treats it
	// as immutable.
	opts := gogithub.UpdateCheckRunOptions{
		Name:   req.Name,
		Status: gogithub.Ptr(req.Status),
		Output: checkRunOutput(req),
	}
	if req.Conclusion != "" {
		opts.Conclusion = gogithub.Ptr(req.Conclusion)
	}
	if !req.CompletedAt.IsZero() {
		opts.CompletedAt = &gogithub.Timestamp{Time: req.CompletedAt}
	}
	if req.DetailsURL != "" {
		opts.DetailsURL = gogithub.Ptr(req.DetailsURL)
	}
	if _, _, err := g.client.Checks.UpdateCheckRun(ctx, owner, name, id, opts); err != nil {
		return fmt.Errorf("updating check-run %d on %s: %w", id, repo, err)
	}
	return nil
}

func checkRunOutput(req CheckRunRequest) *gogithub.CheckRunOutput {
	if req.OutputTitle == "" && req.OutputSummary == "" {
		return nil
	}
	return &gogithub.CheckRunOutput{
		Title:   gogithub.Ptr(req.OutputTitle),
		Summary: gogithub.Ptr(req.OutputSummary),
	}
}

func (g *GitHub) PermissionLevel(ctx context.Context, repo, user string) (string, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return "", err
	}
	level, _, err := g.client.Repositories.GetPermissionLevel(ctx, owner, name, user)
	if err != nil {
		return "", fmt.Errorf("getting permission of %s on %s: %w", user, repo, err)
	}
	return level.GetPermission(), nil
}

func (g *GitHub) GetIssue(ctx context.Context, repo string, number int) (Issue, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return Issue{}, err
	}
	issue, _, err := g.client.Issues.Get(ctx, owner, name, number)
	if err != nil {
		return Issue{}, fmt.Errorf("getting %s#%d: %w", repo, number, err)
	}
	var labels []string
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}
	var assignees []string
	for _, assignee := range issue.Assignees {
		assignees = append(assignees, assignee.GetLogin())
	}
	return Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		Labels:    labels,
		Assignees: assignees,
		HTMLURL:   issue.GetHTMLURL(),
	}, nil
}

func (g *GitHub) CreateIssue(ctx context.Context, repo string, issue NewIssue) (Issue, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return Issue{}, err
	}
	req := &gogithub.IssueRequest{
		Title: gogithub.Ptr(issue.Title),
		Body:  gogithub.Ptr(issue.Body),
	}
	if len(issue.Labels) > 0 {
		req.Labels = &issue.Labels
	}
	if len(issue.Assignees) > 0 {
		req.Assignees = &issue.Assignees
	}
	created, _, err := g.client.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return Issue{}, fmt.Errorf("creating issue in %s: %w", repo, err)
	}
	return Issue{Number: created.GetNumber(), HTMLURL: created.GetHTMLURL()}, nil
}

func (g *GitHub) CloseIssue(ctx context.Context, repo string, number int) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	req := &gogithub.IssueRequest{State: gogithub.Ptr("closed")}
	if _, _, err := g.client.Issues.Edit(ctx, owner, name, number, req); err != nil {
		return fmt.Errorf("closing %s#%d: %w", repo, number, err)
	}
	return nil
}

func (g *GitHub) EnsureProjectCard(ctx context.Context, columnID, contentID int64, contentType string) (EnsureOutcome, error) {
	// Classic Projects have no typed service in go-github v68; issue
	// the REST call directly.
	body := map[string]any{"content_id": contentID, "content_type": contentType}
	req, err := g.client.NewRequest(http.MethodPost, fmt.Sprintf("projects/columns/%d/cards", columnID), body)
	if err != nil {
		return Created, fmt.Errorf("building project card request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.inertia-preview+json")
	_, err = g.client.Do(ctx, req, nil)
	if isAlreadyExists(err) {
		return AlreadyExists, nil
	}
	if err != nil {
		return Created, fmt.Errorf("creating card in column %d: %w", columnID, err)
	}
	return Created, nil
}

func (g *GitHub) CreateCommentReaction(ctx context.Context, repo string, commentID int64, reaction string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	if _, _, err := g.client.Reactions.CreateIssueCommentReaction(ctx, owner, name, commentID, reaction); err != nil {
		return fmt.Errorf("reacting to comment %d on %s: %w", commentID, repo, err)
	}
	return nil
}

// isAlreadyExists recognises the 422 conflicts GitHub returns when a
// ref or card association is already present.
func isAlreadyExists(err error) bool {
	var ghErr *gogithub.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return false
	}
	if ghErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	if strings.Contains(strings.ToLower(ghErr.Message), "already exists") {
		return true
	}
	for _, detail := range ghErr.Errors {
		if strings.Contains(strings.ToLower(detail.Message), "already") {
			return true
		}
	}
	return false
}

// isMissingRef recognises deletes of refs that are already gone.
func isMissingRef(err error) bool {
	var ghErr *gogithub.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return false
	}
	if ghErr.Response.StatusCode == http.StatusNotFound {
		return true
	}
	return ghErr.Response.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(ghErr.Message), "does not exist")
}
