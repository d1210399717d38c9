// Package brain holds the process-resident routing state consulted by
// the event handlers: feature project sets, notification routing, and
// the reviewer rotation queues. Everything except the reviewer queues
// is immutable after New.
package brain

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/nervosnetwork/nervos-bot/internal/config"
)

// ReviewerPolicy selects how NextReviewer picks from a project's queue.
type ReviewerPolicy string

const (
	// PolicyRoundRobin rotates the queue by one position per
	// assignment, skipping the PR author.
	PolicyRoundRobin ReviewerPolicy = "round_robin"
	// PolicyRandom draws uniformly from the queue excluding the
	// author, without mutating rotation order.
	PolicyRandom ReviewerPolicy = "random"
)

// Brain is safe for concurrent use. Reviewer queues are guarded by a
// mutex because webhook deliveries for the same project may be
// processed in parallel.
type Brain struct {
	dummyCI  map[string]bool
	ciSync   map[string]bool
	ciFork   map[string]bool
	backport map[string]bool

	mergeChats   map[string][]int64
	boardColumns map[string][]int64

	policy ReviewerPolicy

	mu        sync.Mutex
	reviewers map[string][]string

	// intN is swappable in tests; defaults to math/rand/v2.
	intN func(n int) int
}

// New builds a Brain from the projects configuration.
func New(cfg config.ProjectsConfig) (*Brain, error) {
	policy := ReviewerPolicy(cfg.ReviewerPolicy)
	switch policy {
	case "":
		policy = PolicyRoundRobin
	case PolicyRoundRobin, PolicyRandom:
	default:
		return nil, fmt.Errorf("brain: unknown reviewer policy %q", cfg.ReviewerPolicy)
	}

	reviewers := make(map[string][]string, len(cfg.Reviewers))
	for project, users := range cfg.Reviewers {
		reviewers[project] = append([]string(nil), users...)
	}

	return &Brain{
		dummyCI:      toSet(cfg.DummyCI),
		ciSync:       toSet(cfg.CISync),
		ciFork:       toSet(cfg.CIFork),
		backport:     toSet(cfg.Backport),
		mergeChats:   copyRouting(cfg.MergeNotifications),
		boardColumns: copyRouting(cfg.BoardColumns),
		policy:       policy,
		reviewers:    reviewers,
		intN:         rand.IntN,
	}, nil
}

func toSet(projects []string) map[string]bool {
	set := make(map[string]bool, len(projects))
	for _, p := range projects {
		set[p] = true
	}
	return set
}

func copyRouting(routing map[string][]int64) map[string][]int64 {
	out := make(map[string][]int64, len(routing))
	for project, ids := range routing {
		out[project] = append([]int64(nil), ids...)
	}
	return out
}

// DummyCI reports whether the always-green check-run is enabled.
func (b *Brain) DummyCI(project string) bool { return b.dummyCI[project] }

// CISync reports whether CI mirroring and comment markers are enabled.
func (b *Brain) CISync(project string) bool { return b.ciSync[project] }

// CIFork reports whether fork PR mirroring is enabled.
func (b *Brain) CIFork(project string) bool { return b.ciFork[project] }

// Backport reports whether backport automation is enabled.
func (b *Brain) Backport(project string) bool { return b.backport[project] }

// MergeChats returns the Telegram chats notified when a PR merges.
func (b *Brain) MergeChats(project string) []int64 {
	return append([]int64(nil), b.mergeChats[project]...)
}

// BoardColumns returns the project-board columns for opened issues/PRs.
func (b *Brain) BoardColumns(project string) []int64 {
	return append([]int64(nil), b.boardColumns[project]...)
}

// NextReviewer selects a reviewer for a pull request by author. The
// author is never selected. Returns false when the project has no
// usable queue (unconfigured, empty, or author is the only entry).
//
// Under the round-robin policy the selection also advances the queue:
// the chosen reviewer moves to the tail so the next call picks a
// different one. The queue keeps the same set of logins across
// rotations; only order changes.
func (b *Brain) NextReviewer(project, author string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.reviewers[project]
	if len(queue) == 0 {
		return "", false
	}

	if b.policy == PolicyRandom {
		candidates := make([]string, 0, len(queue))
		for _, user := range queue {
			if user != author {
				candidates = append(candidates, user)
			}
		}
		if len(candidates) == 0 {
			return "", false
		}
		return candidates[b.intN(len(candidates))], true
	}

	if queue[0] == author {
		if len(queue) == 1 {
			return "", false
		}
		// Skip past the author: assign the next login, rotate the
		// rest, and put the author back at the head so their place
		// in the cycle is preserved.
		reviewer := queue[1]
		rotated := append([]string{author}, queue[2:]...)
		b.reviewers[project] = append(rotated, reviewer)
		return reviewer, true
	}

	reviewer := queue[0]
	b.reviewers[project] = append(queue[1:], reviewer)
	return reviewer, true
}

// ReviewerQueue returns a snapshot of a project's rotation order.
func (b *Brain) ReviewerQueue(project string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.reviewers[project]...)
}
