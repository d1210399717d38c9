package brain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/nervos-bot/internal/config"
)

func newTestBrain(t *testing.T, cfg config.ProjectsConfig) *Brain {
	t.Helper()
	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	_, err := New(config.ProjectsConfig{ReviewerPolicy: "alphabetical"})
	require.Error(t, err)
}

func TestFeatureSets(t *testing.T) {
	b := newTestBrain(t, config.ProjectsConfig{
		DummyCI:  []string{"ckb"},
		CIFork:   []string{"ckb-vm"},
		Backport: []string{"ckb"},
	})

	assert.True(t, b.DummyCI("ckb"))
	assert.False(t, b.DummyCI("ckb-vm"))
	assert.True(t, b.CIFork("ckb-vm"))
	assert.False(t, b.CISync("ckb"))
	assert.True(t, b.Backport("ckb"))
}

func TestNextReviewerRoundRobin(t *testing.T) {
	b := newTestBrain(t, config.ProjectsConfig{
		Reviewers: map[string][]string{"ckb": {"alice", "bob", "carol"}},
	})

	reviewer, ok := b.NextReviewer("ckb", "dave")
	require.True(t, ok)
	assert.Equal(t, "alice", reviewer)
	assert.Equal(t, []string{"bob", "carol", "alice"}, b.ReviewerQueue("ckb"))

	reviewer, ok = b.NextReviewer("ckb", "dave")
	require.True(t, ok)
	assert.Equal(t, "bob", reviewer)
	assert.Equal(t, []string{"carol", "alice", "bob"}, b.ReviewerQueue("ckb"))
}

func TestNextReviewerSkipsAuthorAtHead(t *testing.T) {
	b := newTestBrain(t, config.ProjectsConfig{
		Reviewers: map[string][]string{"ckb": {"alice", "bob", "carol"}},
	})

	reviewer, ok := b.NextReviewer("ckb", "alice")
	require.True(t, ok)
	assert.Equal(t, "bob", reviewer)
	// The author keeps their place in the cycle.
	assert.Equal(t, []string{"alice", "carol", "bob"}, b.ReviewerQueue("ckb"))
}

func TestNextReviewerQueueMultisetInvariant(t *testing.T) {
	initial := []string{"alice", "bob", "carol", "dave"}
	b := newTestBrain(t, config.ProjectsConfig{
		Reviewers: map[string][]string{"ckb": initial},
	})

	for i := 0; i < 20; i++ {
		_, ok := b.NextReviewer("ckb", "alice")
		require.True(t, ok)

		queue := b.ReviewerQueue("ckb")
		sorted := append([]string(nil), queue...)
		sort.Strings(sorted)
		assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, sorted)
	}
}

func TestNextReviewerEmptyAndSoloQueues(t *testing.T) {
	b := newTestBrain(t, config.ProjectsConfig{
		Reviewers: map[string][]string{"solo": {"alice"}},
	})

	_, ok := b.NextReviewer("unknown", "bob")
	assert.False(t, ok)

	_, ok = b.NextReviewer("solo", "alice")
	assert.False(t, ok)
	assert.Equal(t, []string{"alice"}, b.ReviewerQueue("solo"), "no-op must not mutate the queue")

	reviewer, ok := b.NextReviewer("solo", "bob")
	require.True(t, ok)
	assert.Equal(t, "alice", reviewer)
}

func TestNextReviewerRandomExcludesAuthor(t *testing.T) {
	b := newTestBrain(t, config.ProjectsConfig{
		ReviewerPolicy: "random",
		Reviewers:      map[string][]string{"ckb": {"alice", "bob", "carol"}},
	})
	b.intN = func(n int) int { return n - 1 }

	reviewer, ok := b.NextReviewer("ckb", "bob")
	require.True(t, ok)
	assert.Equal(t, "carol", reviewer)
	// Random selection never mutates rotation order.
	assert.Equal(t, []string{"alice", "bob", "carol"}, b.ReviewerQueue("ckb"))

	_, ok = b.NextReviewer("only", "alice")
	assert.False(t, ok)
}
