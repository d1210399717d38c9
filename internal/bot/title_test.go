package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleHasHold(t *testing.T) {
	assert.True(t, titleHasHold("WIP: new sync"))
	assert.True(t, titleHasHold("hold this one"))
	assert.True(t, titleHasHold("✋ not yet"))
	assert.True(t, titleHasHold("[wip] rework"))
	assert.False(t, titleHasHold("whipcream topping"))
	assert.False(t, titleHasHold("upholding invariants"))
	assert.False(t, titleHasHold("fix: overflow"))
}

func TestTitleIsFix(t *testing.T) {
	assert.True(t, titleIsFix("fix: pool deadlock"))
	assert.True(t, titleIsFix("Fix overflow in verifier"))
	assert.False(t, titleIsFix("prefix handling"))
	assert.False(t, titleIsFix("feat: add rpc"))
}

func TestRefVersion(t *testing.T) {
	v, ok := refVersion("refs/heads/rc/v0.38.1")
	assert.True(t, ok)
	assert.Equal(t, []int{0, 38, 1}, v)

	_, ok = refVersion("refs/heads/feature/thing")
	assert.False(t, ok)

	assert.True(t, versionLess([]int{0, 9}, []int{0, 38}))
	assert.True(t, versionLess([]int{0, 38}, []int{0, 38, 1}))
}
