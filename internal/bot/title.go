package bot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

// baseTagMarker prefixes the base-branch tag in PR titles, e.g.
// "[ᚬrc/v0.38] fix overflow".
const baseTagMarker = "ᚬ"

var titleWordRe = regexp.MustCompile(`\w+`)

func baseBranchTag(base string) string {
	return "[" + baseTagMarker + base + "]"
}

// titleHasHold classifies a PR title as held. Matching is word-based
// and case-insensitive, so "WIP: thing" holds but "whipcream" does not.
func titleHasHold(title string) bool {
	if strings.Contains(title, "✋") {
		return true
	}
	for _, word := range titleWordRe.FindAllString(strings.ToLower(title), -1) {
		if word == "hold" || word == "wip" {
			return true
		}
	}
	return false
}

// titleIsFix classifies a title as a bug fix for backport tagging.
func titleIsFix(title string) bool {
	lower := strings.ToLower(title)
	if strings.Contains(lower, "fix:") {
		return true
	}
	for _, word := range strings.Fields(lower) {
		if word == "fix" {
			return true
		}
	}
	return false
}

// latestRCRef picks the highest-versioned ref among "rc/v*" release
// branches, comparing dotted numeric components.
func latestRCRef(refs []repository.Ref) (repository.Ref, bool) {
	var (
		best    repository.Ref
		bestVer []int
		found   bool
	)
	for _, ref := range refs {
		version, ok := refVersion(ref.Ref)
		if !ok {
			continue
		}
		if !found || versionLess(bestVer, version) {
			best, bestVer, found = ref, version, true
		}
	}
	return best, found
}

// refVersion extracts the numeric version from a ref like
// "refs/heads/rc/v0.38.1".
func refVersion(ref string) ([]int, bool) {
	idx := strings.LastIndex(ref, "/v")
	if idx < 0 {
		return nil, false
	}
	parts := strings.Split(ref[idx+2:], ".")
	version := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		version = append(version, n)
	}
	return version, len(version) > 0
}

func versionLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
