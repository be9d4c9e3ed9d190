// Package tags computes depth-tag updates for findings. A finding carries at
// most one "dependency-depth:<N>" tag recording the minimum transitive depth
// of its target dependency; all other tags pass through untouched.
package tags

import (
	"fmt"
	"regexp"
)

// DepthTagPrefix prefixes every dependency depth tag.
const DepthTagPrefix = "dependency-depth:"

var depthTagPattern = regexp.MustCompile(`^dependency-depth:\d+$`)

// DepthTag returns the tag string for a depth, e.g. "dependency-depth:2".
func DepthTag(depth int) string {
	return fmt.Sprintf("%s%d", DepthTagPrefix, depth)
}

// IsDepthTag reports whether tag is a well-formed depth tag. Near-misses
// such as "dependency-depth:x" are ordinary tags and are never touched.
func IsDepthTag(tag string) bool {
	return depthTagPattern.MatchString(tag)
}

// Reconcile computes the tag set a finding should carry given its computed
// depth. A nil depth means the target dependency was not found in the
// dependency graph; any existing depth tag is then removed. Otherwise the
// result carries exactly one depth tag with the given value. Reconcile is
// idempotent: feeding its output back with the same depth reports no change.
func Reconcile(current []string, depth *int) (newTags []string, changed bool, description string) {
	var others, depthTags []string
	for _, tag := range current {
		if IsDepthTag(tag) {
			depthTags = append(depthTags, tag)
		} else {
			others = append(others, tag)
		}
	}

	if depth == nil {
		if len(depthTags) > 0 {
			return others, true, fmt.Sprintf("remove %v (depth unknown)", depthTags)
		}
		return current, false, "no change (depth unknown)"
	}

	target := DepthTag(*depth)
	if len(depthTags) == 1 && depthTags[0] == target {
		return current, false, "no change (already correct)"
	}

	newTags = append(append([]string{}, others...), target)
	if len(depthTags) > 0 {
		return newTags, true, fmt.Sprintf("replace %v with [%s]", depthTags, target)
	}
	return newTags, true, fmt.Sprintf("add [%s]", target)
}
