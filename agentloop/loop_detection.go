package agentloop

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// reviewSignature hashes the set of issues in a review, ignoring order.
func reviewSignature(r *ReviewResult) string {
	keys := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		keys = append(keys, fmt.Sprintf("%s|%s|%s",
			issue.Severity, issue.Category, strings.ToLower(strings.TrimSpace(issue.Description))))
	}
	sort.Strings(keys)
	h := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return fmt.Sprintf("%x", h[:8])
}

// DetectLoop checks if the last windowSize signatures follow a repeating
// pattern of length 1, 2, or 3 that occurs at least twice.
func DetectLoop(sigs []string, windowSize int) bool {
	if windowSize < 2 || len(sigs) < windowSize {
		return false
	}
	recent := sigs[len(sigs)-windowSize:]

	for patternLen := 1; patternLen <= 3 && patternLen*2 <= windowSize; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := recent[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if recent[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}

// stallDetector remembers review signatures across iterations.
type stallDetector struct {
	window int
	sigs   []string
}

// observe records r and reports whether the last window reviews repeat
// the same issue set.
func (d *stallDetector) observe(r *ReviewResult) bool {
	d.sigs = append(d.sigs, reviewSignature(r))
	if d.window <= 0 {
		return false
	}
	return DetectLoop(d.sigs, d.window) && sameSignature(d.sigs[len(d.sigs)-d.window:])
}

func sameSignature(sigs []string) bool {
	for _, s := range sigs[1:] {
		if s != sigs[0] {
			return false
		}
	}
	return true
}
