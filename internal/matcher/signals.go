package matcher

import (
	"strings"
	"unicode"

	"jobpilot/internal/domain/match"
	"jobpilot/internal/filter"
)

const (
	// PassScore is the test percentage above which a skill counts as proven.
	PassScore         = 60.0
	maxSuggestedTests = 8
	similarityCutoff  = 0.6
)

// suggestTests cleans the model's test titles: deduplicated, limited to
// topics from the description or the missing skills, without skills the user
// already passed, and capped.
func suggestTests(proposed, missing []string, description string, history []match.SkillTest) []string {
	if len(proposed) == 0 {
		proposed = missing
	}
	desc := filter.Normalize(description)
	missingNorm := make([]string, 0, len(missing))
	for _, m := range missing {
		if n := filter.Normalize(m); n != "" {
			missingNorm = append(missingNorm, n)
		}
	}
	var passed []string
	for _, t := range history {
		if t.Score > PassScore {
			passed = append(passed, t.Skill)
		}
	}

	seen := make(map[string]bool, len(proposed))
	out := make([]string, 0, maxSuggestedTests)
	for _, s := range proposed {
		s = strings.TrimSpace(s)
		n := filter.Normalize(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if !grounded(n, desc, missingNorm) {
			continue
		}
		if passedAny(s, passed) {
			continue
		}
		out = append(out, s)
		if len(out) == maxSuggestedTests {
			break
		}
	}
	return out
}

func grounded(n, desc string, missing []string) bool {
	if strings.Contains(desc, n) {
		return true
	}
	for _, m := range missing {
		if strings.Contains(m, n) || strings.Contains(n, m) {
			return true
		}
	}
	return false
}

func passedAny(skill string, passed []string) bool {
	for _, p := range passed {
		if similar(p, skill) {
			return true
		}
	}
	return false
}

// similar treats two skill names as the same skill when they normalize to the
// same text or their token sets overlap enough. Containment alone is not
// enough: a passed "Java" test says nothing about "JavaScript".
func similar(a, b string) bool {
	na, nb := filter.Normalize(a), filter.Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return jaccard(tokens(na), tokens(nb)) >= similarityCutoff
}

func tokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '.' && r != '#'
	}) {
		if len(f) > 1 {
			out[f] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func completedTests(history []match.SkillTest) []match.CompletedTest {
	out := make([]match.CompletedTest, 0, len(history))
	for _, t := range history {
		out = append(out, match.CompletedTest{Skill: t.Skill, Score: t.Score, Date: t.CompletedAt})
	}
	return out
}

// uniqueStrings trims and drops blanks and case-insensitive repeats.
func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := filter.Normalize(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
