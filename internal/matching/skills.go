package matching

import (
	"math"
	"strings"
)

// SkillMatch is the set-based comparison of required and offered skills.
// Matched and Missing are disjoint and together equal the normalized required set.
type SkillMatch struct {
	Matched []string
	Missing []string
}

// MatchSkills lower-cases and trims both lists, then splits the required skills into the ones
// the candidate has and the ones it lacks. Order follows the required list; duplicates collapse.
func MatchSkills(required, offered []string) SkillMatch {
	have := make(map[string]struct{}, len(offered))
	for _, s := range NormalizeSkills(offered) {
		have[s] = struct{}{}
	}

	result := SkillMatch{Matched: []string{}, Missing: []string{}}
	for _, s := range NormalizeSkills(required) {
		if _, ok := have[s]; ok {
			result.Matched = append(result.Matched, s)
			continue
		}
		result.Missing = append(result.Missing, s)
	}

	return result
}

// Percent is the share of required skills matched, 0-100. No required skills yields 0.
func (m SkillMatch) Percent() int {
	total := len(m.Matched) + len(m.Missing)
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(len(m.Matched)) * 100 / float64(total)))
}

// NormalizeSkills lower-cases, trims and de-duplicates skills, dropping empty entries.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
