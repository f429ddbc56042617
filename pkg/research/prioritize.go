package research

import (
	"sort"
	"strings"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

const DefaultTopK = 12

// ScoreAuthority assigns a heuristic relevance/authority score without an
// LLM: academic and government domains and known publishers score high,
// discussion forums are penalized.
func ScoreAuthority(url, title, content string) float64 {
	score := 0.0
	t := strings.ToLower(url)

	for _, tld := range []string{".edu", ".gov", ".ac.uk", ".ac.in", ".ac.jp"} {
		if strings.HasSuffix(t, tld) || strings.Contains(t, tld+"/") {
			score += 3.0
			break
		}
	}
	for _, k := range []string{"nature.com", "acm.org", "ieee.org", "arxiv.org", "springer", "sciencedirect"} {
		if strings.Contains(t, k) {
			score += 2.5
			break
		}
	}
	for _, k := range []string{"medium.com", "substack.com", "wikipedia.org"} {
		if strings.Contains(t, k) {
			score += 0.5
			break
		}
	}
	if strings.Contains(t, "arxiv.org") {
		score += 1.0
	}

	lc := strings.ToLower(content)
	if strings.Contains(lc, "author") || strings.Contains(lc, "by ") || strings.Contains(lc, "professor") {
		score += 0.5
	}

	for _, k := range []string{"reddit.com", "quora.com", "stackexchange.com"} {
		if strings.Contains(t, k) {
			score -= 0.5
			break
		}
	}
	return score
}

// Prioritize scores and reorders sources by authority, keeping the top k.
// The sort is stable so equally scored sources keep their search order.
func Prioritize(sources []pipeline.Source, topK int) []pipeline.Source {
	if topK <= 0 {
		topK = DefaultTopK
	}
	scored := make([]pipeline.Source, len(sources))
	for i, s := range sources {
		s.Score = ScoreAuthority(s.URL, s.Title, s.Content)
		scored[i] = s
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
