package registry

import (
	"sort"
	"strings"
)

const DefaultMatchLimit = 5

// Score weights for FindMatching.
const (
	categoryWeight    = 0.5
	keywordWeight     = 0.3
	descriptionWeight = 0.2
)

type MatchOptions struct {
	Limit     int
	Threshold float64
}

type Match struct {
	Registration
	Score float64 `json:"score"`
}

// FindMatching scores every enabled registration against input by plain
// substring containment and returns the best ones. Entries that match nothing
// are never returned. Equal scores keep registration order.
func (r *Registry) FindMatching(input string, opts MatchOptions) []Match {
	if opts.Limit <= 0 {
		opts.Limit = DefaultMatchLimit
	}
	text := strings.ToLower(input)

	r.mu.RLock()
	var matches []Match
	for _, reg := range r.order {
		if !reg.Enabled {
			continue
		}
		if score := scoreOf(reg, text); score > 0 && score >= opts.Threshold {
			matches = append(matches, Match{Registration: *reg, Score: score})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches
}

func scoreOf(reg *Registration, text string) float64 {
	var score float64
	for _, c := range reg.Categories {
		if c != "" && strings.Contains(text, strings.ToLower(c)) {
			score += categoryWeight
		}
	}
	for _, k := range reg.Keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			score += keywordWeight
		}
	}
	if fields := strings.Fields(reg.Description); len(fields) > 0 &&
		strings.Contains(text, strings.ToLower(fields[0])) {
		score += descriptionWeight
	}
	return score
}
