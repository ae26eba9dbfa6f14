package hashtag

import (
	"sort"
	"strings"
)

// DefaultTopN is the tag cloud size used by the feed.
const DefaultTopN = 10

type Tag struct {
	Name  string `json:"tag"`
	Count int    `json:"count"`
}

// Aggregate counts normalized tags across docs and returns the topN most
// frequent, highest count first. Equal counts keep first-seen order across the
// batch. topN <= 0 returns every tag.
func Aggregate(docs []string, topN int) []Tag {
	idx := map[string]int{}
	out := []Tag{}
	for _, d := range docs {
		scan(d, func(s span) {
			name := strings.ToLower(d[s.start+1 : s.end])
			i, ok := idx[name]
			if !ok {
				i = len(out)
				idx[name] = i
				out = append(out, Tag{Name: name})
			}
			out[i].Count++
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
