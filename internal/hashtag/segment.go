package hashtag

import "strings"

type Kind string

const (
	KindPlain Kind = "plain"
	KindTag   Kind = "tag"
)

// Segment is a contiguous run of source text. For KindTag, Value excludes the marker.
type Segment struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Segments splits text into plain and tag runs in source order.
// Join(Segments(text)) == text for every input.
func Segments(text string) []Segment {
	out := []Segment{}
	last := 0
	scan(text, func(s span) {
		if s.start > last {
			out = append(out, Segment{Kind: KindPlain, Value: text[last:s.start]})
		}
		out = append(out, Segment{Kind: KindTag, Value: text[s.start+1 : s.end]})
		last = s.end
	})
	if last < len(text) {
		out = append(out, Segment{Kind: KindPlain, Value: text[last:]})
	}
	return out
}

// Join rebuilds the source text, re-inserting the marker before tag segments.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Kind == KindTag {
			b.WriteByte(Marker)
		}
		b.WriteString(s.Value)
	}
	return b.String()
}
