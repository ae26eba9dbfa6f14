// Package hashtag finds, renders, counts and filters #tags in free text.
//
// A tag is the '#' marker followed by one or more word bytes. Word bytes are
// exactly ASCII letters, digits and underscore; anything else (including
// non-ASCII letters) ends a tag.
package hashtag

import "strings"

const Marker = '#'

// MaxStoredTags caps the de-duplicated tag list kept on an entry row.
const MaxStoredTags = 20

func isWord(b byte) bool {
	return b == '_' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}

// span is a [start,end) byte range of one tag in the source text, marker included.
type span struct {
	start, end int
}

// scan walks text left to right and reports non-overlapping tag spans.
// "##tag" yields one span starting at the second marker.
func scan(text string, fn func(s span)) {
	for i := 0; i < len(text); {
		if text[i] != Marker {
			i++
			continue
		}
		j := i + 1
		for j < len(text) && isWord(text[j]) {
			j++
		}
		if j == i+1 {
			i++
			continue
		}
		fn(span{start: i, end: j})
		i = j
	}
}

// Extract returns tag tokens without the marker, in order of appearance.
// Duplicates are kept and casing is preserved.
func Extract(text string) []string {
	out := []string{}
	scan(text, func(s span) {
		out = append(out, text[s.start+1:s.end])
	})
	return out
}

// Normalize lower-cases a tag and drops a leading marker if present.
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), string(Marker)))
}

// Valid reports whether tag (after Normalize) is a non-empty run of word bytes.
func Valid(tag string) bool {
	tag = Normalize(tag)
	if tag == "" {
		return false
	}
	for i := 0; i < len(tag); i++ {
		if !isWord(tag[i]) {
			return false
		}
	}
	return true
}

// Unique returns normalized, de-duplicated tags of text in first-seen order,
// capped at max entries (max <= 0 means no cap).
func Unique(text string, max int) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, t := range Extract(text) {
		t = strings.ToLower(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
