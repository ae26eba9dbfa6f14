package hashtag

import "strings"

// Matches reports whether doc contains "#tag" anywhere, ignoring case.
// It is a plain substring test: "cat" matches "#category".
func Matches(doc, tag string) bool {
	tag = Normalize(tag)
	if tag == "" {
		return false
	}
	return strings.Contains(strings.ToLower(doc), string(Marker)+tag)
}

// Filter returns the indexes of docs that match tag.
func Filter(docs []string, tag string) []int {
	out := []int{}
	for i, d := range docs {
		if Matches(d, tag) {
			out = append(out, i)
		}
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so s is matched literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// LikePattern builds the ILIKE predicate equivalent of Matches: %#tag%.
func LikePattern(tag string) string {
	return "%" + string(Marker) + EscapeLike(Normalize(tag)) + "%"
}
