package domain

import "strings"

// CanonicalProject picks the project name a new task should be filed under.
//
// An existing project whose name matches case-insensitively, or is a clear
// prefix/substring/word-for-word variant of the requested name, is reused
// with its stored casing so near-duplicate buckets never appear. Otherwise
// the name is created as typed; projects sharing at least one word come back
// as suggestions so the caller can self-correct.
func CanonicalProject(existing []string, name string) (string, []string) {
	name = strings.TrimSpace(name)
	folded := strings.ToLower(name)

	for _, e := range existing {
		if strings.ToLower(e) == folded {
			return e, nil
		}
	}

	if len(folded) >= 3 {
		for _, e := range existing {
			ef := strings.ToLower(e)
			if strings.Contains(ef, folded) || strings.Contains(folded, ef) {
				return e, nil
			}
		}
	}

	words := projectWords(folded)
	var suggestions []string
	for _, e := range existing {
		ew := projectWords(strings.ToLower(e))
		n := wordOverlap(words, ew)
		if n == 0 {
			continue
		}
		if n == len(words) || n == len(ew) {
			return e, nil
		}
		suggestions = append(suggestions, e)
	}
	return name, suggestions
}

func projectWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func wordOverlap(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, w := range a {
		set[w] = struct{}{}
	}
	n := 0
	for _, w := range b {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}

// Projects returns the distinct canonical project names in store order.
func Projects(tasks []Task) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tasks {
		key := t.ProjectKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t.Project)
	}
	return out
}
