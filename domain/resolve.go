package domain

import "strings"

// TaskRef identifies an existing task either by id or by one or more title
// substrings (matched as a logical OR). Exact short-circuits ambiguity by
// taking the first candidate in store order.
type TaskRef struct {
	ID      string
	Queries []string
	Exact   bool
}

// IsZero reports whether the reference carries neither an id nor a query.
func (r TaskRef) IsZero() bool {
	return r.ID == "" && len(r.Queries) == 0
}

func (r TaskRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return strings.Join(r.Queries, ", ")
}

// MatchTasks returns every task whose title contains any of the queries as a
// case-insensitive substring, preserving store order.
func MatchTasks(tasks []Task, queries []string) []Task {
	folded := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.ToLower(strings.TrimSpace(q))
		if q != "" {
			folded = append(folded, q)
		}
	}
	if len(folded) == 0 {
		return nil
	}
	var out []Task
	for _, t := range tasks {
		title := strings.ToLower(t.Title)
		for _, q := range folded {
			if strings.Contains(title, q) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// ResolveTask resolves a reference against the task collection.
//
// Resolution order: an id resolves directly; a single case-insensitive exact
// title match wins over any number of substring matches; a single substring
// match wins; multiple substring matches are ambiguous unless Exact is set,
// in which case the first candidate in store order is used.
func ResolveTask(tasks []Task, ref TaskRef) (Task, error) {
	if ref.ID != "" {
		for _, t := range tasks {
			if t.ID == ref.ID {
				return t, nil
			}
		}
		return Task{}, NotFoundError{Ref: ref.ID}
	}
	if len(ref.Queries) == 0 {
		return Task{}, ArgumentError{Field: "title", Reason: "task reference requires an id or a title query"}
	}

	matches := MatchTasks(tasks, ref.Queries)
	if len(matches) == 0 {
		return Task{}, NotFoundError{Ref: ref.String()}
	}

	var exact []Task
	for _, t := range matches {
		for _, q := range ref.Queries {
			if strings.EqualFold(t.Title, strings.TrimSpace(q)) {
				exact = append(exact, t)
				break
			}
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if ref.Exact {
		return matches[0], nil
	}
	return Task{}, AmbiguousError{Query: ref.String(), Candidates: CandidatesOf(matches)}
}

// CandidatesOf converts tasks into disambiguation candidates.
func CandidatesOf(tasks []Task) []Candidate {
	out := make([]Candidate, len(tasks))
	for i, t := range tasks {
		out[i] = Candidate{ID: t.ID, Title: t.Title, Project: t.Project, Status: t.Status}
	}
	return out
}
