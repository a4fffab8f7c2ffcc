package domain

import "fmt"

// Candidate describes one task in an ambiguous title match.
type Candidate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Project string `json:"project"`
	Status  Status `json:"status"`
}

// NotFoundError is returned when no task matches an id or title query.
type NotFoundError struct {
	Ref string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no task matches %q", e.Ref)
}

// AmbiguousError is returned when a title query matches several tasks and no
// exact title wins. It carries the candidates so the caller can disambiguate.
type AmbiguousError struct {
	Query      string
	Candidates []Candidate
}

func (e AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches %d tasks; pass an id or a more specific title", e.Query, len(e.Candidates))
}

// ArgumentError is returned when a required command field is missing or
// malformed.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e ArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StatusError is returned for a status literal outside the fixed vocabulary.
type StatusError struct {
	Value string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unknown status %q, expected one of %v", e.Value, StatusNames())
}

// UnknownOpError is returned for an unrecognized operation name. Suggestion
// carries the closest valid operation, if one is close enough.
type UnknownOpError struct {
	Op         string
	Suggestion string
}

func (e UnknownOpError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown op %q, did you mean %q?", e.Op, e.Suggestion)
	}
	return fmt.Sprintf("unknown op %q, see the help op for the full list", e.Op)
}

// SchemaError is returned when an import payload fails shape validation.
// The import is rejected as a whole; no partial application is attempted.
type SchemaError struct {
	Detail string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("backup payload rejected: %s", e.Detail)
}
