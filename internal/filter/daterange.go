// Package filter turns user supplied filter parameters into SQL predicates.
//
// Date windows are written in a compact shorthand that maps directly onto
// SQLite's date() modifiers:
//
//	"-7 days"                                 last seven days up to now
//	"start of month,-1 month:start of month"  last calendar month
//	"literal:2011-01-01:2011-12-31"           an explicit pair of dates
//
// Every term ends up as a bound parameter; no user text is spliced into SQL.
package filter

import (
	"errors"
	"strings"
)

const (
	// BaseNow is the implicit starting point of relative bounds.
	BaseNow = "now"

	literalPrefix = "literal"
)

var ErrMalformedRange = errors.New("malformed date range")

// Bound is one end of a date window: a base date followed by modifiers that
// the store applies in order.
type Bound struct {
	Base      string
	Modifiers []string
}

// Terms returns the base followed by its modifiers.
func (b Bound) Terms() []string {
	terms := make([]string, 0, len(b.Modifiers)+1)
	terms = append(terms, b.Base)
	return append(terms, b.Modifiers...)
}

// SQL returns a date() call with one placeholder per term, and the matching
// arguments.
func (b Bound) SQL() (string, []any) {
	terms := b.Terms()
	args := make([]any, len(terms))
	for i, t := range terms {
		args[i] = t
	}
	return "date(" + placeholders(len(terms)) + ")", args
}

// Range is an inclusive date window.
type Range struct {
	From Bound
	To   Bound
}

// Parse expands a shorthand string into a Range.
//
// An empty string, or one equal to any of the ignore sentinels, yields a nil
// Range: the caller applies no date constraint. Unknown keywords are kept as
// they are and left to the store to interpret.
func Parse(shorthand string, ignore ...string) (*Range, error) {
	shorthand = strings.TrimSpace(shorthand)
	if shorthand == "" {
		return nil, nil
	}
	for _, s := range ignore {
		if shorthand == s {
			return nil, nil
		}
	}

	parts := strings.Split(shorthand, ":")
	if parts[0] == literalPrefix {
		if len(parts) < 3 {
			return nil, ErrMalformedRange
		}
		from, to := strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
		if from == "" || to == "" {
			return nil, ErrMalformedRange
		}
		return &Range{
			From: Bound{Base: from},
			To:   Bound{Base: to},
		}, nil
	}

	r := &Range{
		From: Bound{Base: BaseNow, Modifiers: splitTerms(parts[0])},
		To:   Bound{Base: BaseNow},
	}
	if len(parts) > 1 {
		r.To.Modifiers = splitTerms(parts[1])
	}
	return r, nil
}

// MustParse is Parse for shorthands known at compile time.
func MustParse(shorthand string) *Range {
	r, err := Parse(shorthand)
	if err != nil {
		panic(err)
	}
	return r
}

func splitTerms(s string) []string {
	var terms []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
