package actions

import (
	"net/url"
	"strconv"
	"strings"

	"dosh/internal/core"
	"dosh/internal/filter"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 500
)

// parseID accepts only a positive decimal integer.
func parseID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseStart returns a non-negative offset, 0 when absent or malformed.
func parseStart(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseResults returns a page size in 1..MaxPageSize; def is used when raw is
// absent or malformed.
func parseResults(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// parseBool treats "", "0", "false" and "off" as false and anything else as true.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "off":
		return false
	default:
		return true
	}
}

// parseNeedsWants returns the tag, or "" for anything outside the fixed set.
func parseNeedsWants(raw string) core.NeedsWants {
	nw := core.NeedsWants(strings.TrimSpace(raw))
	if !nw.IsValid() {
		return ""
	}
	return nw
}

// rangeParam reads the first present key as a date range shorthand. A
// malformed value means no date constraint.
func rangeParam(params url.Values, keys ...string) (*filter.Range, error) {
	for _, k := range keys {
		if params.Has(k) {
			return filter.Parse(params.Get(k), core.AllTransactions)
		}
	}
	return nil, nil
}
