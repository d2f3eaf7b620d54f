// Package search compiles user keywords into FTS5 MATCH expressions.
//
// FTS5 treats bare tokens as query syntax, so raw user input can change
// query semantics or error out the whole statement. Keywords pass through
// an allow-list first and are then individually quoted, which leaves AND/OR
// combination as the only operator the caller controls.
package search

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoValidKeywords is returned when every candidate keyword was rejected.
// Callers degrade to an unfiltered listing rather than running a query that
// silently matches nothing.
var ErrNoValidKeywords = errors.New("search: no valid keywords after validation")

const maxKeywordLength = 100

var (
	allowedChars = regexp.MustCompile(`^[a-zA-Z0-9\s\-_\.@:,]+$`)

	// Rejected outright: operators and wildcards that would reach the
	// FTS5 parser even inside an otherwise clean keyword.
	forbiddenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bor\b`),
		regexp.MustCompile(`(?i)\bnot\b`),
		regexp.MustCompile(`(?i)NEAR\(`),
		regexp.MustCompile(`\*`),
	}
)

// ValidateKeywords filters a keyword list down to the safe subset, trimmed.
// Empty strings, overlong keywords, disallowed characters and embedded
// FTS5 operators are all dropped silently.
func ValidateKeywords(keywords []string) []string {
	var valid []string
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		if len(kw) > maxKeywordLength {
			continue
		}
		if !allowedChars.MatchString(kw) {
			continue
		}
		forbidden := false
		for _, p := range forbiddenPatterns {
			if p.MatchString(kw) {
				forbidden = true
				break
			}
		}
		if forbidden {
			continue
		}
		valid = append(valid, strings.TrimSpace(kw))
	}
	return valid
}

// BuildMatchQuery compiles keywords into one FTS5 MATCH expression. Each
// surviving keyword is double-quoted with embedded quotes doubled, then
// joined with the given operator ("AND" or "OR"). Returns
// ErrNoValidKeywords when nothing survives validation.
func BuildMatchQuery(keywords []string, op string) (string, error) {
	valid := ValidateKeywords(keywords)
	if len(valid) == 0 {
		return "", ErrNoValidKeywords
	}

	if op != "OR" {
		op = "AND"
	}

	quoted := make([]string, len(valid))
	for i, kw := range valid {
		quoted[i] = `"` + strings.ReplaceAll(kw, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " "+op+" "), nil
}
