// Package keyword implements the monitor keyword-expression language.
//
// An expression is a list of lines combined by a mode. Within one line, `+`
// builds an AND-group and `~` an OR-group; a line with neither operator is a
// plain substring term. The two operators cannot be mixed in one line.
package keyword

import "strings"

// Mode selects how expression lines combine.
type Mode string

const (
	// ModeOR matches when any line matches.
	ModeOR Mode = "OR"
	// ModeAND matches only when every line matches.
	ModeAND Mode = "AND"
)

// ParseMode normalises a stored mode string. Anything other than AND is OR.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeAND)) {
		return ModeAND
	}
	return ModeOR
}

// SearchText builds the case-folded haystack from a listing's text fields,
// dropping empty parts.
func SearchText(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}

// Matches reports whether searchText satisfies the expression. Blank lines
// are ignored; an expression with no effective lines matches everything.
func Matches(searchText string, lines []string, mode Mode) bool {
	haystack := strings.ToLower(searchText)

	effective := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			effective = append(effective, line)
		}
	}
	if len(effective) == 0 {
		return true
	}

	if mode == ModeAND {
		for _, line := range effective {
			if !matchLine(haystack, line) {
				return false
			}
		}
		return true
	}

	for _, line := range effective {
		if matchLine(haystack, line) {
			return true
		}
	}
	return false
}

func matchLine(haystack, line string) bool {
	hasAnd := strings.Contains(line, "+")
	hasOr := strings.Contains(line, "~")

	switch {
	case hasAnd && hasOr:
		// Mixed operators are rejected rather than guessed at.
		return false
	case hasAnd:
		for _, term := range terms(line, "+") {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
		return true
	case hasOr:
		for _, term := range terms(line, "~") {
			if strings.Contains(haystack, term) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(haystack, strings.ToLower(line))
	}
}

func terms(line, sep string) []string {
	parts := strings.Split(line, sep)
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			kept = append(kept, p)
		}
	}
	return kept
}
