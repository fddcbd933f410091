package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SizeRule strips one family of size tokens from the start or end of a
// product name.
type SizeRule struct {
	Name   string
	prefix *regexp.Regexp
	suffix *regexp.Regexp
}

const (
	sep       = `[\s\-/:]+`
	sizeLabel = `(?:size[\s:]*)?`
)

func newSizeRule(name, token string) SizeRule {
	return SizeRule{
		Name:   name,
		prefix: regexp.MustCompile(`^` + sizeLabel + `(?:` + token + `)(?:` + sep + `|$)`),
		suffix: regexp.MustCompile(`(?:^|` + sep + `)` + sizeLabel + `(?:` + token + `)$`),
	}
}

// Strip removes a leading or trailing token of this rule.
func (r SizeRule) Strip(s string) string {
	s = r.suffix.ReplaceAllString(s, "")
	s = r.prefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DefaultSizeRules is the ordered rule list. Season ranges must run before
// numeric ranges so 2024-25 is not read as a size range.
var DefaultSizeRules = []SizeRule{
	newSizeRule("season", `\d{4}\s*[-/]\s*\d{2,4}`),
	newSizeRule("numeric_range", `\d{1,3}\s*-\s*\d{1,3}`),
	newSizeRule("word", `extra[\s-]?small|extra[\s-]?large|x[\s-]?small|x[\s-]?large|small|medium|large|one[\s-]?size|free[\s-]?size`),
	newSizeRule("letter", `5xl|4xl|3xl|2xl|xxxl|xxl|xxs|xl|xs|s|m|l`),
}

var separators = regexp.MustCompile(`[\s\-_/:.]+`)

// Normalize folds case and width, drops punctuation, strips size tokens
// from both ends until none are left, and collapses separators.
func Normalize(name string) string {
	return normalize(name, DefaultSizeRules)
}

func normalize(name string, rules []SizeRule) string {
	s := cases.Fold().String(norm.NFKC.String(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '/', r == ':', r == '.':
			return r
		case r == '\'' || r == '’':
			return -1
		default:
			return ' '
		}
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	for {
		before := s
		for _, rule := range rules {
			s = rule.Strip(s)
		}
		s = strings.Trim(s, " -/:.")
		if s == before {
			break
		}
	}

	return strings.TrimSpace(separators.ReplaceAllString(s, " "))
}
