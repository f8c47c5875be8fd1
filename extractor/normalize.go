package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	excessBlank     = regexp.MustCompile(`\n{3,}`)

	// typography maps characters PDF producers emit for visual reasons back
	// onto the ASCII forms the field patterns are written against.
	typography = strings.NewReplacer(
		"\u00a0", " ", "\u2007", " ", "\u202f", " ",
		"\u2018", "'", "\u2019", "'", "\u201a", "'",
		"\u201c", `"`, "\u201d", `"`, "\u201e", `"`,
		"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2212", "-",
		"\u2022", "-", "\u25aa", "-", "\u25cf", "-",
		"**", "",
	)
)

// Normalize cleans raw extracted text before pattern matching. Line breaks
// are kept because table rows and labelled lines depend on them; runs of
// horizontal whitespace collapse to one space. Empty input yields "".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToValidUTF8(raw, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = norm.NFKC.String(s)
	s = typography.Replace(s)
	s = strings.Map(dropControl, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = excessBlank.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

func dropControl(r rune) rune {
	switch {
	case r == '\n':
		return r
	case r == '\t':
		return ' '
	case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
		return -1
	}
	return r
}
