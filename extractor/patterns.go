package extractor

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountExpr captures the numeric part of a currency-prefixed amount.
const amountExpr = `(?:[$€£¥]|\b(?:USD|EUR|GBP|CAD|AUD|JPY)\b)\s?(\d[\d,]*(?:\.\d+)?)`

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{3}\)|\b\d{3})[\s.\-]?\d{3}[\s.\-]\d{4}\b`)

	currencyPattern = regexp.MustCompile(`[$€£¥]|\b(?:USD|EUR|GBP|CAD|AUD|JPY|CHF|INR)\b`)
	amountNoise     = regexp.MustCompile(`(?i)\b(?:USD|EUR|GBP|CAD|AUD|JPY)\b|[$€£¥,\s]`)
	blankLine       = regexp.MustCompile(`\n\s*\n`)
)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

// ParseAmount turns a currency string such as "$120,000.50" into a decimal.
// Anything that does not parse is reported as absent (nil), never as zero.
func ParseAmount(raw string) *decimal.Decimal {
	cleaned := amountNoise.ReplaceAllString(strings.TrimSpace(raw), "")
	cleaned = strings.TrimRight(cleaned, ".")
	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &d
}

// detectCurrency returns the ISO code of the first currency marker in the text.
func detectCurrency(text string) *string {
	m := currencyPattern.FindString(text)
	if m == "" {
		return nil
	}
	if code, ok := currencySymbols[m]; ok {
		return &code
	}
	return &m
}

// firstMatch runs every pattern and returns the submatches of whichever match
// starts earliest in the text. Ties go to the pattern listed first.
func firstMatch(text string, patterns ...*regexp.Regexp) []string {
	best := -1
	var groups []string
	for _, re := range patterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			groups = submatches(text, loc)
		}
	}
	return groups
}

// firstValue is firstMatch reduced to the first non-empty capture group.
func firstValue(text string, patterns ...*regexp.Regexp) *string {
	groups := firstMatch(text, patterns...)
	for _, g := range groups[min(1, len(groups)):] {
		if v := cleanValue(g); v != "" {
			return &v
		}
	}
	return nil
}

// firstAmount returns the first parseable amount captured by re.
func firstAmount(text string, re *regexp.Regexp) *decimal.Decimal {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if amount := ParseAmount(m[len(m)-1]); amount != nil {
			return amount
		}
	}
	return nil
}

func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), " ,;:.\"'")
}

func strPtr(s string) *string {
	s = cleanValue(s)
	if s == "" {
		return nil
	}
	return &s
}

// paragraphEnd returns the offset of the next blank line after from, capped
// at limit characters.
func paragraphEnd(text string, from, limit int) int {
	end := min(len(text), from+limit)
	if loc := blankLine.FindStringIndex(text[from:end]); loc != nil {
		return from + loc[0]
	}
	return end
}

// lineAt returns the full line containing offset.
func lineAt(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		return text[start:]
	}
	return text[start : offset+end]
}

// compact removes the space some documents put between a figure and its unit
// sign, so "99.9 %" and "99.9%" compare equal.
func compact(s string) string {
	return strings.ReplaceAll(cleanValue(s), " %", "%")
}
