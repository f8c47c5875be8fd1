package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AnTengye/contractscore/model"
)

// Severity tiers used as response-time keys.
const (
	TierCritical = "critical"
	TierHigh     = "high"
	TierMedium   = "medium"
	TierLow      = "low"
)

var (
	uptimeLeading  = regexp.MustCompile(`(?i)(\d{2,3}(?:\.\d+)?\s?%)\s*(?:service\s+|system\s+)?(?:uptime|availability)`)
	uptimeTrailing = regexp.MustCompile(`(?i)\b(?:uptime|availability)(?:\s+(?:commitment|guarantee|target|SLA))?\s*(?:of|:|shall be|will be|is)?\s*(?:at least\s+)?(\d{2,3}(?:\.\d+)?\s?%)`)

	responseContext = regexp.MustCompile(`(?i)respon`)
	responseTier    = regexp.MustCompile(`(?i)\b(critical|emergency|urgent|high|medium|normal|moderate|low|routine|minor|sev(?:erity)?\s*[1-4]|p[1-4]|priority\s*[1-4])\b(?:\s+(?:priority|severity|issues?|incidents?))?[^\n\d]{0,40}?(\d+(?:\.\d+)?)\s*(minutes?|mins?|hours?|hrs?|business\s+days?|days?)\b`)
	tierDigit       = regexp.MustCompile(`[1-4]`)

	creditLeading  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s?%)\s+(?:service\s+)?credit[^\n]{0,80}?(?:below|under|less than)\s+(\d{1,3}(?:\.\d+)?\s?%)`)
	creditTrailing = regexp.MustCompile(`(?i)(?:below|under|less than)\s+(\d{1,3}(?:\.\d+)?\s?%)[^\n]{0,80}?(\d+(?:\.\d+)?\s?%)\s+(?:service\s+)?credit`)
	creditPenalty  = regexp.MustCompile(`(?i)(?:service credit|penalty)[^\n%]{0,40}?(\d+(?:\.\d+)?\s?%)[^\n%]{0,60}?(?:below|under|less than)\s+(\d{1,3}(?:\.\d+)?\s?%)`)
)

type metricRule struct {
	key     string
	pattern *regexp.Regexp
}

// performanceRules are checked in this order; each key keeps its first match.
var performanceRules = []metricRule{
	{"system_response_time", regexp.MustCompile(`(?i)\bsystem response time[^\n\d]{0,30}?(\d+(?:\.\d+)?\s*(?:ms|milliseconds?|seconds?|secs?))`)},
	{"backup_success_rate", regexp.MustCompile(`(?i)\bbackup success rate[^\n\d]{0,30}?(\d+(?:\.\d+)?\s?%)`)},
	{"resolution_time", regexp.MustCompile(`(?i)\b(?:resolution time|time to resolution)[^\n\d]{0,30}?(\d+(?:\.\d+)?\s*(?:hours?|business days?|days?))`)},
	{"recovery_time_objective", regexp.MustCompile(`(?i)\b(?:RTO|recovery time objective)[^\n\d]{0,30}?(\d+(?:\.\d+)?\s*(?:minutes?|hours?))`)},
	{"recovery_point_objective", regexp.MustCompile(`(?i)\b(?:RPO|recovery point objective)[^\n\d]{0,30}?(\d+(?:\.\d+)?\s*(?:minutes?|hours?))`)},
	{"error_rate", regexp.MustCompile(`(?i)\berror rate[^\n\d]{0,30}?(\d+(?:\.\d+)?\s?%)`)},
}

// ExtractSLATerms recovers uptime, response tiers, metrics and service credits.
func ExtractSLATerms(text string) *model.SLATerms {
	if text == "" {
		return nil
	}

	s := &model.SLATerms{
		ResponseTimes:      responseTimes(text),
		PerformanceMetrics: performanceMetrics(text),
		ServiceCredits:     serviceCredits(text),
	}
	if groups := firstMatch(text, uptimeLeading, uptimeTrailing); groups != nil {
		s.UptimeCommitment = strPtr(compact(groups[1]))
	}

	if s.UptimeCommitment == nil && len(s.ResponseTimes) == 0 &&
		len(s.PerformanceMetrics) == 0 && len(s.ServiceCredits) == 0 {
		return nil
	}
	return s
}

// responseTimes reads tier rows on lines that talk about response, plus the
// lines that follow a "Response Time" heading up to the next blank line.
func responseTimes(text string) map[string]string {
	times := make(map[string]string)
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			inBlock = false
			continue
		}
		mentionsResponse := responseContext.MatchString(line)
		if mentionsResponse {
			inBlock = true
		}
		if !inBlock {
			continue
		}
		m := responseTier.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		tier := severityTier(m[1])
		if _, seen := times[tier]; seen {
			continue
		}
		times[tier] = m[2] + " " + strings.ToLower(m[3])
	}
	if len(times) == 0 {
		return nil
	}
	return times
}

func severityTier(word string) string {
	w := strings.ToLower(word)
	if d := tierDigit.FindString(w); d != "" && (strings.HasPrefix(w, "sev") || strings.HasPrefix(w, "p")) {
		switch d {
		case "1":
			return TierCritical
		case "2":
			return TierHigh
		case "3":
			return TierMedium
		}
		return TierLow
	}
	switch w {
	case "critical", "emergency":
		return TierCritical
	case "high", "urgent":
		return TierHigh
	case "medium", "normal", "moderate":
		return TierMedium
	}
	return TierLow
}

func performanceMetrics(text string) map[string]string {
	metrics := make(map[string]string)
	for _, rule := range performanceRules {
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			metrics[rule.key] = compact(m[1])
		}
	}
	if len(metrics) == 0 {
		return nil
	}
	return metrics
}

// serviceCredits yields at most one credit per line. A line whose percentages
// are out of range is skipped.
func serviceCredits(text string) []model.ServiceCredit {
	var credits []model.ServiceCredit
	for _, line := range strings.Split(text, "\n") {
		credit, threshold, ok := creditOnLine(line)
		if !ok {
			continue
		}
		credits = append(credits, model.ServiceCredit{
			Threshold:        threshold,
			CreditPercentage: credit,
			Description:      cleanValue(line),
		})
	}
	return credits
}

func creditOnLine(line string) (credit, threshold string, ok bool) {
	best := -1
	for i, re := range []*regexp.Regexp{creditLeading, creditTrailing, creditPenalty} {
		loc := re.FindStringSubmatchIndex(line)
		if loc == nil || (best != -1 && loc[0] >= best) {
			continue
		}
		g := submatches(line, loc)
		credit, threshold = g[1], g[2]
		if i == 1 {
			credit, threshold = g[2], g[1]
		}
		best = loc[0]
	}
	if best == -1 {
		return "", "", false
	}
	credit, threshold = compact(credit), compact(threshold)
	if !validPercent(credit) || !validPercent(threshold) {
		return "", "", false
	}
	return credit, threshold, true
}

func validPercent(s string) bool {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	return err == nil && v >= 0 && v <= 100
}
