package extractor

import (
	"regexp"
	"strings"

	"github.com/AnTengye/contractscore/model"
)

// Revenue types
const (
	RevenueRecurring = "recurring"
	RevenueOneTime   = "one-time"
	RevenueMixed     = "mixed"
)

var (
	revenueTypeLabel = regexp.MustCompile(`(?i)\bRevenue Type\s*:\s*([^\n]+)`)
	recurringSignal  = regexp.MustCompile(`(?i)\bsubscription\b|\brecurring\b|\bper month\b|\bmonthly (?:fee|charge|subscription)s?\b|/\s?mo(?:nth)?\b`)
	oneTimeSignal    = regexp.MustCompile(`(?i)\bone[- ]time\b|\blump[- ]sum\b|\bsingle payment\b|\bfixed[- ]fee\b|\bsetup fee\b|\bimplementation fee\b`)

	termLabel  = regexp.MustCompile(`(?i)\b(?:Initial Term|Contract Term|Subscription Term|Contract Period|Duration|Term)\s*:\s*([^\n]+)`)
	termClause = regexp.MustCompile(`(?i)\b(?:term|period)\s+of\s+((?:[a-z\-]+\s+)?\(?\d+\)?\s*(?:months?|years?))`)

	billingCycleLabel = regexp.MustCompile(`(?i)\bBilling (?:Cycle|Frequency|Period)\s*:\s*([^\n]+)`)
	billingCycleVerb  = regexp.MustCompile(`(?i)\b(?:billed|invoiced|billing)\s+(?:\w+\s+){0,2}?(monthly|quarterly|semi-annually|annually|yearly)\b`)

	autoRenewalSentence = regexp.MustCompile(`(?i)[^.\n]*\bauto(?:matic(?:ally)?)?[- ]?renew(?:al|als|s|ed)?\b[^.\n]*`)
	autoRenewalNegation = regexp.MustCompile(`(?i)\b(?:shall|will|does|do)\s+not\s+(?:be\s+)?(?:auto(?:matic(?:ally)?)?[- ]?)?renew|\bno\s+auto(?:matic)?[- ]?renewal|\bnot\s+(?:be\s+)?(?:subject\s+to\s+)?auto|auto[- ]?renewal\s*:\s*(?:no|none|false)\b`)

	terminationLabel  = regexp.MustCompile(`(?i)\bTermination Notice(?: Period)?\s*:\s*([^\n]+)`)
	noticePeriod      = regexp.MustCompile(`(?i)(?:[a-z\-]+\s+)?\(?(\d{1,3})\)?\s*(days?|months?)['’]?\s+(?:prior\s+)?(?:written\s+)?notice`)
	terminationSignal = regexp.MustCompile(`(?i)terminat|cancel|non-renew`)

	pricingLabel    = regexp.MustCompile(`(?i)\b(?:Price Adjustments?|Pricing Adjustments?|Price Escalation)\s*:\s*([^\n]+)`)
	pricingSentence = regexp.MustCompile(`(?i)([^.\n]*\b(?:price increases?|pricing adjustments?|price adjustments?|escalat(?:e|es|ion)|CPI)\b[^.\n]*)`)
)

// ExtractRevenueClassification recovers revenue type, term, billing cycle,
// renewal, termination notice and pricing adjustments.
func ExtractRevenueClassification(text string) *model.RevenueClassification {
	if text == "" {
		return nil
	}

	r := &model.RevenueClassification{
		Type:               revenueType(text),
		ContractTerm:       firstValue(text, termLabel, termClause),
		TerminationNotice:  terminationNotice(text),
		PricingAdjustments: firstValue(text, pricingLabel, pricingSentence),
	}
	if cycle := firstValue(text, billingCycleLabel, billingCycleVerb); cycle != nil {
		normalized := normalizeCycle(*cycle)
		r.BillingCycle = &normalized
	}
	if sentence := autoRenewalSentence.FindString(text); sentence != "" {
		renews := !autoRenewalNegation.MatchString(sentence)
		r.AutoRenewal = &renews
		r.AutoRenewalText = strPtr(sentence)
	}

	if r.Type == nil && r.ContractTerm == nil && r.BillingCycle == nil && r.AutoRenewal == nil &&
		r.TerminationNotice == nil && r.PricingAdjustments == nil {
		return nil
	}
	return r
}

// revenueType prefers an explicit label; otherwise it classifies from the
// pricing vocabulary. No signal at all means the type is absent.
func revenueType(text string) *string {
	if v := firstValue(text, revenueTypeLabel); v != nil {
		t := strings.ToLower(*v)
		return &t
	}
	recurring := recurringSignal.MatchString(text)
	oneTime := oneTimeSignal.MatchString(text)
	var t string
	switch {
	case recurring && oneTime:
		t = RevenueMixed
	case recurring:
		t = RevenueRecurring
	case oneTime:
		t = RevenueOneTime
	default:
		return nil
	}
	return &t
}

func normalizeCycle(v string) string {
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "month"):
		return "monthly"
	case strings.Contains(lower, "quarter"):
		return "quarterly"
	case strings.Contains(lower, "semi"):
		return "semi-annual"
	case strings.Contains(lower, "annual"), strings.Contains(lower, "year"):
		return "annual"
	}
	return lower
}

// terminationNotice takes the first notice period written on a line that
// talks about termination or cancellation, or an explicit label if that
// comes earlier.
func terminationNotice(text string) *string {
	label := terminationLabel.FindStringSubmatchIndex(text)
	for _, loc := range noticePeriod.FindAllStringSubmatchIndex(text, -1) {
		if label != nil && label[0] < loc[0] {
			break
		}
		if !terminationSignal.MatchString(lineAt(text, loc[0])) {
			continue
		}
		g := submatches(text, loc)
		notice := g[1] + " " + strings.ToLower(g[2])
		return &notice
	}
	if label != nil {
		return strPtr(text[label[2]:label[3]])
	}
	return nil
}
