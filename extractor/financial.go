package extractor

import (
	"regexp"
	"strings"

	"github.com/AnTengye/contractscore/model"
	"github.com/shopspring/decimal"
)

var (
	totalContractValue  = regexp.MustCompile(`(?i)\b(?:Total Contract Value|Total Contract Price|Total Contract Amount|Total Agreement Value|Total Value)\s*(?:\([^)\n]*\))?\s*[:\-]?\s*` + amountExpr)
	annualContractValue = regexp.MustCompile(`(?i)\b(?:Annual Contract Value|Annual Value|Annual Total|Annual Fee|Yearly Total|ACV)\s*(?:\([^)\n]*\))?\s*[:\-]?\s*` + amountExpr)
	totalMonthly        = regexp.MustCompile(`(?i)\b(?:Total Monthly(?: Recurring)?(?: Fees?| Costs?| Charges?)?|Monthly Total)\s*[:\-]?\s*` + amountExpr)
	totalOneTime        = regexp.MustCompile(`(?i)\b(?:Total One[- ]Time(?: Fees?| Costs?| Charges?)?|One[- ]Time Total|Total Setup Fees?)\s*[:\-]?\s*` + amountExpr)

	monthlyCostSuffix = regexp.MustCompile(`(?i)^[-* ]*([A-Za-z][A-Za-z0-9 &/()'\-]{1,60}?)\s*:\s*` + amountExpr + `\s*(?:/\s*mo(?:nth)?\b|per month\b|a month\b|monthly\b)`)
	monthlyCostLabel  = regexp.MustCompile(`(?i)^[-* ]*(Monthly [A-Za-z0-9 &/'\-]{1,60}?|[A-Za-z][A-Za-z0-9 &/'\-]{1,60}?\s*\(monthly\))\s*:\s*` + amountExpr)
	oneTimeCostLabel  = regexp.MustCompile(`(?i)^[-* ]*((?:One[- ]Time|Setup|Set-up|Implementation|Onboarding|Installation|Initial|Migration|Training)\b[A-Za-z0-9 &/'\-]{0,60}?|[A-Za-z][A-Za-z0-9 &/'\-]{1,60}?\s*\(one[- ]time\))\s*:\s*` + amountExpr)
	oneTimeCostSuffix = regexp.MustCompile(`(?i)^[-* ]*([A-Za-z][A-Za-z0-9 &/'\-]{1,60}?)\s*:\s*` + amountExpr + `\s*\(?(?:one[- ]time|non-recurring)\b`)

	lineItemTimes = regexp.MustCompile(`(?i)^[-* ]*(?:\d+[.)]\s+)?([A-Za-z][^:\n|]{1,80}?)\s*:\s*(\d+(?:\.\d+)?)\s*(?:x|×|@)\s*` + amountExpr)
	lineItemHours = regexp.MustCompile(`(?i)^[-* ]*(?:\d+[.)]\s+)?([A-Za-z][^:\n|]{1,80}?)\s*:\s*(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\s*\(\s*` + amountExpr + `\s*\)`)
	leadingMarker = regexp.MustCompile(`^[-* ]*(?:\d+[.)]\s+)?`)
	monthlyTag    = regexp.MustCompile(`(?i)\s*\(monthly\)`)
	oneTimeTag    = regexp.MustCompile(`(?i)\s*\(one[- ]time\)`)
)

// ExtractFinancialDetails recovers line items, named costs, totals and currency.
func ExtractFinancialDetails(text string) *model.FinancialDetails {
	if text == "" {
		return nil
	}

	f := &model.FinancialDetails{
		LineItems:           lineItems(text),
		TotalContractValue:  firstAmount(text, totalContractValue),
		AnnualContractValue: firstAmount(text, annualContractValue),
		TotalMonthly:        firstAmount(text, totalMonthly),
		TotalOneTime:        firstAmount(text, totalOneTime),
		Currency:            detectCurrency(text),
	}
	f.MonthlyCosts = namedCosts(text, monthlyTag, monthlyCostLabel, monthlyCostSuffix)
	f.OneTimeCosts = namedCosts(text, oneTimeTag, oneTimeCostLabel, oneTimeCostSuffix)

	if f.TotalMonthly == nil {
		f.TotalMonthly = sumCosts(f.MonthlyCosts)
	}
	if f.TotalOneTime == nil {
		f.TotalOneTime = sumCosts(f.OneTimeCosts)
	}

	if len(f.LineItems) == 0 && len(f.MonthlyCosts) == 0 && len(f.OneTimeCosts) == 0 &&
		!f.HasTotals() && f.Currency == nil {
		return nil
	}
	return f
}

// lineItems scans line by line so each row yields at most one item and items
// keep document order. Rows whose numbers do not parse are skipped.
func lineItems(text string) []model.LineItem {
	var items []model.LineItem
	for _, line := range strings.Split(text, "\n") {
		if item, ok := parseLineItem(line); ok {
			items = append(items, item)
		}
	}
	return items
}

func parseLineItem(line string) (model.LineItem, bool) {
	if strings.Count(line, "|") >= 2 {
		return parseTableRow(line)
	}
	if m := lineItemTimes.FindStringSubmatch(line); m != nil {
		qty, price := ParseAmount(m[2]), ParseAmount(m[3])
		return newLineItem(m[1], qty, price)
	}
	if m := lineItemHours.FindStringSubmatch(line); m != nil {
		qty, total := ParseAmount(m[2]), ParseAmount(m[3])
		if qty == nil || total == nil || !qty.IsPositive() {
			return model.LineItem{}, false
		}
		unit := total.Div(*qty).Round(2)
		return model.LineItem{
			Description: cleanValue(m[1]),
			Quantity:    *qty,
			UnitPrice:   unit,
			Total:       *total,
		}, true
	}
	return model.LineItem{}, false
}

// parseTableRow reads "description | quantity | unit price [| total]".
// Header rows fall out naturally because their cells are not numeric.
func parseTableRow(line string) (model.LineItem, bool) {
	var cells []string
	for _, cell := range strings.Split(line, "|") {
		if cell = strings.TrimSpace(cell); cell != "" {
			cells = append(cells, cell)
		}
	}
	if len(cells) < 3 {
		return model.LineItem{}, false
	}
	return newLineItem(cells[0], ParseAmount(cells[1]), ParseAmount(cells[2]))
}

func newLineItem(description string, qty, price *decimal.Decimal) (model.LineItem, bool) {
	description = cleanValue(leadingMarker.ReplaceAllString(description, ""))
	if description == "" || qty == nil || price == nil || !qty.IsPositive() || price.IsNegative() {
		return model.LineItem{}, false
	}
	return model.LineItem{
		Description: description,
		Quantity:    *qty,
		UnitPrice:   *price,
		Total:       qty.Mul(*price),
	}, true
}

// namedCosts maps a cleaned label to its first amount. Labels that describe
// totals are left to the aggregate patterns.
func namedCosts(text string, tag *regexp.Regexp, patterns ...*regexp.Regexp) map[string]decimal.Decimal {
	costs := make(map[string]decimal.Decimal)
	for _, line := range strings.Split(text, "\n") {
		groups := firstMatch(line, patterns...)
		if groups == nil {
			continue
		}
		label := cleanValue(tag.ReplaceAllString(groups[1], ""))
		if label == "" || strings.Contains(strings.ToLower(label), "total") {
			continue
		}
		if _, seen := costs[label]; seen {
			continue
		}
		if amount := ParseAmount(groups[2]); amount != nil {
			costs[label] = *amount
		}
	}
	if len(costs) == 0 {
		return nil
	}
	return costs
}

func sumCosts(costs map[string]decimal.Decimal) *decimal.Decimal {
	if len(costs) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, v := range costs {
		sum = sum.Add(v)
	}
	return &sum
}
