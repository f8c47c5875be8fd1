package extractor

import (
	"regexp"

	"github.com/AnTengye/contractscore/model"
)

var (
	paymentTermsLabel = regexp.MustCompile(`(?i)\bPayment Terms?\s*:\s*([^\n]+)`)
	paymentTermsNet   = regexp.MustCompile(`(?i)\b(Net\s?-?\s?\d{1,3}(?:\s+days)?)\b`)

	scheduleLabel = regexp.MustCompile(`(?i)\b(?:Payment Schedule|Billing Schedule|Invoic(?:e|ing) Schedule)\s*:\s*([^\n]+)`)
	scheduleVerb  = regexp.MustCompile(`(?i)\b(?:invoiced|billed|payable|paid)\s+((?:monthly|quarterly|annually|yearly|semi-annually|weekly)(?:\s+in\s+(?:advance|arrears))?|in\s+(?:advance|arrears)|upon\s+(?:completion|delivery|signing))`)

	methodLabel = regexp.MustCompile(`(?i)\b(?:Accepted Payment Methods?|Payment Methods?|Method of Payment|Payment Options?)\s*:\s*([^\n.]+)`)
	methodVerb  = regexp.MustCompile(`(?i)\b(?:paid|payable|payments?\s+(?:shall|will)\s+be\s+made)\s+(?:by|via|through)\s+(ACH(?:\s+transfer)?|wire transfer|bank transfer|check|cheque|credit card|direct debit)`)

	dueDateLabel  = regexp.MustCompile(`(?i)\b(?:Payment Due Date|Due Date|Payment Due)\s*:\s*([^\n]+)`)
	dueDateClause = regexp.MustCompile(`(?i)\bdue\s+((?:on|by)\s+the\s+\w+\s+(?:business\s+)?day\s+of\s+(?:each|the)\s+\w+|within\s+\d+\s+days\s+of\s+(?:the\s+)?(?:invoice|receipt)(?:\s+date)?)`)

	lateFeePattern = regexp.MustCompile(`(?i)\b(?:late (?:payment )?(?:fee|charge|interest)s?|interest on (?:late|overdue) (?:payments?|amounts?)|overdue (?:amounts?|balances?))[^\n%$]{0,60}?(\d+(?:\.\d+)?\s?%(?:\s+per\s+(?:month|annum|year))?|[$€£]\s?\d[\d,]*(?:\.\d+)?)`)

	discountLeading  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s?%\s+(?:early[- ]payment\s+)?discount[^\n.]*)`)
	discountTrailing = regexp.MustCompile(`(?i)\b((?:early[- ]payment\s+)?discount\s*(?:of|:)\s*\d+(?:\.\d+)?\s?%[^\n.]*)`)

	bankingAnchor = regexp.MustCompile(`(?i)\b(?:Banking (?:Details|Information)|Bank Details|Wire (?:Transfer )?Instructions|Remittance (?:Details|Information)|Bank Name)\b`)
	bankName      = regexp.MustCompile(`(?i)\bBank(?: Name)?\s*:\s*([^\n]+)`)
	bankAccount   = regexp.MustCompile(`(?i)\b(?:Account (?:Number|No\.?|#)|Acct\.?(?: No\.?)?)\s*[:#]?\s*([0-9][0-9\- ]{3,30}[0-9])`)
	bankRouting   = regexp.MustCompile(`(?i)\b(?:Routing(?: Number| No\.?)?|ABA(?: Routing)?(?: Number)?)\s*[:#]?\s*(\d{9})\b`)
	bankSwift     = regexp.MustCompile(`\b(?i:SWIFT|BIC)(?:/(?i:BIC))?(?:\s+(?i:Code))?\s*[:#]?\s*([A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)\b`)
)

// bankingBlockLimit caps how far a banking paragraph may run.
const bankingBlockLimit = 600

// ExtractPaymentStructure recovers payment terms, schedule, method and remittance.
func ExtractPaymentStructure(text string) *model.PaymentStructure {
	if text == "" {
		return nil
	}

	p := &model.PaymentStructure{
		Terms:         firstValue(text, paymentTermsLabel, paymentTermsNet),
		Schedule:      firstValue(text, scheduleLabel, scheduleVerb),
		Method:        firstValue(text, methodLabel, methodVerb),
		DueDate:       firstValue(text, dueDateLabel, dueDateClause),
		LateFee:       firstValue(text, lateFeePattern),
		DiscountTerms: firstValue(text, discountLeading, discountTrailing),
		Banking:       extractBanking(text),
	}

	if p.Terms == nil && p.Schedule == nil && p.Method == nil && p.DueDate == nil &&
		p.LateFee == nil && p.DiscountTerms == nil && p.Banking == nil {
		return nil
	}
	return p
}

func extractBanking(text string) *model.BankingInfo {
	start, end, ok := bankingSpan(text)
	if !ok {
		return nil
	}
	block := text[start:end]

	b := &model.BankingInfo{
		BankName:      firstValue(block, bankName),
		AccountNumber: firstValue(block, bankAccount),
		RoutingNumber: firstValue(block, bankRouting),
		SwiftCode:     firstValue(block, bankSwift),
	}
	if b.BankName == nil && b.AccountNumber == nil && b.RoutingNumber == nil && b.SwiftCode == nil {
		return nil
	}
	return b
}

// bankingSpan locates the first remittance paragraph. The account extractor
// uses the same span to avoid reading a bank account as a customer account.
func bankingSpan(text string) (int, int, bool) {
	loc := bankingAnchor.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], paragraphEnd(text, loc[0], bankingBlockLimit), true
}
