package extractor

import (
	"regexp"
	"strings"

	"github.com/AnTengye/contractscore/model"
)

const billingWindow = 500

var (
	accountNumber = regexp.MustCompile(`(?i)\b(?:Customer Account (?:Number|No\.?|ID)|Client Account(?: Number| No\.?| ID)?|Account (?:ID|Number|No\.?|#)|Customer (?:ID|Number)|Agreement (?:ID|Number|No\.?))\s*[:#]?\s*([A-Z0-9][A-Z0-9\-]{2,30})`)
	hasDigit      = regexp.MustCompile(`\d`)

	billingAnchor      = regexp.MustCompile(`(?i)\b(?:Billing Contact|Billing Email|Billing Phone|Accounts Payable(?: Contact)?|Accounts Receivable|Invoic(?:e|ing) Contact|Finance Contact)\b`)
	billingContactName = regexp.MustCompile(`(?i)\b(?:Billing Contact|Accounts Payable Contact|Invoic(?:e|ing) Contact|Finance Contact)\s*:\s*([A-Za-z][A-Za-z.'\- ]{1,60}?)\s*(?:[,(\n]|$)`)
	billingNameLine    = regexp.MustCompile(`(?im)^(?:Contact )?Name\s*:\s*([^\n,]+)`)
)

// ExtractAccountInfo recovers the customer account number and billing contact.
func ExtractAccountInfo(text string) *model.AccountInfo {
	if text == "" {
		return nil
	}

	a := &model.AccountInfo{
		AccountNumber:  customerAccount(text),
		BillingContact: billingContact(text),
	}
	if a.AccountNumber == nil && a.BillingContact == nil {
		return nil
	}
	return a
}

// customerAccount skips numbers that sit inside the remittance paragraph,
// which belong to the provider's bank rather than the customer.
func customerAccount(text string) *string {
	bankStart, bankEnd, hasBank := bankingSpan(text)
	for _, loc := range accountNumber.FindAllStringSubmatchIndex(text, -1) {
		if hasBank && loc[0] >= bankStart && loc[0] < bankEnd {
			continue
		}
		value := text[loc[2]:loc[3]]
		if !hasDigit.MatchString(value) {
			continue
		}
		return strPtr(value)
	}
	return nil
}

// billingContact reads every billing paragraph in document order and keeps
// the first name, email and phone it sees.
func billingContact(text string) *model.BillingContact {
	var bc model.BillingContact
	for _, loc := range billingAnchor.FindAllStringIndex(text, -1) {
		block := text[loc[0]:paragraphEnd(text, loc[0], billingWindow)]
		if bc.Name == nil {
			bc.Name = firstValue(block, billingContactName, billingNameLine)
		}
		if bc.Email == nil {
			bc.Email = strPtr(emailPattern.FindString(block))
		}
		if bc.Phone == nil {
			bc.Phone = strPtr(phonePattern.FindString(block))
		}
	}
	if bc.Name == nil && bc.Email == nil && bc.Phone == nil {
		return nil
	}
	if bc.Name != nil && strings.Contains(*bc.Name, "@") {
		bc.Name = nil
	}
	return &bc
}
