// Package scoring grades extracted contract fields against a fixed rubric.
//
// The Scorer and the Gap Analyzer both walk Rubric, so a field that lowers a
// category's score is always the same field reported as missing or incomplete.
package scoring

import "github.com/AnTengye/contractscore/model"

// Presence is how a rubric field was found in the extracted data.
type Presence int

const (
	Missing Presence = iota
	// Incomplete means the owning record exists but this part of it was not found.
	Incomplete
	Present
)

// Field is one required sub-signal of a category.
type Field struct {
	Name  string
	Check func(d *model.ExtractedData) Presence
}

// Category is a weighted group of fields. When fewer than MinPresent fields
// are present the Gap Analyzer adds Note.
type Category struct {
	Name       string
	Weight     float64
	Fields     []Field
	MinPresent int
	Note       string
}

// Category names
const (
	CategoryFinancial = "financial"
	CategoryParties   = "parties"
	CategoryPayment   = "payment"
	CategorySLA       = "sla"
	CategoryContact   = "contact"
)

// Rubric is the weighted list of required fields. Weights sum to 100.
var Rubric = []Category{
	{
		Name:   CategoryFinancial,
		Weight: 30,
		Fields: []Field{
			{"financial_details.line_items", func(d *model.ExtractedData) Presence {
				return presentIf(d.FinancialDetails != nil && len(d.FinancialDetails.LineItems) > 0)
			}},
			{"financial_details.totals", func(d *model.ExtractedData) Presence {
				return presentIf(d.FinancialDetails.HasTotals())
			}},
			{"financial_details.currency", func(d *model.ExtractedData) Presence {
				return presentIf(d.FinancialDetails != nil && d.FinancialDetails.Currency != nil)
			}},
		},
		MinPresent: 2,
		Note:       "Financial terms are incomplete (line items, totals or currency not found)",
	},
	{
		Name:   CategoryParties,
		Weight: 25,
		Fields: []Field{
			{"parties.service_provider.name", func(d *model.ExtractedData) Presence {
				return presentIf(provider(d) != nil && provider(d).Name != nil)
			}},
			{"parties.service_provider.contact", func(d *model.ExtractedData) Presence {
				return contactPresence(provider(d))
			}},
			{"parties.customer.name", func(d *model.ExtractedData) Presence {
				return presentIf(customer(d) != nil && customer(d).Name != nil)
			}},
			{"parties.customer.contact", func(d *model.ExtractedData) Presence {
				return contactPresence(customer(d))
			}},
		},
		MinPresent: 2,
		Note:       "Contracting parties are not clearly identified",
	},
	{
		Name:   CategoryPayment,
		Weight: 20,
		Fields: []Field{
			{"payment_structure.terms", func(d *model.ExtractedData) Presence {
				return presentIf(d.PaymentStructure != nil && d.PaymentStructure.Terms != nil)
			}},
			{"payment_structure.method", func(d *model.ExtractedData) Presence {
				if d.PaymentStructure == nil {
					return Missing
				}
				if d.PaymentStructure.Method == nil {
					return Incomplete
				}
				return Present
			}},
			{"payment_structure.schedule", func(d *model.ExtractedData) Presence {
				return presentIf(d.PaymentStructure != nil && d.PaymentStructure.Schedule != nil)
			}},
		},
		MinPresent: 2,
		Note:       "Payment terms are unclear",
	},
	{
		Name:   CategorySLA,
		Weight: 15,
		Fields: []Field{
			{"sla_terms.uptime_commitment", func(d *model.ExtractedData) Presence {
				return presentIf(d.SLATerms != nil && d.SLATerms.UptimeCommitment != nil)
			}},
			{"sla_terms.response_times", func(d *model.ExtractedData) Presence {
				return presentIf(d.SLATerms != nil && len(d.SLATerms.ResponseTimes) > 0)
			}},
			{"sla_terms.performance_metrics", func(d *model.ExtractedData) Presence {
				return presentIf(d.SLATerms != nil && len(d.SLATerms.PerformanceMetrics) > 0)
			}},
		},
		MinPresent: 2,
		Note:       "SLA terms not clearly defined",
	},
	{
		Name:   CategoryContact,
		Weight: 10,
		Fields: []Field{
			{"account_info.billing_contact.email", func(d *model.ExtractedData) Presence {
				bc := billingContact(d)
				if bc == nil {
					return Missing
				}
				return presentOrIncomplete(bc.Email != nil)
			}},
			{"account_info.billing_contact.phone", func(d *model.ExtractedData) Presence {
				bc := billingContact(d)
				if bc == nil {
					return Missing
				}
				return presentOrIncomplete(bc.Phone != nil)
			}},
		},
		MinPresent: 1,
		Note:       "Billing contact information is missing",
	},
}

// FieldCount is the number of rubric fields across all categories.
func FieldCount() int {
	n := 0
	for _, c := range Rubric {
		n += len(c.Fields)
	}
	return n
}

func presentIf(ok bool) Presence {
	if ok {
		return Present
	}
	return Missing
}

func presentOrIncomplete(ok bool) Presence {
	if ok {
		return Present
	}
	return Incomplete
}

// contactPresence treats a named party without email or phone as incomplete.
func contactPresence(p *model.PartyInfo) Presence {
	if p == nil {
		return Missing
	}
	return presentOrIncomplete(p.HasContactChannel())
}

func provider(d *model.ExtractedData) *model.PartyInfo {
	if d.Parties == nil {
		return nil
	}
	return d.Parties.ServiceProvider
}

func customer(d *model.ExtractedData) *model.PartyInfo {
	if d.Parties == nil {
		return nil
	}
	return d.Parties.Customer
}

func billingContact(d *model.ExtractedData) *model.BillingContact {
	if d.AccountInfo == nil {
		return nil
	}
	return d.AccountInfo.BillingContact
}
