package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedData is the tree of optional sub-records recovered from one contract.
// A nil pointer, nil map or empty slice always means "not found".
type ExtractedData struct {
	Parties               *Parties               `json:"parties,omitempty"`
	FinancialDetails      *FinancialDetails      `json:"financial_details,omitempty"`
	PaymentStructure      *PaymentStructure      `json:"payment_structure,omitempty"`
	SLATerms              *SLATerms              `json:"sla_terms,omitempty"`
	RevenueClassification *RevenueClassification `json:"revenue_classification,omitempty"`
	AccountInfo           *AccountInfo           `json:"account_info,omitempty"`
}

// Parties holds both contracting roles
type Parties struct {
	ServiceProvider *PartyInfo `json:"service_provider,omitempty"`
	Customer        *PartyInfo `json:"customer,omitempty"`
}

// PartyInfo describes one contracting party
type PartyInfo struct {
	Name                      *string          `json:"name,omitempty"`
	Address                   *string          `json:"address,omitempty"`
	Phone                     *string          `json:"phone,omitempty"`
	Email                     *string          `json:"email,omitempty"`
	TaxID                     *string          `json:"tax_id,omitempty"`
	AuthorizedRepresentatives []Representative `json:"authorized_representatives,omitempty"`
}

// HasContactChannel reports whether the party can be reached by email or phone
func (p *PartyInfo) HasContactChannel() bool {
	return p != nil && (p.Email != nil || p.Phone != nil)
}

// Representative is a person signing for a party
type Representative struct {
	Name    string  `json:"name"`
	Title   string  `json:"title"`
	Contact *string `json:"contact,omitempty"`
}

// LineItem is one priced row of the commercial schedule
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// FinancialDetails captures amounts and currency
type FinancialDetails struct {
	LineItems           []LineItem                 `json:"line_items,omitempty"`
	MonthlyCosts        map[string]decimal.Decimal `json:"monthly_costs,omitempty"`
	OneTimeCosts        map[string]decimal.Decimal `json:"one_time_costs,omitempty"`
	TotalMonthly        *decimal.Decimal           `json:"total_monthly,omitempty"`
	TotalOneTime        *decimal.Decimal           `json:"total_one_time,omitempty"`
	AnnualContractValue *decimal.Decimal           `json:"annual_contract_value,omitempty"`
	TotalContractValue  *decimal.Decimal           `json:"total_contract_value,omitempty"`
	Currency            *string                    `json:"currency,omitempty"`
}

// HasTotals reports whether any aggregate amount was recovered
func (f *FinancialDetails) HasTotals() bool {
	return f != nil && (f.TotalContractValue != nil || f.AnnualContractValue != nil ||
		f.TotalMonthly != nil || f.TotalOneTime != nil)
}

// PaymentStructure captures how and when the customer pays
type PaymentStructure struct {
	Terms         *string      `json:"terms,omitempty"`
	Schedule      *string      `json:"schedule,omitempty"`
	Method        *string      `json:"method,omitempty"`
	DueDate       *string      `json:"due_date,omitempty"`
	LateFee       *string      `json:"late_fee,omitempty"`
	DiscountTerms *string      `json:"discount_terms,omitempty"`
	Banking       *BankingInfo `json:"banking,omitempty"`
}

// BankingInfo holds remittance details
type BankingInfo struct {
	BankName      *string `json:"bank_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	RoutingNumber *string `json:"routing_number,omitempty"`
	SwiftCode     *string `json:"swift_code,omitempty"`
}

// SLATerms captures service-level commitments
type SLATerms struct {
	UptimeCommitment   *string           `json:"uptime_commitment,omitempty"`
	ResponseTimes      map[string]string `json:"response_times,omitempty"`
	PerformanceMetrics map[string]string `json:"performance_metrics,omitempty"`
	ServiceCredits     []ServiceCredit   `json:"service_credits,omitempty"`
}

// ServiceCredit is a credit owed when a threshold is missed
type ServiceCredit struct {
	Threshold        string `json:"threshold"`
	CreditPercentage string `json:"credit_percentage"`
	Description      string `json:"description"`
}

// RevenueClassification describes the commercial shape of the agreement
type RevenueClassification struct {
	Type               *string `json:"type,omitempty"`
	ContractTerm       *string `json:"contract_term,omitempty"`
	BillingCycle       *string `json:"billing_cycle,omitempty"`
	AutoRenewal        *bool   `json:"auto_renewal,omitempty"`
	AutoRenewalText    *string `json:"auto_renewal_text,omitempty"`
	TerminationNotice  *string `json:"termination_notice,omitempty"`
	PricingAdjustments *string `json:"pricing_adjustments,omitempty"`
}

// AccountInfo holds the customer account reference and billing contact
type AccountInfo struct {
	AccountNumber  *string         `json:"account_number,omitempty"`
	BillingContact *BillingContact `json:"billing_contact,omitempty"`
}

// BillingContact is the person invoices are addressed to
type BillingContact struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// GapAnalysis reports rubric fields that were not recovered
type GapAnalysis struct {
	MissingFields    []string `json:"missing_fields"`
	IncompleteFields []string `json:"incomplete_fields"`
	Notes            []string `json:"notes"`
}

// CategoryScore is one weighted rubric category's contribution
type CategoryScore struct {
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
	Present  int     `json:"present"`
	Total    int     `json:"total"`
	Score    float64 `json:"score"`
}

// ExtractionResult is the scored, structured output of a completed contract
type ExtractionResult struct {
	ContractID      string          `json:"contract_id"`
	ExtractedData   ExtractedData   `json:"extracted_data"`
	ConfidenceScore float64         `json:"confidence_score"`
	ScoreBreakdown  []CategoryScore `json:"score_breakdown"`
	ProcessingDate  time.Time       `json:"processing_date"`
	GapAnalysis     GapAnalysis     `json:"gap_analysis"`
}
