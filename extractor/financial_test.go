package extractor

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExtractFinancialDetailsFullContract(t *testing.T) {
	f := ExtractFinancialDetails(loadFullContract(t))
	if f == nil {
		t.Fatal("Expected financial details")
	}

	if len(f.LineItems) != 3 {
		t.Fatalf("Expected 3 line items, got %d: %+v", len(f.LineItems), f.LineItems)
	}
	expected := []struct {
		description string
		quantity    int64
		unitPrice   int64
		total       int64
	}{
		{"Cloud Hosting", 12, 1000, 12000},
		{"Implementation Services", 2, 5000, 10000},
		{"Consulting", 40, 150, 6000},
	}
	for i, e := range expected {
		item := f.LineItems[i]
		if item.Description != e.description {
			t.Errorf("Item %d: expected description %q, got %q", i, e.description, item.Description)
		}
		if !item.Quantity.Equal(decimal.NewFromInt(e.quantity)) {
			t.Errorf("Item %d: expected quantity %d, got %s", i, e.quantity, item.Quantity)
		}
		if !item.UnitPrice.Equal(decimal.NewFromInt(e.unitPrice)) {
			t.Errorf("Item %d: expected unit price %d, got %s", i, e.unitPrice, item.UnitPrice)
		}
		if !item.Total.Equal(decimal.NewFromInt(e.total)) {
			t.Errorf("Item %d: expected total %d, got %s", i, e.total, item.Total)
		}
	}

	if v, ok := f.MonthlyCosts["Monthly Support Fee"]; !ok || !v.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected monthly support fee 500, got %v", f.MonthlyCosts)
	}
	if v, ok := f.OneTimeCosts["Setup Fee"]; !ok || !v.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected setup fee 2500, got %v", f.OneTimeCosts)
	}
	if f.TotalContractValue == nil || !f.TotalContractValue.Equal(decimal.NewFromInt(120000)) {
		t.Errorf("Expected total contract value 120000, got %v", f.TotalContractValue)
	}
	if f.AnnualContractValue == nil || !f.AnnualContractValue.Equal(decimal.NewFromInt(40000)) {
		t.Errorf("Expected annual contract value 40000, got %v", f.AnnualContractValue)
	}
	if f.TotalMonthly == nil || !f.TotalMonthly.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected total monthly 500, got %v", f.TotalMonthly)
	}
	if f.TotalOneTime == nil || !f.TotalOneTime.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected total one-time 2500, got %v", f.TotalOneTime)
	}
	if f.Currency == nil || *f.Currency != "USD" {
		t.Errorf("Expected currency USD, got %v", f.Currency)
	}
}

func TestExtractFinancialDetailsSkipsMalformedRows(t *testing.T) {
	text := "| Item | Qty | Price |\n| Licences | ten | $100 |\n| Support | 0 | $50 |\n| Training | 3 | $200 |"

	f := ExtractFinancialDetails(text)
	if f == nil {
		t.Fatal("Expected financial details")
	}
	if len(f.LineItems) != 1 {
		t.Fatalf("Expected only the well-formed row, got %+v", f.LineItems)
	}
	if f.LineItems[0].Description != "Training" || !f.LineItems[0].Total.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Unexpected line item: %+v", f.LineItems[0])
	}
}

func TestExtractFinancialDetailsUnparseableTotalIsAbsent(t *testing.T) {
	f := ExtractFinancialDetails("Total Contract Value: to be agreed")
	if f != nil && f.TotalContractValue != nil {
		t.Errorf("Expected absent total, got %s", f.TotalContractValue)
	}
}

func TestExtractFinancialDetailsExplicitMonthlyTotal(t *testing.T) {
	text := "Hosting: $1,000 per month\nSupport (monthly): $250\nTotal Monthly Fees: $1,300\nTraining (one-time): €400"

	f := ExtractFinancialDetails(text)
	if f == nil {
		t.Fatal("Expected financial details")
	}
	if len(f.MonthlyCosts) != 2 {
		t.Errorf("Expected 2 monthly costs, got %v", f.MonthlyCosts)
	}
	if _, ok := f.MonthlyCosts["Support"]; !ok {
		t.Errorf("Expected tag-free key Support, got %v", f.MonthlyCosts)
	}
	if f.TotalMonthly == nil || !f.TotalMonthly.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("Expected explicit monthly total 1300, got %v", f.TotalMonthly)
	}
	if v, ok := f.OneTimeCosts["Training"]; !ok || !v.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Expected one-time training 400, got %v", f.OneTimeCosts)
	}
	if f.Currency == nil || *f.Currency != "USD" {
		t.Errorf("Expected first currency USD, got %v", f.Currency)
	}
}
