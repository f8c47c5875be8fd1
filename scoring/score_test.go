package scoring

import (
	"context"
	"os"
	"testing"

	"github.com/AnTengye/contractscore/model"
)

const minimalContract = "Total Contract Value: $120,000\nService Provider: Acme Corp, acme@acme.com"

func loadFixture(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile("../extractor/testdata/full_contract.txt")
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	return string(raw)
}

func TestRubricWeightsSumToHundred(t *testing.T) {
	var sum float64
	for _, c := range Rubric {
		sum += c.Weight
	}
	if sum != 100 {
		t.Errorf("Expected weights to sum to 100, got %v", sum)
	}
	if n := FieldCount(); n != 15 {
		t.Errorf("Expected 15 rubric fields, got %d", n)
	}
}

func TestComputeScoreEmptyData(t *testing.T) {
	score := ComputeScore(&model.ExtractedData{})
	if score.Total != 0 {
		t.Errorf("Expected 0, got %v", score.Total)
	}
	if len(score.Categories) != len(Rubric) {
		t.Errorf("Expected %d categories, got %d", len(Rubric), len(score.Categories))
	}
}

func TestEvaluateMinimalExample(t *testing.T) {
	eval, err := Evaluate(context.Background(), minimalContract)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if eval.Score.Total != 32.5 {
		t.Errorf("Expected 32.5, got %v", eval.Score.Total)
	}
	if eval.Score.Total <= 0 || eval.Score.Total >= 55 {
		t.Errorf("Expected score strictly between 0 and 55, got %v", eval.Score.Total)
	}

	expected := map[string]float64{
		CategoryFinancial: 20,
		CategoryParties:   12.5,
		CategoryPayment:   0,
		CategorySLA:       0,
		CategoryContact:   0,
	}
	for _, c := range eval.Score.Categories {
		if c.Score != expected[c.Category] {
			t.Errorf("Expected %s sub-score %v, got %v", c.Category, expected[c.Category], c.Score)
		}
	}

	if !contains(eval.Gaps.MissingFields, "parties.customer.name") {
		t.Errorf("Expected customer name to be missing, got %v", eval.Gaps.MissingFields)
	}
	if !contains(eval.Gaps.MissingFields, "financial_details.line_items") {
		t.Errorf("Expected line items to be missing, got %v", eval.Gaps.MissingFields)
	}
}

func TestEvaluateFullContract(t *testing.T) {
	eval, err := Evaluate(context.Background(), loadFixture(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if eval.Score.Total != 100 {
		t.Errorf("Expected 100, got %v (missing %v, incomplete %v)",
			eval.Score.Total, eval.Gaps.MissingFields, eval.Gaps.IncompleteFields)
	}
	if len(eval.Gaps.MissingFields) != 0 || len(eval.Gaps.IncompleteFields) != 0 {
		t.Errorf("Expected no gaps, got missing %v incomplete %v", eval.Gaps.MissingFields, eval.Gaps.IncompleteFields)
	}
	if len(eval.Gaps.Notes) != 1 || eval.Gaps.Notes[0] != comprehensiveNote {
		t.Errorf("Expected only the comprehensive note, got %v", eval.Gaps.Notes)
	}
}

func TestEvaluateEmptyText(t *testing.T) {
	eval, err := Evaluate(context.Background(), "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if eval.Score.Total != 0 {
		t.Errorf("Expected 0, got %v", eval.Score.Total)
	}
	if len(eval.Gaps.MissingFields) != FieldCount() {
		t.Errorf("Expected all %d fields missing, got %d", FieldCount(), len(eval.Gaps.MissingFields))
	}
	if len(eval.Gaps.IncompleteFields) != 0 {
		t.Errorf("Expected no incomplete fields, got %v", eval.Gaps.IncompleteFields)
	}
	for _, c := range Rubric {
		if !contains(eval.Gaps.Notes, c.Note) {
			t.Errorf("Expected note %q", c.Note)
		}
	}
}

func TestScoreBreakdownSumsToTotal(t *testing.T) {
	inputs := []string{
		"",
		minimalContract,
		"Customer: Globex\nPayment Terms: Net 30\nUptime: 99%",
		loadFixture(t),
	}

	for _, input := range inputs {
		eval, err := Evaluate(context.Background(), input)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		var sum float64
		for _, c := range eval.Score.Categories {
			sum += c.Score
		}
		if round1(sum) != eval.Score.Total {
			t.Errorf("Expected breakdown %v to equal total %v", round1(sum), eval.Score.Total)
		}
		if eval.Score.Total < 0 || eval.Score.Total > 100 {
			t.Errorf("Score out of range: %v", eval.Score.Total)
		}
	}
}

func TestPartyWithoutContactIsIncomplete(t *testing.T) {
	name := "Initech"
	data := &model.ExtractedData{
		Parties: &model.Parties{Customer: &model.PartyInfo{Name: &name}},
	}

	gaps := AnalyzeGaps(data)
	if !contains(gaps.IncompleteFields, "parties.customer.contact") {
		t.Errorf("Expected customer contact to be incomplete, got %v", gaps.IncompleteFields)
	}
	if !contains(gaps.MissingFields, "parties.service_provider.contact") {
		t.Errorf("Expected provider contact to be missing, got %v", gaps.MissingFields)
	}
	if !contains(gaps.Notes, "Contracting parties are not clearly identified") {
		t.Errorf("Expected parties note, got %v", gaps.Notes)
	}

	parties := ComputeScore(data).Categories[1]
	if parties.Category != CategoryParties || parties.Present != 1 || parties.Score != 6.3 {
		t.Errorf("Unexpected parties breakdown: %+v", parties)
	}
}

func TestPaymentWithoutMethodIsIncomplete(t *testing.T) {
	terms, schedule := "Net 30", "Monthly"
	data := &model.ExtractedData{
		PaymentStructure: &model.PaymentStructure{Terms: &terms, Schedule: &schedule},
	}

	gaps := AnalyzeGaps(data)
	if !contains(gaps.IncompleteFields, "payment_structure.method") {
		t.Errorf("Expected payment method to be incomplete, got %v", gaps.IncompleteFields)
	}
	// two of three payment fields meet the threshold
	if contains(gaps.Notes, "Payment terms are unclear") {
		t.Errorf("Expected no payment note, got %v", gaps.Notes)
	}
	if !contains(gaps.Notes, "Contract has 1 incomplete fields") {
		t.Errorf("Expected incomplete summary note, got %v", gaps.Notes)
	}
}

func TestGapListsSerializeAsEmptyArrays(t *testing.T) {
	gaps := AnalyzeGaps(&model.ExtractedData{})
	if gaps.IncompleteFields == nil || gaps.MissingFields == nil || gaps.Notes == nil {
		t.Error("Expected non-nil gap lists")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
