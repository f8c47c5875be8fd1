package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AnTengye/contractscore/config"
	"github.com/AnTengye/contractscore/model"
)

func newContract(id string, uploaded time.Time) *model.Contract {
	return &model.Contract{
		ID:          id,
		Filename:    id + ".pdf",
		FilePath:    id + "/" + id + ".pdf",
		Status:      model.StatusPending,
		UploadDate:  uploaded,
		FileSize:    1024,
		ContentHash: "hash-" + id,
	}
}

// runStoreSuite checks the behaviour every Store backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		if err := s.Create(ctx, newContract("c-1", base)); err != nil {
			t.Fatalf("Failed to create: %v", err)
		}

		got, err := s.Get(ctx, "c-1")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got.Filename != "c-1.pdf" {
			t.Errorf("Expected filename c-1.pdf, got %s", got.Filename)
		}
		if got.Status != model.StatusPending || got.Progress != 0 {
			t.Errorf("Expected pending/0, got %s/%d", got.Status, got.Progress)
		}
		if got.ContentHash != "hash-c-1" || got.FileSize != 1024 {
			t.Errorf("Unexpected metadata: %+v", got)
		}

		if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list filters and pages newest first", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			c := newContract(fmt.Sprintf("c-%d", i), base.Add(time.Duration(i)*time.Minute))
			if i%2 == 0 {
				c.Status = model.StatusCompleted
			}
			if err := s.Create(ctx, c); err != nil {
				t.Fatalf("Failed to create: %v", err)
			}
		}

		page, total, err := s.List(ctx, ListOptions{Page: 1, PageSize: 2})
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if total != 5 {
			t.Errorf("Expected total 5, got %d", total)
		}
		if len(page) != 2 || page[0].ID != "c-4" || page[1].ID != "c-3" {
			t.Errorf("Expected [c-4 c-3], got %v", ids(page))
		}

		page, _, err = s.List(ctx, ListOptions{Page: 3, PageSize: 2})
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(page) != 1 || page[0].ID != "c-0" {
			t.Errorf("Expected [c-0], got %v", ids(page))
		}

		page, total, err = s.List(ctx, ListOptions{Status: model.StatusCompleted})
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if total != 3 || len(page) != 3 {
			t.Errorf("Expected 3 completed contracts, got total=%d len=%d", total, len(page))
		}

		page, total, _ = s.List(ctx, ListOptions{Page: 9, PageSize: 10})
		if total != 5 || len(page) != 0 {
			t.Errorf("Expected empty page past the end, got total=%d len=%d", total, len(page))
		}
	})

	t.Run("transition is compare and set", func(t *testing.T) {
		s := newStore(t)
		s.Create(ctx, newContract("c-1", base))

		if err := s.Transition(ctx, "c-1", model.StatusPending, model.StatusProcessing, ""); err != nil {
			t.Fatalf("Expected transition to succeed, got %v", err)
		}
		if err := s.Transition(ctx, "c-1", model.StatusPending, model.StatusProcessing, ""); !errors.Is(err, ErrStatusConflict) {
			t.Errorf("Expected ErrStatusConflict, got %v", err)
		}
		if err := s.Transition(ctx, "missing", model.StatusPending, model.StatusProcessing, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}

		if err := s.Transition(ctx, "c-1", model.StatusProcessing, model.StatusFailed, "text extraction failed"); err != nil {
			t.Fatalf("Expected transition to failed, got %v", err)
		}
		got, _ := s.Get(ctx, "c-1")
		if got.Status != model.StatusFailed || got.ErrorMessage != "text extraction failed" {
			t.Errorf("Expected failed with message, got %s %q", got.Status, got.ErrorMessage)
		}
	})

	t.Run("progress only rises while processing", func(t *testing.T) {
		s := newStore(t)
		s.Create(ctx, newContract("c-1", base))

		if err := s.SetProgress(ctx, "c-1", 10); !errors.Is(err, ErrStatusConflict) {
			t.Errorf("Expected ErrStatusConflict for pending contract, got %v", err)
		}

		s.Transition(ctx, "c-1", model.StatusPending, model.StatusProcessing, "")
		for _, p := range []int{10, 40, 20} {
			if err := s.SetProgress(ctx, "c-1", p); err != nil {
				t.Fatalf("SetProgress(%d): %v", p, err)
			}
		}
		got, _ := s.Get(ctx, "c-1")
		if got.Progress != 40 {
			t.Errorf("Expected progress 40, got %d", got.Progress)
		}

		s.Transition(ctx, "c-1", model.StatusProcessing, model.StatusCompleted, "")
		if err := s.SetProgress(ctx, "c-1", 100); !errors.Is(err, ErrStatusConflict) {
			t.Errorf("Expected ErrStatusConflict for terminal contract, got %v", err)
		}
		if err := s.SetProgress(ctx, "missing", 10); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("results and scores", func(t *testing.T) {
		s := newStore(t)
		s.Create(ctx, newContract("c-1", base))
		s.Create(ctx, newContract("c-2", base))

		name := "Acme Corp"
		result := &model.ExtractionResult{
			ContractID: "c-1",
			ExtractedData: model.ExtractedData{
				Parties: &model.Parties{ServiceProvider: &model.PartyInfo{Name: &name}},
			},
			ConfidenceScore: 32.5,
			ScoreBreakdown:  []model.CategoryScore{{Category: "parties", Weight: 25, Present: 2, Total: 4, Score: 12.5}},
			ProcessingDate:  base,
			GapAnalysis: model.GapAnalysis{
				MissingFields:    []string{"payment_structure.terms"},
				IncompleteFields: []string{},
				Notes:            []string{"Payment terms are unclear"},
			},
		}
		if err := s.SaveResult(ctx, result); err != nil {
			t.Fatalf("Failed to save result: %v", err)
		}
		if err := s.SaveResult(ctx, &model.ExtractionResult{ContractID: "missing"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for orphan result, got %v", err)
		}

		got, err := s.GetResult(ctx, "c-1")
		if err != nil {
			t.Fatalf("Failed to get result: %v", err)
		}
		if got.ConfidenceScore != 32.5 {
			t.Errorf("Expected score 32.5, got %v", got.ConfidenceScore)
		}
		if got.ExtractedData.Parties == nil || *got.ExtractedData.Parties.ServiceProvider.Name != "Acme Corp" {
			t.Errorf("Expected provider name to round trip, got %+v", got.ExtractedData.Parties)
		}
		if len(got.GapAnalysis.MissingFields) != 1 || len(got.ScoreBreakdown) != 1 {
			t.Errorf("Expected gaps and breakdown to round trip, got %+v", got)
		}

		scores, err := s.Scores(ctx, []string{"c-1", "c-2"})
		if err != nil {
			t.Fatalf("Failed to load scores: %v", err)
		}
		if len(scores) != 1 || scores["c-1"] != 32.5 {
			t.Errorf("Expected only c-1 scored, got %v", scores)
		}

		if err := s.DeleteResult(ctx, "c-1"); err != nil {
			t.Fatalf("Failed to delete result: %v", err)
		}
		if _, err := s.GetResult(ctx, "c-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
	})
}

func ids(contracts []*model.Contract) []string {
	out := make([]string, len(contracts))
	for i, c := range contracts {
		out[i] = c.ID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Create(ctx, newContract("c-1", time.Now()))

	got, _ := s.Get(ctx, "c-1")
	got.Status = model.StatusFailed

	again, _ := s.Get(ctx, "c-1")
	if again.Status != model.StatusPending {
		t.Errorf("Expected stored contract to be unaffected, got %s", again.Status)
	}
	if s.Count() != 1 {
		t.Errorf("Expected 1 contract, got %d", s.Count())
	}
}

func TestMemoryStoreConcurrentTransition(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Create(ctx, newContract("c-1", time.Now()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Transition(ctx, "c-1", model.StatusPending, model.StatusProcessing, "") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one transition to win, got %d", wins)
	}
}

func TestListOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       ListOptions
		page     int
		pageSize int
	}{
		{"defaults", ListOptions{}, 1, DefaultPageSize},
		{"negative page", ListOptions{Page: -3, PageSize: 5}, 1, 5},
		{"oversized page", ListOptions{Page: 2, PageSize: 1000}, 2, MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.Page != tt.page || got.PageSize != tt.pageSize {
				t.Errorf("Expected %d/%d, got %d/%d", tt.page, tt.pageSize, got.Page, got.PageSize)
			}
		})
	}

	if off := (ListOptions{Page: 3, PageSize: 20}).Offset(); off != 40 {
		t.Errorf("Expected offset 40, got %d", off)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total    int64
		size     int
		expected int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.expected {
			t.Errorf("TotalPages(%d, %d): expected %d, got %d", tt.total, tt.size, tt.expected, got)
		}
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "cassandra"}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
