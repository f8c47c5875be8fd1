package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnTengye/contractscore/model"
)

// stubExtractor returns canned text, or blocks until released.
type stubExtractor struct {
	text    string
	err     error
	panics  bool
	release chan struct{}
}

func (s *stubExtractor) ExtractText(ctx context.Context, _ string, _ []byte) (string, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.panics {
		panic("unexpected glyph table")
	}
	return s.text, s.err
}

// progressStore records every progress checkpoint.
type progressStore struct {
	*MemoryStore
	mu       sync.Mutex
	progress []int
}

func (s *progressStore) SetProgress(ctx context.Context, id string, progress int) error {
	s.mu.Lock()
	s.progress = append(s.progress, progress)
	s.mu.Unlock()
	return s.MemoryStore.SetProgress(ctx, id, progress)
}

func newTestProcessor(t *testing.T, store Store, ext TextExtractor, opts ...ProcessorOption) *Processor {
	t.Helper()
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	queue := NewWorkQueue(nil, WithWorkers(2))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	validator, err := NewResultValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	opts = append([]ProcessorOption{WithValidator(validator)}, opts...)
	return NewProcessor(store, storage, ext, NewMemoryRegistry(), queue, opts...)
}

func fullContractText(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("../extractor/testdata/full_contract.txt")
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	return string(b)
}

func waitForTerminal(t *testing.T, p *Processor, id string) *model.Contract {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c, err := p.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Failed to get status: %v", err)
		}
		if c.IsTerminal() {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Contract %s did not reach a terminal state", id)
	return nil
}

func acceptPDF(t *testing.T, p *Processor) *model.Contract {
	t.Helper()
	c, err := p.Accept(context.Background(), "msa.pdf", bytes.NewReader(fakePDF))
	if err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}
	return c
}

func TestProcessorAccept(t *testing.T) {
	store := NewMemoryStore()
	p := newTestProcessor(t, store, &stubExtractor{})

	c, err := p.Accept(context.Background(), "../../etc/msa.pdf", bytes.NewReader(fakePDF))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Status != model.StatusPending || c.Progress != 0 {
		t.Errorf("Expected pending/0, got %s/%d", c.Status, c.Progress)
	}
	if c.Filename != "msa.pdf" {
		t.Errorf("Expected filename msa.pdf, got %s", c.Filename)
	}
	if c.FilePath != c.ID+"/msa.pdf" {
		t.Errorf("Expected file path %s/msa.pdf, got %s", c.ID, c.FilePath)
	}
	if c.FileSize != int64(len(fakePDF)) || len(c.ContentHash) != 64 {
		t.Errorf("Unexpected size/hash: %d %q", c.FileSize, c.ContentHash)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 stored contract, got %d", store.Count())
	}
}

func TestProcessorAcceptSizeBoundary(t *testing.T) {
	store := NewMemoryStore()
	const limit = 32
	p := newTestProcessor(t, store, &stubExtractor{}, WithMaxFileSize(limit))

	exact := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), limit-9)...)
	if _, err := p.Accept(context.Background(), "exact.pdf", bytes.NewReader(exact)); err != nil {
		t.Errorf("Expected file of exactly the limit to be accepted, got %v", err)
	}

	over := append(exact, 'b')
	_, err := p.Accept(context.Background(), "over.pdf", bytes.NewReader(over))
	if !IsValidation(err) {
		t.Errorf("Expected validation error for oversize file, got %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected only the accepted contract to be stored, got %d", store.Count())
	}
}

func TestProcessorAcceptRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a pdf", []byte("PK\x03\x04 zipped")},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			p := newTestProcessor(t, store, &stubExtractor{})
			_, err := p.Accept(context.Background(), "file.pdf", bytes.NewReader(tt.data))
			if !IsValidation(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
			if store.Count() != 0 {
				t.Errorf("Expected no contract to be created, got %d", store.Count())
			}
		})
	}
}

func TestProcessorCompletesContract(t *testing.T) {
	store := &progressStore{MemoryStore: NewMemoryStore()}
	events := NewLogPublisher(nil)
	p := newTestProcessor(t, store, &stubExtractor{text: fullContractText(t)}, WithEvents(events))

	c := acceptPDF(t, p)
	if err := p.Submit(context.Background(), c.ID); err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}
	done := waitForTerminal(t, p, c.ID)

	if done.Status != model.StatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", done.Status, done.ErrorMessage)
	}
	if done.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", done.Progress)
	}

	store.mu.Lock()
	got := append([]int(nil), store.progress...)
	store.mu.Unlock()
	expected := []int{10, 40, 80, 100}
	if len(got) != len(expected) {
		t.Fatalf("Expected checkpoints %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected checkpoints %v, got %v", expected, got)
			break
		}
	}

	result, err := p.Result(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Failed to get result: %v", err)
	}
	if result.ConfidenceScore != 100 {
		t.Errorf("Expected score 100, got %v", result.ConfidenceScore)
	}
	if len(result.GapAnalysis.MissingFields) != 0 || len(result.GapAnalysis.IncompleteFields) != 0 {
		t.Errorf("Expected empty gap lists, got %+v", result.GapAnalysis)
	}

	var types []string
	for _, ev := range events.Events() {
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != EventProcessing || types[1] != EventCompleted {
		t.Errorf("Expected processing and completed events, got %v", types)
	}
}

func TestProcessorFailures(t *testing.T) {
	tests := []struct {
		name     string
		ext      *stubExtractor
		expected string
	}{
		{
			name:     "extraction failure",
			ext:      &stubExtractor{err: NewExtractionFailure("PDF could not be opened (corrupted or encrypted)", errors.New("/srv/uploads/x.pdf: bad xref"))},
			expected: "PDF could not be opened (corrupted or encrypted)",
		},
		{
			name:     "raw library error",
			ext:      &stubExtractor{err: errors.New("open /tmp/abc: permission denied")},
			expected: "text extraction failed",
		},
		{
			name:     "empty text",
			ext:      &stubExtractor{text: " \n\t\n "},
			expected: "document contains no extractable text",
		},
		{
			name:     "panic",
			ext:      &stubExtractor{panics: true},
			expected: "internal processing error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			events := NewLogPublisher(nil)
			p := newTestProcessor(t, store, tt.ext, WithEvents(events))

			c := acceptPDF(t, p)
			if err := p.Submit(context.Background(), c.ID); err != nil {
				t.Fatalf("Failed to submit: %v", err)
			}
			done := waitForTerminal(t, p, c.ID)

			if done.Status != model.StatusFailed {
				t.Fatalf("Expected failed, got %s", done.Status)
			}
			if done.ErrorMessage != tt.expected {
				t.Errorf("Expected message %q, got %q", tt.expected, done.ErrorMessage)
			}
			if strings.Contains(done.ErrorMessage, "/") {
				t.Errorf("Expected no paths in message, got %q", done.ErrorMessage)
			}
			if _, err := store.GetResult(context.Background(), c.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected no stored result, got %v", err)
			}
			if _, err := p.Result(context.Background(), c.ID); !errors.Is(err, ErrResultNotReady) {
				t.Errorf("Expected ErrResultNotReady, got %v", err)
			}

			evs := events.Events()
			if len(evs) == 0 || evs[len(evs)-1].Type != EventFailed {
				t.Errorf("Expected a failed event, got %v", evs)
			}
		})
	}
}

func TestProcessorTimeout(t *testing.T) {
	ext := &stubExtractor{release: make(chan struct{})}
	p := newTestProcessor(t, NewMemoryStore(), ext, WithProcessTimeout(20*time.Millisecond))

	c := acceptPDF(t, p)
	if err := p.Submit(context.Background(), c.ID); err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}
	done := waitForTerminal(t, p, c.ID)
	if done.Status != model.StatusFailed || done.ErrorMessage != "processing timed out" {
		t.Errorf("Expected timed out failure, got %s %q", done.Status, done.ErrorMessage)
	}
}

func TestProcessorConcurrentSubmit(t *testing.T) {
	ext := &stubExtractor{text: "Total Contract Value: $120,000", release: make(chan struct{})}
	p := newTestProcessor(t, NewMemoryStore(), ext)
	c := acceptPDF(t, p)

	const callers = 20
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.Submit(context.Background(), c.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrAlreadyProcessing):
			t.Errorf("Expected ErrAlreadyProcessing, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Expected exactly one successful submit, got %d", succeeded)
	}

	close(ext.release)
	done := waitForTerminal(t, p, c.ID)
	if done.Status != model.StatusCompleted {
		t.Fatalf("Expected completed, got %s", done.Status)
	}
	if err := p.Submit(context.Background(), c.ID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("Expected ErrAlreadyTerminal on resubmit, got %v", err)
	}
}

func TestProcessorSubmitUnknown(t *testing.T) {
	p := newTestProcessor(t, NewMemoryStore(), &stubExtractor{})
	if err := p.Submit(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestProcessorResultNotReady(t *testing.T) {
	p := newTestProcessor(t, NewMemoryStore(), &stubExtractor{})
	c := acceptPDF(t, p)

	if _, err := p.Result(context.Background(), c.ID); !errors.Is(err, ErrResultNotReady) {
		t.Errorf("Expected ErrResultNotReady, got %v", err)
	}
	if _, err := p.Result(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestProcessorList(t *testing.T) {
	p := newTestProcessor(t, NewMemoryStore(), &stubExtractor{text: "Total Contract Value: $120,000\nService Provider: Acme Corp, acme@acme.com"})

	done := acceptPDF(t, p)
	p.Submit(context.Background(), done.ID)
	waitForTerminal(t, p, done.ID)
	acceptPDF(t, p)

	page, err := p.List(context.Background(), ListOptions{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if page.Total != 2 || page.TotalPages != 1 || len(page.Contracts) != 2 {
		t.Fatalf("Unexpected page: %+v", page)
	}
	for _, s := range page.Contracts {
		if s.ID == done.ID {
			if s.ConfidenceScore == nil || *s.ConfidenceScore != 32.5 {
				t.Errorf("Expected score 32.5 on completed contract, got %v", s.ConfidenceScore)
			}
		} else if s.ConfidenceScore != nil {
			t.Errorf("Expected no score on pending contract, got %v", *s.ConfidenceScore)
		}
	}

	page, _ = p.List(context.Background(), ListOptions{Status: model.StatusPending})
	if page.Total != 1 {
		t.Errorf("Expected 1 pending contract, got %d", page.Total)
	}
}

func TestProcessorDownloadStreams(t *testing.T) {
	p := newTestProcessor(t, NewMemoryStore(), &stubExtractor{})
	c := acceptPDF(t, p)

	d, err := p.Download(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Failed to download: %v", err)
	}
	if d.URL != "" || d.Body == nil {
		t.Fatalf("Expected a stream, got %+v", d)
	}
	defer d.Body.Close()
	data, _ := io.ReadAll(d.Body)
	if !bytes.Equal(data, fakePDF) {
		t.Errorf("Expected original bytes, got %q", data)
	}
	if d.Filename != "msa.pdf" {
		t.Errorf("Expected filename msa.pdf, got %s", d.Filename)
	}
}

// presignStorage hands out fixed links.
type presignStorage struct{ FileStorage }

func (presignStorage) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://files.example.com/" + key + "?sig=abc", nil
}

func TestProcessorDownloadPresigned(t *testing.T) {
	local, _ := NewLocalStorage(t.TempDir())
	queue := NewWorkQueue(nil)
	defer queue.Shutdown(context.Background())
	p := NewProcessor(NewMemoryStore(), presignStorage{local}, &stubExtractor{}, NewMemoryRegistry(), queue)
	c := acceptPDF(t, p)

	d, err := p.Download(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Failed to download: %v", err)
	}
	if d.Body != nil || !strings.HasPrefix(d.URL, "https://files.example.com/"+c.ID) {
		t.Errorf("Expected presigned url, got %+v", d)
	}
}
