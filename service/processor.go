package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AnTengye/contractscore/config"
	"github.com/AnTengye/contractscore/extractor"
	"github.com/AnTengye/contractscore/model"
	"github.com/AnTengye/contractscore/pkg/logger"
	"github.com/AnTengye/contractscore/scoring"
)

// Processor drives contracts through pending -> processing -> completed|failed.
type Processor struct {
	store         Store
	storage       FileStorage
	textExtractor TextExtractor
	registry      JobRegistry
	queue         *WorkQueue
	validator     *ResultValidator
	events        EventPublisher
	logger        *slog.Logger

	maxFileSize int64
	timeout     time.Duration
}

type ProcessorOption func(*Processor)

func WithMaxFileSize(n int64) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// WithProcessTimeout bounds a single run. Zero means no deadline.
func WithProcessTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.timeout = d }
}

func WithEvents(e EventPublisher) ProcessorOption {
	return func(p *Processor) {
		if e != nil {
			p.events = e
		}
	}
}

func WithValidator(v *ResultValidator) ProcessorOption {
	return func(p *Processor) { p.validator = v }
}

func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewProcessor(store Store, storage FileStorage, textExtractor TextExtractor, registry JobRegistry, queue *WorkQueue, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:         store,
		storage:       storage,
		textExtractor: textExtractor,
		registry:      registry,
		queue:         queue,
		events:        NoopPublisher{},
		logger:        slog.Default(),
		maxFileSize:   config.DefaultMaxFileSize,
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("component", "processor")
	return p
}

func (p *Processor) MaxFileSize() int64 {
	return p.maxFileSize
}

// Accept validates an upload, stores its bytes and records a pending
// contract. Nothing is written when validation fails.
func (p *Processor) Accept(ctx context.Context, filename string, r io.Reader) (*model.Contract, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > p.maxFileSize {
		return nil, NewValidationError(fmt.Sprintf("file exceeds maximum size of %d bytes", p.maxFileSize))
	}
	if len(data) == 0 {
		return nil, NewValidationError("file is empty")
	}
	if !IsPDF(data) {
		return nil, NewValidationError("only PDF files are accepted")
	}

	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		name = "contract.pdf"
	}

	sum := sha256.Sum256(data)
	contract := &model.Contract{
		ID:          uuid.NewString(),
		Filename:    name,
		Status:      model.StatusPending,
		Progress:    0,
		UploadDate:  time.Now().UTC(),
		FileSize:    int64(len(data)),
		ContentHash: hex.EncodeToString(sum[:]),
	}
	contract.FilePath = contract.ID + "/" + name

	if err := p.storage.Save(ctx, contract.FilePath, bytes.NewReader(data), contract.FileSize, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := p.store.Create(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}

	logger.From(ctx, p.logger).Info("contract accepted",
		"contract_id", contract.ID,
		"filename", contract.Filename,
		"file_size", contract.FileSize,
	)
	return contract, nil
}

// Submit moves a pending contract to processing and queues its job. The
// registry slot is taken before the status write, so concurrent callers for
// one id see exactly one success.
func (p *Processor) Submit(ctx context.Context, id string) error {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.IsTerminal() {
		return ErrAlreadyTerminal
	}

	ok, err := p.registry.TryAcquire(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to acquire job slot: %w", err)
	}
	if !ok {
		return ErrAlreadyProcessing
	}

	if err := p.store.Transition(ctx, id, model.StatusPending, model.StatusProcessing, ""); err != nil {
		p.release(id)
		if !errors.Is(err, ErrStatusConflict) {
			return err
		}
		current, getErr := p.store.Get(ctx, id)
		if getErr == nil && current.IsTerminal() {
			return ErrAlreadyTerminal
		}
		return ErrAlreadyProcessing
	}
	p.publish(ctx, NewEvent(EventProcessing, id, model.StatusProcessing))

	if err := p.queue.Enqueue(func(jobCtx context.Context) { p.Run(jobCtx, id) }); err != nil {
		p.fail(id, NewInternalError(err))
		p.release(id)
		return err
	}
	return nil
}

// Run executes the pipeline for one processing contract. Failures end in
// the failed state with a sanitized message and no stored result.
func (p *Processor) Run(ctx context.Context, id string) {
	defer p.release(id)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	ctx = logger.WithContractID(ctx, id)
	log := logger.From(ctx, p.logger)

	start := time.Now()
	result, err := p.execute(ctx, id)
	if err != nil {
		log.Error("processing failed", "error", err, "duration", time.Since(start))
		p.fail(id, err)
		return
	}

	log.Info("processing completed",
		"confidence_score", result.ConfidenceScore,
		"missing_fields", len(result.GapAnalysis.MissingFields),
		"duration", time.Since(start),
	)
	ev := NewEvent(EventCompleted, id, model.StatusCompleted)
	ev.Score = &result.ConfidenceScore
	p.publish(ctx, ev)
}

func (p *Processor) execute(ctx context.Context, id string) (result *model.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, NewInternalError(fmt.Errorf("panic: %v", r))
		}
	}()

	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, NewInternalError(err)
	}

	data, err := p.readFile(ctx, c.FilePath)
	if err != nil {
		return nil, NewInternalError(err)
	}

	raw, err := p.textExtractor.ExtractText(ctx, c.Filename, data)
	if err != nil {
		return nil, stageError(ctx, err, "text extraction failed")
	}
	text := extractor.Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return nil, NewExtractionFailure("document contains no extractable text", nil)
	}
	if err := p.checkpoint(ctx, id, model.ProgressTextExtracted); err != nil {
		return nil, err
	}

	fields, err := extractor.ExtractAll(ctx, text)
	if err != nil {
		return nil, stageError(ctx, err, "")
	}
	if err := p.checkpoint(ctx, id, model.ProgressFieldsExtracted); err != nil {
		return nil, err
	}

	eval := scoring.Grade(&fields)
	if err := p.checkpoint(ctx, id, model.ProgressScored); err != nil {
		return nil, err
	}

	result = &model.ExtractionResult{
		ContractID:      id,
		ExtractedData:   eval.Data,
		ConfidenceScore: eval.Score.Total,
		ScoreBreakdown:  eval.Score.Categories,
		ProcessingDate:  time.Now().UTC(),
		GapAnalysis:     eval.Gaps,
	}
	if p.validator != nil {
		if err := p.validator.Validate(result); err != nil {
			return nil, NewInternalError(err)
		}
	}
	if err := p.store.SaveResult(ctx, result); err != nil {
		return nil, NewInternalError(err)
	}
	if err := p.checkpoint(ctx, id, model.ProgressPersisted); err != nil {
		return nil, err
	}
	if err := p.store.Transition(ctx, id, model.StatusProcessing, model.StatusCompleted, ""); err != nil {
		return nil, NewInternalError(err)
	}
	return result, nil
}

// stageError keeps categorized errors and deadline errors as they are and
// wraps anything else. An empty message marks an internal failure.
func stageError(ctx context.Context, err error, message string) error {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if message == "" {
		return NewInternalError(err)
	}
	return NewExtractionFailure(message, err)
}

func (p *Processor) checkpoint(ctx context.Context, id string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.store.SetProgress(ctx, id, progress); err != nil {
		return NewInternalError(err)
	}
	logger.From(ctx, p.logger).Debug("checkpoint", "progress", progress)
	return nil
}

func (p *Processor) readFile(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored file: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored file: %w", err)
	}
	return data, nil
}

// fail runs on a fresh context so a cancelled or timed-out job still
// reaches its terminal state.
func (p *Processor) fail(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := SanitizeMessage(cause)
	if err := p.store.DeleteResult(ctx, id); err != nil {
		p.logger.Error("failed to discard partial result", "contract_id", id, "error", err)
	}
	if err := p.store.Transition(ctx, id, model.StatusProcessing, model.StatusFailed, msg); err != nil {
		p.logger.Error("failed to mark contract failed", "contract_id", id, "error", err)
		return
	}
	ev := NewEvent(EventFailed, id, model.StatusFailed)
	ev.Error = msg
	p.publish(ctx, ev)
}

func (p *Processor) release(id string) {
	if err := p.registry.Release(context.Background(), id); err != nil {
		p.logger.Warn("failed to release job slot", "contract_id", id, "error", err)
	}
}

func (p *Processor) publish(ctx context.Context, ev Event) {
	if err := p.events.Publish(ctx, ev); err != nil {
		p.logger.Warn("failed to publish event", "type", ev.Type, "contract_id", ev.ContractID, "error", err)
	}
}

// Status returns the current record of a contract.
func (p *Processor) Status(ctx context.Context, id string) (*model.Contract, error) {
	return p.store.Get(ctx, id)
}

// Result returns the extraction result of a completed contract.
func (p *Processor) Result(ctx context.Context, id string) (*model.ExtractionResult, error) {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusCompleted {
		return nil, ErrResultNotReady
	}
	return p.store.GetResult(ctx, id)
}

func (p *Processor) List(ctx context.Context, opts ListOptions) (*model.ContractPage, error) {
	opts = opts.Normalize()
	contracts, total, err := p.store.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	var completed []string
	for _, c := range contracts {
		if c.Status == model.StatusCompleted {
			completed = append(completed, c.ID)
		}
	}
	scores, err := p.store.Scores(ctx, completed)
	if err != nil {
		return nil, err
	}

	page := &model.ContractPage{
		Contracts:  make([]model.ContractSummary, 0, len(contracts)),
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: TotalPages(total, opts.PageSize),
	}
	for _, c := range contracts {
		s := model.ContractSummary{
			ID:           c.ID,
			Filename:     c.Filename,
			Status:       c.Status,
			Progress:     c.Progress,
			UploadDate:   c.UploadDate,
			FileSize:     c.FileSize,
			ErrorMessage: c.ErrorMessage,
		}
		if score, ok := scores[c.ID]; ok {
			s.ConfidenceScore = &score
		}
		page.Contracts = append(page.Contracts, s)
	}
	return page, nil
}

// Download is either a presigned URL or a stream of the stored bytes.
type Download struct {
	Filename string
	Size     int64
	URL      string
	Body     io.ReadCloser
}

func (p *Processor) Download(ctx context.Context, id string) (*Download, error) {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Download{Filename: c.Filename, Size: c.FileSize}

	url, err := p.storage.PresignedURL(ctx, c.FilePath)
	if err == nil {
		d.URL = url
		return d, nil
	}
	if !errors.Is(err, ErrPresignUnsupported) {
		return nil, err
	}

	body, err := p.storage.Open(ctx, c.FilePath)
	if err != nil {
		return nil, err
	}
	d.Body = body
	return d, nil
}
