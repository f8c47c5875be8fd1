package service

import (
	"context"
	"fmt"

	"github.com/AnTengye/contractscore/config"
	"github.com/AnTengye/contractscore/model"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListOptions filters and pages a contract listing.
type ListOptions struct {
	Status   string
	Page     int
	PageSize int
}

// Normalize clamps page to >= 1 and page size to 1..MaxPageSize.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	return o
}

func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// ContractRepository persists Contract records. Every write is visible to the
// next read on return.
type ContractRepository interface {
	Create(ctx context.Context, c *model.Contract) error
	Get(ctx context.Context, id string) (*model.Contract, error)
	// List returns one page sorted by upload date, newest first, and the
	// total number of contracts matching the filter.
	List(ctx context.Context, opts ListOptions) ([]*model.Contract, int64, error)
	// Transition moves id from status from to status to. It fails with
	// ErrStatusConflict when the stored status is no longer from.
	Transition(ctx context.Context, id, from, to, errMsg string) error
	// SetProgress raises progress on a contract that is still processing.
	// Lower values are ignored.
	SetProgress(ctx context.Context, id string, progress int) error
}

// ResultRepository persists at most one ExtractionResult per contract.
type ResultRepository interface {
	SaveResult(ctx context.Context, r *model.ExtractionResult) error
	GetResult(ctx context.Context, contractID string) (*model.ExtractionResult, error)
	DeleteResult(ctx context.Context, contractID string) error
	// Scores returns the confidence score of every id that has a result.
	Scores(ctx context.Context, contractIDs []string) (map[string]float64, error)
}

// Store is the persistence backend used by the Processor.
type Store interface {
	ContractRepository
	ResultRepository
	Close() error
}

// OpenStore builds the Store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		return NewGormStore(cfg.Driver, cfg.DSN)
	case "mongo":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
