package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/AnTengye/contractscore/model"
)

type contractRow struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Filename     string    `gorm:"size:255"`
	FilePath     string    `gorm:"size:512"`
	Status       string    `gorm:"size:16;index"`
	Progress     int       `gorm:"not null;default:0"`
	UploadDate   time.Time `gorm:"index"`
	ErrorMessage string    `gorm:"size:512"`
	FileSize     int64
	ContentHash  string `gorm:"size:64"`
	UpdatedAt    time.Time
}

func (contractRow) TableName() string { return "contracts" }

type resultRow struct {
	ContractID      string `gorm:"primaryKey;size:64"`
	ConfidenceScore float64
	ProcessingDate  time.Time
	ExtractedData   datatypes.JSON
	ScoreBreakdown  datatypes.JSON
	GapAnalysis     datatypes.JSON
}

func (resultRow) TableName() string { return "extraction_results" }

// GormStore persists contracts and results in SQLite or PostgreSQL. Nested
// extraction records are stored as JSON columns.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens driver ("sqlite" or "postgres") at dsn and migrates the schema.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&contractRow{}, &resultRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, c *model.Contract) error {
	row := toContractRow(c)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*model.Contract, error) {
	var row contractRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contract: %w", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) List(ctx context.Context, opts ListOptions) ([]*model.Contract, int64, error) {
	opts = opts.Normalize()

	q := s.db.WithContext(ctx).Model(&contractRow{})
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contracts: %w", err)
	}

	var rows []contractRow
	err := q.Order("upload_date DESC").Order("id ASC").
		Offset(opts.Offset()).Limit(opts.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contracts: %w", err)
	}

	out := make([]*model.Contract, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, total, nil
}

func (s *GormStore) Transition(ctx context.Context, id, from, to, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&contractRow{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":        to,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

func (s *GormStore) SetProgress(ctx context.Context, id string, progress int) error {
	res := s.db.WithContext(ctx).Model(&contractRow{}).
		Where("id = ? AND status = ? AND progress < ?", id, model.StatusProcessing, progress).
		Updates(map[string]any{"progress": progress, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update progress: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != model.StatusProcessing {
		return ErrStatusConflict
	}
	return nil
}

// missOrConflict explains why a conditional update touched no rows.
func (s *GormStore) missOrConflict(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

func (s *GormStore) SaveResult(ctx context.Context, r *model.ExtractionResult) error {
	if _, err := s.Get(ctx, r.ContractID); err != nil {
		return err
	}
	row, err := toResultRow(r)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *GormStore) GetResult(ctx context.Context, contractID string) (*model.ExtractionResult, error) {
	var row resultRow
	err := s.db.WithContext(ctx).First(&row, "contract_id = ?", contractID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	return row.toModel()
}

func (s *GormStore) DeleteResult(ctx context.Context, contractID string) error {
	err := s.db.WithContext(ctx).Delete(&resultRow{}, "contract_id = ?", contractID).Error
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

func (s *GormStore) Scores(ctx context.Context, contractIDs []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(contractIDs))
	if len(contractIDs) == 0 {
		return scores, nil
	}

	var rows []resultRow
	err := s.db.WithContext(ctx).
		Select("contract_id", "confidence_score").
		Where("contract_id IN ?", contractIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	for _, r := range rows {
		scores[r.ContractID] = r.ConfidenceScore
	}
	return scores, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toContractRow(c *model.Contract) contractRow {
	return contractRow{
		ID:           c.ID,
		Filename:     c.Filename,
		FilePath:     c.FilePath,
		Status:       c.Status,
		Progress:     c.Progress,
		UploadDate:   c.UploadDate,
		ErrorMessage: c.ErrorMessage,
		FileSize:     c.FileSize,
		ContentHash:  c.ContentHash,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r contractRow) toModel() *model.Contract {
	return &model.Contract{
		ID:           r.ID,
		Filename:     r.Filename,
		FilePath:     r.FilePath,
		Status:       r.Status,
		Progress:     r.Progress,
		UploadDate:   r.UploadDate,
		ErrorMessage: r.ErrorMessage,
		FileSize:     r.FileSize,
		ContentHash:  r.ContentHash,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toResultRow(r *model.ExtractionResult) (resultRow, error) {
	data, err := json.Marshal(r.ExtractedData)
	if err != nil {
		return resultRow{}, fmt.Errorf("failed to encode extracted data: %w", err)
	}
	breakdown, err := json.Marshal(r.ScoreBreakdown)
	if err != nil {
		return resultRow{}, fmt.Errorf("failed to encode score breakdown: %w", err)
	}
	gaps, err := json.Marshal(r.GapAnalysis)
	if err != nil {
		return resultRow{}, fmt.Errorf("failed to encode gap analysis: %w", err)
	}
	return resultRow{
		ContractID:      r.ContractID,
		ConfidenceScore: r.ConfidenceScore,
		ProcessingDate:  r.ProcessingDate,
		ExtractedData:   datatypes.JSON(data),
		ScoreBreakdown:  datatypes.JSON(breakdown),
		GapAnalysis:     datatypes.JSON(gaps),
	}, nil
}

func (r resultRow) toModel() (*model.ExtractionResult, error) {
	out := &model.ExtractionResult{
		ContractID:      r.ContractID,
		ConfidenceScore: r.ConfidenceScore,
		ProcessingDate:  r.ProcessingDate,
	}
	if err := json.Unmarshal(r.ExtractedData, &out.ExtractedData); err != nil {
		return nil, fmt.Errorf("failed to decode extracted data: %w", err)
	}
	if err := json.Unmarshal(r.ScoreBreakdown, &out.ScoreBreakdown); err != nil {
		return nil, fmt.Errorf("failed to decode score breakdown: %w", err)
	}
	if err := json.Unmarshal(r.GapAnalysis, &out.GapAnalysis); err != nil {
		return nil, fmt.Errorf("failed to decode gap analysis: %w", err)
	}
	return out, nil
}
