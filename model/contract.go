package model

import (
	"time"
)

// Contract is one uploaded document and its processing metadata
type Contract struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	FilePath     string    `json:"file_path"` // stored-file reference
	Status       string    `json:"status"`    // pending, processing, completed, failed
	Progress     int       `json:"progress"`
	UploadDate   time.Time `json:"upload_date"`
	ErrorMessage string    `json:"error_message,omitempty"`
	FileSize     int64     `json:"file_size"`
	ContentHash  string    `json:"content_hash"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ContractStatus constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Progress checkpoints written by the processing pipeline
const (
	ProgressTextExtracted   = 10
	ProgressFieldsExtracted = 40
	ProgressScored          = 80
	ProgressPersisted       = 100
)

// IsTerminalStatus reports whether no further transition may leave status
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// IsValidStatus reports whether status is one of the known lifecycle states
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the contract reached completed or failed
func (c *Contract) IsTerminal() bool {
	return IsTerminalStatus(c.Status)
}

// Clone returns a copy safe to hand out of a store
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// ContractSummary is the list-view projection of a contract
type ContractSummary struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Status          string    `json:"status"`
	Progress        int       `json:"progress"`
	UploadDate      time.Time `json:"upload_date"`
	FileSize        int64     `json:"file_size"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
}

// ContractPage is one page of a filtered contract listing
type ContractPage struct {
	Contracts  []ContractSummary `json:"contracts"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}
