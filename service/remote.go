package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/AnTengye/contractscore/config"
)

// Remote task states
const (
	TaskPending    = "pending"
	TaskRunning    = "running"
	TaskConverting = "converting"
	TaskDone       = "done"
	TaskFailed     = "failed"
)

// RemoteTaskResponse is the reply to a task creation request
type RemoteTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// RemoteTaskStatus is the reply to a task status query
type RemoteTaskStatus struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	TraceID string `json:"trace_id"`
	Data    struct {
		TaskID          string `json:"task_id"`
		DataID          string `json:"data_id"`
		State           string `json:"state"`
		FullZipURL      string `json:"full_zip_url,omitempty"`
		ErrorMsg        string `json:"err_msg,omitempty"`
		ExtractProgress struct {
			ExtractedPages int `json:"extracted_pages"`
			TotalPages     int `json:"total_pages"`
		} `json:"extract_progress,omitempty"`
	} `json:"data"`
}

// RemoteExtractor delegates PDF-to-text conversion to an HTTP document
// parsing API: it uploads the file, polls the task and downloads the result.
type RemoteExtractor struct {
	cfg        *config.RemoteConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewRemoteExtractor(cfg *config.RemoteConfig, logger *slog.Logger) *RemoteExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteExtractor{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "remote_extractor"),
	}
}

func (s *RemoteExtractor) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	if !IsPDF(data) {
		return "", NewExtractionFailure("file is not a readable PDF", errors.New("missing %PDF header"))
	}

	task, err := s.CreateTask(ctx, filename, data)
	if err != nil {
		return "", NewExtractionFailure("text extraction service unavailable", err)
	}
	s.logger.Info("remote task created", "task_id", task.Data.TaskID, "filename", filename)

	resultURL, err := s.waitForTask(ctx, task.Data.TaskID)
	if err != nil {
		return "", err
	}

	text, err := s.FetchText(ctx, resultURL)
	if err != nil {
		return "", NewExtractionFailure("text extraction result could not be read", err)
	}
	return text, nil
}

// CreateTask uploads the document and starts an extraction task
func (s *RemoteExtractor) CreateTask(ctx context.Context, filename string, data []byte) (*RemoteTaskResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", path.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.WriteField("model_version", s.cfg.ModelVersion); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL+"/extract/task", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	s.authorize(req)

	var result RemoteTaskResponse
	if err := s.doJSON(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("extraction API error: %s", result.Message)
	}
	if result.Data.TaskID == "" {
		return nil, errors.New("extraction API returned no task id")
	}
	return &result, nil
}

// GetTaskStatus queries the status of a task
func (s *RemoteExtractor) GetTaskStatus(ctx context.Context, taskID string) (*RemoteTaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/extract/task/%s", s.cfg.APIURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.authorize(req)

	var result RemoteTaskStatus
	if err := s.doJSON(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("extraction API error: %s", result.Message)
	}
	return &result, nil
}

// waitForTask polls until the task is done and returns its result url.
// Individual poll errors are retried until attempts run out.
func (s *RemoteExtractor) waitForTask(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		status, err := s.GetTaskStatus(ctx, taskID)
		if err != nil {
			s.logger.Warn("poll attempt failed", "task_id", taskID, "attempt", attempt, "error", err)
			continue
		}

		switch status.Data.State {
		case TaskDone:
			if status.Data.FullZipURL == "" {
				return "", NewExtractionFailure("text extraction returned no result", errors.New("empty result url"))
			}
			return status.Data.FullZipURL, nil
		case TaskFailed:
			return "", NewExtractionFailure("text extraction failed", errors.New(status.Data.ErrorMsg))
		default:
			s.logger.Debug("remote task in progress",
				"task_id", taskID,
				"state", status.Data.State,
				"pages", status.Data.ExtractProgress.ExtractedPages,
				"total_pages", status.Data.ExtractProgress.TotalPages,
			)
		}
	}
	return "", NewExtractionFailure("text extraction timed out", fmt.Errorf("task %s not done after %d polls", taskID, s.cfg.MaxAttempts))
}

// FetchText downloads a task result. Zipped results are searched for a
// markdown or plain-text document; anything else is returned as is.
func (s *RemoteExtractor) FetchText(ctx context.Context, resultURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("result download returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read result: %w", err)
	}
	if !isZip(raw) {
		return string(raw), nil
	}
	return textFromZip(raw)
}

func textFromZip(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to open ZIP: %w", err)
	}

	for _, ext := range []string{".md", ".txt"} {
		for _, file := range zr.File {
			if !strings.HasSuffix(strings.ToLower(file.Name), ext) {
				continue
			}
			rc, err := file.Open()
			if err != nil {
				continue
			}
			content, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				continue
			}
			return string(content), nil
		}
	}
	return "", errors.New("no text document found in ZIP")
}

func isZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func (s *RemoteExtractor) authorize(req *http.Request) {
	if s.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIToken)
	}
	req.Header.Set("Accept", "*/*")
}

func (s *RemoteExtractor) doJSON(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
