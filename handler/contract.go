package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractscore/middleware"
	"github.com/AnTengye/contractscore/model"
	"github.com/AnTengye/contractscore/pkg/logger"
	"github.com/AnTengye/contractscore/service"
)

type ContractHandler struct {
	processor *service.Processor
}

func NewContractHandler(p *service.Processor) *ContractHandler {
	return &ContractHandler{processor: p}
}

// Upload stores a PDF and queues it for processing
func (h *ContractHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return
	}
	if header.Size > h.processor.MaxFileSize() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("File exceeds maximum size of %d bytes", h.processor.MaxFileSize())})
		return
	}

	ctx := c.Request.Context()
	contract, err := h.processor.Accept(ctx, header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.processor.Submit(ctx, contract.ID); err != nil {
		respondError(c, err)
		return
	}

	logger.Info(ctx, "contract uploaded", "contract_id", contract.ID, "filename", contract.Filename)
	c.JSON(http.StatusAccepted, gin.H{
		"id":          contract.ID,
		"filename":    contract.Filename,
		"status":      model.StatusProcessing,
		"file_size":   contract.FileSize,
		"upload_date": contract.UploadDate.Format(time.RFC3339),
	})
}

// List returns one page of contracts, optionally filtered by status
func (h *ContractHandler) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !model.IsValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	pageSize, err := queryInt(c, "page_size", service.DefaultPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page_size"})
		return
	}

	result, err := h.processor.List(c.Request.Context(), service.ListOptions{
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get returns the full contract record
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.processor.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

// GetStatus returns the processing status of a contract
func (h *ContractHandler) GetStatus(c *gin.Context) {
	contract, err := h.processor.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            contract.ID,
		"status":        contract.Status,
		"progress":      contract.Progress,
		"error_message": contract.ErrorMessage,
	})
}

// GetResult returns the extraction result of a completed contract
func (h *ContractHandler) GetResult(c *gin.Context) {
	result, err := h.processor.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Process submits a pending contract again
func (h *ContractHandler) Process(c *gin.Context) {
	id := c.Param("id")
	if err := h.processor.Submit(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": model.StatusProcessing})
}

// Download redirects to a presigned link or streams the original file
func (h *ContractHandler) Download(c *gin.Context) {
	d, err := h.processor.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if d.URL != "" {
		c.Redirect(http.StatusFound, d.URL)
		return
	}
	defer d.Body.Close()
	c.DataFromReader(http.StatusOK, d.Size, "application/pdf", d.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename=%q`, d.Filename),
	})
}

// Export returns the contract list as an XLSX workbook
func (h *ContractHandler) Export(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !model.IsValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}
	data, err := h.processor.ExportXLSX(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("contracts-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, name))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// respondError maps service errors to status codes. Unexpected errors are
// logged and answered with the request id only.
func respondError(c *gin.Context, err error) {
	var pe *service.ProcessingError
	switch {
	case errors.As(err, &pe) && pe.Kind == service.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": pe.Message})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
	case errors.Is(err, service.ErrAlreadyProcessing),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrResultNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": middleware.GetRequestID(c),
		})
	}
}
