package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Contracts"

// ExportXLSX returns a workbook listing every contract matching status, newest
// first, with the confidence score of completed ones.
func (p *Processor) ExportXLSX(ctx context.Context, status string) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet(exportSheet); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	index, _ := f.GetSheetIndex(exportSheet)
	f.SetActiveSheet(index)

	headers := []string{"ID", "Filename", "Status", "Progress", "Upload Date", "File Size", "Confidence Score", "Error"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	row := 2
	opts := ListOptions{Status: status, Page: 1, PageSize: MaxPageSize}
	for {
		page, err := p.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("list contracts: %w", err)
		}
		for _, c := range page.Contracts {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(exportSheet, cell, v)
			}
			write(1, c.ID)
			write(2, c.Filename)
			write(3, c.Status)
			write(4, c.Progress)
			write(5, c.UploadDate.Format(time.RFC3339))
			write(6, c.FileSize)
			if c.ConfidenceScore != nil {
				write(7, *c.ConfidenceScore)
			}
			write(8, c.ErrorMessage)
			row++
		}
		if opts.Page >= page.TotalPages {
			break
		}
		opts.Page++
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 38)
	_ = f.SetColWidth(exportSheet, "B", "B", 32)
	_ = f.SetColWidth(exportSheet, "C", "D", 12)
	_ = f.SetColWidth(exportSheet, "E", "E", 22)
	_ = f.SetColWidth(exportSheet, "F", "G", 16)
	_ = f.SetColWidth(exportSheet, "H", "H", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	p.logger.Info("contracts exported", "rows", row-2, "duration", time.Since(start))
	return buf.Bytes(), nil
}
