package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// BuildImportTemplate renders the downloadable upload template: one header
// row with the standard profile columns, one principal column per requested
// principal, and a data-validation dropdown of regions when any were given.
func BuildImportTemplate(regions []string, principalCount int) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	headers := []string{"External Ref", "Display Name", "Region", "Status", "Contact Email"}
	for i := 1; i <= principalCount; i++ {
		headers = append(headers, fmt.Sprintf("Principal %d", i))
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	if len(regions) > 0 {
		dv := excelize.NewDataValidation(true)
		dv.Sqref = "C2:C1048576"
		if err := dv.SetDropList(regions); err != nil {
			return nil, err
		}
		if err := f.AddDataValidation(sheet, dv); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRejectionWorkbook renders the rejected rows of a job as a workbook:
// row index, rejection reason, then the raw cells as uploaded.
func (s *ReportService) BuildRejectionWorkbook(ctx context.Context, tenantID, jobID uint) ([]byte, error) {
	if _, err := s.jobs.GetOwned(ctx, tenantID, jobID); err != nil {
		return nil, err
	}
	rows, err := s.RejectedRows(ctx, jobID, 0)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Row", "Reason"}); err != nil {
		return nil, err
	}

	for i, rec := range rows {
		reason := ""
		if rec.RejectReason != nil {
			reason = *rec.RejectReason
		}
		out := []interface{}{rec.RowIndex, reason}
		if cells, err := rec.Cells(); err == nil {
			for _, c := range cells {
				out = append(out, c)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &out); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
