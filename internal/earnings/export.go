package earnings

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sautihub/core-api/internal/earnings/entity"
)

const exportSheet = "Earnings"

var exportHeaders = []string{
	"Creator Name", "Phone Number", "Content Title", "Amount (KSH)", "Week Start", "Week End",
}

// Workbook is a rendered payout spreadsheet ready to stream to the caller.
type Workbook struct {
	file     *excelize.File
	Filename string
}

func (wb *Workbook) WriteTo(w io.Writer) (int64, error) {
	return wb.file.WriteTo(w)
}

func (wb *Workbook) Close() error { return wb.file.Close() }

// BuildWorkbook renders export rows into the weekly payout sheet. Amounts are
// stored in cents and written out in shillings.
func BuildWorkbook(weekStart time.Time, rows []entity.ExportRow) (*Workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	for i, h := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	for r, row := range rows {
		phone := ""
		if row.PhoneNumber != nil {
			phone = *row.PhoneNumber
		}
		values := []any{
			row.CreatorName,
			phone,
			row.ContentTitle,
			float64(row.AmountCents) / 100,
			row.WeekStart.Format("2006-01-02"),
			row.WeekEnd.Format("2006-01-02"),
		}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				_ = f.Close()
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "F", 18); err != nil {
		_ = f.Close()
		return nil, err
	}

	weekEnd := weekStart.AddDate(0, 0, 6)
	name := fmt.Sprintf("earnings_%s_to_%s.xlsx",
		weekStart.Format("2006-01-02"), weekEnd.Format("2006-01-02"))
	return &Workbook{file: f, Filename: name}, nil
}
