package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"github.com/xuri/excelize/v2"
)

type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExportFormatXLSX:
		return ExportFormatXLSX, nil
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	}
	return "", utils.NewValidationError("format", "must be xlsx or csv")
}

func (f ExportFormat) ContentType() string {
	if f == ExportFormatCSV {
		return utils.ContentTypeCSV
	}
	return utils.ContentTypeXLSX
}

const amalNetSheet = "AMAL-Net"

var amalNetHeaders = []string{"Index", "User ID", "Email", "AMAL In", "AMAL Out", "AMAL Net"}

// amounts stay strings so no precision is lost to spreadsheet floats
func amalNetRecord(r UserFlowSummary) []string {
	return []string{fmt.Sprint(r.Index), fmt.Sprint(r.UserId), r.Email, r.AmalIn, r.AmalOut, r.AmalNet}
}

// ExportAmalNet renders rows as xlsx or csv.
func ExportAmalNet(w io.Writer, rows []UserFlowSummary, format ExportFormat) error {
	if format == ExportFormatCSV {
		return writeAmalNetCSV(w, rows)
	}
	return writeAmalNetExcel(w, rows)
}

// ExportAmalNetBytes is ExportAmalNet into memory.
func ExportAmalNetBytes(rows []UserFlowSummary, format ExportFormat) ([]byte, error) {
	var buf bytes.Buffer
	if err := ExportAmalNet(&buf, rows, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAmalNetCSV(w io.Writer, rows []UserFlowSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(amalNetHeaders); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(amalNetRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeAmalNetExcel(w io.Writer, rows []UserFlowSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", amalNetSheet); err != nil {
		return err
	}

	for col, h := range amalNetHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(amalNetSheet, cell, h); err != nil {
			return err
		}
	}

	for i, r := range rows {
		rowNo := i + 2
		values := []interface{}{r.Index, r.UserId, r.Email, r.AmalIn, r.AmalOut, r.AmalNet}
		cell, err := excelize.CoordinatesToCellName(1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(amalNetSheet, cell, &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}
