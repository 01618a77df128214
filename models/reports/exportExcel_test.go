package reports

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"github.com/xuri/excelize/v2"
)

func exportFixture() []UserFlowSummary {
	rows := []UserFlowSummary{
		newUserFlowSummary(models.DirectoryUser{ID: 1, Email: "a@x.com"}, FlowTotals{
			AmalIn:  decimal.RequireFromString("100.123456789012345678"),
			AmalOut: decimal.RequireFromString("40"),
		}),
		newUserFlowSummary(models.DirectoryUser{ID: 2, Email: "b,c@x.com"}, FlowTotals{
			AmalIn:  decimal.RequireFromString("1"),
			AmalOut: decimal.RequireFromString("2"),
		}),
	}
	Reindex(rows)
	return rows
}

func TestParseExportFormat(t *testing.T) {
	cases := []struct {
		in       string
		expected ExportFormat
		fails    bool
	}{
		{"", ExportFormatXLSX, false},
		{"xlsx", ExportFormatXLSX, false},
		{" CSV ", ExportFormatCSV, false},
		{"pdf", "", true},
	}
	for _, tc := range cases {
		got, err := ParseExportFormat(tc.in)
		if tc.fails {
			if !utils.IsValidationError(err) {
				t.Fatalf("ParseExportFormat(%q) expected validation error, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.expected {
			t.Fatalf("ParseExportFormat(%q) expected %s, got %s (%v)", tc.in, tc.expected, got, err)
		}
	}
}

func TestExportAmalNet_CSV(t *testing.T) {
	data, err := ExportAmalNetBytes(exportFixture(), ExportFormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := strings.Join([]string{
		"Index,User ID,Email,AMAL In,AMAL Out,AMAL Net",
		"1,1,a@x.com,100.123456789012345678,40,60.123456789012345678",
		`2,2,"b,c@x.com",1,2,0`,
		"",
	}, "\n")
	if string(data) != expected {
		t.Fatalf("unexpected csv:\n%s", string(data))
	}
}

func TestExportAmalNet_XLSX(t *testing.T) {
	data, err := ExportAmalNetBytes(exportFixture(), ExportFormatXLSX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(amalNetSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(amalNetHeaders, "|") {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][2] != "a@x.com" || rows[1][5] != "60.123456789012345678" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	if rows[2][0] != "2" || rows[2][5] != "0" {
		t.Fatalf("unexpected second row %v", rows[2])
	}
}
