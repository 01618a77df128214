// amal-net-export writes the AMAL-Net table for a date range to a file, optionally uploading it to GCS_BUCKET.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/amal-net-export -from 2024-03-01 -to 2024-03-31 -format csv -out march.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/models/reports"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
)

func main() {
	from := flag.String("from", "", "Optional: first date (YYYY-MM-DD, inclusive). Defaults to 1970-01-01.")
	to := flag.String("to", "", "Optional: last date (YYYY-MM-DD, inclusive). Defaults to today in REPORT_TIMEZONE.")
	coin := flag.String("coin", "", "Coin to aggregate (default AMAL_COIN)")
	sortKey := flag.String("sort", "", "Sort key: email, amal_in, amal_out, amal_net")
	sortType := flag.String("sort-type", "", "asc or desc")
	search := flag.String("search", "", "Only users whose email contains this text")
	format := flag.String("format", "xlsx", "xlsx or csv")
	out := flag.String("out", "", "Output file (default amal-net_<from>_<to>.<format>)")
	upload := flag.Bool("upload", false, "Also upload the file to GCS_BUCKET")
	overwrite := flag.Bool("overwrite", false, "Replace an existing object when uploading")
	flag.Parse()

	settings := config.LoadSettings()
	logger := config.GetLogger()

	exportFormat, err := reports.ParseExportFormat(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
	start, end, err := dateRange(*from, *to, settings.ReportTimezone, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	ctx := utils.SetCorrelationIdInContext(context.Background(), "amal-net-export")
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	service := reports.NewAmalNetService(models.UserDirectory{DB: db}, models.FlowRecordStore{DB: db}, settings)
	rows, err := service.Table(ctx, reports.AmalNetQuery{
		StartDate: start,
		EndDate:   end,
		Coin:      *coin,
		SortKey:   *sortKey,
		SortType:  *sortType,
		SearchKey: *search,
	})
	if err != nil {
		config.LogError(logger, "amal-net-export", "main", "building table", nil, err)
		os.Exit(exitCode(err))
	}

	data, err := reports.ExportAmalNetBytes(rows, exportFormat)
	if err != nil {
		config.LogError(logger, "amal-net-export", "main", "rendering export", nil, err)
		os.Exit(1)
	}

	path := strings.TrimSpace(*out)
	if path == "" {
		path = fmt.Sprintf("amal-net_%s_%s.%s", start.Format(models.DateLayout), end.Format(models.DateLayout), exportFormat)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d rows to %s\n", len(rows), path)

	if !*upload {
		return
	}
	objectName := "reports/" + filepath.Base(path)
	if !*overwrite {
		exists, err := utils.ObjectExistsInGCS(ctx, objectName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to check %s: %v\n", objectName, err)
			os.Exit(1)
		}
		if exists {
			fmt.Fprintf(os.Stderr, "%s already exists; pass -overwrite to replace it\n", objectName)
			os.Exit(1)
		}
	}
	url, err := utils.UploadBytesToGCS(ctx, objectName, data, exportFormat.ContentType())
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Uploaded to %s\n", url)
}

// dateRange parses inclusive YYYY-MM-DD bounds in timezone. Empty from means 1970-01-01, empty to means today.
func dateRange(from, to, timezone string, now time.Time) (time.Time, time.Time, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(1970, 1, 1, 0, 0, 0, 0, location)
	if s := strings.TrimSpace(from); s != "" {
		start, err = time.ParseInLocation(models.DateLayout, s, location)
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewValidationError("from", "expected YYYY-MM-DD, got "+s)
		}
	}
	end, err := utils.ConvertToDate(now, timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if s := strings.TrimSpace(to); s != "" {
		end, err = time.ParseInLocation(models.DateLayout, s, location)
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewValidationError("to", "expected YYYY-MM-DD, got "+s)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, utils.NewValidationError("to", fmt.Sprintf("%s is before -from %s", end.Format(models.DateLayout), start.Format(models.DateLayout)))
	}
	return start, end, nil
}

// exitCode is 2 for bad flags and 1 for everything else.
func exitCode(err error) int {
	if utils.IsValidationError(err) {
		return 2
	}
	return 1
}
