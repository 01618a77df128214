package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/models/reports"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"go.opentelemetry.io/otel/attribute"
)

const exportLockTTL = 2 * time.Minute

func (a *adminAPI) amalNetService() *reports.AmalNetService {
	db := a.db()
	return reports.NewAmalNetService(models.UserDirectory{DB: db}, models.FlowRecordStore{DB: db}, a.settings)
}

// amalNetQuery reads the shared AMAL-Net query string. start_date and end_date are epoch millis.
func (a *adminAPI) amalNetQuery(c *gin.Context) (reports.AmalNetQuery, error) {
	start, end, err := reports.DateRangeFromMillis(c.Query("start_date"), c.Query("end_date"), a.settings.ReportTimezone, time.Now())
	if err != nil {
		return reports.AmalNetQuery{}, err
	}
	return reports.AmalNetQuery{
		StartDate: start,
		EndDate:   end,
		Coin:      c.Query("coin"),
		SortKey:   c.Query("sort"),
		SortType:  c.Query("sort_type"),
		SearchKey: c.Query("search_key"),
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	}, nil
}

func (a *adminAPI) amalNet(c *gin.Context) {
	q, err := a.amalNetQuery(c)
	if err != nil {
		respondError(c, "amalNet", err)
		return
	}
	result, err := a.amalNetService().Report(c.Request.Context(), q)
	if err != nil {
		respondError(c, "amalNet", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// amalNetExport streams the whole filtered table. One export per admin at a time.
func (a *adminAPI) amalNetExport(c *gin.Context) {
	format, err := reports.ParseExportFormat(c.Query("format"))
	if err != nil {
		respondError(c, "amalNetExport", err)
		return
	}
	q, err := a.amalNetQuery(c)
	if err != nil {
		respondError(c, "amalNetExport", err)
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "amalNetExport")
	span.SetAttributes(attribute.String("format", string(format)))
	defer span.End()

	adminId, _ := utils.GetAdminIdFromContext(ctx)
	var data []byte
	err = utils.WithRedisLock(ctx, "AmalNetExport", strconv.Itoa(adminId), exportLockTTL, "server.go", "amalNetExport", func() error {
		rows, err := a.amalNetService().Table(ctx, q)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("rows", len(rows)))
		data, err = reports.ExportAmalNetBytes(rows, format)
		return err
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, "amalNetExport", err)
		return
	}

	adminEmail, _ := utils.GetAdminEmailFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"module":         "Reports",
		"admin_id":       adminId,
		"admin_email":    adminEmail,
		"format":         format,
		"bytes":          len(data),
		"correlation_id": cid,
	}).Info("amal_net_export")

	filename := fmt.Sprintf("amal-net_%s_%s.%s", q.StartDate.Format(models.DateLayout), q.EndDate.Format(models.DateLayout), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (a *adminAPI) leaderboard(c *gin.Context) {
	start, end, err := reports.DateRangeFromMillis(c.Query("start_date"), c.Query("end_date"), a.settings.ReportTimezone, time.Now())
	if err != nil {
		respondError(c, "leaderboard", err)
		return
	}
	entries, err := reports.GetLeaderboard(c.Request.Context(), a.db(), reports.LeaderboardQuery{
		StartDate: start,
		EndDate:   end,
		Coin:      c.Query("coin"),
		Limit:     queryInt(c, "limit"),
	}, a.settings.DefaultPageSize)
	if err != nil {
		respondError(c, "leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
