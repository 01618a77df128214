package reports

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
)

func logSlowReport(ctx context.Context, name string, started time.Time, thresholdMs int64, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < thresholdMs {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"module":         "Reports",
		"report":         name,
		"ms":             d.Milliseconds(),
		"correlation_id": cid,
		"extra":          extra,
	}).Warn("slow_report")
}
