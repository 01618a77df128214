package reports

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// UserDirectory lists the users a report covers.
type UserDirectory interface {
	ActiveUsers(ctx context.Context) ([]models.DirectoryUser, error)
}

// FlowRecordStore reads raw per-day flow rows for one user.
type FlowRecordStore interface {
	FlowRecords(ctx context.Context, userId int, coin string, start time.Time, end time.Time) ([]models.FlowAmounts, error)
}

const (
	AmalNetSortEmail   = "email"
	AmalNetSortAmalIn  = "amal_in"
	AmalNetSortAmalOut = "amal_out"
	AmalNetSortAmalNet = "amal_net"
)

type UserFlowSummary struct {
	UserId  int    `json:"user_id"`
	Email   string `json:"email"`
	AmalIn  string `json:"amal_in"`
	AmalOut string `json:"amal_out"`
	AmalNet string `json:"amal_net"`
	Index   int    `json:"index"`

	in, out, net decimal.Decimal
}

type FlowTotals struct {
	AmalIn  decimal.Decimal
	AmalOut decimal.Decimal
}

// AmalNetQuery dates are calendar dates; both ends are inclusive.
type AmalNetQuery struct {
	StartDate time.Time
	EndDate   time.Time
	Coin      string
	SortKey   string
	SortType  string
	SearchKey string
	Page      int
	Limit     int
}

type AmalNetResult struct {
	Data  []UserFlowSummary `json:"data"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type AmalNetService struct {
	Users    UserDirectory
	Flows    FlowRecordStore
	Settings config.Settings
}

func NewAmalNetService(users UserDirectory, flows FlowRecordStore, settings config.Settings) *AmalNetService {
	return &AmalNetService{Users: users, Flows: flows, Settings: settings}
}

// AggregateUserFlow sums a user's in and out flow over the query range.
func (s *AmalNetService) AggregateUserFlow(ctx context.Context, userId int, coin string, start time.Time, end time.Time) (FlowTotals, error) {
	totals := FlowTotals{AmalIn: decimal.Zero, AmalOut: decimal.Zero}

	records, err := s.Flows.FlowRecords(ctx, userId, coin, start, end)
	if err != nil {
		return totals, err
	}
	for _, r := range records {
		in, err := utils.ParseDecimal(r.AmalIn)
		if err != nil {
			return totals, fmt.Errorf("%w: user %d amal_in %q: %v", utils.ErrDataIntegrity, userId, r.AmalIn, err)
		}
		out, err := utils.ParseDecimal(r.AmalOut)
		if err != nil {
			return totals, fmt.Errorf("%w: user %d amal_out %q: %v", utils.ErrDataIntegrity, userId, r.AmalOut, err)
		}
		totals.AmalIn = totals.AmalIn.Add(in)
		totals.AmalOut = totals.AmalOut.Add(out)
	}
	return totals, nil
}

// NetFlow is in - out when in exceeds out, else zero.
func NetFlow(in decimal.Decimal, out decimal.Decimal) decimal.Decimal {
	if in.GreaterThan(out) {
		return in.Sub(out)
	}
	return decimal.Zero
}

func newUserFlowSummary(user models.DirectoryUser, totals FlowTotals) UserFlowSummary {
	net := NetFlow(totals.AmalIn, totals.AmalOut)
	return UserFlowSummary{
		UserId:  user.ID,
		Email:   user.Email,
		AmalIn:  totals.AmalIn.String(),
		AmalOut: totals.AmalOut.String(),
		AmalNet: net.String(),
		in:      totals.AmalIn,
		out:     totals.AmalOut,
		net:     net,
	}
}

func (s *AmalNetService) coin(q AmalNetQuery) string {
	if c := strings.TrimSpace(q.Coin); c != "" {
		return strings.ToUpper(c)
	}
	return s.Settings.DefaultCoin
}

// summarize runs the aggregation for every active user. Rows keep directory order.
func (s *AmalNetService) summarize(ctx context.Context, q AmalNetQuery) ([]UserFlowSummary, error) {
	users, err := s.Users.ActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	coin := s.coin(q)

	rows := make([]UserFlowSummary, len(users))
	g, gctx := errgroup.WithContext(ctx)
	if s.Settings.AmalNetConcurrency > 0 {
		g.SetLimit(s.Settings.AmalNetConcurrency)
	}
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			totals, err := s.AggregateUserFlow(gctx, u.ID, coin, q.StartDate, q.EndDate)
			if err != nil {
				return err
			}
			rows[i] = newUserFlowSummary(u, totals)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func summaryLess(key string) func(a, b UserFlowSummary) bool {
	switch key {
	case AmalNetSortAmalIn:
		return func(a, b UserFlowSummary) bool { return a.in.LessThan(b.in) }
	case AmalNetSortAmalOut:
		return func(a, b UserFlowSummary) bool { return a.out.LessThan(b.out) }
	case AmalNetSortAmalNet:
		return func(a, b UserFlowSummary) bool { return a.net.LessThan(b.net) }
	default:
		return func(a, b UserFlowSummary) bool { return a.Email < b.Email }
	}
}

// SortSummaries sorts ascending (stable) and reverses for desc, so desc ties come out in reverse input order.
func SortSummaries(rows []UserFlowSummary, sortKey string, sortType models.SortType) {
	less := summaryLess(strings.ToLower(strings.TrimSpace(sortKey)))
	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[i], rows[j])
	})
	if sortType != models.SortTypeAsc {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
}

func Reindex(rows []UserFlowSummary) {
	for i := range rows {
		rows[i].Index = i + 1
	}
}

// FilterByEmail keeps rows whose email contains searchKey (case-sensitive). Empty keeps all.
func FilterByEmail(rows []UserFlowSummary, searchKey string) []UserFlowSummary {
	if searchKey == "" {
		return rows
	}
	filtered := make([]UserFlowSummary, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(r.Email, searchKey) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Paginate returns the 1-based page of rows along with the normalized page and limit.
func Paginate(rows []UserFlowSummary, page int, limit int, defaultLimit int) ([]UserFlowSummary, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	// Compare page indexes before multiplying so a huge page cannot overflow.
	if len(rows) == 0 || page-1 > (len(rows)-1)/limit {
		return []UserFlowSummary{}, page, limit
	}
	start := (page - 1) * limit
	end := len(rows)
	if limit < end-start {
		end = start + limit
	}
	return rows[start:end], page, limit
}

// Table builds the full sorted, indexed and filtered AMAL-Net table.
func (s *AmalNetService) Table(ctx context.Context, q AmalNetQuery) ([]UserFlowSummary, error) {
	ctx, span := otel.Tracer("reports").Start(ctx, "AmalNetService.Table")
	defer span.End()
	started := time.Now()

	rows, err := s.summarize(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("amal_net.users", len(rows)))

	SortSummaries(rows, q.SortKey, models.ParseSortType(q.SortType))
	Reindex(rows)

	if q.SearchKey != "" {
		rows = FilterByEmail(rows, q.SearchKey)
		Reindex(rows)
	}

	logSlowReport(ctx, "AmalNet", started, s.Settings.ReportSlowMs, map[string]any{
		"users":      len(rows),
		"coin":       s.coin(q),
		"start_date": q.StartDate.Format(models.DateLayout),
		"end_date":   q.EndDate.Format(models.DateLayout),
	})
	return rows, nil
}

// Report is one page of Table.
func (s *AmalNetService) Report(ctx context.Context, q AmalNetQuery) (*AmalNetResult, error) {
	rows, err := s.Table(ctx, q)
	if err != nil {
		return nil, err
	}
	data, page, limit := Paginate(rows, q.Page, q.Limit, s.Settings.DefaultPageSize)
	return &AmalNetResult{
		Data:  data,
		Total: len(rows),
		Page:  page,
		Limit: limit,
	}, nil
}

// DateRangeFromMillis converts epoch-millisecond bounds to inclusive calendar dates in timezone.
// The start day is advanced by one; a missing or malformed start means 1970-01-01 and a
// missing or malformed end means today.
func DateRangeFromMillis(startMs string, endMs string, timezone string, now time.Time) (time.Time, time.Time, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start := time.Date(1970, 1, 1, 0, 0, 0, 0, location)
	if ms, err := strconv.ParseInt(strings.TrimSpace(startMs), 10, 64); err == nil {
		day, err := utils.DateFromMillis(ms, timezone)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = day.AddDate(0, 0, 1)
	}

	end, err := utils.ConvertToDate(now, timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if ms, err := strconv.ParseInt(strings.TrimSpace(endMs), 10, 64); err == nil {
		end, err = utils.DateFromMillis(ms, timezone)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}
