package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testSettings() config.Settings {
	return config.Settings{
		DefaultPageSize:    10,
		ReportTimezone:     "Asia/Singapore",
		DefaultCoin:        "AMAL",
		AmalNetConcurrency: 1,
		ReportSlowMs:       60000,
		TokenLifespan:      time.Hour,
		PasswordResetTTL:   30 * time.Minute,
	}
}

func newTestRouter(t *testing.T, geo models.GeoLocator) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	api := newAdminAPI(func() *gorm.DB { return db }, testSettings(), geo)
	return newRouter(api, log, nil), mock
}

func authHeader(t *testing.T) string {
	t.Helper()
	token, err := utils.JwtGenerate(1, "admin@x.com", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(r *gin.Engine, method, path, auth string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReadinessGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	r := newRouter(newAdminAPI(func() *gorm.DB { return nil }, testSettings(), nil), log, nil)

	w := doRequest(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(r, http.MethodGet, "/admin/amal-net", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCorrelationIdEchoed(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("x-correlation-id", "cid-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "cid-123", w.Header().Get("x-correlation-id"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	for _, path := range []string{"/admin/amal-net", "/admin/user-groups", "/admin/settings", "/admin/leaderboard"} {
		w := doRequest(r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestLoginValidation(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/admin/login", "", []byte(`{"email":"not-an-email"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "email", body.Fields["Email"])
	assert.Equal(t, "required", body.Fields["Password"])
}

func TestLoginUnknownUser(t *testing.T) {
	r, mock := newTestRouter(t, nil)
	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\? AND role = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(r, http.MethodPost, "/admin/login", "", []byte(`{"email":"who@x.com","password":"secret"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordResetRequestUnknownEmail(t *testing.T) {
	r, mock := newTestRouter(t, nil)
	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(r, http.MethodPost, "/admin/password-reset/request", "", []byte(`{"email":"Ghost@x.com"}`))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAmalNetHandler(t *testing.T) {
	r, mock := newTestRouter(t, nil)
	mock.ExpectQuery("SELECT (.+) FROM `users` WHERE status = \\? ORDER BY id").
		WithArgs("ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(1, "a@x.com").
			AddRow(2, "b@x.com"))
	mock.ExpectQuery("FROM `user_amal_statistics` WHERE (.+)statistic_date BETWEEN \\? AND \\?").
		WithArgs(1, "AMAL", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"amal_in", "amal_out"}).
			AddRow("10.5", "2").
			AddRow("1", "0.5"))
	mock.ExpectQuery("FROM `user_amal_statistics`").
		WithArgs(2, "AMAL", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"amal_in", "amal_out"}).
			AddRow("1", "3"))

	w := doRequest(r, http.MethodGet, "/admin/amal-net?start_date=1700000000000&end_date=1700600000000&sort=amal_net&sort_type=asc", authHeader(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Data []struct {
			UserId  int    `json:"user_id"`
			AmalNet string `json:"amal_net"`
			Index   int    `json:"index"`
		} `json:"data"`
		Total int `json:"total"`
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 10, result.Limit)
	require.Len(t, result.Data, 2)
	assert.Equal(t, 2, result.Data[0].UserId)
	assert.Equal(t, "0", result.Data[0].AmalNet)
	assert.Equal(t, 1, result.Data[0].Index)
	assert.Equal(t, 1, result.Data[1].UserId)
	assert.Equal(t, "9", result.Data[1].AmalNet)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAmalNetHandlerDataIntegrity(t *testing.T) {
	r, mock := newTestRouter(t, nil)
	mock.ExpectQuery("FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, "a@x.com"))
	mock.ExpectQuery("FROM `user_amal_statistics`").
		WillReturnRows(sqlmock.NewRows([]string{"amal_in", "amal_out"}).AddRow("abc", "1"))

	w := doRequest(r, http.MethodGet, "/admin/amal-net", authHeader(t), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAmalNetExportCSV(t *testing.T) {
	r, mock := newTestRouter(t, nil)
	mock.ExpectQuery("FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, "a@x.com"))
	mock.ExpectQuery("FROM `user_amal_statistics`").
		WillReturnRows(sqlmock.NewRows([]string{"amal_in", "amal_out"}).AddRow("5", "1.25"))

	w := doRequest(r, http.MethodGet, "/admin/amal-net/export?format=csv", authHeader(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"1", "1", "a@x.com", "5", "1.25", "3.75"}, records[1])
}

func TestAmalNetExportBadFormat(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := doRequest(r, http.MethodGet, "/admin/amal-net/export?format=pdf", authHeader(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIPLocationHandler(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/admin/ip-location?ip=not-an-ip", authHeader(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/admin/ip-location?ip=8.8.8.8", authHeader(t), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetUserGroupNotFound(t *testing.T) {
	r, mock := newTestRouter(t, nil)
	mock.ExpectQuery("SELECT \\* FROM `user_groups` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(r, http.MethodGet, "/admin/user-groups/42", authHeader(t), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/admin/user-groups/abc", authHeader(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSplitAndTrim(t *testing.T) {
	cases := []struct {
		in       string
		expected []string
	}{
		{"", nil},
		{"  ", nil},
		{"a.com", []string{"a.com"}},
		{" a.com , ,b.com ", []string{"a.com", "b.com"}},
	}
	for _, tc := range cases {
		got := splitAndTrim(tc.in)
		if len(got) != len(tc.expected) {
			t.Fatalf("splitAndTrim(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
		for i := range got {
			if got[i] != tc.expected[i] {
				t.Fatalf("splitAndTrim(%q) expected %v, got %v", tc.in, tc.expected, got)
			}
		}
	}
}
