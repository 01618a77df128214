package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
)

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(), SessionMiddleware(), func(c *gin.Context) {
		id, _ := utils.GetAdminIdFromContext(c.Request.Context())
		email, _ := utils.GetAdminEmailFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": id, "email": email})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newProtectedRouter()
	valid, err := utils.JwtGenerate(3, "admin@x.com", time.Hour)
	require.NoError(t, err)
	expired, err := utils.JwtGenerate(3, "admin@x.com", -time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token " + valid, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.name)
		if tc.status == http.StatusOK {
			assert.JSONEq(t, `{"id":3,"email":"admin@x.com"}`, w.Body.String())
		}
	}
}
