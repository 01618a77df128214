package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/middlewares"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"github.com/syamai/exchange-future-backend-unified-sub002/workflow"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

const defaultPort = "8080"

var tracer = otel.Tracer("exchange-admin")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// correlationMiddleware attaches x-correlation-id (or a fresh uuid) to the request context.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// readinessMiddleware answers /healthz and returns 503 until the database is connected.
func readinessMiddleware(db func() *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if db() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": utils.ErrServiceNotReady.Error()})
			return
		}
		c.Next()
	}
}

func corsConfigFromEnv() cors.Config {
	corsConfig := cors.DefaultConfig()
	// In production only CORS_ALLOWED_ORIGINS may call us; elsewhere allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}

func rateLimiterFromEnv() *RateLimiter {
	if !config.EnvBool("RATE_LIMIT_ENABLED") {
		return nil
	}
	limit := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}
	return NewRateLimiter(getRedisClient(os.Getenv("REDIS_ADDRESS")), limit, time.Duration(windowSec)*time.Second)
}

// newRouter builds the gin engine. rateLimiter may be nil.
func newRouter(api *adminAPI, logger *logrus.Logger, rateLimiter *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(readinessMiddleware(api.db))
	r.Use(cors.New(corsConfigFromEnv()))
	if rateLimiter != nil {
		r.Use(rateLimiter.RateLimitMiddleware)
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	public := r.Group("/admin")
	public.POST("/login", api.login)
	public.POST("/password-reset/request", api.requestPasswordReset)
	public.POST("/password-reset/confirm", api.confirmPasswordReset)

	admin := r.Group("/admin", middlewares.AuthMiddleware(), middlewares.SessionMiddleware())
	admin.POST("/logout", api.logout)

	admin.GET("/user-groups", api.listUserGroups)
	admin.GET("/user-groups/:id", api.getUserGroup)
	admin.POST("/user-groups", api.createUserGroup)
	admin.PUT("/user-groups/:id", api.updateUserGroup)
	admin.DELETE("/user-groups/:id", api.deleteUserGroup)
	admin.POST("/user-groups/:id/users", api.assignUsersToGroup)

	admin.GET("/settings", api.listSettings)
	admin.GET("/settings/:key", api.getSetting)
	admin.PUT("/settings/:key", api.upsertSetting)

	admin.GET("/instruments", api.listInstruments)
	admin.GET("/instruments/:id", api.getInstrument)
	admin.POST("/instruments", api.createInstrument)
	admin.PUT("/instruments/:id", api.updateInstrument)

	admin.GET("/notifications", api.listNotifications)
	admin.POST("/notifications", api.enqueueNotification)

	admin.GET("/ip-location", api.ipLocation)
	admin.GET("/leaderboard", api.leaderboard)
	admin.GET("/amal-net", api.amalNet)
	admin.GET("/amal-net/export", api.amalNetExport)

	r.NoRoute(customNotFoundHandler)
	return r
}

func openGeoLocator(logger *logrus.Logger) (models.GeoLocator, func()) {
	path := strings.TrimSpace(os.Getenv("GEOIP_DB_PATH"))
	if path == "" {
		logger.WithFields(logrus.Fields{"field": "geoip"}).Warn("GEOIP_DB_PATH not set; ip-location disabled")
		return nil, func() {}
	}
	locator, err := models.OpenGeoIP(path)
	if err != nil {
		config.LogError(logger, "server.go", "openGeoLocator", "opening geoip database", path, err)
		return nil, func() {}
	}
	return locator, func() { _ = locator.Close() }
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	settings := config.LoadSettings()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	geo, closeGeo := openGeoLocator(logger)
	defer closeGeo()

	api := newAdminAPI(config.GetDB, settings, geo)

	// Listen before dependencies are up; the readiness gate answers 503 meanwhile.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(api, logger, rateLimiterFromEnv()),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; SKIP_MIGRATIONS=true leaves it to a separate job.
	if !config.EnvBool("SKIP_MIGRATIONS") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if config.EnvBool("NOTIFICATIONS_DISABLED") {
		logger.WithFields(logrus.Fields{"field": "notifications"}).Warn("notification dispatcher disabled")
	} else {
		go workflow.NewNotificationDispatcher(db, logger, config.PubSubPublisher{}, settings).Run(dispatcherCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("admin api listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining requests.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware counts requests per client IP in a fixed window.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	// First hit opens the window.
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
