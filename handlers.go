package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
)

// adminAPI holds what the admin handlers need. db is a getter because the
// router is built before the database connects.
type adminAPI struct {
	db       func() *gorm.DB
	settings config.Settings
	geo      models.GeoLocator
}

func newAdminAPI(db func() *gorm.DB, settings config.Settings, geo models.GeoLocator) *adminAPI {
	return &adminAPI{db: db, settings: settings, geo: geo}
}

// respondError maps service errors to HTTP status codes.
func respondError(c *gin.Context, funcName string, err error) {
	var ve *utils.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, utils.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUserDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrLockNotObtained):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrServiceNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "server.go", funcName, "handling request", cid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "correlation_id": cid})
	}
}

// bindJSON answers 400 with per-field validation failures and reports whether binding succeeded.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

// queryInt returns 0 for a missing or malformed value so callers fall back to defaults.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return n
}

func queryBool(c *gin.Context, key string) *bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return nil
	}
	return &v
}

func pageRequest(c *gin.Context) models.PageRequest {
	return models.PageRequest{Page: queryInt(c, "page"), Limit: queryInt(c, "limit")}
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (a *adminAPI) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	info, err := models.Login(c.Request.Context(), a.db(), req.Email, req.Password, a.settings.TokenLifespan)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (a *adminAPI) logout(c *gin.Context) {
	if err := models.Logout(c.Request.Context()); err != nil {
		respondError(c, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *adminAPI) requestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := models.RequestPasswordReset(c.Request.Context(), a.db(), req.Email, a.settings.PasswordResetTTL); err != nil {
		// A lock collision means a reset is already being issued for this email.
		if !errors.Is(err, utils.ErrLockNotObtained) {
			respondError(c, "requestPasswordReset", err)
			return
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists, a reset code has been sent"})
}

func (a *adminAPI) confirmPasswordReset(c *gin.Context) {
	var req models.PasswordResetConfirm
	if !bindJSON(c, &req) {
		return
	}
	if err := models.ConfirmPasswordReset(c.Request.Context(), a.db(), &req); err != nil {
		respondError(c, "confirmPasswordReset", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *adminAPI) listUserGroups(c *gin.Context) {
	filter := models.UserGroupFilter{
		Name:     strings.TrimSpace(c.Query("name")),
		IsActive: queryBool(c, "is_active"),
		SortKey:  c.Query("sort"),
		SortType: models.ParseSortType(c.Query("sort_type")),
		Page:     pageRequest(c).Normalize(a.settings.DefaultPageSize),
	}
	page, err := models.ListUserGroups(c.Request.Context(), a.db(), filter)
	if err != nil {
		respondError(c, "listUserGroups", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (a *adminAPI) getUserGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	group, err := models.GetUserGroup(c.Request.Context(), a.db(), id)
	if err != nil {
		respondError(c, "getUserGroup", err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (a *adminAPI) createUserGroup(c *gin.Context) {
	var input models.NewUserGroup
	if !bindJSON(c, &input) {
		return
	}
	group, err := models.CreateUserGroup(c.Request.Context(), a.db(), &input)
	if err != nil {
		respondError(c, "createUserGroup", err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (a *adminAPI) updateUserGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input models.NewUserGroup
	if !bindJSON(c, &input) {
		return
	}
	group, err := models.UpdateUserGroup(c.Request.Context(), a.db(), id, &input)
	if err != nil {
		respondError(c, "updateUserGroup", err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (a *adminAPI) deleteUserGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	group, err := models.DeleteUserGroup(c.Request.Context(), a.db(), id)
	if err != nil {
		respondError(c, "deleteUserGroup", err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (a *adminAPI) assignUsersToGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		UserIds []int `json:"user_ids" binding:"required,min=1,dive,gt=0"`
	}
	if !bindJSON(c, &req) {
		return
	}
	assigned, err := models.AssignUsersToGroup(c.Request.Context(), a.db(), id, req.UserIds)
	if err != nil {
		respondError(c, "assignUsersToGroup", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_group_id": id, "assigned": assigned})
}

func (a *adminAPI) listSettings(c *gin.Context) {
	settings, err := models.ListSettings(c.Request.Context(), a.db())
	if err != nil {
		respondError(c, "listSettings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (a *adminAPI) getSetting(c *gin.Context) {
	setting, err := models.GetSetting(c.Request.Context(), a.db(), c.Param("key"))
	if err != nil {
		respondError(c, "getSetting", err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

func (a *adminAPI) upsertSetting(c *gin.Context) {
	var input models.NewSettingValue
	if !bindJSON(c, &input) {
		return
	}
	setting, err := models.UpsertSetting(c.Request.Context(), a.db(), c.Param("key"), *input.Value)
	if err != nil {
		respondError(c, "upsertSetting", err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

func (a *adminAPI) listInstruments(c *gin.Context) {
	filter := models.InstrumentFilter{
		Symbol:   strings.TrimSpace(c.Query("symbol")),
		IsActive: queryBool(c, "is_active"),
		SortKey:  c.Query("sort"),
		SortType: models.ParseSortType(c.Query("sort_type")),
		Page:     pageRequest(c).Normalize(a.settings.DefaultPageSize),
	}
	page, err := models.ListInstruments(c.Request.Context(), a.db(), filter)
	if err != nil {
		respondError(c, "listInstruments", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (a *adminAPI) getInstrument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	instrument, err := models.GetInstrument(c.Request.Context(), a.db(), id)
	if err != nil {
		respondError(c, "getInstrument", err)
		return
	}
	c.JSON(http.StatusOK, instrument)
}

func (a *adminAPI) createInstrument(c *gin.Context) {
	var input models.NewInstrument
	if !bindJSON(c, &input) {
		return
	}
	instrument, err := models.CreateInstrument(c.Request.Context(), a.db(), &input)
	if err != nil {
		respondError(c, "createInstrument", err)
		return
	}
	c.JSON(http.StatusCreated, instrument)
}

func (a *adminAPI) updateInstrument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input models.NewInstrument
	if !bindJSON(c, &input) {
		return
	}
	instrument, err := models.UpdateInstrument(c.Request.Context(), a.db(), id, &input)
	if err != nil {
		respondError(c, "updateInstrument", err)
		return
	}
	c.JSON(http.StatusOK, instrument)
}

func (a *adminAPI) listNotifications(c *gin.Context) {
	filter := models.NotificationFilter{
		Channel: c.Query("channel"),
		Status:  c.Query("status"),
		Page:    pageRequest(c).Normalize(a.settings.DefaultPageSize),
	}
	page, err := models.ListNotifications(c.Request.Context(), a.db(), filter)
	if err != nil {
		respondError(c, "listNotifications", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (a *adminAPI) enqueueNotification(c *gin.Context) {
	var input models.NewNotification
	if !bindJSON(c, &input) {
		return
	}
	notification, err := models.EnqueueNotification(c.Request.Context(), a.db(), &input)
	if err != nil {
		respondError(c, "enqueueNotification", err)
		return
	}
	c.JSON(http.StatusAccepted, notification)
}

func (a *adminAPI) ipLocation(c *gin.Context) {
	location, err := models.LookupIPLocation(c.Request.Context(), a.geo, c.Query("ip"))
	if err != nil {
		respondError(c, "ipLocation", err)
		return
	}
	c.JSON(http.StatusOK, location)
}
