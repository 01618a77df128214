package utils

import (
	"context"

	"github.com/syamai/exchange-future-backend-unified-sub002/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyAdminId       = appctx.ContextKeyAdminId
	ContextKeyAdminEmail    = appctx.ContextKeyAdminEmail
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetAdminIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyAdminId)
}

func GetAdminEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyAdminEmail)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetAdminIdInContext(ctx context.Context, adminId int) context.Context {
	return appctx.Set(ctx, ContextKeyAdminId, adminId)
}

func SetAdminEmailInContext(ctx context.Context, email string) context.Context {
	return appctx.Set(ctx, ContextKeyAdminEmail, email)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
