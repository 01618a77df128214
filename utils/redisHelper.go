package utils

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/syamai/exchange-future-backend-unified-sub002/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

func cacheKey[T any](id string) string {
	return GetTypeName[T]() + ":" + id
}

// StoreRedis caches obj under Type:id.
func StoreRedis[T any](ctx context.Context, obj *T, id any, exp time.Duration) error {
	return config.SetRedisObject(ctx, cacheKey[T](fmt.Sprint(id)), obj, exp)
}

// RetrieveRedis returns nil when the key does not exist.
func RetrieveRedis[T any](ctx context.Context, id any) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(ctx, cacheKey[T](fmt.Sprint(id)), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}

func RemoveRedisItem[T any](ctx context.Context, id any) error {
	return config.RemoveRedisKey(ctx, cacheKey[T](fmt.Sprint(id)))
}

// CacheOrLoad returns the cached Type:id or calls load and caches its result.
// Cache failures are logged and never fail the request.
func CacheOrLoad[T any](ctx context.Context, id any, exp time.Duration, load func() (*T, error)) (*T, error) {
	logger := config.GetLogger()
	cached, err := RetrieveRedis[T](ctx, id)
	if err != nil {
		config.LogError(logger, "RedisHelper", "CacheOrLoad", "reading cache", cacheKey[T](fmt.Sprint(id)), err)
	} else if cached != nil {
		return cached, nil
	}

	result, err := load()
	if err != nil {
		return nil, err
	}
	if result != nil {
		if err := StoreRedis(ctx, result, id, exp); err != nil {
			config.LogError(logger, "RedisHelper", "CacheOrLoad", "writing cache", cacheKey[T](fmt.Sprint(id)), err)
		}
	}
	return result, nil
}
