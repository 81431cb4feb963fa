package service

import (
	"context"
	"fmt"
	"time"

	"exchange-service/internal/util"

	"go.uber.org/zap"
)

// Dashboard view paths for a tenant
func DashboardPath(slug string) string { return fmt.Sprintf("/t/%s/dashboard", slug) }
func NotificationsPath(slug string) string { return fmt.Sprintf("/t/%s/dashboard/notifications", slug) }
func ExchangePath(slug string) string { return fmt.Sprintf("/t/%s/exchange", slug) }

// MutationPaths lists the views made stale by a transition. Pickup leaves the
// exchange browse page untouched.
func MutationPaths(slug string, includeExchange bool) []string {
	paths := []string{DashboardPath(slug), NotificationsPath(slug)}
	if includeExchange {
		paths = append(paths, ExchangePath(slug))
	}
	return paths
}

// ViewInvalidator versions cached views by path so a bump makes every cached
// copy of that path unreachable
type ViewInvalidator struct {
	cache  ViewCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewViewInvalidator creates a new view invalidator. cache may be nil, in
// which case nothing is cached.
func NewViewInvalidator(cache ViewCache, ttl time.Duration) *ViewInvalidator {
	return &ViewInvalidator{cache: cache, ttl: ttl, logger: util.GetLogger()}
}

// Invalidate bumps the version of each path. Failures are logged.
func (v *ViewInvalidator) Invalidate(ctx context.Context, paths ...string) {
	if v.cache == nil {
		return
	}
	for _, p := range paths {
		if err := v.cache.BumpViewVersion(ctx, p); err != nil {
			v.logger.Warn("Failed to invalidate view", zap.String("path", p), zap.Error(err))
		}
	}
}

// Load returns the cached view of path for user, if present at the current version.
func (v *ViewInvalidator) Load(ctx context.Context, path, userID, variant string) ([]byte, bool) {
	key, ok := v.key(ctx, path, userID, variant)
	if !ok {
		return nil, false
	}
	data, found, err := v.cache.GetCachedView(ctx, key)
	if err != nil {
		v.logger.Warn("Failed to read cached view", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return data, found
}

// Store caches data as the view of path for user at the current version.
func (v *ViewInvalidator) Store(ctx context.Context, path, userID, variant string, data []byte) {
	key, ok := v.key(ctx, path, userID, variant)
	if !ok {
		return
	}
	if err := v.cache.SetCachedView(ctx, key, data, v.ttl); err != nil {
		v.logger.Warn("Failed to cache view", zap.String("key", key), zap.Error(err))
	}
}

func (v *ViewInvalidator) key(ctx context.Context, path, userID, variant string) (string, bool) {
	if v.cache == nil || v.ttl <= 0 {
		return "", false
	}
	version, err := v.cache.ViewVersion(ctx, path)
	if err != nil {
		v.logger.Warn("Failed to read view version", zap.String("path", path), zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("%s:v%d:%s:%s", path, version, userID, variant), true
}
