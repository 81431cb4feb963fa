package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationPaths(t *testing.T) {
	assert.Equal(t, []string{"/t/maple/dashboard", "/t/maple/dashboard/notifications"}, MutationPaths("maple", false))
	assert.Equal(t, []string{"/t/maple/dashboard", "/t/maple/dashboard/notifications", "/t/maple/exchange"}, MutationPaths("maple", true))
}

func TestViewInvalidatorVersionsByPath(t *testing.T) {
	cache := newFakeViewCache()
	v := NewViewInvalidator(cache, time.Minute)
	ctx := context.Background()
	path := DashboardPath("maple")

	_, ok := v.Load(ctx, path, "u1", "all")
	assert.False(t, ok)

	v.Store(ctx, path, "u1", "all", []byte(`[1]`))
	data, ok := v.Load(ctx, path, "u1", "all")
	require.True(t, ok)
	assert.Equal(t, `[1]`, string(data))

	_, ok = v.Load(ctx, path, "u2", "all")
	assert.False(t, ok)

	v.Invalidate(ctx, MutationPaths("maple", false)...)
	_, ok = v.Load(ctx, path, "u1", "all")
	assert.False(t, ok)
}

func TestViewInvalidatorWithoutCache(t *testing.T) {
	v := NewViewInvalidator(nil, time.Minute)
	ctx := context.Background()

	v.Store(ctx, "/t/maple/dashboard", "u1", "all", []byte(`[]`))
	_, ok := v.Load(ctx, "/t/maple/dashboard", "u1", "all")
	assert.False(t, ok)
	v.Invalidate(ctx, "/t/maple/dashboard")
}
