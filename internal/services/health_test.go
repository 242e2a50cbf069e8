package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/stepio/internal/config"
)

func TestHealthCheck(t *testing.T) {
	rs := newTestRecordStore(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{DBType: "sqlite", DBDatabase: ":memory:"}
	deps := HealthDeps{DB: rs.db, Redis: rdb}

	result := HealthCheck(context.Background(), cfg, deps)
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "ok", result.Redis)
	assert.Empty(t, result.Authorizer)
	assert.Empty(t, result.ErrorMessage)

	mr.Close()
	result = HealthCheck(context.Background(), cfg, deps)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, "unreachable", result.Redis)
	assert.Contains(t, result.ErrorMessage, "Redis ping failed")

	sqlDB, err := rs.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	result = HealthCheck(context.Background(), cfg, deps)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "unreachable", result.Database)
	assert.Contains(t, result.Details, "database_ping_error")
}

func TestHealthCheckUnreachableServices(t *testing.T) {
	cfg := &config.Config{AuthzURL: "http://127.0.0.1:1", BillingURL: "http://127.0.0.1:1"}
	result := HealthCheck(context.Background(), cfg, HealthDeps{})

	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "not configured", result.Database)
	assert.Equal(t, "unreachable", result.Authorizer)
	assert.Equal(t, "unreachable", result.Billing)
	assert.Contains(t, result.ErrorMessage, "Authorizer ping failed")
}
