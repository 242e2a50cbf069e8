package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/database"
	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/testenv"
)

// TestRecordStoreIntegration runs the record store against a real database
// container. Set DB_IMAGE (and optionally DB_TYPE) to enable it.
func TestRecordStoreIntegration(t *testing.T) {
	image := os.Getenv("DB_IMAGE")
	if testing.Short() || image == "" {
		t.Skip("set DB_IMAGE to run container tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	containers, err := testenv.Start(ctx, testenv.Options{
		DBType:  os.Getenv("DB_TYPE"),
		DBImage: image,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = containers.Terminate(context.Background()) })

	cfg := containers.Config
	db, err := database.Connect(&cfg, zap.NewNop())
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.AutoMigrate(db))

	rs := NewRecordStore(db, zap.NewNop())
	rec := models.NewRecord()
	rec.User = &models.User{Name: "Carla"}
	require.NoError(t, rs.Put(ctx, "u1", rec, false))
	require.NoError(t, rs.SetPlan(ctx, "u1", models.SubscriptionPlan{Tier: models.TierPro, Status: models.PlanActive}))

	raw, found, err := rs.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	got := models.CompleteRecord(raw)
	assert.True(t, got.Plan.IsPro())
	assert.Equal(t, "Carla", got.User.Name)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	result := HealthCheck(ctx, &cfg, HealthDeps{DB: db, Redis: rdb})
	assert.Equal(t, StatusHealthy, result.Status)
}
