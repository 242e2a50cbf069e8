package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/types"
)

func newTestRecordStore(t *testing.T) *RecordStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.StepioRecord{}))
	return NewRecordStore(db, zap.NewNop())
}

func decodeDoc(t *testing.T, doc []byte) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc, &out))
	return out
}

func TestRecordStoreGetMissing(t *testing.T) {
	rs := newTestRecordStore(t)
	ctx := context.Background()

	_, _, err := rs.GetDocument(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	raw, found, err := rs.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.RawRecord{}, raw)
}

func TestRecordStorePutDocumentVersions(t *testing.T) {
	rs := newTestRecordStore(t)
	ctx := context.Background()

	v, err := rs.PutDocument(ctx, "u1", []byte(`{"a":1,"b":2}`), false, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = rs.PutDocument(ctx, "u1", []byte(`{"b":3,"c":4}`), true, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	doc, version, err := rs.GetDocument(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	got := decodeDoc(t, doc)
	assert.JSONEq(t, `1`, string(got["a"]))
	assert.JSONEq(t, `3`, string(got["b"]))
	assert.JSONEq(t, `4`, string(got["c"]))

	v, err = rs.PutDocument(ctx, "u1", []byte(`{"z":true}`), false, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)
	doc, _, err = rs.GetDocument(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":true}`, string(doc))
}

func TestRecordStoreVersionConflict(t *testing.T) {
	rs := newTestRecordStore(t)
	ctx := context.Background()

	zero := uint64(0)
	_, err := rs.PutDocument(ctx, "u1", []byte(`{}`), false, &zero)
	require.NoError(t, err)

	_, err = rs.PutDocument(ctx, "u1", []byte(`{}`), false, &zero)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	one := uint64(1)
	v, err := rs.PutDocument(ctx, "u1", []byte(`{}`), true, &one)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	five := uint64(5)
	_, err = rs.PutDocument(ctx, "u2", []byte(`{}`), false, &five)
	assert.True(t, errors.Is(err, ErrVersionConflict))
}

func TestRecordStoreRejectsNonObject(t *testing.T) {
	rs := newTestRecordStore(t)
	_, err := rs.PutDocument(context.Background(), "u1", []byte(`[1,2]`), false, nil)
	assert.Error(t, err)
}

func TestRecordStorePutAndGetRecord(t *testing.T) {
	rs := newTestRecordStore(t)
	ctx := context.Background()

	rec := models.NewRecord()
	rec.User = &models.User{Name: "Carla"}
	rec.Children = []models.Child{{
		ID:         "c1",
		Name:       "Bia",
		BirthDate:  "2019-03-15",
		Conditions: types.FlexList[models.Condition]{"TEA"},
	}}
	rec.ActiveChildID = "c1"
	rec.IsOnboarded = true
	require.NoError(t, rs.Put(ctx, "u1", rec, false))

	raw, found, err := rs.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, models.CompleteRecord(raw))
}

func TestRecordStoreSetPlanKeepsTheRest(t *testing.T) {
	rs := newTestRecordStore(t)
	ctx := context.Background()

	rec := models.NewRecord()
	rec.User = &models.User{Name: "Carla"}
	require.NoError(t, rs.Put(ctx, "u1", rec, false))

	pro := models.SubscriptionPlan{Tier: models.TierPro, Status: models.PlanActive}
	require.NoError(t, rs.SetPlan(ctx, "u1", pro))

	raw, found, err := rs.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	got := models.CompleteRecord(raw)
	assert.Equal(t, pro, got.Plan)
	assert.Equal(t, "Carla", got.User.Name)
}

func TestRecordStoreDelete(t *testing.T) {
	rs := newTestRecordStore(t)
	ctx := context.Background()

	_, err := rs.PutDocument(ctx, "u1", []byte(`{"a":1}`), false, nil)
	require.NoError(t, err)

	n, err := rs.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = rs.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, found, err := rs.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)
}
