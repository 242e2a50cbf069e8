// stepio_test.go
//
// Stepio record service: the per-family health routine store behind the Stepio apps
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of stepio.
// stepio is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// stepio is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with stepio.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/localnerve/stepio/internal/middleware"
	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/notifications"
	"github.com/localnerve/stepio/internal/services"
	"github.com/localnerve/stepio/internal/store"
	"github.com/localnerve/stepio/internal/utils"
)

const testSecret = "test-secret"

var testNow = time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)

type fakeBilling struct {
	plan models.SubscriptionPlan
	url  string
	err  error
}

func (b *fakeBilling) OpenManagement(context.Context, string) (string, error) {
	return b.url, b.err
}

func (b *fakeBilling) SyncEntitlements(context.Context, string) (models.SubscriptionPlan, error) {
	return b.plan, b.err
}

type testApp struct {
	app     *fiber.App
	records *services.RecordStore
	billing *fakeBilling
	stores  *store.Manager
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.StepioRecord{}))

	records := services.NewRecordStore(db, zap.NewNop())
	factory := func(_ string, loc *time.Location) store.AlarmScheduler {
		return notifications.NewEngine(notifications.NewMemoryPlatform(true), zap.NewNop(), notifications.WithLocation(loc))
	}
	stores := store.NewManager(records, factory, zap.NewNop())
	t.Cleanup(stores.Close)

	billing := &fakeBilling{url: "https://billing.example.com/portal/abc"}
	h := &StepioHandler{
		Stores:  stores,
		Records: records,
		Billing: billing,
		Logger:  zap.NewNop(),
		Now:     func() time.Time { return testNow },
	}

	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	api := app.Group("/api", middleware.Locale(time.UTC))
	api.Get("/stepio/catalog", GetCatalog)
	h.Register(api.Group("/stepio", middleware.Auth(middleware.AuthConfig{
		JWTSecret: testSecret,
		Roles:     []string{"user"},
		ErrorType: errAuthorization,
	})))
	return testApp{app: app, records: records, billing: billing, stores: stores}
}

var testSession = models.Session{UserID: "user-1", DisplayName: "Carla", Email: "carla@example.com"}

func (a testApp) do(t *testing.T, method, path string, body interface{}, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	token, err := services.IssueToken(testSecret, testSession, time.Hour)
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func recordOf(t *testing.T, resp *http.Response) models.Record {
	t.Helper()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Ok   bool          `json:"ok"`
		Data models.Record `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Ok)
	return out.Data
}

func errorOf(t *testing.T, resp *http.Response, status int) utils.ErrorResponseStruct {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var out utils.ErrorResponseStruct
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Ok)
	return out
}

func (a testApp) withChild(t *testing.T) models.Record {
	t.Helper()
	return recordOf(t, a.do(t, http.MethodPut, "/api/stepio/child", map[string]interface{}{
		"name": "Ana", "birthDate": "2019-03-01", "conditions": "TEA",
	}))
}

// flush waits for the queued persistence and alarm work of the test user.
func (a testApp) flush(t *testing.T) {
	t.Helper()
	s, err := a.stores.Get(context.Background(), testSession, time.UTC)
	require.NoError(t, err)
	s.Flush()
}

func (a testApp) makePro(t *testing.T) {
	t.Helper()
	require.NoError(t, a.records.SetPlan(context.Background(), testSession.UserID, models.SubscriptionPlan{Tier: models.TierPro, Status: models.PlanActive}))
}

func TestGetRecordNewUser(t *testing.T) {
	a := newTestApp(t)

	rec := recordOf(t, a.do(t, http.MethodGet, "/api/stepio", nil))
	assert.Empty(t, rec.Children)
	assert.Equal(t, models.DefaultPlan, rec.Plan)
	assert.Equal(t, models.DefaultSettings, rec.Settings)
	require.NotNil(t, rec.User)
	assert.Equal(t, "Carla", rec.User.Name)
}

func TestRequiresSession(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stepio", nil)
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCatalogIsPublic(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stepio/catalog", nil)
	req.Header.Set(fiber.HeaderAcceptLanguage, "en-US")
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var catalog models.Catalog
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&catalog))
	assert.Equal(t, models.Option{ID: "calmo", Label: "Calm"}, catalog.Moods[3])
	assert.Len(t, catalog.Crises, 4)
}

func TestChildLifecycle(t *testing.T) {
	a := newTestApp(t)

	rec := a.withChild(t)
	require.Len(t, rec.Children, 1)
	ana := rec.Children[0]
	assert.Equal(t, ana.ID, rec.ActiveChildID)
	assert.Equal(t, []models.Condition{"TEA"}, ana.Conditions.Slice())

	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/children", map[string]string{"name": "Bia"}))
	require.Len(t, rec.Children, 2)
	assert.Equal(t, rec.Children[1].ID, rec.ActiveChildID)

	rec = recordOf(t, a.do(t, http.MethodPut, "/api/stepio/children/active", map[string]string{"childId": ana.ID}))
	assert.Equal(t, ana.ID, rec.ActiveChildID)

	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/onboarding", nil))
	assert.True(t, rec.IsOnboarded)
}

func TestValidation(t *testing.T) {
	a := newTestApp(t)

	out := errorOf(t, a.do(t, http.MethodPut, "/api/stepio/child", map[string]string{"birthDate": "2019-03-01"}), fiber.StatusBadRequest)
	assert.Equal(t, errValidation, out.Type)
	assert.Contains(t, out.Message, "name")

	errorOf(t, a.do(t, http.MethodPut, "/api/stepio/child", map[string]string{"name": "Ana", "birthDate": "01/03/2019"}), fiber.StatusBadRequest)
	errorOf(t, a.do(t, http.MethodPut, "/api/stepio/logs/yesterday", map[string]string{"mood": "calmo"}), fiber.StatusBadRequest)
	errorOf(t, a.do(t, http.MethodPost, "/api/stepio/medications", map[string]string{"name": "Melatonina"}), fiber.StatusBadRequest)
	errorOf(t, a.do(t, http.MethodPut, "/api/stepio/child", map[string]string{"name": "Ana", "gender": "outro"}), fiber.StatusBadRequest)

	out = errorOf(t, a.do(t, http.MethodPost, "/api/stepio/medications", map[string]string{
		"name": "Melatonina", "frequency": "weekly",
	}), fiber.StatusBadRequest)
	assert.Contains(t, out.Message, "frequency")
	out = errorOf(t, a.do(t, http.MethodPost, "/api/stepio/medications", map[string]string{
		"name": "Melatonina", "frequency": "12h", "type": "banana",
	}), fiber.StatusBadRequest)
	assert.Contains(t, out.Message, "type")

	out = errorOf(t, a.do(t, http.MethodPost, "/api/stepio/events", map[string]string{
		"title": "Festa", "datetime": "next tuesday",
	}), fiber.StatusBadRequest)
	assert.Contains(t, out.Message, "datetime")
	errorOf(t, a.do(t, http.MethodPost, "/api/stepio/events", map[string]string{
		"title": "Festa", "datetime": "2030-01-02T10:00", "type": "party",
	}), fiber.StatusBadRequest)

	a.withChild(t)
	rec := recordOf(t, a.do(t, http.MethodPost, "/api/stepio/medications", map[string]string{
		"name": "Melatonina", "frequency": "12h",
	}))
	medID := rec.Medications[0].ID
	errorOf(t, a.do(t, http.MethodPatch, "/api/stepio/medications/"+medID, map[string]string{"frequency": "weekly"}), fiber.StatusBadRequest)
	errorOf(t, a.do(t, http.MethodPatch, "/api/stepio/medications/"+medID, map[string]string{"type": ""}), fiber.StatusBadRequest)

	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/events", map[string]string{
		"title": "Fono", "datetime": "2030-01-02T10:00", "type": "therapy",
	}))
	eventID := rec.Events[0].ID
	errorOf(t, a.do(t, http.MethodPatch, "/api/stepio/events/"+eventID, map[string]string{"datetime": "soon"}), fiber.StatusBadRequest)
	errorOf(t, a.do(t, http.MethodPatch, "/api/stepio/events/"+eventID, map[string]string{"type": "party"}), fiber.StatusBadRequest)

	rec = recordOf(t, a.do(t, http.MethodGet, "/api/stepio", nil))
	assert.Equal(t, models.Frequency("12h"), rec.Medications[0].Frequency)
	assert.Equal(t, "2030-01-02T10:00", rec.Events[0].Datetime)
}

func TestMedicationRoutesDriveAlarms(t *testing.T) {
	a := newTestApp(t)
	a.withChild(t)

	rec := recordOf(t, a.do(t, http.MethodPost, "/api/stepio/medications", map[string]string{
		"name": "Melatonina", "type": "gotas", "frequency": "12h",
	}))
	require.Len(t, rec.Medications, 1)
	med := rec.Medications[0]
	assert.Equal(t, rec.ActiveChildID, med.ChildID)

	a.flush(t)
	resp := a.do(t, http.MethodGet, "/api/stepio/notifications/pending", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var pending struct {
		Data []notifications.Alarm `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))
	assert.NotEmpty(t, pending.Data)

	rec = recordOf(t, a.do(t, http.MethodPatch, "/api/stepio/medications/"+med.ID, map[string]string{"dosage": "3 gotas"}))
	assert.Equal(t, "3 gotas", rec.Medications[0].Dosage)
	assert.Equal(t, "Melatonina", rec.Medications[0].Name)

	rec = recordOf(t, a.do(t, http.MethodDelete, "/api/stepio/medications/"+med.ID, nil))
	assert.Empty(t, rec.Medications)
}

func TestEventAndMilestoneRoutes(t *testing.T) {
	a := newTestApp(t)
	a.withChild(t)

	rec := recordOf(t, a.do(t, http.MethodPost, "/api/stepio/events", map[string]string{
		"title": "Fono", "datetime": "2030-01-02T10:00:00Z", "type": "therapy",
	}))
	require.Len(t, rec.Events, 1)
	rec = recordOf(t, a.do(t, http.MethodPatch, "/api/stepio/events/"+rec.Events[0].ID, map[string]string{"professional": "Dra. Lia"}))
	assert.Equal(t, "Dra. Lia", rec.Events[0].Professional)
	rec = recordOf(t, a.do(t, http.MethodDelete, "/api/stepio/events/"+rec.Events[0].ID, nil))
	assert.Empty(t, rec.Events)

	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/milestones", map[string]string{"title": "First word", "date": "2024-05-01"}))
	require.Len(t, rec.Milestones, 1)
	errorOf(t, a.do(t, http.MethodPatch, "/api/stepio/milestones/"+rec.Milestones[0].ID, map[string]string{"date": "May 2"}), fiber.StatusBadRequest)
	rec = recordOf(t, a.do(t, http.MethodDelete, "/api/stepio/milestones/"+rec.Milestones[0].ID, nil))
	assert.Empty(t, rec.Milestones)
}

func TestDailyLogMerges(t *testing.T) {
	a := newTestApp(t)
	rec := a.withChild(t)
	childID := rec.ActiveChildID

	recordOf(t, a.do(t, http.MethodPut, "/api/stepio/logs/2024-05-09", map[string]string{"mood": "calmo"}))
	rec = recordOf(t, a.do(t, http.MethodPut, "/api/stepio/logs/2024-05-09", map[string]string{"sleep": "pouco"}))

	log, ok := rec.DailyLogs[models.DailyLogKey(childID, "2024-05-09")]
	require.True(t, ok)
	assert.Equal(t, models.Mood("calmo"), log.Mood)
	assert.Equal(t, models.Sleep("pouco"), log.Sleep)
}

func TestNotificationSettingsPatch(t *testing.T) {
	a := newTestApp(t)

	rec := recordOf(t, a.do(t, http.MethodPut, "/api/stepio/settings/notifications", map[string]bool{"notifyMeds": false}))
	assert.True(t, rec.Settings.NotifyEvents)
	assert.False(t, rec.Settings.NotifyMeds)
}

func TestNotificationPermissionThenPrompt(t *testing.T) {
	a := newTestApp(t)

	recordOf(t, a.do(t, http.MethodPost, "/api/stepio/notifications/permission", map[string]bool{"granted": false}))
	recordOf(t, a.do(t, http.MethodPost, "/api/stepio/notifications/prompt", map[string]bool{"accepted": true}))
	a.flush(t)

	rec := recordOf(t, a.do(t, http.MethodGet, "/api/stepio", nil))
	assert.False(t, rec.Settings.NotifyEvents)
	assert.False(t, rec.Settings.NotifyMeds)
}

func TestProFeaturesRequirePlan(t *testing.T) {
	a := newTestApp(t)
	rec := a.withChild(t)
	childID := rec.ActiveChildID

	out := errorOf(t, a.do(t, http.MethodGet, "/api/stepio/therapy/"+childID+"/suggestions", nil), fiber.StatusPaymentRequired)
	assert.Equal(t, errPlan, out.Type)
	errorOf(t, a.do(t, http.MethodPost, "/api/stepio/therapy/"+childID+"/generate", nil), fiber.StatusPaymentRequired)
	errorOf(t, a.do(t, http.MethodGet, "/api/stepio/report?month=2024-05", nil), fiber.StatusPaymentRequired)

	// custom goals are open to every plan
	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/therapy/"+childID+"/goals", map[string]string{"text": "Brush teeth"}))
	require.Len(t, rec.TherapyPlans[childID].Goals, 1)
	goal := rec.TherapyPlans[childID].Goals[0]
	assert.Equal(t, models.GoalCustom, goal.Source)

	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/therapy/"+childID+"/goals/"+goal.ID+"/toggle", nil))
	assert.True(t, rec.TherapyPlans[childID].Goals[0].Done)
}

func TestTherapyForProPlan(t *testing.T) {
	a := newTestApp(t)
	a.makePro(t)
	rec := a.withChild(t)
	childID := rec.ActiveChildID
	assert.True(t, rec.Plan.IsPro())

	resp := a.do(t, http.MethodGet, "/api/stepio/therapy/"+childID+"/suggestions", nil, fiber.HeaderAcceptLanguage, "en")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Data services.TherapySuggestions `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Schedule at least 1 therapy this week."}, out.Data.Goals)

	errorOf(t, a.do(t, http.MethodGet, "/api/stepio/therapy/ghost/suggestions", nil), fiber.StatusNotFound)

	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/therapy/"+childID+"/generate", nil, fiber.HeaderAcceptLanguage, "en"))
	goals := rec.TherapyPlans[childID].Goals
	require.Len(t, goals, 1)
	assert.Equal(t, "Schedule at least 1 therapy this week.", goals[0].Text)
	assert.Equal(t, models.GoalAuto, goals[0].Source)

	rec = recordOf(t, a.do(t, http.MethodPost, "/api/stepio/therapy/"+childID+"/generate", map[string]interface{}{
		"goals": []map[string]string{{"text": "One"}, {"text": "Two"}},
	}))
	assert.Len(t, rec.TherapyPlans[childID].Goals, 2)
}

func TestMonthlyReportRoute(t *testing.T) {
	a := newTestApp(t)
	a.makePro(t)
	a.withChild(t)

	errorOf(t, a.do(t, http.MethodGet, "/api/stepio/report?month=may", nil), fiber.StatusBadRequest)
	errorOf(t, a.do(t, http.MethodGet, "/api/stepio/report?month=2024-05&childId=ghost", nil), fiber.StatusNotFound)

	resp := a.do(t, http.MethodGet, "/api/stepio/report?month=2024-05", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "2024-05.xlsx")

	book, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer book.Close()
	assert.Contains(t, book.GetSheetList(), "Summary")
}

func TestBillingRoutes(t *testing.T) {
	a := newTestApp(t)
	a.withChild(t)

	resp := a.do(t, http.MethodGet, "/api/stepio/billing/manage", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var manage map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&manage))
	assert.Equal(t, a.billing.url, manage["url"])

	a.billing.plan = models.SubscriptionPlan{Tier: models.TierPro, Status: models.PlanActive}
	rec := recordOf(t, a.do(t, http.MethodPost, "/api/stepio/billing/sync", nil))
	assert.True(t, rec.Plan.IsPro())
	require.Len(t, rec.Children, 1, "record kept")

	raw, found, err := a.records.Get(context.Background(), testSession.UserID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.TierPro, *raw.Plan.Tier)
	assert.Len(t, raw.Children, 1)

	a.billing.err = errors.New("down")
	out := errorOf(t, a.do(t, http.MethodPost, "/api/stepio/billing/sync", nil), fiber.StatusServiceUnavailable)
	assert.Equal(t, errBilling, out.Type)
}

func TestResetAndDeleteRecord(t *testing.T) {
	a := newTestApp(t)
	a.withChild(t)

	rec := recordOf(t, a.do(t, http.MethodPost, "/api/stepio/reset", nil))
	assert.Empty(t, rec.Children)
	assert.Nil(t, rec.User)

	a.withChild(t)
	resp := a.do(t, http.MethodDelete, "/api/stepio/record", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, found, err := a.records.Get(context.Background(), testSession.UserID)
	require.NoError(t, err)
	assert.False(t, found)

	// the next request starts from a fresh record
	rec = recordOf(t, a.do(t, http.MethodGet, "/api/stepio", nil))
	assert.Empty(t, rec.Children)
}
