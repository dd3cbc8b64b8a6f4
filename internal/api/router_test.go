package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/fila/internal/aggregate"
	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/auth"
	"github.com/your-org/fila/internal/config"
	"github.com/your-org/fila/internal/storage"
	"github.com/your-org/fila/internal/timeutil"
	"github.com/your-org/fila/pkg/dto"
)

const (
	testKey    = "k"
	testSecret = "admin-secret"
)

type fixture struct {
	router http.Handler
	engine *aggregate.Engine
	clock  *timeutil.MockClock
	token  string
}

type memHistory struct{ sums []attendance.Summary }

func (m *memHistory) SaveSummary(_ context.Context, s attendance.Summary) error {
	m.sums = append(m.sums, s)
	return nil
}
func (m *memHistory) ListSummaries(context.Context, int) ([]attendance.Summary, error) {
	return m.sums, nil
}
func (m *memHistory) Ping(context.Context) error { return nil }
func (m *memHistory) Close()                     {}

func newFixture(t *testing.T, history storage.SummaryStore, limiter *RateLimiter) *fixture {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC))
	engine, err := aggregate.NewEngine(config.QueueConfig{
		Opening:        "09:00",
		Closing:        "17:00",
		ServiceMinutes: 3,
		Timezone:       "UTC",
	}, clock)
	require.NoError(t, err)

	token, err := auth.IssueAdminToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)

	r := NewRouter(RouterConfig{
		APIKey:      testKey,
		AdminSecret: testSecret,
		Engine:      engine,
		History:     history,
		ReportLimit: limiter,
	})
	return &fixture{router: r, engine: engine, clock: clock, token: token}
}

func (f *fixture) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	if admin {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func segmentReport(seg int, cam string, n int) dto.SegmentReportRequest {
	req := dto.SegmentReportRequest{Segment: seg, CameraID: cam, Count: &n, Timestamp: 1715000000.5}
	for i := 1; i <= n; i++ {
		req.Persons = append(req.Persons, dto.LocalPerson{LocalPos: i, CenterY: float64(i * 50), Confidence: 0.8})
	}
	return req
}

func TestReportAndQueries(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(1, "cam_interior", 5), false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, dto.SegmentReportResponse{Status: "ok", Offset: 0}, decode[dto.SegmentReportResponse](t, w))

	w = f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(2, "cam_exterior", 7), false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decode[dto.SegmentReportResponse](t, w).Offset)

	state := decode[dto.StateResponse](t, f.do(t, http.MethodGet, "/v1/state", nil, false))
	assert.Equal(t, 12, state.Persons)
	assert.Equal(t, 36, state.WaitMinutes)
	assert.True(t, state.Alert)
	assert.Equal(t, map[string]int{"1": 5, "2": 7}, state.SegmentCounts)

	q := decode[dto.QueueResponse](t, f.do(t, http.MethodGet, "/v1/queue", nil, false))
	assert.Equal(t, 12, q.Total)
	require.Len(t, q.Persons, 12)
	assert.Equal(t, 6, q.Persons[5].Position)
	assert.Equal(t, 2, q.Persons[5].Segment)
	assert.Equal(t, 15, q.Persons[5].WaitMinutes)

	f.clock.Advance(4 * time.Second)
	segs := decode[dto.SegmentListResponse](t, f.do(t, http.MethodGet, "/v1/segments", nil, false))
	require.Len(t, segs.Segments, 2)
	assert.True(t, segs.Segments[0].Active)
	assert.InDelta(t, 4.0, segs.Segments[0].SecondsSince, 1e-9)
}

func TestReportValidationErrors(t *testing.T) {
	f := newFixture(t, nil, nil)

	bad := segmentReport(0, "cam_interior", 1)
	w := f.do(t, http.MethodPost, "/v1/segments/report", bad, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "segmento", decode[map[string]string](t, w)["field"])

	bad = segmentReport(1, "", 1)
	w = f.do(t, http.MethodPost, "/v1/segments/report", bad, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "camera_id", decode[map[string]string](t, w)["field"])

	bad = segmentReport(1, "cam_interior", 1)
	bad.Persons[0].LocalPos = 0
	w = f.do(t, http.MethodPost, "/v1/segments/report", bad, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "local_pos", decode[map[string]string](t, w)["field"])

	bad = segmentReport(1, "cam_interior", 0)
	neg := -2
	bad.Count = &neg
	w = f.do(t, http.MethodPost, "/v1/segments/report", bad, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "personas_count", decode[map[string]string](t, w)["field"])

	bad = segmentReport(1, "cam_interior", 2)
	bad.Count = nil
	w = f.do(t, http.MethodPost, "/v1/segments/report", bad, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "personas_count", decode[map[string]string](t, w)["field"])

	assert.Empty(t, f.engine.Segments())
}

func TestRequiresAPIKey(t *testing.T) {
	f := newFixture(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfigAndEstimate(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.clock.Set(time.Date(2024, 5, 6, 16, 0, 0, 0, time.UTC))
	f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(1, "cam_interior", 25), false)

	cfg := decode[dto.ConfigResponse](t, f.do(t, http.MethodGet, "/v1/config", nil, false))
	assert.Equal(t, "09:00", cfg.Config.Opening)
	assert.Equal(t, 3, cfg.Config.ServiceMinutes)
	assert.Equal(t, dto.EstimateResponse{
		MinutesToClose:  60,
		EstimatedServed: 20,
		InQueue:         25,
		NeedsWindow:     true,
	}, cfg.Estimate)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(t, http.MethodPut, "/v1/config/service-time", dto.ServiceTimeRequest{Minutes: 4}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPut, "/v1/config/service-time", dto.ServiceTimeRequest{Minutes: 4}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4, decode[dto.SettingsResponse](t, w).ServiceMinutes)

	w = f.do(t, http.MethodPut, "/v1/config/service-time", dto.ServiceTimeRequest{Minutes: 0}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "minutos", decode[map[string]string](t, w)["field"])

	w = f.do(t, http.MethodPut, "/v1/config/schedule", dto.ScheduleRequest{Opening: "8h", Closing: "17:00"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "apertura", decode[map[string]string](t, w)["field"])

	w = f.do(t, http.MethodPut, "/v1/config/schedule", dto.ScheduleRequest{Opening: "08:00", Closing: "18:30"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "18:30", decode[dto.SettingsResponse](t, w).Closing)

	w = f.do(t, http.MethodPut, "/v1/config/secondary-window", dto.SecondaryWindowRequest{Enabled: true, Cutover: 2}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[dto.SettingsResponse](t, w).Windows)

	f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(1, "cam_interior", 3), false)
	q := decode[dto.QueueResponse](t, f.do(t, http.MethodGet, "/v1/queue", nil, false))
	require.Len(t, q.Persons, 3)
	assert.Equal(t, 2, q.Persons[2].Window)
	assert.Equal(t, 0, q.Persons[2].WaitMinutes)
}

func TestResetAndHistory(t *testing.T) {
	history := &memHistory{}
	f := newFixture(t, history, nil)
	f.engine.OnReset(func(s attendance.Summary) { _ = history.SaveSummary(context.Background(), s) })

	f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(1, "cam_interior", 4), false)

	w := f.do(t, http.MethodPost, "/v1/reset", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	reset := decode[dto.ResetResponse](t, w)
	assert.Equal(t, "manual", reset.Summary.Trigger)
	assert.Equal(t, 4, reset.Summary.PeakQueue)

	state := decode[dto.StateResponse](t, f.do(t, http.MethodGet, "/v1/state", nil, false))
	assert.Equal(t, 0, state.Persons)

	stats := decode[dto.StatisticsResponse](t, f.do(t, http.MethodGet, "/v1/statistics", nil, false))
	assert.Equal(t, "2024-05-06", stats.Date)
	assert.Equal(t, "09:00 - 17:00", stats.OperatingHours)
	assert.Equal(t, "ABIERTA", stats.WindowStatus)
	assert.Equal(t, 0, stats.PeakQueue)

	hist := decode[dto.SummaryListResponse](t, f.do(t, http.MethodGet, "/v1/statistics/history?limit=5", nil, false))
	require.Equal(t, 1, hist.Total)
	assert.Equal(t, "2024-05-06", hist.Summaries[0].Date)
}

func TestHistoryWithoutArchive(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := f.do(t, http.MethodGet, "/v1/statistics/history", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReportRateLimit(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	f := newFixture(t, nil, NewRateLimiter(2, time.Minute, clock))

	for i := 0; i < 2; i++ {
		w := f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(1, "cam_interior", 1), false)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(1, "cam_interior", 1), false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Queries are not limited.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/state", nil, false).Code)

	clock.Advance(time.Minute)
	w = f.do(t, http.MethodPost, "/v1/segments/report", segmentReport(1, "cam_interior", 1), false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterPrune(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	rl := NewRateLimiter(1, time.Second, clock)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Tracked())

	clock.Advance(2 * time.Second)
	rl.prune()
	assert.Equal(t, 0, rl.Tracked())
}
