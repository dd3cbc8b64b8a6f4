package aggregate

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/config"
	"github.com/your-org/fila/internal/segment"
	"github.com/your-org/fila/internal/timeutil"
)

var opening = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func testConfig() config.QueueConfig {
	return config.QueueConfig{
		Opening:        "09:00",
		Closing:        "17:00",
		ServiceMinutes: 3,
		LivenessWindow: 10 * time.Second,
		MinDwell:       30 * time.Second,
		Timezone:       "UTC",
	}
}

func newTestEngine(t *testing.T, now time.Time) (*Engine, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(now)
	e, err := NewEngine(testConfig(), clock)
	require.NoError(t, err)
	return e, clock
}

func persons(n int) []segment.Person {
	out := make([]segment.Person, n)
	for i := range out {
		out[i] = segment.Person{LocalPos: i + 1, CenterY: float64(100 * (i + 1)), Confidence: 0.9}
	}
	return out
}

func report(seg int, cam string, n int) segment.Report {
	return segment.Report{Segment: seg, CameraID: cam, Count: n, Persons: persons(n)}
}

func TestCurrentStateSmallQueue(t *testing.T) {
	e, _ := newTestEngine(t, opening)

	offset, err := e.Report(report(1, "cam_interior", 5))
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	st := e.CurrentState()
	assert.Equal(t, 5, st.Persons)
	assert.Equal(t, 15, st.WaitMinutes)
	assert.False(t, st.Alert)
	assert.Equal(t, 1, st.ActiveSegments)
	assert.Equal(t, map[int]int{1: 5}, st.SegmentCounts)
	assert.Equal(t, 5, st.PeakQueue)
}

func TestCurrentStateAlertAcrossSegments(t *testing.T) {
	e, _ := newTestEngine(t, opening)

	_, err := e.Report(report(1, "cam_interior", 5))
	require.NoError(t, err)
	_, err = e.Report(report(2, "cam_exterior", 7))
	require.NoError(t, err)

	st := e.CurrentState()
	assert.Equal(t, 12, st.Persons)
	assert.Equal(t, 36, st.WaitMinutes)
	assert.True(t, st.Alert)
	assert.Equal(t, 2, st.ActiveSegments)
}

func TestAlertThresholdIsStrict(t *testing.T) {
	e, _ := newTestEngine(t, opening)
	_, err := e.Report(report(1, "cam_interior", AlertThreshold))
	require.NoError(t, err)
	assert.False(t, e.CurrentState().Alert)
}

func TestReportOffsets(t *testing.T) {
	e, clock := newTestEngine(t, opening)

	offset, err := e.Report(report(2, "cam_exterior", 4))
	require.NoError(t, err)
	assert.Equal(t, 0, offset, "no lower segment reported yet")

	offset, err = e.Report(report(1, "cam_interior", 3))
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	offset, err = e.Report(report(2, "cam_exterior", 4))
	require.NoError(t, err)
	assert.Equal(t, 3, offset)

	offset, err = e.Report(report(3, "cam_calle", 1))
	require.NoError(t, err)
	assert.Equal(t, 7, offset)

	// Segment 1 goes stale; only segment 2 still counts for segment 3.
	clock.Advance(8 * time.Second)
	_, err = e.Report(report(2, "cam_exterior", 4))
	require.NoError(t, err)
	clock.Advance(3 * time.Second)
	offset, err = e.Report(report(3, "cam_calle", 1))
	require.NoError(t, err)
	assert.Equal(t, 4, offset)
}

func TestStaleSegmentsDropOut(t *testing.T) {
	e, clock := newTestEngine(t, opening)
	_, err := e.Report(report(1, "cam_interior", 6))
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 6, e.CurrentState().Persons)

	clock.Advance(time.Second)
	st := e.CurrentState()
	assert.Equal(t, 0, st.Persons)
	assert.Equal(t, 0, st.ActiveSegments)
	assert.Empty(t, e.FullQueue().Entries)

	segs := e.Segments()
	require.Len(t, segs, 1)
	assert.False(t, segs[0].Active)
	assert.Equal(t, 11*time.Second, segs[0].SinceUpdate)
}

func TestFullQueuePositions(t *testing.T) {
	e, _ := newTestEngine(t, opening)
	_, err := e.Report(report(2, "cam_exterior", 2))
	require.NoError(t, err)
	_, err = e.Report(report(1, "cam_interior", 3))
	require.NoError(t, err)

	q := e.FullQueue()
	assert.Equal(t, 5, q.Total)
	require.Len(t, q.Entries, 5)

	got := make([][3]int, 0, len(q.Entries))
	for _, en := range q.Entries {
		got = append(got, [3]int{en.Position, en.Segment, en.WaitMinutes})
	}
	want := [][3]int{{1, 1, 0}, {2, 1, 3}, {3, 1, 6}, {4, 2, 9}, {5, 2, 12}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("queue mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "cam_interior_seg1_pos1", q.Entries[0].ID)
	assert.Equal(t, "cam_exterior_seg2_pos2", q.Entries[4].ID)
	assert.Equal(t, 1, q.Entries[4].Window)
	assert.InDelta(t, 0.9, q.Entries[0].Confidence, 1e-9)
}

func TestFullQueueSecondaryWindow(t *testing.T) {
	e, _ := newTestEngine(t, opening)
	require.NoError(t, e.SetSecondaryWindow(true, 3))
	_, err := e.Report(report(1, "cam_interior", 6))
	require.NoError(t, err)

	q := e.FullQueue()
	require.Len(t, q.Entries, 6)
	windows := make([]int, 0, 6)
	waits := make([]int, 0, 6)
	for _, en := range q.Entries {
		windows = append(windows, en.Window)
		waits = append(waits, en.WaitMinutes)
	}
	assert.Equal(t, []int{1, 1, 1, 2, 2, 2}, windows)
	assert.Equal(t, []int{0, 3, 6, 0, 3, 6}, waits)

	// The headline wait ignores the second window.
	assert.Equal(t, 18, e.CurrentState().WaitMinutes)
}

func TestReportNormalizesPersonList(t *testing.T) {
	e, _ := newTestEngine(t, opening)

	r := report(1, "cam_interior", 1)
	r.Count = 3
	_, err := e.Report(r)
	require.NoError(t, err)

	r = report(2, "cam_exterior", 4)
	r.Count = 2
	_, err = e.Report(r)
	require.NoError(t, err)

	q := e.FullQueue()
	assert.Equal(t, 5, q.Total)
	assert.Len(t, q.Entries, 5)
	assert.Equal(t, 5, e.CurrentState().Persons)
	assert.Equal(t, "cam_interior_seg1_pos3", q.Entries[2].ID)
}

func TestReportValidation(t *testing.T) {
	e, _ := newTestEngine(t, opening)

	tests := []struct {
		name  string
		r     segment.Report
		field string
	}{
		{"segment zero", segment.Report{Segment: 0, CameraID: "c", Count: 0}, "segmento"},
		{"negative count", segment.Report{Segment: 1, CameraID: "c", Count: -1}, "personas_count"},
		{"missing camera", segment.Report{Segment: 1, Count: 0}, "camera_id"},
		{"bad local pos", segment.Report{Segment: 1, CameraID: "c", Count: 1, Persons: []segment.Person{{LocalPos: 0}}}, "personas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Report(tt.r)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Empty(t, e.Segments(), "rejected reports must not be stored")
}

func TestAttendanceThroughReports(t *testing.T) {
	e, clock := newTestEngine(t, opening)

	_, err := e.Report(report(1, "cam_interior", 1))
	require.NoError(t, err)
	clock.Advance(45 * time.Second)
	_, err = e.Report(report(1, "cam_interior", 0))
	require.NoError(t, err)

	st := e.Statistics()
	assert.Equal(t, 1, st.Attended)
	assert.InDelta(t, 0.75, st.AvgWait, 1e-9)
	assert.Equal(t, 1, st.Entries)

	_, err = e.Report(report(1, "cam_interior", 1))
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	_, err = e.Report(report(1, "cam_interior", 0))
	require.NoError(t, err)

	st = e.Statistics()
	assert.Equal(t, 1, st.Attended, "short dwell is a dropout")
	assert.Equal(t, 2, st.Entries)
}

func TestRepeatedReportIsIdempotent(t *testing.T) {
	e, clock := newTestEngine(t, opening)
	_, err := e.Report(report(1, "cam_interior", 3))
	require.NoError(t, err)
	before := e.Statistics()

	clock.Advance(2 * time.Second)
	_, err = e.Report(report(1, "cam_interior", 3))
	require.NoError(t, err)
	after := e.Statistics()

	assert.Equal(t, before.Attended, after.Attended)
	assert.Equal(t, before.Entries, after.Entries)
}

func TestScheduledResetAtClosing(t *testing.T) {
	e, clock := newTestEngine(t, time.Date(2024, 5, 6, 16, 59, 0, 0, time.UTC))

	var summaries []attendance.Summary
	e.OnReset(func(s attendance.Summary) { summaries = append(summaries, s) })

	_, err := e.Report(report(1, "cam_interior", 4))
	require.NoError(t, err)
	clock.Advance(55 * time.Second)
	_, err = e.Report(report(1, "cam_interior", 4))
	require.NoError(t, err)
	require.Empty(t, summaries)

	clock.Advance(10 * time.Second)
	_, err = e.Report(report(2, "cam_exterior", 2))
	require.NoError(t, err)

	require.Len(t, summaries, 1)
	assert.Equal(t, attendance.TriggerClosing, summaries[0].Trigger)
	assert.Equal(t, 4, summaries[0].PeakQueue)

	st := e.CurrentState()
	assert.Equal(t, 2, st.Persons, "the triggering report survives the reset")
	assert.Equal(t, 1, st.ActiveSegments)

	clock.Advance(5 * time.Second)
	_, err = e.Report(report(2, "cam_exterior", 2))
	require.NoError(t, err)
	assert.Len(t, summaries, 1, "reset happens once per closing")
}

func TestMaybeResetOnDayRollover(t *testing.T) {
	e, clock := newTestEngine(t, time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC))
	_, err := e.Report(report(1, "cam_interior", 2))
	require.NoError(t, err)

	_, ok := e.MaybeReset()
	assert.False(t, ok)

	clock.Set(time.Date(2024, 5, 7, 8, 0, 0, 0, time.UTC))
	s, ok := e.MaybeReset()
	require.True(t, ok)
	assert.Equal(t, attendance.TriggerDayRollover, s.Trigger)
	assert.Equal(t, "2024-05-06", s.Date)

	_, ok = e.MaybeReset()
	assert.False(t, ok)
	assert.Equal(t, "2024-05-07", e.Statistics().Date.Format(time.DateOnly))
}

func TestManualReset(t *testing.T) {
	e, clock := newTestEngine(t, opening)

	var states []State
	e.OnStateChange(func(s State) { states = append(states, s) })

	_, err := e.Report(report(1, "cam_interior", 1))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = e.Report(report(1, "cam_interior", 0))
	require.NoError(t, err)
	_, err = e.Report(report(2, "cam_exterior", 3))
	require.NoError(t, err)

	s := e.Reset()
	assert.Equal(t, attendance.TriggerManual, s.Trigger)
	assert.Equal(t, 1, s.Attended)

	assert.Equal(t, 0, e.CurrentState().Persons)
	assert.Empty(t, e.Segments())
	st := e.Statistics()
	assert.Equal(t, 0, st.Attended)
	assert.Equal(t, 0, st.PeakQueue)
	assert.Equal(t, clock.Now(), st.LastReset)

	require.Len(t, states, 4)
	assert.Equal(t, 0, states[3].Persons)
}

func TestStatisticsThroughputAndWindow(t *testing.T) {
	e, clock := newTestEngine(t, time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC))

	st := e.Statistics()
	assert.False(t, st.WindowOpen)
	assert.Equal(t, 0.0, st.Throughput)
	assert.Equal(t, "09:00", st.Opening)
	assert.Equal(t, "17:00", st.Closing)

	clock.Set(time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC))
	for i := 0; i < 3; i++ {
		_, err := e.Report(report(1, "cam_interior", 1))
		require.NoError(t, err)
		clock.Advance(time.Minute)
		_, err = e.Report(report(1, "cam_interior", 0))
		require.NoError(t, err)
	}
	clock.Set(time.Date(2024, 5, 6, 11, 0, 0, 0, time.UTC))

	st = e.Statistics()
	assert.True(t, st.WindowOpen)
	assert.Equal(t, 3, st.Attended)
	assert.InDelta(t, 1.5, st.Throughput, 1e-9)
}

func TestEstimate(t *testing.T) {
	e, _ := newTestEngine(t, time.Date(2024, 5, 6, 16, 0, 0, 0, time.UTC))
	_, err := e.Report(report(1, "cam_interior", 25))
	require.NoError(t, err)

	est := e.Estimate()
	assert.Equal(t, Estimate{MinutesToClose: 60, EstimatedServed: 20, InQueue: 25, NeedsWindow: true}, est)

	require.NoError(t, e.SetSecondaryWindow(true, 10))
	settings, est := e.Config()
	assert.Equal(t, 2, settings.Windows())
	assert.Equal(t, 40, est.EstimatedServed)
	assert.False(t, est.NeedsWindow)
}

func TestEstimateAfterClosing(t *testing.T) {
	e, _ := newTestEngine(t, time.Date(2024, 5, 6, 17, 30, 0, 0, time.UTC))
	est := e.Estimate()
	assert.Equal(t, 0, est.MinutesToClose)
	assert.Equal(t, 0, est.EstimatedServed)
	assert.False(t, est.NeedsWindow)
}

func TestSettersValidate(t *testing.T) {
	e, _ := newTestEngine(t, opening)

	var verr *ValidationError
	err := e.SetSchedule("9am", "17:00")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "apertura", verr.Field)

	err = e.SetSchedule("10:00", "25:00")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "cierre", verr.Field)

	err = e.SetSchedule("18:00", "08:00")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "cierre", verr.Field)

	err = e.SetServiceMinutes(0)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "minutos", verr.Field)

	err = e.SetSecondaryWindow(true, 0)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "corte", verr.Field)

	require.NoError(t, e.SetSchedule("08:30", "18:15"))
	require.NoError(t, e.SetServiceMinutes(4))
	require.NoError(t, e.SetSecondaryWindow(false, 0))

	s := e.Settings()
	assert.Equal(t, "08:30", s.Opening.String())
	assert.Equal(t, "18:15", s.Closing.String())
	assert.Equal(t, 4, s.ServiceMinutes)
	assert.Equal(t, 1, s.Windows())

	_, err = e.Report(report(1, "cam_interior", 2))
	require.NoError(t, err)
	assert.Equal(t, 8, e.CurrentState().WaitMinutes)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Closing = "5pm"
	_, err := NewEngine(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidClock)

	cfg = testConfig()
	cfg.ServiceMinutes = 0
	_, err = NewEngine(cfg, nil)
	assert.Error(t, err)
}

func TestConcurrentReportsAndReads(t *testing.T) {
	e, _ := newTestEngine(t, opening)

	var wg sync.WaitGroup
	for w := 1; w <= 4; w++ {
		wg.Add(1)
		go func(seg int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, err := e.Report(report(seg, fmt.Sprintf("cam_%d", seg), i%6))
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q := e.FullQueue()
				assert.Equal(t, q.Total, len(q.Entries))
				for j, en := range q.Entries {
					assert.Equal(t, j+1, en.Position)
				}
				st := e.CurrentState()
				assert.Equal(t, st.Persons*3, st.WaitMinutes)
			}
		}()
	}
	wg.Wait()

	// Each writer's last report carries 199 % 6 people.
	q := e.FullQueue()
	assert.Equal(t, 4*(199%6), q.Total)
}
