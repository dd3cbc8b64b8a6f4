// Package aggregate merges per-segment reports into one global queue view and
// drives attendance statistics from it.
//
// All shared state lives behind a single RWMutex in Engine. Report and the
// configuration setters take the write lock; every query takes the read lock
// and sees one consistent snapshot. Liveness is evaluated lazily against the
// engine clock on each call. Callbacks registered with OnStateChange and
// OnReset run after the lock is released.
package aggregate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/config"
	"github.com/your-org/fila/internal/observability"
	"github.com/your-org/fila/internal/segment"
	"github.com/your-org/fila/internal/timeutil"
)

// AlertThreshold is the queue length above which the state raises an alert.
const AlertThreshold = 10

type Engine struct {
	mu         sync.RWMutex
	clock      timeutil.Clock
	loc        *time.Location
	store      *segment.Store
	attendance *attendance.Tracker
	settings   Settings

	onState []func(State)
	onReset []func(attendance.Summary)
}

// NewEngine builds an engine from the queue configuration. A nil clock uses
// the wall clock.
func NewEngine(cfg config.QueueConfig, clock timeutil.Clock) (*Engine, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	settings, err := settingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	now := clock.Now().In(loc)
	return &Engine{
		clock:      clock,
		loc:        loc,
		store:      segment.NewStore(cfg.LivenessWindow),
		attendance: attendance.NewTracker(cfg.MinDwell, now),
		settings:   settings,
	}, nil
}

// OnStateChange registers fn to receive the queue state after every accepted
// report and every reset.
func (e *Engine) OnStateChange(fn func(State)) {
	e.mu.Lock()
	e.onState = append(e.onState, fn)
	e.mu.Unlock()
}

// OnReset registers fn to receive the summary of each closed statistics period.
func (e *Engine) OnReset(fn func(attendance.Summary)) {
	e.mu.Lock()
	e.onReset = append(e.onReset, fn)
	e.mu.Unlock()
}

func (e *Engine) now() time.Time {
	return e.clock.Now().In(e.loc)
}

// Report stores a segment report and returns the number of people in active
// segments ahead of it. A due statistics reset is applied before the write so
// the triggering report belongs to the new period.
func (e *Engine) Report(r segment.Report) (int, error) {
	if err := validateReport(r); err != nil {
		observability.ReportsReceived.WithLabelValues(r.CameraID, "invalid").Inc()
		return 0, err
	}
	r.Persons = normalizePersons(r)

	now := e.now()
	r.LastUpdated = now

	e.mu.Lock()
	var summaries []attendance.Summary
	if trig := attendance.ResetDue(now, e.attendance.LastReset(), e.settings.Closing); trig != attendance.TriggerNone {
		summaries = append(summaries, e.resetLocked(now, trig))
	}

	e.store.Put(r)
	active := e.store.Active(now)
	offset := segment.Offset(active, r.Segment)
	total := segment.Total(active)

	e.attendance.ObservePeak(total)
	out := e.attendance.Observe(now, presenceKeys(active))
	state := e.stateLocked(active)
	stateFns, resetFns := e.onState, e.onReset
	e.mu.Unlock()

	observability.ReportsReceived.WithLabelValues(r.CameraID, "accepted").Inc()
	observability.QueueLength.Set(float64(total))
	observability.ActiveSegments.Set(float64(len(active)))
	observability.PeopleAttended.Add(float64(out.Attended))
	observability.PresenceDropouts.Add(float64(out.Dropped))
	for _, w := range out.Waits {
		observability.WaitMinutes.Observe(w.Minutes())
	}
	if out.Attended > 0 {
		slog.Info("attendance inferred",
			"camera_id", r.CameraID,
			"segment", r.Segment,
			"attended", out.Attended,
			"dropped", out.Dropped,
		)
	}

	e.emit(summaries, resetFns, state, stateFns)
	return offset, nil
}

// MaybeReset applies a scheduled reset if one is due. It lets a reset happen
// at closing time even when no camera reports afterwards.
func (e *Engine) MaybeReset() (attendance.Summary, bool) {
	now := e.now()

	e.mu.Lock()
	trig := attendance.ResetDue(now, e.attendance.LastReset(), e.settings.Closing)
	if trig == attendance.TriggerNone {
		e.mu.Unlock()
		return attendance.Summary{}, false
	}
	summary := e.resetLocked(now, trig)
	state := e.stateLocked(e.store.Active(now))
	stateFns, resetFns := e.onState, e.onReset
	e.mu.Unlock()

	e.emit([]attendance.Summary{summary}, resetFns, state, stateFns)
	return summary, true
}

// Reset clears segments, presence and statistics on demand.
func (e *Engine) Reset() attendance.Summary {
	now := e.now()

	e.mu.Lock()
	summary := e.resetLocked(now, attendance.TriggerManual)
	state := e.stateLocked(nil)
	stateFns, resetFns := e.onState, e.onReset
	e.mu.Unlock()

	e.emit([]attendance.Summary{summary}, resetFns, state, stateFns)
	return summary
}

func (e *Engine) resetLocked(now time.Time, trig attendance.Trigger) attendance.Summary {
	summary := e.attendance.Reset(now, trig)
	e.store.Clear()

	slog.Info("statistics reset",
		"trigger", string(trig),
		"date", summary.Date,
		"attended", summary.Attended,
		"entries", summary.Entries,
		"avg_wait_min", summary.AvgWait,
		"peak_queue", summary.PeakQueue,
	)
	observability.StatsResets.WithLabelValues(string(trig)).Inc()
	observability.QueueLength.Set(0)
	observability.ActiveSegments.Set(0)
	return summary
}

func (e *Engine) emit(summaries []attendance.Summary, resetFns []func(attendance.Summary), state State, stateFns []func(State)) {
	for _, s := range summaries {
		for _, fn := range resetFns {
			fn(s)
		}
	}
	for _, fn := range stateFns {
		fn(state)
	}
}

func validateReport(r segment.Report) error {
	if r.Segment < 1 {
		return invalid("segmento", "must be >= 1, got %d", r.Segment)
	}
	if r.CameraID == "" {
		return invalid("camera_id", "must not be empty")
	}
	if r.Count < 0 {
		return invalid("personas_count", "must be >= 0, got %d", r.Count)
	}
	for i, p := range r.Persons {
		if p.LocalPos < 1 {
			return invalid("personas", "entry %d: local_pos must be >= 1, got %d", i, p.LocalPos)
		}
	}
	return nil
}

// normalizePersons makes the person list agree with the declared count so the
// global view always has as many entries as the summed counts.
func normalizePersons(r segment.Report) []segment.Person {
	n := len(r.Persons)
	if n == r.Count {
		return r.Persons
	}
	slog.Warn("person list does not match count",
		"camera_id", r.CameraID,
		"segment", r.Segment,
		"count", r.Count,
		"persons", n,
	)
	if n > r.Count {
		return r.Persons[:r.Count:r.Count]
	}

	out := make([]segment.Person, r.Count)
	copy(out, r.Persons)
	next := 0
	for _, p := range r.Persons {
		next = max(next, p.LocalPos)
	}
	for i := n; i < r.Count; i++ {
		next++
		out[i] = segment.Person{LocalPos: next}
	}
	return out
}

func presenceKeys(active []segment.Report) []attendance.Key {
	var keys []attendance.Key
	for _, r := range active {
		for _, p := range r.Persons {
			keys = append(keys, attendance.Key{CameraID: r.CameraID, Segment: r.Segment, LocalPos: p.LocalPos})
		}
	}
	return keys
}
