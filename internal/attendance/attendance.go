// Package attendance infers service events from the disappearance of people
// from the queue and keeps the daily statistics derived from them.
//
// Identity is heuristic: a person is keyed by camera, segment and local rank,
// so when the queue advances the rank churns and one physical person can be
// counted under several keys. Only keys that persisted longer than the
// minimum dwell are counted as attended.
package attendance

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultMinDwell is the presence needed before a vanished key counts as attended.
const DefaultMinDwell = 30 * time.Second

// Key identifies a queue slot as seen by one camera.
type Key struct {
	CameraID string
	Segment  int
	LocalPos int
}

func (k Key) String() string {
	return fmt.Sprintf("%s_seg%d_pos%d", k.CameraID, k.Segment, k.LocalPos)
}

// Outcome summarizes what a single Observe call changed.
type Outcome struct {
	Arrived  int
	Attended int
	Dropped  int
	Waits    []time.Duration
}

// Stats is a copy of the counters for the current statistics period.
type Stats struct {
	Date        time.Time
	Attended    int
	Entries     int
	AvgWait     float64 // minutes
	MedianWait  float64 // minutes
	PeakQueue   int
	LastReset   time.Time
	WaitSamples int
}

// Tracker holds presence records and statistics. It is not safe for
// concurrent use; the aggregation engine serializes access.
type Tracker struct {
	minDwell time.Duration
	presence map[Key]time.Time

	date      time.Time
	attended  int
	entries   int
	samples   []float64
	avgWait   float64
	peak      int
	lastReset time.Time
}

// NewTracker starts a statistics period at now.
func NewTracker(minDwell time.Duration, now time.Time) *Tracker {
	if minDwell <= 0 {
		minDwell = DefaultMinDwell
	}
	t := &Tracker{minDwell: minDwell}
	t.clear(now)
	return t
}

func (t *Tracker) clear(now time.Time) {
	t.presence = make(map[Key]time.Time)
	t.date = startOfDay(now)
	t.attended = 0
	t.entries = 0
	t.samples = nil
	t.avgWait = 0
	t.peak = 0
	t.lastReset = now
}

// Observe diffs the keys currently visible against the presence record.
// New keys are stamped with now. Keys that vanished are counted as attended
// when their dwell exceeded the minimum, otherwise discarded. Repeating a call
// with the same keys changes nothing.
func (t *Tracker) Observe(now time.Time, current []Key) Outcome {
	var out Outcome

	seen := make(map[Key]struct{}, len(current))
	for _, k := range current {
		seen[k] = struct{}{}
		if _, ok := t.presence[k]; !ok {
			t.presence[k] = now
			t.entries++
			out.Arrived++
		}
	}

	for k, first := range t.presence {
		if _, ok := seen[k]; ok {
			continue
		}
		delete(t.presence, k)

		dwell := now.Sub(first)
		if dwell <= t.minDwell {
			out.Dropped++
			continue
		}
		t.attended++
		t.samples = append(t.samples, dwell.Minutes())
		out.Attended++
		out.Waits = append(out.Waits, dwell)
	}

	if out.Attended > 0 {
		t.avgWait = stat.Mean(t.samples, nil)
	}
	return out
}

// ObservePeak raises the peak queue length if total exceeds it.
func (t *Tracker) ObservePeak(total int) {
	if total > t.peak {
		t.peak = total
	}
}

// Present returns the number of keys currently tracked.
func (t *Tracker) Present() int {
	return len(t.presence)
}

// Stats returns the current period's counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Date:        t.date,
		Attended:    t.attended,
		Entries:     t.entries,
		AvgWait:     t.avgWait,
		MedianWait:  median(t.samples),
		PeakQueue:   t.peak,
		LastReset:   t.lastReset,
		WaitSamples: len(t.samples),
	}
}

// LastReset returns when the current period started.
func (t *Tracker) LastReset() time.Time {
	return t.lastReset
}

// Reset closes the current period at now and returns its summary.
func (t *Tracker) Reset(now time.Time, trigger Trigger) Summary {
	s := t.Stats()
	summary := Summary{
		Date:        s.Date.Format(time.DateOnly),
		Attended:    s.Attended,
		Entries:     s.Entries,
		AvgWait:     s.AvgWait,
		MedianWait:  s.MedianWait,
		PeakQueue:   s.PeakQueue,
		PeriodStart: s.LastReset,
		PeriodEnd:   now,
		Trigger:     trigger,
	}
	t.clear(now)
	return summary
}

func median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
