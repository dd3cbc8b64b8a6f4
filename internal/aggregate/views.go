package aggregate

import (
	"math"
	"time"

	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/segment"
)

// State is the headline view of the queue.
type State struct {
	Persons        int
	WaitMinutes    int
	Alert          bool
	ActiveSegments int
	SegmentCounts  map[int]int
	PeakQueue      int
}

// QueueEntry is one person in the global queue.
type QueueEntry struct {
	ID          string
	Position    int
	Segment     int
	CameraID    string
	WaitMinutes int
	Confidence  float64
	CenterY     float64
	Window      int
}

type Queue struct {
	Total   int
	Entries []QueueEntry
}

// SegmentStatus describes a stored segment whether or not it is still live.
type SegmentStatus struct {
	Segment     int
	CameraID    string
	Count       int
	Active      bool
	SinceUpdate time.Duration
}

type Statistics struct {
	Date       time.Time
	Attended   int
	Entries    int
	AvgWait    float64
	MedianWait float64
	PeakQueue  int
	Opening    string
	Closing    string
	// Throughput is people attended per hour since the period started.
	Throughput float64
	WindowOpen bool
	LastReset  time.Time
}

// Estimate projects how many of the people queued can be served before closing.
type Estimate struct {
	MinutesToClose  int
	EstimatedServed int
	InQueue         int
	NeedsWindow     bool
}

// CurrentState returns the queue summary over active segments.
func (e *Engine) CurrentState() State {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked(e.store.Active(now))
}

func (e *Engine) stateLocked(active []segment.Report) State {
	total := segment.Total(active)
	counts := make(map[int]int, len(active))
	for _, r := range active {
		counts[r.Segment] = r.Count
	}
	return State{
		Persons:        total,
		WaitMinutes:    total * e.settings.ServiceMinutes,
		Alert:          total > AlertThreshold,
		ActiveSegments: len(active),
		SegmentCounts:  counts,
		PeakQueue:      e.attendance.Stats().PeakQueue,
	}
}

// FullQueue lists every person in active segments with a contiguous 1-based
// global position, ascending by segment and then in reporter order.
func (e *Engine) FullQueue() Queue {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	active := e.store.Active(now)
	s := e.settings
	q := Queue{Entries: make([]QueueEntry, 0, segment.Total(active))}
	pos := 0
	for _, r := range active {
		for _, p := range r.Persons {
			pos++
			wait, window := s.positionWait(pos)
			q.Entries = append(q.Entries, QueueEntry{
				ID:          attendance.Key{CameraID: r.CameraID, Segment: r.Segment, LocalPos: p.LocalPos}.String(),
				Position:    pos,
				Segment:     r.Segment,
				CameraID:    r.CameraID,
				WaitMinutes: wait,
				Confidence:  p.Confidence,
				CenterY:     p.CenterY,
				Window:      window,
			})
		}
	}
	q.Total = pos
	return q
}

func (s Settings) positionWait(pos int) (wait, window int) {
	if s.secondaryActive() && pos > s.SecondaryCutover {
		return (pos - s.SecondaryCutover - 1) * s.ServiceMinutes, 2
	}
	return (pos - 1) * s.ServiceMinutes, 1
}

// Segments lists every stored segment ascending by number.
func (e *Engine) Segments() []SegmentStatus {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	all := e.store.All()
	out := make([]SegmentStatus, 0, len(all))
	for _, r := range all {
		out = append(out, SegmentStatus{
			Segment:     r.Segment,
			CameraID:    r.CameraID,
			Count:       r.Count,
			Active:      r.Active(now, e.store.Window()),
			SinceUpdate: now.Sub(r.LastUpdated),
		})
	}
	return out
}

// Statistics returns the counters of the current period.
func (e *Engine) Statistics() Statistics {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := e.attendance.Stats()
	s := e.settings
	return Statistics{
		Date:       st.Date,
		Attended:   st.Attended,
		Entries:    st.Entries,
		AvgWait:    st.AvgWait,
		MedianWait: st.MedianWait,
		PeakQueue:  st.PeakQueue,
		Opening:    s.Opening.String(),
		Closing:    s.Closing.String(),
		Throughput: throughput(st.Attended, st.LastReset, s.Opening.On(now), now),
		WindowOpen: s.windowOpen(now),
		LastReset:  st.LastReset,
	}
}

func (s Settings) windowOpen(now time.Time) bool {
	m := now.Hour()*60 + now.Minute()
	return m >= s.Opening.Minutes() && m < s.Closing.Minutes()
}

// throughput counts from the later of the period start and today's opening.
func throughput(attended int, periodStart, openAt, now time.Time) float64 {
	start := periodStart
	if openAt.After(start) {
		start = openAt
	}
	hours := now.Sub(start).Hours()
	if hours <= 0 {
		return 0
	}
	return math.Round(float64(attended)/hours*10) / 10
}

// Estimate returns the capacity projection until closing.
func (e *Engine) Estimate() Estimate {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.estimateLocked(now)
}

func (e *Engine) estimateLocked(now time.Time) Estimate {
	s := e.settings
	inQueue := segment.Total(e.store.Active(now))

	minutes := 0
	if left := s.Closing.On(now).Sub(now); left > 0 {
		minutes = int(left.Minutes())
	}
	served := 0
	if s.ServiceMinutes > 0 {
		served = minutes / s.ServiceMinutes * s.Windows()
	}
	return Estimate{
		MinutesToClose:  minutes,
		EstimatedServed: served,
		InQueue:         inQueue,
		NeedsWindow:     inQueue > served,
	}
}

// Config returns the settings and estimate from one snapshot.
func (e *Engine) Config() (Settings, Estimate) {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings, e.estimateLocked(now)
}
