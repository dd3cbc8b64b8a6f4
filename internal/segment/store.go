// Package segment holds the latest report of every queue segment and decides
// which segments are still live.
package segment

import (
	"sort"
	"time"
)

// LivenessWindow is how long a segment report stays active after receipt.
const LivenessWindow = 10 * time.Second

// Person is one person as ordered by the reporting camera.
type Person struct {
	LocalPos   int
	CenterY    float64
	Confidence float64
}

// Report is the stored state of one segment.
type Report struct {
	Segment     int
	CameraID    string
	Count       int
	Persons     []Person
	ReportedAt  time.Time // camera clock
	LastUpdated time.Time // server receipt time
}

// Active reports whether the report is within the liveness window at now.
func (r *Report) Active(now time.Time, window time.Duration) bool {
	return now.Sub(r.LastUpdated) <= window
}

// Store keeps one report per segment number. It is not safe for concurrent
// use; the aggregation engine serialises access.
type Store struct {
	window  time.Duration
	reports map[int]Report
}

// NewStore creates a store. A non-positive window uses LivenessWindow.
func NewStore(window time.Duration) *Store {
	if window <= 0 {
		window = LivenessWindow
	}
	return &Store{
		window:  window,
		reports: make(map[int]Report),
	}
}

// Window returns the liveness window.
func (s *Store) Window() time.Duration {
	return s.window
}

// Put overwrites the report for r.Segment.
func (s *Store) Put(r Report) {
	s.reports[r.Segment] = r
}

// Active returns the reports that are live at now, ascending by segment.
func (s *Store) Active(now time.Time) []Report {
	out := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		if r.Active(now, s.window) {
			out = append(out, r)
		}
	}
	sortBySegment(out)
	return out
}

// All returns every stored report, live or stale, ascending by segment.
func (s *Store) All() []Report {
	out := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sortBySegment(out)
	return out
}

// Len returns the number of stored segments.
func (s *Store) Len() int {
	return len(s.reports)
}

// Clear drops every report.
func (s *Store) Clear() {
	clear(s.reports)
}

// Offset returns the sum of counts of active segments numbered below seg.
func Offset(active []Report, seg int) int {
	offset := 0
	for _, r := range active {
		if r.Segment < seg {
			offset += r.Count
		}
	}
	return offset
}

// Total returns the sum of counts of the given reports.
func Total(reports []Report) int {
	total := 0
	for _, r := range reports {
		total += r.Count
	}
	return total
}

func sortBySegment(rs []Report) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Segment < rs[j].Segment })
}
