package tracker

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/your-org/fila/internal/timeutil"
)

// Smoothing weights applied to a matched identity.
const (
	velocityGain     = 0.7 // weight of the newest displacement
	confidenceMemory = 0.8 // weight of the previous confidence
)

// Detection is one raw person detection in image coordinates.
type Detection struct {
	Point      r2.Point // feet point
	BBox       r2.Rect
	Confidence float64
}

// Object is a tracked person.
type Object struct {
	ID          int
	Position    r2.Point
	Velocity    r2.Point
	Confidence  float64
	BBox        r2.Rect
	Disappeared int // frames since last match
	CreatedAt   time.Time
}

// Predicted returns the expected position for the next frame.
func (o *Object) Predicted() r2.Point {
	return o.Position.Add(o.Velocity)
}

// Config holds tracker tuning, in pixels and frames.
type Config struct {
	FusionDistance float64
	MaxDistance    float64
	MaxDisappeared int
}

// DefaultConfig matches the 1280x720 camera layout the segmenter ships with.
func DefaultConfig() Config {
	return Config{
		FusionDistance: 80,
		MaxDistance:    100,
		MaxDisappeared: 45,
	}
}

// Tracker implements a centroid tracker with motion prediction for one camera.
type Tracker struct {
	mu      sync.Mutex
	objects map[int]*Object
	nextID  int
	cfg     Config
	clock   timeutil.Clock

	registered uint64
	evicted    uint64
}

// NewTracker creates a tracker. A nil clock uses the wall clock.
func NewTracker(cfg Config, clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{
		objects: make(map[int]*Object),
		cfg:     cfg,
		clock:   clock,
	}
}

// Update applies one frame of detections and returns the current identities
// ordered by ID.
func (t *Tracker) Update(detections []Detection) []Object {
	t.mu.Lock()
	defer t.mu.Unlock()

	fused := Fuse(detections, t.cfg.FusionDistance)

	if len(fused) == 0 {
		for id, obj := range t.objects {
			t.age(id, obj)
		}
		return t.snapshot()
	}

	if len(t.objects) == 0 {
		for _, det := range fused {
			t.register(det)
		}
		return t.snapshot()
	}

	ids := make([]int, 0, len(t.objects))
	for id := range t.objects {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	assignments := t.match(ids, fused)

	usedDet := make(map[int]bool, len(assignments))
	for _, id := range ids {
		obj := t.objects[id]
		j, ok := assignments[id]
		if !ok {
			t.age(id, obj)
			continue
		}
		det := fused[j]
		displacement := det.Point.Sub(obj.Position)
		obj.Velocity = displacement.Mul(velocityGain).Add(obj.Velocity.Mul(1 - velocityGain))
		obj.Confidence = confidenceMemory*obj.Confidence + (1-confidenceMemory)*det.Confidence
		obj.Position = det.Point
		if hasBox(det.BBox) {
			obj.BBox = det.BBox
		}
		obj.Disappeared = 0
		usedDet[j] = true
	}

	for j, det := range fused {
		if !usedDet[j] {
			t.register(det)
		}
	}

	return t.snapshot()
}

// match greedily pairs identities with detections. Costs beyond MaxDistance
// are never accepted.
func (t *Tracker) match(ids []int, dets []Detection) map[int]int {
	inf := math.Inf(1)
	costs := make([][]float64, len(ids))
	for i, id := range ids {
		predicted := t.objects[id].Predicted()
		costs[i] = make([]float64, len(dets))
		for j, det := range dets {
			d := predicted.Sub(det.Point).Norm()
			if d > t.cfg.MaxDistance {
				d = inf
			}
			costs[i][j] = d
		}
	}

	assignments := make(map[int]int)
	for {
		bestI, bestJ := -1, -1
		best := inf
		for i := range costs {
			for j, c := range costs[i] {
				if c < best {
					best, bestI, bestJ = c, i, j
				}
			}
		}
		if bestI < 0 {
			return assignments
		}
		assignments[ids[bestI]] = bestJ
		for j := range costs[bestI] {
			costs[bestI][j] = inf
		}
		for i := range costs {
			costs[i][bestJ] = inf
		}
	}
}

func (t *Tracker) age(id int, obj *Object) {
	obj.Disappeared++
	if obj.Disappeared > t.cfg.MaxDisappeared {
		delete(t.objects, id)
		t.evicted++
	}
}

func (t *Tracker) register(det Detection) {
	t.objects[t.nextID] = &Object{
		ID:         t.nextID,
		Position:   det.Point,
		Confidence: det.Confidence,
		BBox:       det.BBox,
		CreatedAt:  t.clock.Now(),
	}
	t.nextID++
	t.registered++
}

func (t *Tracker) snapshot() []Object {
	out := make([]Object, 0, len(t.objects))
	for _, obj := range t.objects {
		out = append(out, *obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Objects returns the current identities ordered by ID.
func (t *Tracker) Objects() []Object {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// TrackCount returns the number of live identities.
func (t *Tracker) TrackCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}

// Totals returns how many identities were ever registered and evicted.
func (t *Tracker) Totals() (registered, evicted uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registered, t.evicted
}

// Reset drops every identity. IDs keep increasing across resets.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.objects)
}
