package visioncore

import (
	"sync"

	"go.uber.org/zap"

	"github.com/proximeter/visioncore/internal/kalman"
)

// ObjectState is the tagged variant a TrackedObject occupies, replacing
// name-string state comparisons. Transitions live on
// (*TrackedObject).updateState, not scattered across callers.
type ObjectState int

const (
	// Tentative is the state of a newly created track, before it has
	// accumulated min_hits matches.
	Tentative ObjectState = iota
	// Active is a track with enough hits and recent motion.
	Active
	// Stationary is an Active track whose centroid hasn't moved enough
	// over the last 10 matched frames.
	Stationary
	// Lost is a track that missed a match this frame; deleted once
	// frames_since_detection exceeds max_age.
	Lost
)

// String implements fmt.Stringer.
func (s ObjectState) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Active:
		return "active"
	case Stationary:
		return "stationary"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

const bboxHistoryCapacity = 50
const stationaryWindowFrames = 10
const stationaryPixelThreshold = 5.0

// TrackedObject is a single tracked entity, owned exclusively by its
// ObjectTracker. Its id is stable for the object's lifetime and never
// reused, even across deletion.
type TrackedObject struct {
	ID         int
	ClassName  string
	Confidence float64
	BBox       BoundingBox
	VelocityX  float64
	VelocityY  float64

	State ObjectState

	Hits                 int
	Age                  int
	LastSeenFrame        int
	FramesSinceDetection int
	FramesStationary     int

	// FramesSinceStationaryRecheck counts frames since this track's last
	// stationary-cadence re-inference, independent of every other
	// track's timer; see StreamSupervisor.Step.
	FramesSinceStationaryRecheck int

	bboxHistory []BoundingBox

	kf *kalman.Filter

	minHits              int
	stationaryHitsNeeded int
	maxAge               int
}

// appendHistory appends to the bounded ring, evicting the oldest entry
// beyond bboxHistoryCapacity.
func (t *TrackedObject) appendHistory(b BoundingBox) {
	t.bboxHistory = append(t.bboxHistory, b)
	if len(t.bboxHistory) > bboxHistoryCapacity {
		t.bboxHistory = t.bboxHistory[len(t.bboxHistory)-bboxHistoryCapacity:]
	}
}

// checkStationary compares the current centre to the centre from
// stationaryWindowFrames matched-frames ago.
func (t *TrackedObject) checkStationary() {
	if len(t.bboxHistory) < stationaryWindowFrames {
		return
	}
	cur := t.bboxHistory[len(t.bboxHistory)-1]
	prev := t.bboxHistory[len(t.bboxHistory)-stationaryWindowFrames]
	cx1, cy1 := cur.Center()
	cx2, cy2 := prev.Center()
	dx, dy := cx1-cx2, cy1-cy2
	dist := dx*dx + dy*dy
	if dist < stationaryPixelThreshold*stationaryPixelThreshold {
		t.FramesStationary++
	} else {
		t.FramesStationary = 0
	}
}

// updateState applies the tagged-variant transition rules.
// matchedThisFrame indicates whether this track was matched to a
// detection in the current update call.
func (t *TrackedObject) updateState(matchedThisFrame bool) {
	if !matchedThisFrame {
		if t.FramesSinceDetection > 0 {
			t.State = Lost
		}
		return
	}

	switch t.State {
	case Tentative:
		if t.Hits >= t.minHits {
			t.State = Active
		}
	case Active:
		if t.FramesStationary >= t.stationaryHitsNeeded {
			t.State = Stationary
		}
	case Stationary:
		if t.FramesStationary == 0 {
			t.State = Active
		}
	case Lost:
		// Re-matched tracks return straight to Active, unconditionally.
		t.State = Active
	}
}

// ObjectTrackerConfig holds the tracker's tunables.
type ObjectTrackerConfig struct {
	MaxAge       int
	MinHits      int
	IoUThreshold float64
	MaxTracks    int

	StationaryFrames int

	// Solver resolves detection<->track matching; defaults to
	// GreedySolver{} when nil. OptimalSolver{} is a compatible drop-in.
	Solver Solver

	SwitchWindowSize    int
	SwitchCheckInterval int
	SwitchRateThreshold float64
}

// DefaultObjectTrackerConfig returns the reference parameter set.
func DefaultObjectTrackerConfig() ObjectTrackerConfig {
	return ObjectTrackerConfig{
		MaxAge:              30,
		MinHits:             3,
		IoUThreshold:        0.3,
		MaxTracks:           15,
		StationaryFrames:    10,
		Solver:              GreedySolver{},
		SwitchWindowSize:    300,
		SwitchCheckInterval: 50,
		SwitchRateThreshold: 0.05,
	}
}

// ObjectTracker is the per-stream SORT-style multi-object tracker: Kalman
// prediction, IoU-cost assignment, lifecycle management, and bounded
// track-pool eviction. One instance is owned exclusively by a single
// stream (see StreamSupervisor); it holds no shared mutable state.
type ObjectTracker struct {
	cfg ObjectTrackerConfig
	log *zap.SugaredLogger

	mu     sync.Mutex
	tracks map[int]*TrackedObject
	order  []int // insertion order, for deterministic iteration

	idFactory  trackIDFactory
	frameCount int

	switchWindow    []int // number of creation+deletion events recorded that frame
	switchWindowPos int
	switchWindowLen int
}

// NewObjectTracker constructs a tracker with the given config.
func NewObjectTracker(cfg ObjectTrackerConfig, log *zap.SugaredLogger) *ObjectTracker {
	if log == nil {
		log = NewNopLogger()
	}
	if cfg.Solver == nil {
		cfg.Solver = GreedySolver{}
	}
	if cfg.StationaryFrames == 0 {
		cfg.StationaryFrames = 10
	}
	return &ObjectTracker{
		cfg:          cfg,
		log:          log,
		tracks:       make(map[int]*TrackedObject),
		switchWindow: make([]int, cfg.SwitchWindowSize),
	}
}

// Update advances the tracker by one frame: predicts all tracks, matches
// them against detections, creates/evicts/deletes as needed, and returns
// the tracker's current state as a snapshot.
func (ot *ObjectTracker) Update(detections []Detection) []*TrackedObject {
	ot.mu.Lock()
	defer ot.mu.Unlock()

	ot.frameCount++
	switchEvents := 0

	// 1. Predict all tracks.
	predictedBoxes := make([]BoundingBox, len(ot.order))
	for i, id := range ot.order {
		tr := ot.tracks[id]
		tr.kf.Predict()
		x, y, w, h := tr.kf.BBox()
		tr.BBox = BoundingBox{X: int(x), Y: int(y), W: int(w), H: int(h)}
		tr.VelocityX, tr.VelocityY = tr.kf.Velocity()
		predictedBoxes[i] = tr.BBox
	}

	// 2 & 3. Cost matrix + assignment, filtered by IoU threshold.
	detBoxes := make([]BoundingBox, len(detections))
	for i, d := range detections {
		detBoxes[i] = d.BBox
	}
	ious := IoUMatrix(detBoxes, predictedBoxes)
	cost := make([][]float64, len(ious))
	for i := range ious {
		row := make([]float64, len(ious[i]))
		for j := range ious[i] {
			row[j] = 1 - ious[i][j]
		}
		cost[i] = row
	}

	var assignments []Assignment
	if len(detections) > 0 && len(ot.order) > 0 {
		assignments = ot.cfg.Solver.Solve(cost)
	}

	matchedDet := make(map[int]bool)
	matchedTrack := make(map[int]bool)
	for _, a := range assignments {
		if ious[a.Row][a.Col] < ot.cfg.IoUThreshold {
			continue
		}
		id := ot.order[a.Col]
		tr := ot.tracks[id]
		det := detections[a.Row]

		reset := tr.kf.Update(float64(det.BBox.X), float64(det.BBox.Y), float64(det.BBox.W), float64(det.BBox.H))
		if reset {
			ot.log.Warnw("kalman filter numerical instability, track reset to measurement", "track_id", id)
		}
		x, y, w, h := tr.kf.BBox()
		tr.BBox = BoundingBox{X: int(x), Y: int(y), W: int(w), H: int(h)}
		tr.VelocityX, tr.VelocityY = tr.kf.Velocity()
		tr.Confidence = det.Confidence
		tr.ClassName = det.ClassName
		tr.FramesSinceDetection = 0
		tr.Hits++
		tr.Age++
		tr.LastSeenFrame = ot.frameCount
		tr.appendHistory(tr.BBox)
		tr.checkStationary()
		tr.updateState(true)

		matchedDet[a.Row] = true
		matchedTrack[id] = true
	}

	// 4 already applied inline above for matched tracks.

	// 6. Unmatched existing tracks.
	for _, id := range ot.order {
		if matchedTrack[id] {
			continue
		}
		tr := ot.tracks[id]
		tr.FramesSinceDetection++
		tr.Age++
		tr.updateState(false)
	}

	// 5. Unmatched detections -> new tracks.
	for i, det := range detections {
		if matchedDet[i] {
			continue
		}
		if len(ot.order) >= ot.cfg.MaxTracks {
			if !ot.evictOldestLost() {
				ot.log.Warnw("track pool exhausted, dropping new candidate", "class_name", det.ClassName)
				continue
			}
		}
		ot.createTrack(det)
		switchEvents++
	}

	// 7. Delete expired Lost tracks.
	var survivors []int
	for _, id := range ot.order {
		tr := ot.tracks[id]
		if tr.State == Lost && tr.FramesSinceDetection > ot.cfg.MaxAge {
			delete(ot.tracks, id)
			switchEvents++
			continue
		}
		survivors = append(survivors, id)
	}
	ot.order = survivors

	// 8. ID-switching monitor.
	ot.recordSwitchSample(switchEvents)

	return ot.snapshotLocked()
}

func (ot *ObjectTracker) createTrack(det Detection) {
	id := ot.idFactory.next()

	tr := &TrackedObject{
		ID:                   id,
		ClassName:            det.ClassName,
		Confidence:           det.Confidence,
		BBox:                 det.BBox,
		State:                Tentative,
		Hits:                 1,
		Age:                  1,
		LastSeenFrame:        ot.frameCount,
		kf:                   kalman.New(float64(det.BBox.X), float64(det.BBox.Y), float64(det.BBox.W), float64(det.BBox.H)),
		minHits:              ot.cfg.MinHits,
		stationaryHitsNeeded: ot.cfg.StationaryFrames,
		maxAge:               ot.cfg.MaxAge,
	}
	tr.appendHistory(tr.BBox)
	ot.tracks[id] = tr
	ot.order = append(ot.order, id)
}

// evictOldestLost finds the Lost track with the highest age and removes
// it, returning true if one was found and removed.
func (ot *ObjectTracker) evictOldestLost() bool {
	bestIdx := -1
	bestAge := -1
	for i, id := range ot.order {
		tr := ot.tracks[id]
		if tr.State == Lost && tr.Age > bestAge {
			bestAge = tr.Age
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return false
	}
	delete(ot.tracks, ot.order[bestIdx])
	ot.order = append(ot.order[:bestIdx], ot.order[bestIdx+1:]...)
	return true
}

func (ot *ObjectTracker) recordSwitchSample(events int) {
	idx := ot.switchWindowPos % len(ot.switchWindow)
	ot.switchWindow[idx] = events
	ot.switchWindowPos++
	if ot.switchWindowLen < len(ot.switchWindow) {
		ot.switchWindowLen++
	}

	if ot.cfg.SwitchCheckInterval <= 0 || ot.frameCount%ot.cfg.SwitchCheckInterval != 0 {
		return
	}
	if ot.switchWindowLen == 0 {
		return
	}
	total := 0
	for i := 0; i < ot.switchWindowLen; i++ {
		total += ot.switchWindow[i]
	}
	avgTracks := float64(len(ot.order))
	if avgTracks == 0 {
		return
	}
	rate := float64(total) / (float64(ot.switchWindowLen) * avgTracks)
	if rate > ot.cfg.SwitchRateThreshold {
		ot.log.Warnw("object tracker: high id-switching rate", "rate", rate)
	}
}

// snapshotLocked must be called with ot.mu held.
func (ot *ObjectTracker) snapshotLocked() []*TrackedObject {
	out := make([]*TrackedObject, len(ot.order))
	for i, id := range ot.order {
		out[i] = ot.tracks[id]
	}
	return out
}

// Snapshot returns the current set of non-deleted tracks.
func (ot *ObjectTracker) Snapshot() []*TrackedObject {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return ot.snapshotLocked()
}

// ActiveObjects returns tracks whose state != Stationary.
func (ot *ObjectTracker) ActiveObjects() []*TrackedObject {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	var out []*TrackedObject
	for _, id := range ot.order {
		if ot.tracks[id].State != Stationary {
			out = append(out, ot.tracks[id])
		}
	}
	return out
}

// StationaryObjects returns tracks whose state == Stationary.
func (ot *ObjectTracker) StationaryObjects() []*TrackedObject {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	var out []*TrackedObject
	for _, id := range ot.order {
		if ot.tracks[id].State == Stationary {
			out = append(out, ot.tracks[id])
		}
	}
	return out
}

// Count returns the current number of tracks (never exceeds MaxTracks).
func (ot *ObjectTracker) Count() int {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return len(ot.order)
}
