package visioncore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/proximeter/visioncore/internal/onnxsession"
)

// StreamRecord is one entry of the persisted stream registry, grounded on
// original_source/src/app/services/streams_service.py's Stream model and
// config_io.py's YAML-backed load/save pair.
type StreamRecord struct {
	ID             string                `yaml:"id"`
	Name           string                `yaml:"name"`
	SourceURI      string                `yaml:"source_uri"`
	HWAccelEnabled bool                  `yaml:"hw_accel_enabled"`
	FFmpegParams   []string              `yaml:"ffmpeg_params"`
	TargetFPS      int                   `yaml:"target_fps"`
	Detection      StreamDetectionConfig `yaml:"detection"`
	Enabled        bool                  `yaml:"enabled"`
	Order          int                   `yaml:"order"`
	Status         string                `yaml:"status"`
}

// streamFile is the on-disk shape; a single `streams` list keeps the YAML close to
// config_io.py's `{"streams": [...]}` document.
type streamFile struct {
	Streams []StreamRecord `yaml:"streams"`
}

const defaultFFmpegTargetFPSMin = 1
const defaultFFmpegTargetFPSMax = 30
const maxStreamNameLen = 50

// DefaultFFmpegParams returns the baseline decode flags, with GPU-backend
// specific hardware-acceleration flags appended, matching
// StreamsService.default_ffmpeg_params.
func DefaultFFmpegParams(backend onnxsession.GPUBackend) []string {
	params := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-threads", "2",
		"-rtsp_transport", "tcp",
		"-timeout", "10000000",
	}
	switch backend {
	case onnxsession.BackendNvidia:
		params = append(params, "-hwaccel", "cuda", "-hwaccel_output_format", "cuda", "-c:v", "h264_cuvid")
	case onnxsession.BackendAMD:
		params = append(params, "-hwaccel", "amf", "-c:v", "h264_amf")
	case onnxsession.BackendIntel:
		params = append(params, "-hwaccel", "qsv", "-c:v", "h264_qsv")
	}
	return params
}

// StreamRegistry is the persisted, atomically-updated list of configured
// streams, backed by a single YAML file. Every mutating method performs a
// full load-modify-save cycle under a mutex, matching config_io.py's
// lock-guarded load/save pair; saves write to a temp file in the same
// directory and rename into place so a reader never observes a partially
// written document.
type StreamRegistry struct {
	path string
	mu   sync.Mutex
}

// NewStreamRegistry opens (creating if absent) the registry backed by
// path. The directory is created if missing.
func NewStreamRegistry(path string) (*StreamRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("registry: create config dir: %w", err)
	}
	r := &StreamRegistry{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.save(nil); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *StreamRegistry) load() ([]StreamRecord, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", r.path, err)
	}
	var file streamFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", r.path, err)
	}
	return file.Streams, nil
}

// save writes records atomically: marshal, write to a sibling temp file,
// then rename over the target. The rename is atomic on the same
// filesystem, so a crash mid-write never corrupts the live file.
func (r *StreamRegistry) save(records []StreamRecord) error {
	out, err := yaml.Marshal(streamFile{Streams: records})
	if err != nil {
		return fmt.Errorf("registry: marshal: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("registry: rename into place: %w", err)
	}
	return nil
}

// List returns every stream ordered by its Order field.
func (r *StreamRegistry) List() ([]StreamRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	sortByOrder(records)
	return records, nil
}

// Get returns the stream with the given id, or ErrStreamNotFound.
func (r *StreamRegistry) Get(id string) (StreamRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return StreamRecord{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return StreamRecord{}, ErrStreamNotFound
}

// Create validates and appends a new stream record, assigning it the
// next Order value, matching StreamsService.create_stream.
func (r *StreamRegistry) Create(rec StreamRecord) (StreamRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Name = strings.TrimSpace(rec.Name)
	if err := validateStreamName(rec.Name); err != nil {
		return StreamRecord{}, err
	}

	records, err := r.load()
	if err != nil {
		return StreamRecord{}, err
	}
	for _, existing := range records {
		if strings.EqualFold(existing.Name, rec.Name) {
			return StreamRecord{}, fmt.Errorf("registry: stream name %q already exists", rec.Name)
		}
	}
	if rec.FFmpegParams == nil {
		rec.FFmpegParams = DefaultFFmpegParams(onnxsession.BackendNone)
	}
	if rec.Status == "" {
		rec.Status = "stopped"
	}
	rec.Order = len(records)
	records = append(records, rec)
	if err := r.save(records); err != nil {
		return StreamRecord{}, err
	}
	return rec, nil
}

// Update applies fn to the stream matching id and persists the result.
// fn mutates the record in place; Update revalidates the name and
// target FPS afterward.
func (r *StreamRegistry) Update(id string, fn func(*StreamRecord)) (StreamRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return StreamRecord{}, err
	}
	idx := indexByID(records, id)
	if idx == -1 {
		return StreamRecord{}, ErrStreamNotFound
	}

	updated := records[idx]
	fn(&updated)
	updated.Name = strings.TrimSpace(updated.Name)
	if err := validateStreamName(updated.Name); err != nil {
		return StreamRecord{}, err
	}
	for i, existing := range records {
		if i != idx && strings.EqualFold(existing.Name, updated.Name) {
			return StreamRecord{}, fmt.Errorf("registry: stream name %q already exists", updated.Name)
		}
	}
	if updated.TargetFPS != 0 && (updated.TargetFPS < defaultFFmpegTargetFPSMin || updated.TargetFPS > defaultFFmpegTargetFPSMax) {
		return StreamRecord{}, fmt.Errorf("registry: target_fps must be between %d and %d", defaultFFmpegTargetFPSMin, defaultFFmpegTargetFPSMax)
	}
	if err := ValidateStreamDetectionConfig(updated.Detection); err != nil {
		return StreamRecord{}, err
	}
	records[idx] = updated
	if err := r.save(records); err != nil {
		return StreamRecord{}, err
	}
	return updated, nil
}

// Delete removes the stream matching id and renumbers the remaining
// records' Order fields contiguously from 0, matching
// StreamsService.delete_stream.
func (r *StreamRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	idx := indexByID(records, id)
	if idx == -1 {
		return ErrStreamNotFound
	}
	records = append(records[:idx], records[idx+1:]...)
	for i := range records {
		records[i].Order = i
	}
	return r.save(records)
}

// Reorder applies a new ordering given as a list of stream IDs; every
// existing ID must appear exactly once, matching
// StreamsService.reorder_streams.
func (r *StreamRegistry) Reorder(order []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	if len(records) <= 1 {
		return nil
	}
	if len(order) != len(records) {
		return fmt.Errorf("registry: order list must contain exactly %d stream ids", len(records))
	}
	seen := make(map[string]bool, len(order))
	byID := make(map[string]StreamRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	reordered := make([]StreamRecord, 0, len(order))
	for i, id := range order {
		if seen[id] {
			return fmt.Errorf("registry: duplicate stream id %q in order list", id)
		}
		seen[id] = true
		rec, ok := byID[id]
		if !ok {
			return fmt.Errorf("registry: unknown stream id %q in order list", id)
		}
		rec.Order = i
		reordered = append(reordered, rec)
	}
	return r.save(reordered)
}

func validateStreamName(name string) error {
	if name == "" || len(name) > maxStreamNameLen {
		return fmt.Errorf("registry: name must be 1-%d characters after trimming", maxStreamNameLen)
	}
	return nil
}

func indexByID(records []StreamRecord, id string) int {
	for i, rec := range records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func sortByOrder(records []StreamRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].Order < records[j-1].Order; j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}
