package feedconfig

import (
	"bytes"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/feedwatch/internal/calendar"
	"github.com/wonny/feedwatch/internal/contracts"
)

// Snapshot is one immutable, fully validated view of the feed
// configuration. In-flight evaluations keep the snapshot they started
// with; a reload never mutates an existing snapshot.
type Snapshot struct {
	Feeds    []*contracts.FeedDefinition
	Settings GlobalSettings
	Calendar *calendar.Calendar

	byName map[string]*contracts.FeedDefinition
}

// Feed looks up a definition by name.
func (s *Snapshot) Feed(name string) (*contracts.FeedDefinition, bool) {
	feed, ok := s.byName[name]
	return feed, ok
}

// EnabledFeeds returns the feeds the scheduler should evaluate.
func (s *Snapshot) EnabledFeeds() []*contracts.FeedDefinition {
	out := make([]*contracts.FeedDefinition, 0, len(s.Feeds))
	for _, f := range s.Feeds {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// CheckInterval returns the periodic tick interval.
func (s *Snapshot) CheckInterval() time.Duration {
	return time.Duration(s.Settings.CheckIntervalMinutes) * time.Minute
}

// MaxRetention returns the longest retention window across all feeds,
// used by the retention sweep.
func (s *Snapshot) MaxRetention() time.Duration {
	max := time.Duration(s.Settings.RetentionDays) * 24 * time.Hour
	for _, f := range s.Feeds {
		if f.Retention > max {
			max = f.Retention
		}
	}
	return max
}

// Load reads, decodes and validates the feeds YAML file and builds an
// immutable snapshot. Any violation returns a ValidationError and no
// snapshot; the engine never starts on a partially valid registry.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // unknown fields are config errors
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode feeds file: %w", err)
	}

	applyDefaults(&f)

	if err := Validate(&f); err != nil {
		return nil, err
	}

	return build(&f)
}

func build(f *File) (*Snapshot, error) {
	loc, err := time.LoadLocation(f.Settings.Timezone)
	if err != nil {
		// Validate already checked this; keep the error path anyway.
		return nil, ValidationError{"settings.timezone", err.Error()}
	}

	startHour, startMin := parseHHMM(f.Settings.BusinessHours.Start)
	cal := calendar.New(f.Settings.Holidays, loc, startHour, startMin)

	defaultRetention := time.Duration(f.Settings.RetentionDays) * 24 * time.Hour

	snap := &Snapshot{
		Settings: f.Settings,
		Calendar: cal,
		byName:   make(map[string]*contracts.FeedDefinition, len(f.Feeds)),
	}

	for _, spec := range f.Feeds {
		retention := defaultRetention
		if spec.RetentionDays > 0 {
			retention = time.Duration(spec.RetentionDays) * 24 * time.Hour
		}

		enabled := true
		if spec.Enabled != nil {
			enabled = *spec.Enabled
		}

		def := &contracts.FeedDefinition{
			Name:            spec.Name,
			SourceTable:     spec.SourceTable,
			DateColumn:      spec.DateColumn,
			ArrivalColumn:   spec.ArrivalColumn,
			ExpectedTime:    spec.ExpectedTime,
			Tolerance:       time.Duration(spec.ToleranceMinutes) * time.Minute,
			WeekendExpected: spec.WeekendExpected,
			MinRecords:      spec.MinRecords,
			Retention:       retention,
			Enabled:         enabled,
			Connection:      spec.Connection,
		}

		snap.Feeds = append(snap.Feeds, def)
		snap.byName[def.Name] = def
	}

	return snap, nil
}

// parseHHMM assumes the value already passed validateHHMM.
func parseHHMM(value string) (hour, minute int) {
	fmt.Sscanf(value, "%d:%d", &hour, &minute)
	return hour, minute
}

// Registry holds the current snapshot and swaps it atomically on reload.
type Registry struct {
	path string
	snap atomic.Pointer[Snapshot]
}

// NewRegistry loads the file at path and returns a registry serving it.
func NewRegistry(path string) (*Registry, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}

	r := &Registry{path: path}
	r.snap.Store(snap)
	return r, nil
}

// Current returns the active snapshot.
func (r *Registry) Current() *Snapshot {
	return r.snap.Load()
}

// Reload loads a fresh snapshot from disk and installs it atomically.
// On validation failure the previous snapshot stays active.
func (r *Registry) Reload() error {
	snap, err := Load(r.path)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}
