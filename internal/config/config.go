// ABOUTME: Settings loading with global + project YAML config merge
// ABOUTME: Converts merged settings into history engine options

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mauromedda/canvas-history-go/internal/log"
	"github.com/mauromedda/canvas-history-go/pkg/compress"
	"github.com/mauromedda/canvas-history-go/pkg/history"
)

// EnvDBPath overrides the sqlite database path from any config file.
const EnvDBPath = "CANVAS_HISTORY_DB"

// Settings holds the merged configuration. Pointer fields distinguish
// "unset" from an explicit zero so project files can override global ones.
type Settings struct {
	MaxStates        *int   `yaml:"max_states,omitempty"`
	SnapshotInterval *int   `yaml:"snapshot_interval,omitempty"`
	Compression      string `yaml:"compression,omitempty"`
	Branching        *bool  `yaml:"branching,omitempty"`
	CoalesceWindowMS *int   `yaml:"coalesce_window_ms,omitempty"`
	MaxMemory        *int64 `yaml:"max_memory,omitempty"`
	Persistent       *bool  `yaml:"persistent,omitempty"`
	StorageKey       string `yaml:"storage_key,omitempty"`
	DBPath           string `yaml:"db_path,omitempty"`
	LogLevel         string `yaml:"log_level,omitempty"`
}

// Load reads and merges global and project-local settings.
// Project settings override global settings.
func Load(projectRoot string) (*Settings, error) {
	return loadFrom(GlobalConfigFile(), ProjectConfigFile(projectRoot))
}

func loadFrom(globalPath, projectPath string) (*Settings, error) {
	global, err := loadFile(globalPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	project, err := loadFile(projectPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	merged := merge(global, project)
	ResolveEnvVars(merged)
	if v := os.Getenv(EnvDBPath); v != "" {
		merged.DBPath = v
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadFile reads Settings from a YAML file. Returns zero Settings if the file
// does not exist.
func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Settings{}, err
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// merge overlays project settings onto global settings.
// Set project values override global values.
func merge(global, project *Settings) *Settings {
	if global == nil {
		global = &Settings{}
	}
	if project == nil {
		return global
	}

	result := *global

	if project.MaxStates != nil {
		result.MaxStates = project.MaxStates
	}
	if project.SnapshotInterval != nil {
		result.SnapshotInterval = project.SnapshotInterval
	}
	if project.Compression != "" {
		result.Compression = project.Compression
	}
	if project.Branching != nil {
		result.Branching = project.Branching
	}
	if project.CoalesceWindowMS != nil {
		result.CoalesceWindowMS = project.CoalesceWindowMS
	}
	if project.MaxMemory != nil {
		result.MaxMemory = project.MaxMemory
	}
	if project.Persistent != nil {
		result.Persistent = project.Persistent
	}
	if project.StorageKey != "" {
		result.StorageKey = project.StorageKey
	}
	if project.DBPath != "" {
		result.DBPath = project.DBPath
	}
	if project.LogLevel != "" {
		result.LogLevel = project.LogLevel
	}

	return &result
}

// Validate rejects negative limits and unknown enum values.
func (s *Settings) Validate() error {
	var errs []error
	if s.MaxStates != nil && *s.MaxStates < 0 {
		errs = append(errs, fmt.Errorf("max_states must be >= 0, got %d", *s.MaxStates))
	}
	if s.SnapshotInterval != nil && *s.SnapshotInterval < 0 {
		errs = append(errs, fmt.Errorf("snapshot_interval must be >= 0, got %d", *s.SnapshotInterval))
	}
	if s.CoalesceWindowMS != nil && *s.CoalesceWindowMS < 0 {
		errs = append(errs, fmt.Errorf("coalesce_window_ms must be >= 0, got %d", *s.CoalesceWindowMS))
	}
	if s.MaxMemory != nil && *s.MaxMemory < 0 {
		errs = append(errs, fmt.Errorf("max_memory must be >= 0, got %d", *s.MaxMemory))
	}
	switch strings.ToLower(s.Compression) {
	case "", "none", "zstd":
	default:
		errs = append(errs, fmt.Errorf("compression must be none or zstd, got %q", s.Compression))
	}
	switch strings.ToLower(s.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s.LogLevel))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, defaulting to info.
func (s *Settings) Level() slog.Level {
	return log.ParseLevel(s.LogLevel)
}

// ToOptions overlays the settings on history.DefaultOptions. The sink is left
// for the caller to open.
func (s *Settings) ToOptions() history.Options {
	opts := history.DefaultOptions()
	if s.MaxStates != nil {
		opts.MaxStates = *s.MaxStates
	}
	if s.SnapshotInterval != nil {
		opts.SnapshotInterval = *s.SnapshotInterval
	}
	if strings.EqualFold(s.Compression, "zstd") {
		opts.Compression = true
		opts.Codec = compress.NewZstd(0)
	}
	if s.Branching != nil {
		opts.Branching = *s.Branching
	}
	if s.CoalesceWindowMS != nil {
		opts.CoalesceWindow = time.Duration(*s.CoalesceWindowMS) * time.Millisecond
	}
	if s.MaxMemory != nil {
		opts.MaxMemory = *s.MaxMemory
	}
	if s.Persistent != nil {
		opts.Persistent = *s.Persistent
	}
	if s.StorageKey != "" {
		opts.StorageKey = s.StorageKey
	}
	return opts
}

// ResolvedDBPath returns the configured database path or the default one.
func (s *Settings) ResolvedDBPath() string {
	if s.DBPath != "" {
		return s.DBPath
	}
	return DefaultDBFile()
}
