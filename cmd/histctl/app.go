// ABOUTME: Per-invocation session: config, log level, sink stack and engine lifecycle
// ABOUTME: Writes go through an async sink that is drained before the process exits

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mauromedda/canvas-history-go/internal/config"
	"github.com/mauromedda/canvas-history-go/internal/log"
	"github.com/mauromedda/canvas-history-go/internal/termfix"
	"github.com/mauromedda/canvas-history-go/internal/timeline"
	"github.com/mauromedda/canvas-history-go/pkg/history"
	"github.com/mauromedda/canvas-history-go/pkg/kv"
)

type globalFlags struct {
	db       string
	dir      string
	key      string
	project  string
	logLevel string
	noColor  bool
}

type app struct {
	flags    globalFlags
	settings *config.Settings
	engine   *history.Engine[json.RawMessage]
	sink     *kv.Async
	sqlite   *kv.SQLite
	color    bool
	width    int
}

func (a *app) open(out io.Writer) error {
	s, err := config.Load(a.flags.project)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		s.LogLevel = a.flags.logLevel
	}
	if a.flags.db != "" {
		s.DBPath = a.flags.db
	}
	if err := s.Validate(); err != nil {
		return err
	}
	log.SetLevel(s.Level())
	a.settings = s

	var backend kv.Sink
	if a.flags.dir != "" {
		d, err := kv.NewDir(a.flags.dir)
		if err != nil {
			return fmt.Errorf("opening store dir: %w", err)
		}
		backend = d
	} else {
		db, err := kv.OpenSQLite(s.ResolvedDBPath(), kv.WithMkdirAll())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		a.sqlite = db
		backend = db
	}
	a.sink = kv.NewAsync(backend)

	opts := s.ToOptions()
	opts.Persistent = true
	opts.Sink = a.sink
	// Each invocation is one discrete edit; coalescing only applies within a process.
	opts.CoalesceWindow = 0
	if a.flags.key != "" {
		opts.StorageKey = a.flags.key
	}
	a.engine = history.New[json.RawMessage](opts)

	prof := termfix.Detect(out, a.flags.noColor)
	a.color, a.width = prof.Color, prof.Width
	return nil
}

// close flushes pending writes and releases the store. Safe to call when
// open never ran or failed part way.
func (a *app) close() error {
	var errs []error
	if a.engine != nil {
		a.engine.Commit()
		a.engine.Dispose()
		a.engine = nil
	}
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
		a.sink = nil
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
		a.sqlite = nil
	}
	return errors.Join(errs...)
}

func (a *app) render() timeline.Options {
	return timeline.Options{Width: a.width, Color: a.color}
}

// printState writes a one-line summary of st.
func (a *app) printState(out io.Writer, verb string, st history.State[json.RawMessage]) {
	fmt.Fprintf(out, "%s %d %s (branch %s)\n", verb, st.ID, st.Name, st.BranchID)
}
