// Package store persists the module's state as JSON documents under a
// single data directory.
//
// Documents:
//   - graph.json: the relationship graph (nodes, edges, metadata)
//   - themes.json: the theme registry
//   - hypotheses.json: pending theme hypotheses, capped journal
//   - learning_log.json: completed cycle summaries, capped journal
//
// Writes are atomic: each document is written to a temp file in the data
// directory and renamed over the target. Loads are fail-open: a missing or
// malformed document yields an empty component and a log line, never an
// error. Save failures are returned to the caller.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	errs "github.com/quantfold/themegraph/internal/core/errors"
	"github.com/quantfold/themegraph/internal/graph"
	"github.com/quantfold/themegraph/internal/registry"
)

// Log key constants for store operations.
const (
	logKeyFile  = "file"
	logKeyNodes = "nodes"
	logKeyEdges = "edges"
	logKeyCount = "count"
)

const (
	graphFile       = "graph.json"
	themesFile      = "themes.json"
	hypothesesFile  = "hypotheses.json"
	learningLogFile = "learning_log.json"

	dirPerm = 0o755
)

// Journal caps. Oldest entries are evicted once a journal exceeds its cap.
const (
	DefaultMaxHypotheses = 200
	DefaultMaxLogEntries = 500
)

// Config bounds the append-only journals.
type Config struct {
	MaxHypotheses int
	MaxLogEntries int
}

func (c Config) withDefaults() Config {
	if c.MaxHypotheses <= 0 {
		c.MaxHypotheses = DefaultMaxHypotheses
	}

	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = DefaultMaxLogEntries
	}

	return c
}

// Store reads and writes the persisted documents of one data directory.
type Store struct {
	dir    string
	cfg    Config
	logger zerolog.Logger
}

// New creates the data directory if needed and returns a store rooted there.
func New(dir string, cfg Config, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if dir == "" {
		return nil, fmt.Errorf("%w: empty data directory", errs.ErrInvalidConfig)
	}

	dir = filepath.Clean(dir)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	return &Store{
		dir:    dir,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Dir returns the data directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// Ready verifies the data directory is writable.
func (s *Store) Ready() error {
	probe, err := os.CreateTemp(s.dir, "probe-*")
	if err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}

	name := probe.Name()

	if err := probe.Close(); err != nil {
		return fmt.Errorf("close probe file: %w", err)
	}

	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}

	return nil
}

// SaveGraph persists a snapshot of the graph to graph.json.
func (s *Store) SaveGraph(g *graph.Graph) error {
	if g == nil {
		return fmt.Errorf("%w: nil graph", errs.ErrInvalidInput)
	}

	doc := g.Document()

	if err := s.writeDocument(graphFile, doc); err != nil {
		return err
	}

	s.logger.Debug().
		Int(logKeyNodes, doc.Metadata.NodeCount).
		Int(logKeyEdges, doc.Metadata.EdgeCount).
		Msg("graph saved")

	return nil
}

// LoadGraph restores the graph from graph.json. A missing or malformed
// document yields an empty graph. The logger is handed to the graph itself.
func (s *Store) LoadGraph(logger *zerolog.Logger) *graph.Graph {
	var doc graph.Document

	if !s.readDocument(graphFile, &doc) {
		return graph.New(logger)
	}

	g := graph.FromDocument(&doc, logger)

	s.logger.Debug().
		Int(logKeyNodes, g.NodeCount()).
		Int(logKeyEdges, g.EdgeCount()).
		Msg("graph loaded")

	return g
}

// SaveThemes persists a snapshot of the theme registry to themes.json.
func (s *Store) SaveThemes(reg *registry.Registry) error {
	if reg == nil {
		return fmt.Errorf("%w: nil registry", errs.ErrInvalidInput)
	}

	doc := reg.Document()

	if err := s.writeDocument(themesFile, doc); err != nil {
		return err
	}

	s.logger.Debug().
		Int(logKeyCount, doc.Metadata.ThemeCount).
		Msg("themes saved")

	return nil
}

// LoadThemes restores the registry from themes.json with the same fail-open
// semantics as LoadGraph.
func (s *Store) LoadThemes(cfg registry.Config, logger *zerolog.Logger) *registry.Registry {
	var doc registry.Document

	if !s.readDocument(themesFile, &doc) {
		return registry.New(cfg, logger)
	}

	reg := registry.FromDocument(&doc, cfg, logger)

	s.logger.Debug().
		Int(logKeyCount, reg.ThemeCount()).
		Msg("themes loaded")

	return reg
}

// writeDocument marshals doc and atomically replaces the named file with it.
func (s *Store) writeDocument(name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace %s: %w", name, err)
	}

	return nil
}

// readDocument unmarshals the named file into out. It reports false, after
// logging, when the file is missing, unreadable, or malformed.
func (s *Store) readDocument(name string, out any) bool {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug().
			Str(logKeyFile, name).
			Msg("document not found, starting empty")

		return false
	}

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str(logKeyFile, name).
			Msg("failed to read document, starting empty")

		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn().
			Err(err).
			Str(logKeyFile, name).
			Msg("malformed document, starting empty")

		return false
	}

	return true
}
