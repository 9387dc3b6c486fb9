// Package ingest loads the per-cycle snapshot from the data directory.
//
// Two documents make up a snapshot:
//   - returns.json: daily return series per ticker, most recent last,
//     with an optional as_of timestamp
//   - news.json: recent headline items
//
// News timestamps are free-form: any format dateparse understands is
// accepted, and items may instead carry an age_hours offset relative to
// the snapshot's as_of instant.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/core/domain"
	errs "github.com/quantfold/themegraph/internal/core/errors"
)

// Log key constants for snapshot loading.
const (
	logKeyFile    = "file"
	logKeyTicker  = "ticker"
	logKeyTitle   = "title"
	logKeyTickers = "tickers"
	logKeyNews    = "news"
)

const (
	returnsFile = "returns.json"
	newsFile    = "news.json"
)

// returnsDocument is the wire form of returns.json.
type returnsDocument struct {
	AsOf    string               `json:"as_of"`
	Returns map[string][]float64 `json:"returns"`
}

// newsDocument is the wire form of news.json.
type newsDocument struct {
	Items []newsRecord `json:"items"`
}

// newsRecord is one headline as supplied by the news collaborator. Timestamp
// is free-form; AgeHours is the fallback when it is absent or unparseable.
type newsRecord struct {
	Title     string   `json:"title"`
	Tickers   []string `json:"tickers"`
	Source    string   `json:"source"`
	Timestamp string   `json:"timestamp"`
	AgeHours  *float64 `json:"age_hours"`
}

// Loader reads snapshot documents from a data directory.
type Loader struct {
	dir    string
	logger zerolog.Logger
}

// New returns a loader rooted at the given directory.
func New(dir string, logger *zerolog.Logger) *Loader {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Loader{
		dir:    filepath.Clean(dir),
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// Load assembles a snapshot from returns.json and news.json. A missing or
// malformed returns document is an error; a missing news document means an
// empty news list, but a malformed one is an error.
func (l *Loader) Load() (*domain.Snapshot, error) {
	returns, asOf, err := l.loadReturns()
	if err != nil {
		return nil, err
	}

	news, err := l.loadNews(asOf)
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		Returns: returns,
		News:    news,
		AsOf:    asOf,
	}

	l.logger.Info().
		Int(logKeyTickers, len(snap.Returns)).
		Int(logKeyNews, len(snap.News)).
		Time("as_of", snap.AsOf).
		Msg("snapshot loaded")

	return snap, nil
}

func (l *Loader) loadReturns() (map[string][]float64, time.Time, error) {
	path := filepath.Join(l.dir, returnsFile)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, fmt.Errorf("%w: no %s in %s", errs.ErrSnapshotMissing, returnsFile, l.dir)
	}

	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read %s: %w", returnsFile, err)
	}

	var doc returnsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse %s: %w", returnsFile, err)
	}

	asOf := l.parseAsOf(doc.AsOf)

	returns := make(map[string][]float64, len(doc.Returns))

	for ticker, series := range doc.Returns {
		ticker = normalizeTicker(ticker)
		if ticker == "" {
			l.logger.Warn().
				Str(logKeyFile, returnsFile).
				Msg("dropping series with empty ticker")

			continue
		}

		returns[ticker] = series
	}

	return returns, asOf, nil
}

// parseAsOf resolves the snapshot instant. An absent or unparseable as_of
// falls back to the current time.
func (l *Loader) parseAsOf(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		l.logger.Warn().
			Err(err).
			Str("as_of", raw).
			Msg("unparseable as_of, using current time")

		return time.Now().UTC()
	}

	return t.UTC()
}

func (l *Loader) loadNews(asOf time.Time) ([]domain.NewsItem, error) {
	path := filepath.Join(l.dir, newsFile)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Debug().
			Str(logKeyFile, newsFile).
			Msg("no news document, proceeding without news")

		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", newsFile, err)
	}

	var doc newsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", newsFile, err)
	}

	items := make([]domain.NewsItem, 0, len(doc.Items))

	for _, rec := range doc.Items {
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			l.logger.Debug().
				Str(logKeyFile, newsFile).
				Msg("dropping news item without title")

			continue
		}

		items = append(items, domain.NewsItem{
			Title:     title,
			Tickers:   normalizeTickers(rec.Tickers),
			Source:    rec.Source,
			Timestamp: l.resolveTimestamp(rec, asOf),
		})
	}

	return items, nil
}

// resolveTimestamp parses the item's timestamp, falling back to age_hours
// relative to as_of, then to the zero time. Zero-time items count as
// arbitrarily old and never contribute to recency windows.
func (l *Loader) resolveTimestamp(rec newsRecord, asOf time.Time) time.Time {
	if rec.Timestamp != "" {
		t, err := dateparse.ParseAny(rec.Timestamp)
		if err == nil {
			return t.UTC()
		}

		l.logger.Debug().
			Err(err).
			Str(logKeyTitle, rec.Title).
			Msg("unparseable news timestamp")
	}

	if rec.AgeHours != nil {
		return asOf.Add(-time.Duration(*rec.AgeHours * float64(time.Hour)))
	}

	return time.Time{}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func normalizeTickers(tickers []string) []string {
	if len(tickers) == 0 {
		return nil
	}

	out := make([]string, 0, len(tickers))

	for _, t := range tickers {
		if n := normalizeTicker(t); n != "" {
			out = append(out, n)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
