package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/quantfold/themegraph/internal/core/errors"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadReturnsAndNews(t *testing.T) {
	dir := t.TempDir()

	writeDoc(t, dir, "returns.json", `{
		"as_of": "2026-03-01T06:00:00Z",
		"returns": {
			"NVDA": [0.01, -0.02, 0.03],
			"tsm":  [0.005, 0.007]
		}
	}`)
	writeDoc(t, dir, "news.json", `{
		"items": [
			{"title": "chip demand surges", "tickers": ["nvda"], "source": "wire", "timestamp": "2026-03-01T04:00:00Z"},
			{"title": "fab expansion announced", "tickers": ["TSM"], "age_hours": 2.5},
			{"title": "analyst note", "timestamp": "not a date", "age_hours": 4}
		]
	}`)

	snap, err := New(dir, nil).Load()
	require.NoError(t, err)

	asOf := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	assert.True(t, snap.AsOf.Equal(asOf))

	require.Len(t, snap.Returns, 2)
	assert.Equal(t, []float64{0.01, -0.02, 0.03}, snap.Returns["NVDA"])
	assert.Equal(t, []float64{0.005, 0.007}, snap.Returns["TSM"])

	require.Len(t, snap.News, 3)

	assert.Equal(t, "chip demand surges", snap.News[0].Title)
	assert.Equal(t, []string{"NVDA"}, snap.News[0].Tickers)
	assert.Equal(t, "wire", snap.News[0].Source)
	assert.True(t, snap.News[0].Timestamp.Equal(asOf.Add(-2*time.Hour)))

	assert.True(t, snap.News[1].Timestamp.Equal(asOf.Add(-150*time.Minute)))
	assert.True(t, snap.News[2].Timestamp.Equal(asOf.Add(-4*time.Hour)))
}

func TestLoadMissingReturns(t *testing.T) {
	_, err := New(t.TempDir(), nil).Load()
	assert.ErrorIs(t, err, errs.ErrSnapshotMissing)
}

func TestLoadMalformedReturns(t *testing.T) {
	dir := t.TempDir()

	writeDoc(t, dir, "returns.json", "{broken")

	_, err := New(dir, nil).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrSnapshotMissing)
}

func TestLoadWithoutNewsFile(t *testing.T) {
	dir := t.TempDir()

	writeDoc(t, dir, "returns.json", `{"returns": {"NVDA": [0.01]}}`)

	snap, err := New(dir, nil).Load()
	require.NoError(t, err)

	assert.Empty(t, snap.News)
	assert.Len(t, snap.Returns, 1)
}

func TestLoadMalformedNews(t *testing.T) {
	dir := t.TempDir()

	writeDoc(t, dir, "returns.json", `{"returns": {}}`)
	writeDoc(t, dir, "news.json", "[not a document")

	_, err := New(dir, nil).Load()
	assert.Error(t, err)
}

func TestLoadAsOfFallsBackToNow(t *testing.T) {
	dir := t.TempDir()

	writeDoc(t, dir, "returns.json", `{"returns": {"NVDA": [0.01]}}`)

	snap, err := New(dir, nil).Load()
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().UTC(), snap.AsOf, 5*time.Second)
}

func TestLoadDropsUnusableEntries(t *testing.T) {
	dir := t.TempDir()

	writeDoc(t, dir, "returns.json", `{
		"as_of": "2026-03-01T06:00:00Z",
		"returns": {"NVDA": [0.01], "  ": [0.02]}
	}`)
	writeDoc(t, dir, "news.json", `{
		"items": [
			{"title": "   ", "timestamp": "2026-03-01T05:00:00Z"},
			{"title": "kept", "tickers": ["", "  amd "]}
		]
	}`)

	snap, err := New(dir, nil).Load()
	require.NoError(t, err)

	require.Len(t, snap.Returns, 1)
	assert.Contains(t, snap.Returns, "NVDA")

	require.Len(t, snap.News, 1)
	assert.Equal(t, "kept", snap.News[0].Title)
	assert.Equal(t, []string{"AMD"}, snap.News[0].Tickers)

	// No timestamp and no age leaves the item arbitrarily old.
	assert.True(t, snap.News[0].Timestamp.IsZero())
}

func TestLoadFlexibleTimestampFormats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", "2026-03-01T06:00:00Z", time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)},
		{"datetime", "2026-03-01 06:00:00", time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)},
		{"long form", "March 1, 2026", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			writeDoc(t, dir, "returns.json", `{"returns": {}}`)
			writeDoc(t, dir, "news.json", `{"items": [{"title": "x", "timestamp": "`+tt.raw+`"}]}`)

			snap, err := New(dir, nil).Load()
			require.NoError(t, err)
			require.Len(t, snap.News, 1)
			assert.True(t, snap.News[0].Timestamp.Equal(tt.want), "got %s", snap.News[0].Timestamp)
		})
	}
}
