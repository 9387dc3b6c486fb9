package store

import (
	"fmt"
	"time"

	"github.com/quantfold/themegraph/internal/core/domain"
	errs "github.com/quantfold/themegraph/internal/core/errors"
	"github.com/quantfold/themegraph/internal/learner"
)

// journalSchemaVersion identifies the layout of the journal documents.
const journalSchemaVersion = 1

type hypothesesDocument struct {
	SchemaVersion int                      `json:"schema_version"`
	UpdatedAt     time.Time                `json:"updated_at"`
	Hypotheses    []domain.ThemeHypothesis `json:"hypotheses"`
}

type learningLogDocument struct {
	SchemaVersion int                    `json:"schema_version"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Cycles        []learner.CycleSummary `json:"cycles"`
}

// AppendHypotheses adds newly generated hypotheses to hypotheses.json.
// The journal keeps the most recent MaxHypotheses entries; older ones are
// evicted. Appending nothing is a no-op.
func (s *Store) AppendHypotheses(hypotheses []domain.ThemeHypothesis) error {
	if len(hypotheses) == 0 {
		return nil
	}

	var doc hypothesesDocument

	s.readDocument(hypothesesFile, &doc)

	doc.SchemaVersion = journalSchemaVersion
	doc.UpdatedAt = time.Now().UTC()
	doc.Hypotheses = append(doc.Hypotheses, hypotheses...)

	if n := len(doc.Hypotheses); n > s.cfg.MaxHypotheses {
		doc.Hypotheses = doc.Hypotheses[n-s.cfg.MaxHypotheses:]
	}

	if err := s.writeDocument(hypothesesFile, &doc); err != nil {
		return err
	}

	s.logger.Debug().
		Int(logKeyCount, len(doc.Hypotheses)).
		Msg("hypotheses journal updated")

	return nil
}

// LoadHypotheses returns the persisted pending hypotheses, oldest first.
func (s *Store) LoadHypotheses() []domain.ThemeHypothesis {
	var doc hypothesesDocument

	s.readDocument(hypothesesFile, &doc)

	return doc.Hypotheses
}

// AppendCycleSummary records a completed learning cycle in learning_log.json.
// The journal keeps the most recent MaxLogEntries cycles; older ones are
// evicted.
func (s *Store) AppendCycleSummary(summary *learner.CycleSummary) error {
	if summary == nil {
		return fmt.Errorf("%w: nil cycle summary", errs.ErrInvalidInput)
	}

	var doc learningLogDocument

	s.readDocument(learningLogFile, &doc)

	doc.SchemaVersion = journalSchemaVersion
	doc.UpdatedAt = time.Now().UTC()
	doc.Cycles = append(doc.Cycles, *summary)

	if n := len(doc.Cycles); n > s.cfg.MaxLogEntries {
		doc.Cycles = doc.Cycles[n-s.cfg.MaxLogEntries:]
	}

	if err := s.writeDocument(learningLogFile, &doc); err != nil {
		return err
	}

	s.logger.Debug().
		Int(logKeyCount, len(doc.Cycles)).
		Msg("learning log updated")

	return nil
}

// LoadLearningLog returns the persisted cycle summaries, oldest first.
func (s *Store) LoadLearningLog() []learner.CycleSummary {
	var doc learningLogDocument

	s.readDocument(learningLogFile, &doc)

	return doc.Cycles
}
