package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"sellwatcher/internal/pairing"
	"sellwatcher/internal/schema"
)

// ScoredRow is a paired feature row together with its model confidence.
type ScoredRow struct {
	Row   *pairing.PairedRow
	Score float64
}

// Scorer assembles model feature vectors from paired rows and invokes the
// classifier once per batch.
type Scorer struct {
	model  Model
	logger zerolog.Logger
}

// NewScorer constructs a Scorer around a loaded model.
func NewScorer(model Model, logger zerolog.Logger) *Scorer {
	return &Scorer{
		model:  model,
		logger: logger.With().Str("component", "scoring").Logger(),
	}
}

// Score returns one confidence per input row. An empty batch is a no-op.
// Optional features absent from a row are fed to the model as NaN; the model
// was trained with missing-value handling, so scoring proceeds, but the
// condition is logged for observability. A feature-width mismatch between the
// schema and the loaded model fails the batch without crashing the process.
func (s *Scorer) Score(rows []*pairing.PairedRow) ([]ScoredRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	expected := schema.ModelFeatures()
	if got := s.model.NumFeatures(); got != len(expected) {
		return nil, fmt.Errorf("model expects %d features, schema provides %d", got, len(expected))
	}

	values := make([]float64, 0, len(rows)*len(expected))
	missing := make(map[string]struct{})
	for _, row := range rows {
		for _, name := range expected {
			value, ok := row.Features[name]
			if !ok {
				value = math.NaN()
				missing[name] = struct{}{}
			}
			values = append(values, value)
		}
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		s.logger.Warn().
			Int("rows", len(rows)).
			Str("features", strings.Join(names, ",")).
			Msg("expected features absent from batch; scoring with missing values")
	}

	predictions, err := s.model.PredictDense(values, len(rows))
	if err != nil {
		return nil, fmt.Errorf("score batch of %d rows: %w", len(rows), err)
	}
	if len(predictions) != len(rows) {
		return nil, fmt.Errorf("model returned %d predictions for %d rows", len(predictions), len(rows))
	}

	scored := make([]ScoredRow, len(rows))
	for i, row := range rows {
		scored[i] = ScoredRow{Row: row, Score: predictions[i]}
	}
	return scored, nil
}
