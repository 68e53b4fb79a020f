package grader

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/pkg/ai"
)

// Classify maps a primary grader failure to ErrGraderTransient or ErrGraderFatal,
// keeping the original error in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrGraderTransient) || errors.Is(err, ErrGraderFatal) {
		return err
	}
	if ai.IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrGraderTransient, err)
	}
	return fmt.Errorf("%w: %w", ErrGraderFatal, err)
}

// FallbackGrader tries Primary and switches to Fallback on transient failures.
// A nil Primary grades with Fallback directly.
type FallbackGrader struct {
	Primary  Grader
	Fallback Grader
}

func NewFallbackGrader(primary, fallback Grader) *FallbackGrader {
	if fallback == nil {
		fallback = NewLocalGrader()
	}
	return &FallbackGrader{Primary: primary, Fallback: fallback}
}

func (g *FallbackGrader) Grade(ctx context.Context, req GradeRequest) (*Report, error) {
	if g.Primary == nil {
		return g.Fallback.Grade(ctx, req)
	}

	report, err := g.Primary.Grade(ctx, req)
	if err == nil {
		return report, nil
	}

	classified := Classify(err)
	if errors.Is(classified, ErrGraderTransient) {
		log.Warn().Err(err).Msgf("[Grader] AI grader unavailable for %q, using local grading", req.TestKind)
		return g.Fallback.Grade(ctx, req)
	}
	log.Error().Err(err).Msgf("[Grader] AI grading failed for %q", req.TestKind)
	return nil, classified
}
