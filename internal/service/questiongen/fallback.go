package questiongen

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/pkg/ai"
)

// FallbackGenerator tries Primary and serves from Fallback when the AI side is out of
// capacity. A nil Primary uses Fallback directly.
type FallbackGenerator struct {
	Primary  Generator
	Fallback Generator
}

func NewFallbackGenerator(primary, fallback Generator) *FallbackGenerator {
	return &FallbackGenerator{Primary: primary, Fallback: fallback}
}

func (g *FallbackGenerator) Generate(ctx context.Context, req Request) ([]entity.Question, error) {
	if g.Primary == nil {
		return g.Fallback.Generate(ctx, req)
	}

	questions, err := g.Primary.Generate(ctx, req)
	if err == nil {
		return questions, nil
	}
	if ai.IsTransient(err) || errors.Is(err, ErrNoQuestions) {
		log.Warn().Err(err).Msgf("[QuestionGen] AI generation unavailable for %q, using the question bank", req.Kind)
		return g.Fallback.Generate(ctx, req)
	}
	return nil, err
}
