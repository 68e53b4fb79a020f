// Package questiongen produces validated question sets for new test sessions.
package questiongen

import (
	"context"
	"errors"

	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// ErrNoQuestions is returned when a generator ends up with an empty batch.
var ErrNoQuestions = errors.New("no questions could be generated")

type Request struct {
	Kind  entity.TestKind
	Count int
	// Topic narrows a concept check to one topic.
	Topic string
	// Difficulty is the target level for adaptive sessions; empty means a balanced ramp.
	Difficulty  string
	AvoidTopics []string
}

type Generator interface {
	Generate(ctx context.Context, req Request) ([]entity.Question, error)
}
