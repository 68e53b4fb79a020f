package questiongen

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/pkg/ai"
)

// rawQuestion is the wire shape a model must produce.
type rawQuestion struct {
	ID                 string          `json:"_id"`
	QuestionText       *string         `json:"questionText"`
	Options            []string        `json:"options"`
	CorrectAnswerIndex json.RawMessage `json:"correctAnswerIndex"`
	Explanation        string          `json:"explanation"`
	Topic              string          `json:"topic"`
	Difficulty         string          `json:"difficulty"`
	Passage            string          `json:"passage"`
}

// DecodeQuestions parses a model reply into questions. The reply must be a JSON array of
// question objects with no unknown fields. A question with missing text or fewer than two
// options is dropped with a warning. A correctAnswerIndex that is missing, not a number,
// not integral or out of range is set to 0 with a warning. An empty result is ErrNoQuestions.
func DecodeQuestions(raw string) ([]entity.Question, error) {
	var items []rawQuestion
	if err := ai.DecodeJSON(raw, &items); err != nil {
		return nil, err
	}

	questions := make([]entity.Question, 0, len(items))
	for i, item := range items {
		q, err := item.toQuestion(i)
		if err != nil {
			log.Warn().Err(err).Msgf("[QuestionGen] dropping malformed question at index %d", i)
			continue
		}
		questions = append(questions, q)
	}
	return Sanitize(questions)
}

func (r rawQuestion) toQuestion(position int) (entity.Question, error) {
	if r.QuestionText == nil {
		return entity.Question{}, entity.ErrQuestionMissingText
	}
	idx, ok := parseIndex(r.CorrectAnswerIndex)
	if !ok {
		log.Warn().Msgf("[QuestionGen] invalid correctAnswerIndex (%s) for question %d, defaulting to 0",
			bytes.TrimSpace(r.CorrectAnswerIndex), position)
	}
	return entity.Question{
		ID:                 r.ID,
		Text:               *r.QuestionText,
		Options:            r.Options,
		CorrectAnswerIndex: idx,
		Explanation:        r.Explanation,
		Topic:              r.Topic,
		Difficulty:         r.Difficulty,
		Passage:            r.Passage,
	}, nil
}

// parseIndex accepts any JSON number with an integral value, so 1 and 1.0 are both 1.
// Anything else yields 0 and false.
func parseIndex(raw json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' || bytes.Equal(trimmed, []byte("null")) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return 0, false
	}
	if idx, err := n.Int64(); err == nil && idx >= math.MinInt32 && idx <= math.MaxInt32 {
		return int(idx), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Sanitize validates a batch: invalid questions are dropped, out-of-range indexes are
// clamped, defaults and missing ids are filled in, and duplicate ids are replaced.
func Sanitize(questions []entity.Question) ([]entity.Question, error) {
	out := make([]entity.Question, 0, len(questions))
	seen := make(map[string]struct{}, len(questions))
	for i := range questions {
		q := questions[i]
		q.Text = strings.TrimSpace(q.Text)
		if err := q.Validate(); err != nil {
			log.Warn().Err(err).Msgf("[QuestionGen] dropping invalid question at index %d", i)
			continue
		}
		if original := q.CorrectAnswerIndex; q.ClampCorrectIndex() {
			log.Warn().Msgf("[QuestionGen] invalid correctAnswerIndex (%d) for question %d with %d options, defaulting to 0",
				original, i, len(q.Options))
		}
		q.ApplyDefaults()
		if _, dup := seen[q.ID]; q.ID == "" || dup {
			q.ID = uuid.NewString()
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, ErrNoQuestions
	}
	return out, nil
}
