package entity

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// Difficulty levels a question can be tagged with.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

const (
	DefaultExplanation = "No explanation provided."
	DefaultTopic       = "General"
)

var (
	ErrQuestionMissingText = errors.New("question text is empty")
	ErrQuestionFewOptions  = errors.New("question must have at least 2 options")
)

// Question is immutable once it is part of a session. It is stored denormalised inside
// test_sessions and test_results, never in a table of its own.
type Question struct {
	ID                 string   `json:"id"`
	Text               string   `json:"questionText"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation,omitempty"`
	Topic              string   `json:"topic,omitempty"`
	Difficulty         string   `json:"difficulty,omitempty"`
	Passage            string   `json:"passage,omitempty"`
}

// IsCorrect reports whether the selected option is the correct one.
func (q *Question) IsCorrect(selectedOption int) bool {
	return q.IsValidOption(selectedOption) && selectedOption == q.CorrectAnswerIndex
}

func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}

// OptionText returns the option at idx or "" when idx is out of range.
func (q *Question) OptionText(idx int) string {
	if !q.IsValidOption(idx) {
		return ""
	}
	return q.Options[idx]
}

// Validate checks the structural invariants that cannot be repaired.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrQuestionMissingText
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w (got %d)", ErrQuestionFewOptions, len(q.Options))
	}
	return nil
}

// ClampCorrectIndex resets an out-of-range correct index to 0. Returns true if it changed.
func (q *Question) ClampCorrectIndex() bool {
	if q.IsValidOption(q.CorrectAnswerIndex) {
		return false
	}
	q.CorrectAnswerIndex = 0
	return true
}

// ApplyDefaults fills the optional descriptive fields.
func (q *Question) ApplyDefaults() {
	if strings.TrimSpace(q.Explanation) == "" {
		q.Explanation = DefaultExplanation
	}
	if strings.TrimSpace(q.Topic) == "" {
		q.Topic = DefaultTopic
	}
	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, "":
	default:
		q.Difficulty = ""
	}
}

// QuestionList is an ordered question set stored as jsonb.
type QuestionList []Question

func (l *QuestionList) Scan(value interface{}) error {
	*l = QuestionList{}
	return scanJSONB(value, l)
}

func (l QuestionList) Value() (driver.Value, error) {
	return jsonbValue([]Question(l), len(l) == 0, "[]")
}

// Find returns the question with the given id.
func (l QuestionList) Find(id string) (*Question, bool) {
	for i := range l {
		if l[i].ID == id {
			return &l[i], true
		}
	}
	return nil, false
}
