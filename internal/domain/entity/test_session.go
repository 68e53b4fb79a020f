package entity

import (
	"database/sql/driver"
	"time"
)

// UserAnswer is a submitted (questionId, answerIndex) pair. The index is not validated:
// unanswered or out-of-range answers grade as incorrect.
type UserAnswer struct {
	QuestionID  string `json:"questionId"`
	AnswerIndex int    `json:"answerIndex"`
}

// AnswerMap maps question id to the selected option index.
type AnswerMap map[string]int

func (m *AnswerMap) Scan(value interface{}) error {
	*m = AnswerMap{}
	return scanJSONB(value, m)
}

func (m AnswerMap) Value() (driver.Value, error) {
	return jsonbValue(map[string]int(m), len(m) == 0, "{}")
}

// Lookup returns the recorded answer for questionID.
func (m AnswerMap) Lookup(questionID string) (int, bool) {
	idx, ok := m[questionID]
	return idx, ok
}

// BuildAnswerMap keeps only answers for questions in the set; a later answer for the same
// question replaces an earlier one.
func BuildAnswerMap(questions QuestionList, answers []UserAnswer) AnswerMap {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	m := make(AnswerMap, len(answers))
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; ok {
			m[a.QuestionID] = a.AnswerIndex
		}
	}
	return m
}

// Answers returns the map as an ordered list following the question order.
func (m AnswerMap) Answers(questions QuestionList) UserAnswerList {
	list := make(UserAnswerList, 0, len(m))
	for _, q := range questions {
		if idx, ok := m[q.ID]; ok {
			list = append(list, UserAnswer{QuestionID: q.ID, AnswerIndex: idx})
		}
	}
	return list
}

// UserAnswerList is the jsonb form kept on results.
type UserAnswerList []UserAnswer

func (l *UserAnswerList) Scan(value interface{}) error {
	*l = UserAnswerList{}
	return scanJSONB(value, l)
}

func (l UserAnswerList) Value() (driver.Value, error) {
	return jsonbValue([]UserAnswer(l), len(l) == 0, "[]")
}

// TestSession is an in-progress test attempt. It is deleted in the same transaction
// that persists its TestResult.
type TestSession struct {
	ID           string       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID      uint         `gorm:"not null;index" json:"ownerId"`
	TestKind     TestKind     `gorm:"size:64;not null" json:"testType"`
	Questions    QuestionList `gorm:"type:jsonb;not null" json:"questions"`
	Answers      AnswerMap    `gorm:"type:jsonb;not null" json:"answers"`
	IsDiagnostic bool         `gorm:"not null;default:false" json:"isDiagnostic"`
	IsAdaptive   bool         `gorm:"not null;default:false" json:"isAdaptive"`
	Completed    bool         `gorm:"not null;default:false" json:"completed"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// IsOwnedBy reports whether userID owns the session.
func (s *TestSession) IsOwnedBy(userID uint) bool {
	return s.OwnerID == userID
}
