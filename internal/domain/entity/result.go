package entity

import (
	"database/sql/driver"
	"time"
)

// Grading sources recorded on a result.
const (
	GradedByAI    = "ai"
	GradedByLocal = "local"
)

// QuestionAnalysis is the per-question breakdown produced by a grader.
type QuestionAnalysis struct {
	QuestionID    string `json:"questionId"`
	QuestionText  string `json:"questionText"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
	Topic         string `json:"topic"`
	QuestionType  string `json:"questionType"`
}

// TopicPerformance counts correct answers per topic.
type TopicPerformance struct {
	Topic   string `json:"topic"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// Accuracy returns correct/total, 0 for an empty topic.
func (t TopicPerformance) Accuracy() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}

type QuestionAnalysisList []QuestionAnalysis

func (l *QuestionAnalysisList) Scan(value interface{}) error {
	*l = QuestionAnalysisList{}
	return scanJSONB(value, l)
}

func (l QuestionAnalysisList) Value() (driver.Value, error) {
	return jsonbValue([]QuestionAnalysis(l), len(l) == 0, "[]")
}

// CorrectCount returns the number of analyses marked correct.
func (l QuestionAnalysisList) CorrectCount() int {
	n := 0
	for _, qa := range l {
		if qa.IsCorrect {
			n++
		}
	}
	return n
}

type TopicPerformanceList []TopicPerformance

func (l *TopicPerformanceList) Scan(value interface{}) error {
	*l = TopicPerformanceList{}
	return scanJSONB(value, l)
}

func (l TopicPerformanceList) Value() (driver.Value, error) {
	return jsonbValue([]TopicPerformance(l), len(l) == 0, "[]")
}

// TestResult is the permanent, append-only record of a finalized session.
type TestResult struct {
	ID               uint                 `gorm:"primaryKey" json:"id"`
	SessionID        string               `gorm:"type:uuid;not null;uniqueIndex" json:"sessionId"`
	UserID           uint                 `gorm:"not null;index" json:"userId"`
	TestKind         TestKind             `gorm:"size:64;not null" json:"testType"`
	IsDiagnostic     bool                 `gorm:"not null;default:false" json:"isDiagnostic"`
	TakenAt          time.Time            `gorm:"not null" json:"dateTaken"`
	OverallScore     int                  `gorm:"not null;default:0" json:"overallScore"`
	Summary          string               `gorm:"type:text;not null;default:''" json:"summary"`
	Answers          UserAnswerList       `gorm:"type:jsonb;not null" json:"answers"`
	Questions        QuestionList         `gorm:"type:jsonb;not null" json:"questions"`
	QuestionAnalysis QuestionAnalysisList `gorm:"type:jsonb;not null" json:"questionAnalysis"`
	TopicPerformance TopicPerformanceList `gorm:"type:jsonb;not null" json:"topicPerformance"`
	XPGained         int                  `gorm:"not null;default:0" json:"xpGained"`
	GradedBy         string               `gorm:"size:16;not null;default:'local'" json:"gradedBy"`
	CreatedAt        time.Time            `json:"createdAt"`
}

func (TestResult) TableName() string {
	return "test_results"
}
