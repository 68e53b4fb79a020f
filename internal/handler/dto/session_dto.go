package dto

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/yourusername/testprep-api/internal/domain/entity"
)

type StartSessionRequest struct {
	TestType     entity.TestKind `json:"testType" binding:"required"`
	IsDiagnostic bool            `json:"isDiagnostic"`
	IsAdaptive   bool            `json:"isAdaptive"`
	Topic        string          `json:"topic" binding:"max=100"`
}

// SessionQuestionDTO is a question as shown while the test is running: the correct index
// and the explanation stay on the server until the session is finalized.
type SessionQuestionDTO struct {
	ID         string   `json:"id"`
	Text       string   `json:"questionText"`
	Options    []string `json:"options"`
	Topic      string   `json:"topic,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Passage    string   `json:"passage,omitempty"`
}

type SessionResponse struct {
	SessionID      string               `json:"sessionId"`
	TestType       entity.TestKind      `json:"testType"`
	IsDiagnostic   bool                 `json:"isDiagnostic"`
	IsAdaptive     bool                 `json:"isAdaptive"`
	Questions      []SessionQuestionDTO `json:"questions"`
	TotalQuestions int                  `json:"totalQuestions"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func NewSessionResponse(session *entity.TestSession) (*SessionResponse, error) {
	questions := make([]SessionQuestionDTO, 0, len(session.Questions))
	if err := copier.Copy(&questions, []entity.Question(session.Questions)); err != nil {
		return nil, fmt.Errorf("failed to map questions of session %s: %w", session.ID, err)
	}
	return &SessionResponse{
		SessionID:      session.ID,
		TestType:       session.TestKind,
		IsDiagnostic:   session.IsDiagnostic,
		IsAdaptive:     session.IsAdaptive,
		Questions:      questions,
		TotalQuestions: len(questions),
		CreatedAt:      session.CreatedAt,
	}, nil
}

type FinalizeRequest struct {
	Answers []entity.UserAnswer `json:"answers"`
}

type FinalizeResponse struct {
	Result         *entity.TestResult `json:"result"`
	UpdatedUser    *UserResponse      `json:"updatedUser"`
	UnlockedBadges []entity.BadgeID   `json:"unlockedBadges"`
}

// ResultSummaryDTO is a history row without the denormalised questions and analysis.
type ResultSummaryDTO struct {
	ID           uint            `json:"id"`
	SessionID    string          `json:"sessionId"`
	TestKind     entity.TestKind `json:"testType"`
	IsDiagnostic bool            `json:"isDiagnostic"`
	TakenAt      time.Time       `json:"dateTaken"`
	OverallScore int             `json:"overallScore"`
	XPGained     int             `json:"xpGained"`
	GradedBy     string          `json:"gradedBy"`
}

type PaginatedResultsResponse struct {
	Results []ResultSummaryDTO `json:"results"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"perPage"`
}

func NewResultSummaries(results []entity.TestResult) ([]ResultSummaryDTO, error) {
	out := make([]ResultSummaryDTO, 0, len(results))
	if err := copier.Copy(&out, results); err != nil {
		return nil, fmt.Errorf("failed to map results: %w", err)
	}
	return out, nil
}

type GeneratePlanRequest struct {
	TestResultID uint `json:"testResultId" binding:"required"`
}

type UpdatePlanStepRequest struct {
	StepID    string `json:"stepId" binding:"required"`
	Completed bool   `json:"completed"`
}
