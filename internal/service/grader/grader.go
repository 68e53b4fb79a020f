// Package grader turns a question set plus answers into per-question correctness and
// explanatory analysis.
package grader

import (
	"context"
	"errors"

	"github.com/yourusername/testprep-api/internal/domain/entity"
)

var (
	// ErrGraderTransient marks capacity, quota or rate-limit failures of the AI grader.
	ErrGraderTransient = errors.New("grader temporarily unavailable")
	// ErrGraderFatal marks any other grading failure. Finalize aborts without writes.
	ErrGraderFatal = errors.New("grading failed")
)

type GradeRequest struct {
	TestKind  entity.TestKind
	Questions entity.QuestionList
	Answers   entity.AnswerMap
}

type Report struct {
	Summary          string
	QuestionAnalysis entity.QuestionAnalysisList
	TopicPerformance entity.TopicPerformanceList
	GradedBy         string
}

// CorrectCount is the number of questions graded as correct.
func (r *Report) CorrectCount() int {
	return r.QuestionAnalysis.CorrectCount()
}

type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (*Report, error)
}
