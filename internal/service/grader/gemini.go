package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/pkg/ai"
)

const analysisInstruction = `You are an academic analysis AI. Your function is to analyze student test results. ` +
	`Your entire response must be ONLY a valid JSON object of the form ` +
	`{"summary": string, "questionAnalysis": [{"questionId": string, "explanation": string, "questionType": string}]} ` +
	`with exactly one questionAnalysis entry per question, in the given order. ` +
	`For the 'summary', provide a brief, encouraging, and actionable 1-2 sentence overview. ` +
	`For 'explanation', offer a clear, concise sentence that helps the student learn. ` +
	`For 'questionType', identify a specific skill (e.g., "Main Idea", "Linear Equations").`

type analysisItem struct {
	QuestionID    string `json:"questionId"`
	Question      string `json:"question"`
	CorrectAnswer string `json:"correctAnswer"`
	UserAnswer    string `json:"userAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Topic         string `json:"topic"`
}

type aiQuestionAnalysis struct {
	QuestionID   string `json:"questionId"`
	Explanation  string `json:"explanation"`
	QuestionType string `json:"questionType"`
}

type aiAnalysis struct {
	Summary          string               `json:"summary"`
	QuestionAnalysis []aiQuestionAnalysis `json:"questionAnalysis"`
}

// GeminiGrader asks the AI model for a summary and per-question explanations.
// Correctness is always derived locally from the answer indexes, so the model cannot
// change the score.
type GeminiGrader struct {
	model ai.TextModel
}

func NewGeminiGrader(model ai.TextModel) *GeminiGrader {
	return &GeminiGrader{model: model}
}

func (g *GeminiGrader) Grade(ctx context.Context, req GradeRequest) (*Report, error) {
	base := gradeLocally(req)
	if len(req.Questions) == 0 {
		return base, nil
	}

	payload := make([]analysisItem, 0, len(base.QuestionAnalysis))
	for _, qa := range base.QuestionAnalysis {
		payload = append(payload, analysisItem{
			QuestionID:    qa.QuestionID,
			Question:      qa.QuestionText,
			CorrectAnswer: qa.CorrectAnswer,
			UserAnswer:    qa.UserAnswer,
			IsCorrect:     qa.IsCorrect,
			Topic:         qa.Topic,
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Analyze this JSON data from a student's %q test. Provide a detailed analysis.\n\n%s", req.TestKind, data)

	raw, err := g.model.Generate(ctx, analysisInstruction, prompt)
	if err != nil {
		return nil, err
	}

	var parsed aiAnalysis
	if err := ai.DecodeJSON(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.QuestionAnalysis) != len(base.QuestionAnalysis) {
		return nil, fmt.Errorf("the AI analysed %d questions, expected %d", len(parsed.QuestionAnalysis), len(base.QuestionAnalysis))
	}

	for i, item := range parsed.QuestionAnalysis {
		qa := &base.QuestionAnalysis[i]
		if item.QuestionID != "" && item.QuestionID != qa.QuestionID {
			return nil, fmt.Errorf("the AI analysis is out of order at position %d", i)
		}
		if s := strings.TrimSpace(item.Explanation); s != "" {
			qa.Explanation = s
		}
		if s := strings.TrimSpace(item.QuestionType); s != "" {
			qa.QuestionType = s
		}
	}
	if s := strings.TrimSpace(parsed.Summary); s != "" {
		base.Summary = s
	}
	base.GradedBy = entity.GradedByAI
	return base, nil
}
