package questiongen

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/pkg/ai"
)

const generationInstruction = `You are an expert exam creator for high school standardized tests (SAT, ACT, AP). ` +
	`Your response MUST be ONLY a valid JSON array of question objects with the fields ` +
	`"_id" (string), "questionText" (string), "options" (array of strings), "correctAnswerIndex" (integer), ` +
	`"explanation" (string), "topic" (string), "difficulty" ("easy", "medium" or "hard") and optionally "passage" (string). ` +
	`ABSOLUTELY NO other text or markdown. Each question must have a unique "_id". ` +
	`Each 'questionText' MUST be concise, under 25 words.`

// GeminiGenerator asks the AI model for questions and passes the reply through DecodeQuestions.
type GeminiGenerator struct {
	model ai.TextModel
}

func NewGeminiGenerator(model ai.TextModel) *GeminiGenerator {
	return &GeminiGenerator{model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) ([]entity.Question, error) {
	raw, err := g.model.Generate(ctx, generationInstruction, buildPrompt(req))
	if err != nil {
		return nil, err
	}
	questions, err := DecodeQuestions(raw)
	if err != nil {
		return nil, err
	}
	if len(questions) > req.Count && req.Count > 0 {
		questions = questions[:req.Count]
	}
	return questions, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %d high-quality, authentic-style question(s) for a %q exam.", req.Count, req.Kind)

	lower := strings.ToLower(string(req.Kind))
	if req.Kind.IsDiagnostic() {
		sb.WriteString(" This is a diagnostic test, so questions must cover a broad range of fundamental topics and difficulties to accurately assess baseline knowledge.")
	}
	if strings.Contains(lower, "science") {
		sb.WriteString(" Use short passages, charts, or experiment descriptions and focus on data interpretation, experimental design, and scientific reasoning.")
	}
	if req.Topic != "" {
		fmt.Fprintf(&sb, " This is a concept check quiz focusing specifically on the topic of: %q.", req.Topic)
	}
	if req.Difficulty != "" {
		fmt.Fprintf(&sb, " The question difficulty should be '%s'.", req.Difficulty)
	}
	if len(req.AvoidTopics) > 0 {
		fmt.Fprintf(&sb, " Do not generate questions on these topics: %s.", strings.Join(req.AvoidTopics, ", "))
	}
	return sb.String()
}
