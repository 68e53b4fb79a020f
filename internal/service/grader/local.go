package grader

import (
	"context"
	"fmt"

	"github.com/yourusername/testprep-api/internal/domain/entity"
)

const (
	notAnswered   = "Not answered"
	invalidAnswer = "Invalid answer"
)

// LocalGrader compares answer indexes with the stored correct index. It never fails.
type LocalGrader struct{}

func NewLocalGrader() *LocalGrader {
	return &LocalGrader{}
}

func (g *LocalGrader) Grade(_ context.Context, req GradeRequest) (*Report, error) {
	return gradeLocally(req), nil
}

func gradeLocally(req GradeRequest) *Report {
	analysis := make(entity.QuestionAnalysisList, 0, len(req.Questions))
	topics := newTopicTally()

	for _, q := range req.Questions {
		topic := q.Topic
		if topic == "" {
			topic = entity.DefaultTopic
		}
		explanation := q.Explanation
		if explanation == "" {
			explanation = entity.DefaultExplanation
		}

		userAnswer := notAnswered
		correct := false
		if idx, ok := req.Answers.Lookup(q.ID); ok {
			if q.IsValidOption(idx) {
				userAnswer = q.OptionText(idx)
			} else {
				userAnswer = invalidAnswer
			}
			correct = q.IsCorrect(idx)
		}

		analysis = append(analysis, entity.QuestionAnalysis{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			UserAnswer:    userAnswer,
			CorrectAnswer: q.OptionText(q.CorrectAnswerIndex),
			IsCorrect:     correct,
			Explanation:   explanation,
			Topic:         topic,
			QuestionType:  topic,
		})
		topics.add(topic, correct)
	}

	correct := analysis.CorrectCount()
	return &Report{
		Summary:          localSummary(correct, len(req.Questions)),
		QuestionAnalysis: analysis,
		TopicPerformance: topics.list(),
		GradedBy:         entity.GradedByLocal,
	}
}

func localSummary(correct, total int) string {
	if total == 0 {
		return "This test had no questions to grade."
	}
	return fmt.Sprintf("You answered %d of %d questions correctly. Review the breakdown below to see your strengths and areas for improvement.", correct, total)
}

// topicTally aggregates per-topic counts in first-seen order.
type topicTally struct {
	order []string
	stats map[string]*entity.TopicPerformance
}

func newTopicTally() *topicTally {
	return &topicTally{stats: make(map[string]*entity.TopicPerformance)}
}

func (t *topicTally) add(topic string, correct bool) {
	tp, ok := t.stats[topic]
	if !ok {
		tp = &entity.TopicPerformance{Topic: topic}
		t.stats[topic] = tp
		t.order = append(t.order, topic)
	}
	tp.Total++
	if correct {
		tp.Correct++
	}
}

func (t *topicTally) list() entity.TopicPerformanceList {
	out := make(entity.TopicPerformanceList, 0, len(t.order))
	for _, topic := range t.order {
		out = append(out, *t.stats[topic])
	}
	return out
}
