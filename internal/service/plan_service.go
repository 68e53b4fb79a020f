package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

const (
	examDateLayout   = "2006-01-02"
	defaultPlanWeeks = 8
	minPlanWeeks     = 4
	maxPlanWeeks     = 12
	planFocusTopics  = 5
	defaultPlanTopic = "General"
)

// PlanService builds week-by-week study plans from a result and tracks step completion.
type PlanService struct {
	userRepo   repository.UserRepository
	resultRepo repository.ResultRepository
	now        func() time.Time
}

func NewPlanService(userRepo repository.UserRepository, resultRepo repository.ResultRepository) (*PlanService, error) {
	if userRepo == nil || resultRepo == nil {
		return nil, fmt.Errorf("user and result repositories are required for PlanService")
	}
	return &PlanService{
		userRepo:   userRepo,
		resultRepo: resultRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// GeneratePlan replaces the user's plan with one focused on the weakest topics of resultID.
func (s *PlanService) GeneratePlan(ctx context.Context, userID, resultID uint) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if result.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	if user.Goal == nil {
		return nil, fmt.Errorf("%w: user has no goal set, cannot generate a plan", apperrors.ErrValidation)
	}

	plan := BuildPlan(*user.Goal, result, s.now())
	user.Plan = plan
	user.PlanProgress = 0
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save plan for user #%d: %w", userID, err)
	}
	log.Info().Msgf("[PlanService] plan %s generated for user #%d: %d weeks from result #%d",
		plan.ID, userID, len(plan.Weeks), resultID)
	return user, nil
}

// UpdatePlanStep marks a step done or not done and recomputes the plan progress.
func (s *PlanService) UpdatePlanStep(ctx context.Context, userID uint, stepID string, completed bool) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Plan == nil {
		return nil, fmt.Errorf("%w: user has no plan", apperrors.ErrNotFound)
	}
	if !user.Plan.SetStepCompleted(stepID, completed) {
		return nil, fmt.Errorf("%w: plan step %q", apperrors.ErrNotFound, stepID)
	}
	user.PlanProgress = user.Plan.Progress()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update plan for user #%d: %w", userID, err)
	}
	return user, nil
}

// BuildPlan lays out one week per remaining exam week (4 to 12, 8 without a date), rotating
// through the five weakest topics of the result.
func BuildPlan(goal entity.ExamGoal, result *entity.TestResult, now time.Time) *entity.LearningPlan {
	topics := weakestTopics(result.TopicPerformance, planFocusTopics)
	weeks := planWeeks(goal.ExamDate, now)
	miniTest := miniTestKind(goal.Exam, result.TestKind)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	plan := &entity.LearningPlan{
		ID:          uuid.NewString(),
		GeneratedOn: now,
		Goal:        goal,
		Weeks:       make([]entity.PlanWeek, 0, weeks),
	}
	for i := 0; i < weeks; i++ {
		topic := defaultPlanTopic
		if len(topics) > 0 {
			topic = topics[i%len(topics)]
		}
		start := today.AddDate(0, 0, i*7)
		plan.Weeks = append(plan.Weeks, entity.PlanWeek{
			Week:      i + 1,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, 6),
			Summary:   fmt.Sprintf("Focus on %s and timed practice.", topic),
			Steps: []entity.PlanStep{
				{
					ID:            uuid.NewString(),
					Title:         "Learn core concepts",
					Description:   fmt.Sprintf("Study key ideas for %s.", topic),
					Type:          entity.PlanStepConcept,
					Topic:         topic,
					EstimatedTime: "~30 mins",
				},
				{
					ID:            uuid.NewString(),
					Title:         "Practice questions",
					Description:   fmt.Sprintf("Solve focused questions on %s.", topic),
					Type:          entity.PlanStepReview,
					Topic:         topic,
					EstimatedTime: "~25 mins",
				},
				{
					ID:              uuid.NewString(),
					Title:           "Mini test",
					Description:     "Take a short timed quiz.",
					Type:            entity.PlanStepTest,
					RelatedTestKind: miniTest,
					EstimatedTime:   "~20 mins",
				},
			},
		})
	}
	return plan
}

// weakestTopics returns up to limit attempted topics ordered by ascending accuracy.
func weakestTopics(performance entity.TopicPerformanceList, limit int) []string {
	attempted := make([]entity.TopicPerformance, 0, len(performance))
	for _, tp := range performance {
		if tp.Total > 0 {
			attempted = append(attempted, tp)
		}
	}
	sort.SliceStable(attempted, func(i, j int) bool {
		return attempted[i].Accuracy() < attempted[j].Accuracy()
	})
	if len(attempted) > limit {
		attempted = attempted[:limit]
	}
	topics := make([]string, len(attempted))
	for i, tp := range attempted {
		topics[i] = tp.Topic
		if topics[i] == "" {
			topics[i] = defaultPlanTopic
		}
	}
	return topics
}

func planWeeks(examDate string, now time.Time) int {
	if examDate == "" {
		return defaultPlanWeeks
	}
	exam, err := time.Parse(examDateLayout, examDate)
	if err != nil {
		return defaultPlanWeeks
	}
	days := int(math.Round(exam.Sub(now).Hours() / 24))
	if days < 7 {
		days = 7
	}
	weeks := (days + 6) / 7
	if weeks < minPlanWeeks {
		return minPlanWeeks
	}
	if weeks > maxPlanWeeks {
		return maxPlanWeeks
	}
	return weeks
}

func miniTestKind(exam entity.Exam, taken entity.TestKind) entity.TestKind {
	switch exam {
	case entity.ExamSAT:
		return entity.TestKindSATRWMock
	case entity.ExamACT:
		return entity.TestKindACTReadingMock
	case entity.ExamAP:
		return entity.TestKindAPUSHMock
	}
	if taken != "" {
		return taken
	}
	return entity.TestKindSATRWMock
}
