package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"github.com/yourusername/testprep-api/internal/service/grader"
	"github.com/yourusername/testprep-api/internal/service/questiongen"
	"gorm.io/gorm"
)

// SessionService owns the test session lifecycle: start, resume and finalize.
type SessionService struct {
	sessionRepo repository.SessionRepository
	resultRepo  repository.ResultRepository
	userRepo    repository.UserRepository
	// cacheRepo holds finalize locks and the leaderboard cache; nil disables both.
	cacheRepo  repository.CacheRepository
	transactor repository.Transactor
	generator  questiongen.Generator
	grader     grader.Grader
	difficulty *questiongen.DifficultyPolicy
	scoring    ScoringPolicy
	policy     SessionPolicy
	now        func() time.Time
}

type SessionServiceDeps struct {
	SessionRepo repository.SessionRepository
	ResultRepo  repository.ResultRepository
	UserRepo    repository.UserRepository
	CacheRepo   repository.CacheRepository
	Transactor  repository.Transactor
	Generator   questiongen.Generator
	Grader      grader.Grader
	Difficulty  *questiongen.DifficultyPolicy
	Scoring     ScoringPolicy
	Policy      SessionPolicy
}

func NewSessionService(deps SessionServiceDeps) (*SessionService, error) {
	if deps.SessionRepo == nil || deps.ResultRepo == nil || deps.UserRepo == nil {
		return nil, fmt.Errorf("session, result and user repositories are required for SessionService")
	}
	if deps.Transactor == nil {
		return nil, fmt.Errorf("Transactor is required for SessionService")
	}
	if deps.Generator == nil || deps.Grader == nil {
		return nil, fmt.Errorf("question generator and grader are required for SessionService")
	}
	if deps.Difficulty == nil {
		deps.Difficulty = questiongen.DefaultDifficultyPolicy()
	}
	if deps.Scoring == (ScoringPolicy{}) {
		deps.Scoring = DefaultScoringPolicy()
	}
	if deps.Policy.DiagnosticQuestions <= 0 || deps.Policy.DefaultQuestions <= 0 {
		defaults := DefaultSessionPolicy()
		deps.Policy.DiagnosticQuestions = defaults.DiagnosticQuestions
		deps.Policy.DefaultQuestions = defaults.DefaultQuestions
	}
	if deps.Policy.FinalizeLockTTL <= 0 {
		deps.Policy.FinalizeLockTTL = DefaultSessionPolicy().FinalizeLockTTL
	}
	if deps.Policy.MasteredMinQuestions <= 0 {
		deps.Policy.MasteredMinQuestions = DefaultSessionPolicy().MasteredMinQuestions
	}

	return &SessionService{
		sessionRepo: deps.SessionRepo,
		resultRepo:  deps.ResultRepo,
		userRepo:    deps.UserRepo,
		cacheRepo:   deps.CacheRepo,
		transactor:  deps.Transactor,
		generator:   deps.Generator,
		grader:      deps.Grader,
		difficulty:  deps.Difficulty,
		scoring:     deps.Scoring,
		policy:      deps.Policy,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

type StartSessionInput struct {
	TestKind     entity.TestKind
	IsDiagnostic bool
	IsAdaptive   bool
	Topic        string
}

// StartSession generates a question set and persists a new open session for ownerID.
func (s *SessionService) StartSession(ctx context.Context, ownerID uint, input StartSessionInput) (*entity.TestSession, error) {
	if !input.TestKind.IsValid() {
		return nil, fmt.Errorf("%w: unknown test type %q", apperrors.ErrValidation, input.TestKind)
	}
	isDiagnostic := input.IsDiagnostic || input.TestKind.IsDiagnostic()

	req := questiongen.Request{
		Kind:  input.TestKind,
		Count: s.policy.QuestionCount(isDiagnostic),
		Topic: input.Topic,
	}
	if input.IsAdaptive {
		user, err := s.userRepo.GetByID(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		req.Difficulty = s.difficulty.TargetDifficulty(user.AverageScore, user.TestsTaken)
		if req.Topic == "" {
			req.AvoidTopics = s.masteredTopics(ctx, ownerID)
		}
		log.Info().Msgf("[SessionService] adaptive session for user #%d: average=%d, tests=%d, target=%s, avoid=%v",
			ownerID, user.AverageScore, user.TestsTaken, req.Difficulty, req.AvoidTopics)
	}

	generated, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions for %q: %w", input.TestKind, err)
	}
	questions, err := questiongen.Sanitize(generated)
	if err != nil {
		return nil, err
	}

	session := &entity.TestSession{
		OwnerID:      ownerID,
		TestKind:     input.TestKind,
		Questions:    entity.QuestionList(questions),
		Answers:      entity.AnswerMap{},
		IsDiagnostic: isDiagnostic,
		IsAdaptive:   input.IsAdaptive,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	log.Info().Msgf("[SessionService] session %s started by user #%d: %q, %d questions",
		session.ID, ownerID, session.TestKind, len(session.Questions))
	return session, nil
}

// masteredTopics lists the topics answered perfectly, with at least
// MasteredMinQuestions questions, in the user's latest result. A lookup failure only disables the filter.
func (s *SessionService) masteredTopics(ctx context.Context, ownerID uint) []string {
	latest, _, err := s.resultRepo.ListByUser(ctx, ownerID, 1, 0)
	if err != nil {
		log.Warn().Err(err).Msgf("[SessionService] could not load latest result of user #%d", ownerID)
		return nil
	}
	if len(latest) == 0 {
		return nil
	}
	var topics []string
	for _, tp := range latest[0].TopicPerformance {
		if tp.Topic != "" && tp.Total >= s.policy.MasteredMinQuestions && tp.Correct == tp.Total {
			topics = append(topics, tp.Topic)
		}
	}
	return topics
}

// GetSession returns an open session owned by ownerID. Someone else's session is reported
// as not found.
func (s *SessionService) GetSession(ctx context.Context, sessionID string, ownerID uint) (*entity.TestSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOwnedBy(ownerID) {
		return nil, apperrors.ErrNotFound
	}
	return session, nil
}

// FinalizeOutcome is what a successful finalize returns to the caller.
type FinalizeOutcome struct {
	Result         *entity.TestResult
	User           *entity.User
	UnlockedBadges []entity.BadgeID
}

// Finalize closes a session exactly once: it grades the answers, persists the result,
// folds the score into the user's statistics and deletes the session.
//
// Grading happens before any write. The session is marked completed by a conditional
// update inside the same transaction that inserts the result, updates the user under a
// row lock and deletes the session, so a duplicate request either fails the conditional
// update or finds the session gone and the result present.
func (s *SessionService) Finalize(ctx context.Context, sessionID string, ownerID uint, answers []entity.UserAnswer) (*FinalizeOutcome, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, s.missingSessionError(ctx, sessionID, ownerID)
		}
		return nil, err
	}
	if !session.IsOwnedBy(ownerID) {
		return nil, apperrors.ErrNotFound
	}
	if session.Completed {
		return nil, apperrors.ErrAlreadyCompleted
	}
	if _, err := s.userRepo.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}

	release, err := s.acquireFinalizeLock(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	answerMap := entity.BuildAnswerMap(session.Questions, answers)
	report, err := s.grader.Grade(ctx, grader.GradeRequest{
		TestKind:  session.TestKind,
		Questions: session.Questions,
		Answers:   answerMap,
	})
	if err != nil {
		log.Error().Err(err).Msgf("[SessionService] grading failed for session %s, nothing was written", sessionID)
		if errors.Is(err, grader.ErrGraderFatal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", grader.ErrGraderFatal, err)
	}

	score := ComputeScore(report.CorrectCount(), len(session.Questions))
	xpGained := s.scoring.XPForScore(score)
	now := s.now()

	result := &entity.TestResult{
		SessionID:        session.ID,
		UserID:           ownerID,
		TestKind:         session.TestKind,
		IsDiagnostic:     session.IsDiagnostic,
		TakenAt:          now,
		OverallScore:     score,
		Summary:          report.Summary,
		Answers:          answerMap.Answers(session.Questions),
		Questions:        session.Questions,
		QuestionAnalysis: report.QuestionAnalysis,
		TopicPerformance: report.TopicPerformance,
		XPGained:         xpGained,
		GradedBy:         report.GradedBy,
	}

	var (
		updatedUser *entity.User
		unlocked    []entity.BadgeID
	)
	err = s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.sessionRepo.MarkCompleted(ctx, tx, session.ID, ownerID, answerMap); err != nil {
			return err
		}
		if err := s.resultRepo.Create(ctx, tx, result); err != nil {
			return err
		}

		user, err := s.userRepo.LockByID(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		unlocked = user.ApplyTestOutcome(score, xpGained, now)
		if err := s.userRepo.SaveStats(ctx, tx, user); err != nil {
			return err
		}

		if err := s.sessionRepo.Delete(ctx, tx, session.ID); err != nil {
			return err
		}
		updatedUser = user
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyCompleted) {
			log.Warn().Msgf("[SessionService] duplicate finalize for session %s rejected", sessionID)
			return nil, err
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			// A concurrent finalize committed first and deleted the session.
			return nil, s.missingSessionError(ctx, sessionID, ownerID)
		}
		return nil, fmt.Errorf("failed to finalize session %s: %w", sessionID, err)
	}

	s.invalidateLeaderboard()
	log.Info().Msgf("[SessionService] session %s finalized: user #%d, score=%d, xp=+%d, graded_by=%s, badges=%v",
		sessionID, ownerID, score, xpGained, report.GradedBy, unlocked)

	return &FinalizeOutcome{Result: result, User: updatedUser, UnlockedBadges: unlocked}, nil
}

// missingSessionError distinguishes a session that was already finalized (and deleted)
// from one that never existed or belongs to someone else.
func (s *SessionService) missingSessionError(ctx context.Context, sessionID string, ownerID uint) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return apperrors.ErrNotFound
	}
	result, err := s.resultRepo.GetBySessionID(ctx, sessionID)
	if err == nil && result.UserID == ownerID {
		return apperrors.ErrAlreadyCompleted
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Warn().Err(err).Msgf("[SessionService] result lookup for missing session %s failed", sessionID)
	}
	return apperrors.ErrNotFound
}

// acquireFinalizeLock takes a short-lived Redis lock so an in-flight duplicate does not
// grade a second time. A Redis failure is not fatal: the conditional update in the
// transaction still guarantees a single result.
func (s *SessionService) acquireFinalizeLock(sessionID string) (func(), error) {
	if s.cacheRepo == nil {
		return func() {}, nil
	}
	key := finalizeLockKey(sessionID)
	token := uuid.NewString()

	acquired, err := s.cacheRepo.SetNX(key, token, s.policy.FinalizeLockTTL)
	if err != nil {
		log.Warn().Err(err).Msgf("[SessionService] finalize lock unavailable for session %s, continuing without it", sessionID)
		return func() {}, nil
	}
	if !acquired {
		return nil, apperrors.ErrFinalizeInProgress
	}
	return func() {
		if _, err := s.cacheRepo.DeleteIfEquals(key, token); err != nil {
			log.Warn().Err(err).Msgf("[SessionService] failed to release finalize lock for session %s", sessionID)
		}
	}, nil
}

func (s *SessionService) invalidateLeaderboard() {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(leaderboardCacheKey); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Warn().Err(err).Msg("[SessionService] failed to invalidate leaderboard cache")
	}
}

func finalizeLockKey(sessionID string) string {
	return fmt.Sprintf("session:%s:finalize", sessionID)
}
