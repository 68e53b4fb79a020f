package service

import (
	"time"

	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// ScoringPolicy holds the XP tiers awarded per test score.
type ScoringPolicy struct {
	HighScore int
	HighXP    int
	MidScore  int
	MidXP     int
	BaseXP    int
}

func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		HighScore: 80,
		HighXP:    100,
		MidScore:  60,
		MidXP:     75,
		BaseXP:    50,
	}
}

// XPForScore returns the XP tier for a 0-100 score.
func (p ScoringPolicy) XPForScore(score int) int {
	switch {
	case score >= p.HighScore:
		return p.HighXP
	case score >= p.MidScore:
		return p.MidXP
	default:
		return p.BaseXP
	}
}

// ComputeScore returns round(correct/total*100), or 0 for an empty test.
func ComputeScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return entity.RoundDiv(correct*100, total)
}

// SessionPolicy sizes sessions and bounds finalize locking.
type SessionPolicy struct {
	DiagnosticQuestions int
	DefaultQuestions    int
	FinalizeLockTTL     time.Duration
	// MasteredMinQuestions is how many questions on a topic must all be right before
	// an adaptive session stops asking about it.
	MasteredMinQuestions int
}

func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		DiagnosticQuestions:  25,
		DefaultQuestions:     10,
		FinalizeLockTTL:      2 * time.Minute,
		MasteredMinQuestions: 2,
	}
}

func (p SessionPolicy) QuestionCount(isDiagnostic bool) int {
	if isDiagnostic {
		return p.DiagnosticQuestions
	}
	return p.DefaultQuestions
}
