package entity

import (
	"database/sql/driver"
	"time"
)

// ExamGoal is what the student is preparing for.
type ExamGoal struct {
	Exam        Exam   `json:"exam"`
	TargetScore int    `json:"targetScore"`
	ExamDate    string `json:"examDate"` // YYYY-MM-DD
}

func (g *ExamGoal) Scan(value interface{}) error {
	return scanJSONB(value, g)
}

func (g ExamGoal) Value() (driver.Value, error) {
	return jsonbValue(g, false, "")
}

// Plan step kinds.
const (
	PlanStepConcept = "concept"
	PlanStepReview  = "review"
	PlanStepTest    = "test"
)

type PlanStep struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Type            string   `json:"type"`
	RelatedTestKind TestKind `json:"relatedTestType,omitempty"`
	Topic           string   `json:"topic,omitempty"`
	Completed       bool     `json:"completed"`
	EstimatedTime   string   `json:"estimatedTime,omitempty"`
}

type PlanWeek struct {
	Week      int        `json:"week"`
	StartDate time.Time  `json:"startDate"`
	EndDate   time.Time  `json:"endDate"`
	Summary   string     `json:"summary"`
	Steps     []PlanStep `json:"steps"`
}

// LearningPlan is a week-by-week study plan stored on the user.
type LearningPlan struct {
	ID          string     `json:"id"`
	GeneratedOn time.Time  `json:"generatedOn"`
	Goal        ExamGoal   `json:"goal"`
	Weeks       []PlanWeek `json:"weeks"`
}

func (p *LearningPlan) Scan(value interface{}) error {
	return scanJSONB(value, p)
}

func (p LearningPlan) Value() (driver.Value, error) {
	return jsonbValue(p, false, "")
}

// Progress returns the percentage of completed steps, rounded.
func (p *LearningPlan) Progress() int {
	total, done := 0, 0
	for _, w := range p.Weeks {
		for _, s := range w.Steps {
			total++
			if s.Completed {
				done++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return RoundDiv(done*100, total)
}

// SetStepCompleted flips a step by id. Returns false if the step does not exist.
func (p *LearningPlan) SetStepCompleted(stepID string, completed bool) bool {
	for wi := range p.Weeks {
		for si := range p.Weeks[wi].Steps {
			if p.Weeks[wi].Steps[si].ID == stepID {
				p.Weeks[wi].Steps[si].Completed = completed
				return true
			}
		}
	}
	return false
}
