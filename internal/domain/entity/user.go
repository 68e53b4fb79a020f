package entity

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// XPPerLevel is the amount of XP between two levels.
const XPPerLevel = 500

// User represents a student account together with its cumulative statistics.
type User struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	FullName      string        `gorm:"size:100;not null;default:''" json:"fullName"`
	Username      string        `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email         string        `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password      string        `gorm:"size:100;not null" json:"-"`
	AvatarID      int           `gorm:"not null;default:0" json:"avatarId"`
	IsAdmin       bool          `gorm:"not null;default:false" json:"isAdmin"`
	XP            int64         `gorm:"not null;default:0;index:idx_users_leaderboard" json:"xp"`
	Level         int           `gorm:"not null;default:1" json:"level"`
	TestsTaken    int           `gorm:"not null;default:0" json:"testsTaken"`
	AverageScore  int           `gorm:"not null;default:0" json:"averageScore"`
	LastTestTaken *time.Time    `json:"lastTestTaken,omitempty"`
	LoginStreak   int           `gorm:"not null;default:0" json:"loginStreak"`
	LastLogin     *time.Time    `json:"lastLogin,omitempty"`
	Badges        BadgeList     `gorm:"type:jsonb;not null" json:"badges"`
	Goal          *ExamGoal     `gorm:"type:jsonb" json:"goal,omitempty"`
	Plan          *LearningPlan `gorm:"type:jsonb" json:"plan,omitempty"`
	PlanProgress  int           `gorm:"not null;default:0" json:"planProgress"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// BeforeSave hashes a plain-text password before it reaches the database.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Msgf("[User.BeforeSave] failed to hash password for email=%s", u.Email)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// LevelForXP derives the level from XP: floor(xp/500)+1.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// RoundDiv returns round(a/b) with halves rounded up, for non-negative a and positive b.
func RoundDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (2*a + b) / (2 * b)
}

// NextAverage folds a new score into a running mean over count previous scores.
func NextAverage(oldAvg, count, score int) int {
	return RoundDiv(oldAvg*count+score, count+1)
}

// ApplyTestOutcome folds a finalized test into the aggregates and returns newly unlocked badges.
func (u *User) ApplyTestOutcome(score, xpGained int, now time.Time) []BadgeID {
	u.XP += int64(xpGained)
	u.Level = LevelForXP(u.XP)
	u.AverageScore = NextAverage(u.AverageScore, u.TestsTaken, score)
	u.TestsTaken++
	taken := now
	u.LastTestTaken = &taken

	var unlocked []BadgeID
	if u.Badges.award(BadgeFirstTest, now) {
		unlocked = append(unlocked, BadgeFirstTest)
	}
	if score == 100 && u.Badges.award(BadgePerfectScore, now) {
		unlocked = append(unlocked, BadgePerfectScore)
	}
	if u.Level >= 5 && u.Badges.award(BadgeLevel5, now) {
		unlocked = append(unlocked, BadgeLevel5)
	}
	return unlocked
}

// RegisterLogin updates the daily login streak. It returns false when the user already
// logged in on the same calendar day, in which case nothing changes.
func (u *User) RegisterLogin(now time.Time) (bool, []BadgeID) {
	if u.LastLogin != nil && sameDay(*u.LastLogin, now) {
		return false, nil
	}

	var unlocked []BadgeID
	if u.Badges.award(BadgeDailyLogin, now) {
		unlocked = append(unlocked, BadgeDailyLogin)
	}
	if u.LastLogin != nil && sameDay(*u.LastLogin, now.AddDate(0, 0, -1)) {
		u.LoginStreak++
	} else {
		u.LoginStreak = 1
	}
	login := now
	u.LastLogin = &login

	if u.LoginStreak >= 3 && u.Badges.award(BadgeStreak3, now) {
		unlocked = append(unlocked, BadgeStreak3)
	}
	if u.LoginStreak >= 7 && u.Badges.award(BadgeStreak7, now) {
		unlocked = append(unlocked, BadgeStreak7)
	}
	return true, unlocked
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
