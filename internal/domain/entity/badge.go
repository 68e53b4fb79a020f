package entity

import (
	"database/sql/driver"
	"time"
)

// BadgeID identifies an achievement.
type BadgeID string

const (
	BadgeFirstTest    BadgeID = "first_test"
	BadgeDailyLogin   BadgeID = "daily_login"
	BadgeStreak3      BadgeID = "streak_3"
	BadgeStreak7      BadgeID = "streak_7"
	BadgePerfectScore BadgeID = "perfect_score"
	BadgeLevel5       BadgeID = "level_5"
)

// Badge is an unlocked achievement as stored on the user.
type Badge struct {
	ID          BadgeID   `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	UnlockedOn  time.Time `json:"unlockedOn"`
}

var badgeCatalog = map[BadgeID]Badge{
	BadgeFirstTest:    {ID: BadgeFirstTest, Name: "First Step", Description: "You completed your first test!", Icon: "🎉"},
	BadgeDailyLogin:   {ID: BadgeDailyLogin, Name: "Daily Dedication", Description: "Logged in for the first time today.", Icon: "☀️"},
	BadgeStreak3:      {ID: BadgeStreak3, Name: "On a Roll", Description: "Logged in 3 days in a row.", Icon: "🔥"},
	BadgeStreak7:      {ID: BadgeStreak7, Name: "Week Warrior", Description: "Logged in 7 days in a row.", Icon: "🏆"},
	BadgePerfectScore: {ID: BadgePerfectScore, Name: "Perfectionist", Description: "Achieved a perfect score on a test.", Icon: "🎯"},
	BadgeLevel5:       {ID: BadgeLevel5, Name: "Level 5 Reached", Description: "You reached level 5!", Icon: "🚀"},
}

// BadgeList is the jsonb list of unlocked badges.
type BadgeList []Badge

func (l *BadgeList) Scan(value interface{}) error {
	*l = BadgeList{}
	return scanJSONB(value, l)
}

func (l BadgeList) Value() (driver.Value, error) {
	return jsonbValue([]Badge(l), len(l) == 0, "[]")
}

func (l BadgeList) Has(id BadgeID) bool {
	for _, b := range l {
		if b.ID == id {
			return true
		}
	}
	return false
}

// award appends the badge unless it is already unlocked or unknown.
func (l *BadgeList) award(id BadgeID, now time.Time) bool {
	if l.Has(id) {
		return false
	}
	def, ok := badgeCatalog[id]
	if !ok {
		return false
	}
	def.UnlockedOn = now
	*l = append(*l, def)
	return true
}
