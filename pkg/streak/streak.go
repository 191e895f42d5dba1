// Package streak implements the daily analysis streak rules. It has no storage
// dependencies; callers pass in the last known snapshot and the current date.
package streak

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

type Status string

const (
	StatusNew         Status = "new"
	StatusActiveToday Status = "active_today"
	StatusReady       Status = "ready"
	StatusBroken      Status = "broken"
)

type Snapshot struct {
	CurrentStreak     int     `json:"current_streak"`
	LongestStreak     int     `json:"longest_streak"`
	LastAnalysisDate  *string `json:"last_analysis_date"`
	StreakFreezeCount int     `json:"streak_freeze_count"`
}

type View struct {
	Snapshot
	DaysSinceLast int    `json:"days_since_last"`
	Status        Status `json:"streak_status"`
}

type Result struct {
	CurrentStreak     int     `json:"current_streak"`
	LongestStreak     int     `json:"longest_streak"`
	IsNewRecord       bool    `json:"is_new_record"`
	MilestoneAchieved *string `json:"milestone_achieved"`
}

// Today returns the calendar date of t in UTC.
func Today(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse streak date %q: %w", s, err)
	}
	return d, nil
}

// DaysBetween counts calendar days from a to b.
func DaysBetween(a, b string) (int, error) {
	from, err := parseDate(a)
	if err != nil {
		return 0, err
	}
	to, err := parseDate(b)
	if err != nil {
		return 0, err
	}
	return int(to.Sub(from).Hours() / 24), nil
}

// Advance records an analysis on today and returns the new snapshot.
func Advance(prev Snapshot, today string) (Snapshot, Result, error) {
	next := prev
	newStreak := 1

	if prev.LastAnalysisDate != nil {
		diff, err := DaysBetween(*prev.LastAnalysisDate, today)
		if err != nil {
			return prev, Result{}, err
		}
		switch {
		case diff == 0:
			newStreak = prev.CurrentStreak
		case diff == 1:
			newStreak = prev.CurrentStreak + 1
		case diff < 0:
			// Stored date is ahead of today; count it as the same day.
			newStreak = prev.CurrentStreak
			today = *prev.LastAnalysisDate
		}
	}

	longest := prev.LongestStreak
	if newStreak > longest {
		longest = newStreak
	}

	next.CurrentStreak = newStreak
	next.LongestStreak = longest
	next.LastAnalysisDate = &today

	res := Result{
		CurrentStreak: newStreak,
		LongestStreak: longest,
		IsNewRecord:   longest > prev.LongestStreak,
	}
	if m, ok := MilestoneAt(newStreak); ok {
		res.MilestoneAchieved = &m.Title
	}
	return next, res, nil
}

// Describe derives days since last analysis and the streak status for today.
func Describe(s Snapshot, today string) View {
	v := View{Snapshot: s, Status: StatusNew}
	if s.LastAnalysisDate == nil {
		return v
	}

	diff, err := DaysBetween(*s.LastAnalysisDate, today)
	if err != nil || diff < 0 {
		diff = 0
	}
	v.DaysSinceLast = diff

	switch diff {
	case 0:
		v.Status = StatusActiveToday
	case 1:
		v.Status = StatusReady
	default:
		v.Status = StatusBroken
	}
	return v
}

// Reset clears the running streak but keeps the longest record.
func Reset(s Snapshot) Snapshot {
	s.CurrentStreak = 0
	s.LastAnalysisDate = nil
	return s
}

func Motivation(v View) string {
	switch {
	case v.Status == StatusBroken || v.CurrentStreak == 0:
		return "Start your streak!"
	case v.Status == StatusActiveToday:
		return "Great job today!"
	case v.Status == StatusReady:
		return "Keep it going!"
	case v.CurrentStreak >= 100:
		return "Legendary streak!"
	case v.CurrentStreak >= 30:
		return "Amazing dedication!"
	case v.CurrentStreak >= 7:
		return "Keep it up!"
	default:
		return "Building momentum!"
	}
}
