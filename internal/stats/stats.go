// Package stats derives per-mode player statistics from attempt history.
package stats

import (
	"sort"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
)

// Summary is everything derived from a user's attempts in one mode.
type Summary struct {
	GamesPlayed       int
	GamesWon          int
	CurrentStreak     int
	MaxStreak         int
	GuessDistribution [models.DistributionBuckets]int
}

// Compute derives a Summary from attempts, in any order.
//
// Played games are those with a result. Streak days are those with a
// result or an explicit streak-day status, which covers days saved
// without being played.
func Compute(attempts []models.Attempt) Summary {
	var s Summary

	for _, a := range attempts {
		if a.Result == nil {
			continue
		}

		s.GamesPlayed++

		if *a.Result != models.ResultWon {
			continue
		}

		s.GamesWon++

		if a.NumGuesses >= 1 && a.NumGuesses <= models.DistributionBuckets {
			s.GuessDistribution[a.NumGuesses-1]++
		}
	}

	days := streakDays(attempts)
	s.CurrentStreak = CurrentStreak(days)
	s.MaxStreak = MaxStreak(days)

	return s
}

// Day is one calendar date in the streak set. Status is nil when the day
// has an entry but no streak-day status.
type Day struct {
	Date   models.Date
	Status *int
}

func (d Day) counts() bool {
	return d.Status != nil && *d.Status > 0
}

// streakDays keeps attempts with a result or streak status and collapses
// them to one entry per date, sorted ascending. When a date has several
// entries the one carrying a positive status wins.
func streakDays(attempts []models.Attempt) []Day {
	byDate := make(map[string]Day)

	for _, a := range attempts {
		if a.Result == nil && a.StreakDayStatus == nil {
			continue
		}

		key := a.PuzzleDate.String()
		day := Day{Date: a.PuzzleDate, Status: a.StreakDayStatus}

		if existing, ok := byDate[key]; ok && (existing.counts() || !day.counts()) {
			continue
		}

		byDate[key] = day
	}

	days := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, d)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date.Time)
	})

	return days
}

// CurrentStreak walks backward one calendar day at a time from the most
// recent day in days (sorted ascending), adding each day's status. It
// stops at the first date with no entry, no status or a zero status.
func CurrentStreak(days []Day) int {
	if len(days) == 0 {
		return 0
	}

	streak := 0
	expected := days[len(days)-1].Date

	for i := len(days) - 1; i >= 0; i-- {
		d := days[i]
		if d.Date.String() != expected.String() || !d.counts() {
			break
		}

		streak += *d.Status
		expected = expected.AddDays(-1)
	}

	return streak
}

// MaxStreak scans days (sorted ascending) and returns the longest run of
// consecutive counting days. A gap of more than one calendar day, or a day
// without a positive status, resets the run.
func MaxStreak(days []Day) int {
	best, run := 0, 0

	for i, d := range days {
		if i > 0 && days[i-1].Date.DaysUntil(d.Date) > 1 {
			run = 0
		}

		if !d.counts() {
			run = 0
			continue
		}

		run += *d.Status
		best = max(best, run)
	}

	return best
}
