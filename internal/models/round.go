package models

import (
	"encoding/json"
	"math"
	"time"

	"gorm.io/datatypes"
)

// Round phases reported to clients.
const (
	RoundPhaseUpcoming = "upcoming"
	RoundPhaseActive   = "active"
	RoundPhaseExpired  = "expired"
	RoundPhaseInactive = "inactive"
)

// Problem difficulty levels accepted on round creation.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// VisibleTestCount is the number of test cases shown to examinees for every problem.
const VisibleTestCount = 2

// TestCase pairs a stdin payload with the stdout a correct program prints.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Problem is embedded in a round and never stored on its own.
type Problem struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Difficulty   string     `json:"difficulty"`
	VisibleTests []TestCase `json:"visible_tests"`
	HiddenTests  []TestCase `json:"hidden_tests"`
}

// TotalTests returns the number of test cases a solution is judged against.
func (p Problem) TotalTests() int {
	return len(p.VisibleTests) + len(p.HiddenTests)
}

// Round is a scheduled, time boxed coding assessment.
type Round struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Organization    string         `gorm:"size:255" json:"organization"`
	ScheduledStart  time.Time      `gorm:"not null;index" json:"scheduled_start"`
	DurationMinutes int            `gorm:"not null" json:"duration_minutes"`
	Problems        datatypes.JSON `gorm:"type:json" json:"-"`
	IsActive        bool           `gorm:"not null;default:true" json:"is_active"`
	AccessKey       string         `gorm:"size:128;not null;uniqueIndex" json:"access_key"`
	AttemptCount    int            `gorm:"not null;default:0" json:"attempt_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SetProblems serializes the problem set into the JSON storage column.
func (r *Round) SetProblems(problems []Problem) {
	data, err := json.Marshal(problems)
	if err != nil {
		r.Problems = datatypes.JSON([]byte("[]"))
		return
	}
	r.Problems = datatypes.JSON(data)
}

// ProblemList deserializes the stored problem set.
func (r Round) ProblemList() []Problem {
	if len(r.Problems) == 0 {
		return nil
	}

	var problems []Problem
	if err := json.Unmarshal(r.Problems, &problems); err != nil {
		return nil
	}
	return problems
}

// EndsAt returns the instant the round closes.
func (r Round) EndsAt() time.Time {
	return r.ScheduledStart.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// IsAccessible reports whether examinees may currently enter the round. Both window
// boundaries are inclusive and administrative deactivation always wins.
func (r Round) IsAccessible(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	return !now.Before(r.ScheduledStart) && !now.After(r.EndsAt())
}

// Phase returns the lifecycle phase of the round at the given instant.
func (r Round) Phase(now time.Time) string {
	switch {
	case !r.IsActive:
		return RoundPhaseInactive
	case now.Before(r.ScheduledStart):
		return RoundPhaseUpcoming
	case now.After(r.EndsAt()):
		return RoundPhaseExpired
	default:
		return RoundPhaseActive
	}
}

// RoundTimeStatus is the client facing view of the access window.
type RoundTimeStatus struct {
	Phase             string    `json:"phase"`
	HasStarted        bool      `json:"has_started"`
	HasExpired        bool      `json:"has_expired"`
	MinutesUntilStart int       `json:"minutes_until_start"`
	MinutesRemaining  int       `json:"minutes_remaining"`
	StartsAt          time.Time `json:"starts_at"`
	EndsAt            time.Time `json:"ends_at"`
}

// TimeStatus describes where now falls relative to the access window.
func (r Round) TimeStatus(now time.Time) RoundTimeStatus {
	end := r.EndsAt()
	status := RoundTimeStatus{
		Phase:      r.Phase(now),
		HasStarted: !now.Before(r.ScheduledStart),
		HasExpired: now.After(end),
		StartsAt:   r.ScheduledStart,
		EndsAt:     end,
	}

	if !status.HasStarted {
		status.MinutesUntilStart = ceilMinutes(r.ScheduledStart.Sub(now))
	}
	if status.HasStarted && !status.HasExpired {
		status.MinutesRemaining = ceilMinutes(end.Sub(now))
	}
	return status
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
