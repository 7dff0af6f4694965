package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SolutionResult is the stored outcome of one problem in a submission. Hidden test
// inputs and outputs are never kept, only their pass flags.
type SolutionResult struct {
	ProblemIndex        int    `json:"problem_index"`
	SubmittedCode       string `json:"submitted_code"`
	Language            string `json:"language"`
	TestsPassed         int    `json:"tests_passed"`
	TotalTests          int    `json:"total_tests"`
	IsCorrect           bool   `json:"is_correct"`
	ProblemScorePercent int    `json:"problem_score_percent"`
	VisiblePassed       []bool `json:"visible_passed"`
	HiddenPassed        []bool `json:"hidden_passed"`
}

// Submission is the single, append only attempt of an identity at a round.
type Submission struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	RoundID          uint           `gorm:"not null;uniqueIndex:idx_submission_round_identity" json:"round_id"`
	Identity         string         `gorm:"size:320;not null;uniqueIndex:idx_submission_round_identity" json:"identity"`
	Solutions        datatypes.JSON `gorm:"type:json" json:"-"`
	TotalScore       int            `gorm:"not null;default:0" json:"total_score"`
	MaxPossibleScore int            `gorm:"not null;default:0" json:"max_possible_score"`
	SubmittedAt      time.Time      `gorm:"not null" json:"submitted_at"`
	CreatedAt        time.Time      `json:"created_at"`
	Round            Round          `gorm:"foreignKey:RoundID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// SetSolutions serializes solution results into the JSON storage column.
func (s *Submission) SetSolutions(solutions []SolutionResult) {
	data, err := json.Marshal(solutions)
	if err != nil {
		s.Solutions = datatypes.JSON([]byte("[]"))
		return
	}
	s.Solutions = datatypes.JSON(data)
}

// SolutionList deserializes the stored solution results.
func (s Submission) SolutionList() []SolutionResult {
	if len(s.Solutions) == 0 {
		return nil
	}

	var solutions []SolutionResult
	if err := json.Unmarshal(s.Solutions, &solutions); err != nil {
		return nil
	}
	return solutions
}
