package skills

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinScore = 0
	MaxScore = 100
	// VoteStep is the score adjustment applied by one vote.
	VoteStep = 5
)

// Skill is a vocabulary entry.
type Skill struct {
	ID        int64     `json:"id"`
	Label     string    `json:"preferredLabel"`
	Category  string    `json:"skillType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Need is a persisted recommendation for one employee and skill.
type Need struct {
	EmployeeID int64  `json:"employeeId"`
	SkillID    int64  `json:"skillId"`
	Label      string `json:"label"`
	Category   string `json:"skillType,omitempty"`
	Score      int    `json:"score"`
}

// NeedScore is one row to upsert.
type NeedScore struct {
	SkillID int64
	Score   int
}

type Vote string

const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// ParseVote accepts "up" or "down", case-insensitively.
func ParseVote(raw string) (Vote, error) {
	switch Vote(strings.ToLower(strings.TrimSpace(raw))) {
	case VoteUp:
		return VoteUp, nil
	case VoteDown:
		return VoteDown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVote, raw)
	}
}

// Delta is the signed score change of the vote.
func (v Vote) Delta() int {
	if v == VoteUp {
		return VoteStep
	}
	return -VoteStep
}

// FeedbackResult reports the outcome of recording a vote. Applied is false
// when the employee had no recommendation row for the skill. Change is the
// score movement after clamping, so it can be smaller than the vote's delta.
type FeedbackResult struct {
	FeedbackID int64
	Applied    bool
	Score      int
	Change     int
	CreatedAt  time.Time
}

// LabeledVote is one historical vote resolved to the skill's label.
type LabeledVote struct {
	EmployeeID int64
	SkillLabel string
	Vote       Vote
}

// ClampScore bounds a score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
