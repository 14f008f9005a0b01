package recommend

import (
	"time"

	"skill-recommender/internal/skills"
)

type Source string

const (
	SourceClassifier Source = "classifier"
	SourceFallback   Source = "fallback"
	SourceNone       Source = "none"
)

// ScoredSkill is one persisted recommendation as returned to callers.
type ScoredSkill struct {
	SkillID  int64  `json:"skillId"`
	Label    string `json:"label"`
	Category string `json:"skillType,omitempty"`
	Score    int    `json:"score"`
	Source   Source `json:"source"`
}

// FeedbackAck acknowledges a recorded vote. Score is nil when the employee
// had no recommendation row for the skill.
type FeedbackAck struct {
	Success       bool        `json:"success"`
	FeedbackID    int64       `json:"feedbackId"`
	EmployeeID    int64       `json:"employeeId"`
	SkillID       int64       `json:"skillId"`
	Vote          skills.Vote `json:"vote"`
	ScoreChange   int         `json:"scoreChange"`
	Score         *int        `json:"score"`
	RetrainQueued bool        `json:"retrainQueued"`
	RecordedAt    time.Time   `json:"recordedAt"`
}

// candidate is a label chosen before vocabulary resolution.
type candidate struct {
	label string
	score int
}
