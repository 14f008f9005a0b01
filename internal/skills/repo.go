package skills

import "context"

// Repo persists the skill vocabulary, recommendation rows and the feedback log.
type Repo interface {
	// FindOrCreate resolves label case-insensitively, creating the entry when absent.
	FindOrCreate(ctx context.Context, label string) (Skill, error)
	GetByID(ctx context.Context, id int64) (Skill, error)
	// List returns vocabulary entries in id order; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Skill, error)

	// UpsertNeeds writes all rows for the employee in one transaction.
	UpsertNeeds(ctx context.Context, employeeID int64, needs []NeedScore) error
	ListNeeds(ctx context.Context, employeeID int64) ([]Need, error)
	CountNeeds(ctx context.Context) (int64, error)

	// RecordFeedback appends the vote and applies its clamped delta to an
	// existing recommendation row, atomically.
	RecordFeedback(ctx context.Context, employeeID, skillID int64, vote Vote) (FeedbackResult, error)
	ListVotes(ctx context.Context) ([]LabeledVote, error)
}
