package employees

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("employee not found")

// Repo reads employees, their held skills and the training catalogue.
type Repo interface {
	GetByID(ctx context.Context, id int64) (Employee, error)
	List(ctx context.Context) ([]Employee, error)
	SkillIDs(ctx context.Context, employeeID int64) ([]int64, error)
	Trainings(ctx context.Context) ([]Training, error)
	Completions(ctx context.Context) ([]Completion, error)
}
