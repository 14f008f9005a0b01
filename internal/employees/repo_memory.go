package employees

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores employees in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu          sync.RWMutex
	employees   map[int64]Employee
	skills      map[int64][]int64
	trainings   []Training
	completions []Completion
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		employees: make(map[int64]Employee),
		skills:    make(map[int64][]int64),
	}
}

// Put adds or replaces an employee.
func (r *MemoryRepo) Put(e Employee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.employees[e.ID] = e
}

// GrantSkill records that the employee already holds skillID.
func (r *MemoryRepo) GrantSkill(employeeID, skillID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[employeeID] = append(r.skills[employeeID], skillID)
}

// AddTraining appends to the catalogue.
func (r *MemoryRepo) AddTraining(t Training) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trainings = append(r.trainings, t)
}

// Complete records a training completion.
func (r *MemoryRepo) Complete(employeeID, trainingID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, Completion{EmployeeID: employeeID, TrainingID: trainingID})
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Employee, error) {
	if err := ctx.Err(); err != nil {
		return Employee{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Employee, 0, len(r.employees))
	for _, e := range r.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) SkillIDs(ctx context.Context, employeeID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int64(nil), r.skills[employeeID]...), nil
}

func (r *MemoryRepo) Trainings(ctx context.Context) ([]Training, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Training(nil), r.trainings...), nil
}

func (r *MemoryRepo) Completions(ctx context.Context) ([]Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Completion(nil), r.completions...), nil
}

var _ Repo = (*MemoryRepo)(nil)
