package skills

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type needKey struct {
	employeeID int64
	skillID    int64
}

type feedbackRow struct {
	id         int64
	employeeID int64
	skillID    int64
	vote       Vote
	createdAt  time.Time
}

// MemoryRepo stores skills in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	nextID   int64
	byID     map[int64]Skill
	byLower  map[string]int64
	needs    map[needKey]int
	feedback []feedbackRow
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[int64]Skill),
		byLower: make(map[string]int64),
		needs:   make(map[needKey]int),
	}
}

func (r *MemoryRepo) FindOrCreate(ctx context.Context, label string) (Skill, error) {
	if err := ctx.Err(); err != nil {
		return Skill{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return Skill{}, ErrInvalidLabel
	}
	key := strings.ToLower(label)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byLower[key]; ok {
		return r.byID[id], nil
	}
	r.nextID++
	skill := Skill{ID: r.nextID, Label: label, CreatedAt: time.Now().UTC()}
	r.byID[skill.ID] = skill
	r.byLower[key] = skill.ID
	return skill, nil
}

// Seed inserts a skill with a category, for fixtures.
func (r *MemoryRepo) Seed(label, category string) Skill {
	skill, _ := r.FindOrCreate(context.Background(), label)
	r.mu.Lock()
	defer r.mu.Unlock()
	skill.Category = category
	r.byID[skill.ID] = skill
	return skill
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Skill, error) {
	if err := ctx.Err(); err != nil {
		return Skill{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.byID[id]
	if !ok {
		return Skill{}, ErrNotFound
	}
	return skill, nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Skill, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpsertNeeds(ctx context.Context, employeeID int64, needs []NeedScore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, need := range needs {
		r.needs[needKey{employeeID: employeeID, skillID: need.SkillID}] = ClampScore(need.Score)
	}
	return nil
}

// SetNeed writes a single recommendation row, for fixtures.
func (r *MemoryRepo) SetNeed(employeeID, skillID int64, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.needs[needKey{employeeID: employeeID, skillID: skillID}] = ClampScore(score)
}

func (r *MemoryRepo) ListNeeds(ctx context.Context, employeeID int64) ([]Need, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Need
	for key, score := range r.needs {
		if key.employeeID != employeeID {
			continue
		}
		skill := r.byID[key.skillID]
		out = append(out, Need{
			EmployeeID: employeeID,
			SkillID:    key.skillID,
			Label:      skill.Label,
			Category:   skill.Category,
			Score:      score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SkillID < out[j].SkillID
	})
	return out, nil
}

func (r *MemoryRepo) CountNeeds(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.needs)), nil
}

func (r *MemoryRepo) RecordFeedback(ctx context.Context, employeeID, skillID int64, vote Vote) (FeedbackResult, error) {
	if err := ctx.Err(); err != nil {
		return FeedbackResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[skillID]; !ok {
		return FeedbackResult{}, ErrNotFound
	}

	row := feedbackRow{
		id:         int64(len(r.feedback) + 1),
		employeeID: employeeID,
		skillID:    skillID,
		vote:       vote,
		createdAt:  time.Now().UTC(),
	}
	r.feedback = append(r.feedback, row)

	res := FeedbackResult{FeedbackID: row.id, CreatedAt: row.createdAt}
	key := needKey{employeeID: employeeID, skillID: skillID}
	if prev, ok := r.needs[key]; ok {
		score := ClampScore(prev + vote.Delta())
		r.needs[key] = score
		res.Applied = true
		res.Score = score
		res.Change = score - prev
	}
	return res, nil
}

func (r *MemoryRepo) ListVotes(ctx context.Context) ([]LabeledVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LabeledVote, 0, len(r.feedback))
	for _, row := range r.feedback {
		out = append(out, LabeledVote{
			EmployeeID: row.employeeID,
			SkillLabel: r.byID[row.skillID].Label,
			Vote:       row.vote,
		})
	}
	return out, nil
}

// FeedbackCount reports how many votes were logged.
func (r *MemoryRepo) FeedbackCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feedback)
}

var _ Repo = (*MemoryRepo)(nil)
