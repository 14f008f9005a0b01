// Package collab is the secondary recommendation path. It lists skills an
// employee does not hold yet and maps them onto the training catalogue. The
// skill order carries no ranking signal: scores are placeholders descending
// from 100 in store order.
package collab

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"skill-recommender/internal/employees"
	"skill-recommender/internal/shared/telemetry"
	"skill-recommender/internal/skills"
)

type Source string

const (
	SourceCollaborative Source = "collaborative"
	SourceDefaultRole   Source = "default_role"
)

// Candidate is a skill proposed for the employee.
type Candidate struct {
	SkillID  int64  `json:"skillId"`
	Label    string `json:"label"`
	Category string `json:"skillType,omitempty"`
	Score    int    `json:"score"`
}

// Recommendation is a training proposed because it covers a candidate skill.
type Recommendation struct {
	TrainingID int64  `json:"trainingId"`
	Title      string `json:"title"`
	Category   string `json:"category,omitempty"`
	Skill      string `json:"skill"`
	Score      int    `json:"score"`
}

type Result struct {
	Source    Source           `json:"source"`
	Skills    []Candidate      `json:"skills"`
	Trainings []Recommendation `json:"recommendedTrainings"`
}

// DefaultChain produces skills for the default role when the collaborative
// signal is missing.
type DefaultChain interface {
	DefaultSkills(ctx context.Context, topN int) ([]Candidate, error)
}

type Filter struct {
	Employees employees.Repo
	Skills    skills.Repo
	Defaults  DefaultChain
}

func NewFilter(emps employees.Repo, skillRepo skills.Repo, defaults DefaultChain) *Filter {
	return &Filter{Employees: emps, Skills: skillRepo, Defaults: defaults}
}

// PlaceholderScore is the synthetic score at a 0-based position.
func PlaceholderScore(rank int) int {
	return skills.ClampScore(100 - 5*rank)
}

// Recommend returns up to topN skills and trainings for the employee.
func (f *Filter) Recommend(ctx context.Context, employeeID int64, topN int, forceTrending bool) (Result, error) {
	var (
		emps        []employees.Employee
		catalogue   []employees.Training
		completions []employees.Completion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emps, err = f.Employees.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		catalogue, err = f.Employees.Trainings(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		completions, err = f.Employees.Completions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	employeeIDs := make([]int64, len(emps))
	for i, e := range emps {
		employeeIDs[i] = e.ID
	}
	trainingIDs := make([]int64, len(catalogue))
	for i, t := range catalogue {
		trainingIDs[i] = t.ID
	}
	matrix := BuildMatrix(employeeIDs, trainingIDs, completions)

	candidates, source, err := f.candidates(ctx, employeeID, topN, forceTrending, matrix)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Source:    source,
		Skills:    candidates,
		Trainings: matchTrainings(candidates, catalogue, matrix, employeeID, topN),
	}, nil
}

func (f *Filter) candidates(ctx context.Context, employeeID int64, topN int, forceTrending bool, matrix *Matrix) ([]Candidate, Source, error) {
	reason := ""
	switch {
	case forceTrending:
		reason = "forced"
	case !matrix.Known(employeeID):
		reason = "unknown_employee"
	}
	if reason == "" {
		count, err := f.Skills.CountNeeds(ctx)
		if err != nil {
			return nil, "", err
		}
		if count == 0 {
			reason = "no_skill_needs"
		}
	}
	if reason == "" {
		missing, err := f.missingSkills(ctx, employeeID, topN)
		if err != nil {
			return nil, "", err
		}
		if len(missing) > 0 {
			return missing, SourceCollaborative, nil
		}
		reason = "no_missing_skills"
	}

	telemetry.Info("collab.default_role", map[string]any{"employee_id": employeeID, "reason": reason})
	defaults, err := f.Defaults.DefaultSkills(ctx, topN)
	if err != nil {
		return nil, "", err
	}
	return defaults, SourceDefaultRole, nil
}

func (f *Filter) missingSkills(ctx context.Context, employeeID int64, topN int) ([]Candidate, error) {
	vocabulary, err := f.Skills.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	heldIDs, err := f.Employees.SkillIDs(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	held := make(map[int64]struct{}, len(heldIDs))
	for _, id := range heldIDs {
		held[id] = struct{}{}
	}

	var out []Candidate
	for _, s := range vocabulary {
		if len(out) >= topN {
			break
		}
		if _, ok := held[s.ID]; ok {
			continue
		}
		out = append(out, Candidate{SkillID: s.ID, Label: s.Label, Category: s.Category, Score: PlaceholderScore(len(out))})
	}
	return out, nil
}

// matchTrainings maps candidates to catalogue entries whose category equals
// the skill label or whose title mentions it, skipping trainings the employee
// already took. A training keeps the best score of the skills it covers.
func matchTrainings(candidates []Candidate, catalogue []employees.Training, matrix *Matrix, employeeID int64, topN int) []Recommendation {
	best := make(map[int64]Recommendation)
	for _, cand := range candidates {
		label := strings.ToLower(strings.TrimSpace(cand.Label))
		if label == "" {
			continue
		}
		for _, t := range catalogue {
			if matrix.Taken(employeeID, t.ID) {
				continue
			}
			if !strings.EqualFold(strings.TrimSpace(t.Category), label) && !strings.Contains(strings.ToLower(t.Title), label) {
				continue
			}
			if prev, ok := best[t.ID]; ok && prev.Score >= cand.Score {
				continue
			}
			best[t.ID] = Recommendation{TrainingID: t.ID, Title: t.Title, Category: t.Category, Skill: cand.Label, Score: cand.Score}
		}
	}

	out := make([]Recommendation, 0, len(best))
	for _, rec := range best {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TrainingID < out[j].TrainingID
	})
	if topN >= 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
