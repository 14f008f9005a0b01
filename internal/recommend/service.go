package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"skill-recommender/internal/artifact"
	"skill-recommender/internal/classifier"
	"skill-recommender/internal/collab"
	"skill-recommender/internal/employees"
	"skill-recommender/internal/fallback"
	"skill-recommender/internal/normalize"
	"skill-recommender/internal/shared/metrics"
	"skill-recommender/internal/shared/telemetry"
	"skill-recommender/internal/skills"
)

const (
	DefaultTopN      = 10
	DefaultRoleTitle = "Support Specialist"
)

// RetrainDispatcher hands a retrain request to the background path. It must
// not block on the retrain itself.
type RetrainDispatcher interface {
	Dispatch(ctx context.Context, reason string) error
}

type Service struct {
	Employees        employees.Repo
	Skills           skills.Repo
	Model            *artifact.Handle
	Fallback         *fallback.Resolver
	Retrain          RetrainDispatcher
	Collab           *collab.Filter
	DefaultRoleTitle string
	DefaultTopN      int
}

func (s *Service) topN(n int) int {
	if n > 0 {
		return n
	}
	if s.DefaultTopN > 0 {
		return s.DefaultTopN
	}
	return DefaultTopN
}

// PredictSkills recommends skills for the employee's job title and upserts
// them as the employee's skill needs. Skills the employee already holds are
// dropped after scoring.
func (s *Service) PredictSkills(ctx context.Context, employeeID int64, topN int) ([]ScoredSkill, error) {
	emp, err := s.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	topN = s.topN(topN)

	title := normalize.Title(emp.JobTitle, emp.Department)
	cands, source := s.candidates(ctx, title, topN)
	metrics.IncPrediction(string(source))

	scored, err := s.resolve(ctx, cands, source)
	if err != nil {
		return nil, err
	}

	heldIDs, err := s.Employees.SkillIDs(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	held := make(map[int64]struct{}, len(heldIDs))
	for _, id := range heldIDs {
		held[id] = struct{}{}
	}
	out := make([]ScoredSkill, 0, len(scored))
	for _, sk := range scored {
		if _, ok := held[sk.SkillID]; ok {
			continue
		}
		out = append(out, sk)
	}

	if err := s.persist(ctx, employeeID, out); err != nil {
		return nil, err
	}

	telemetry.Info("predict.completed", map[string]any{
		"employee_id": employeeID,
		"title":       title,
		"source":      string(source),
		"count":       len(out),
		"model":       s.Model.Version(),
	})
	return out, nil
}

// candidates runs the classifier and falls back to the reference table when
// it yields nothing or no model is loaded.
func (s *Service) candidates(ctx context.Context, title string, topN int) ([]candidate, Source) {
	preds, err := s.Model.Model().Predict(title, topN)
	if err != nil {
		if errors.Is(err, classifier.ErrModelNotLoaded) {
			telemetry.Warn("predict.model_not_loaded", map[string]any{"title": title})
		} else {
			telemetry.Error("predict.classifier_failed", map[string]any{"title": title, "error": err})
		}
	}
	if len(preds) > 0 {
		out := make([]candidate, len(preds))
		for i, p := range preds {
			out[i] = candidate{label: p.Label, score: int(math.Round(p.Probability * 100))}
		}
		return out, SourceClassifier
	}

	if s.Fallback == nil {
		return nil, SourceNone
	}
	res := s.Fallback.Resolve(ctx, title, topN)
	if len(res.Skills) == 0 {
		return nil, SourceNone
	}
	out := make([]candidate, len(res.Skills))
	for rank, label := range res.Skills {
		out[rank] = candidate{label: label, score: collab.PlaceholderScore(rank)}
	}
	return out, SourceFallback
}

// resolve maps labels onto the vocabulary, creating missing entries. When two
// labels resolve to the same entry the first one wins.
func (s *Service) resolve(ctx context.Context, cands []candidate, source Source) ([]ScoredSkill, error) {
	out := make([]ScoredSkill, 0, len(cands))
	seen := make(map[int64]struct{}, len(cands))
	for _, c := range cands {
		skill, err := s.Skills.FindOrCreate(ctx, c.label)
		if err != nil {
			if errors.Is(err, skills.ErrInvalidLabel) {
				continue
			}
			return nil, fmt.Errorf("resolve skill %q: %w", c.label, err)
		}
		if _, dup := seen[skill.ID]; dup {
			continue
		}
		seen[skill.ID] = struct{}{}
		out = append(out, ScoredSkill{
			SkillID:  skill.ID,
			Label:    skill.Label,
			Category: skill.Category,
			Score:    skills.ClampScore(c.score),
			Source:   source,
		})
	}
	return out, nil
}

func (s *Service) persist(ctx context.Context, employeeID int64, scored []ScoredSkill) error {
	if len(scored) == 0 {
		return nil
	}
	needs := make([]skills.NeedScore, len(scored))
	for i, sk := range scored {
		needs[i] = skills.NeedScore{SkillID: sk.SkillID, Score: sk.Score}
	}

	err := s.Skills.UpsertNeeds(ctx, employeeID, needs)
	if err == nil {
		return nil
	}
	metrics.IncPersistenceRetry()
	telemetry.Warn("predict.persist_retry", map[string]any{"employee_id": employeeID, "error": err})
	if err = s.Skills.UpsertNeeds(ctx, employeeID, needs); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceConflict, err)
	}
	return nil
}

// DefaultSkills runs the prediction chain for the default role title without
// persisting anything. It backs the collaborative path's fallback.
func (s *Service) DefaultSkills(ctx context.Context, topN int) ([]collab.Candidate, error) {
	role := s.DefaultRoleTitle
	if strings.TrimSpace(role) == "" {
		role = DefaultRoleTitle
	}
	cands, source := s.candidates(ctx, normalize.Title(role, ""), s.topN(topN))
	scored, err := s.resolve(ctx, cands, source)
	if err != nil {
		return nil, err
	}
	out := make([]collab.Candidate, len(scored))
	for i, sk := range scored {
		out[i] = collab.Candidate{SkillID: sk.SkillID, Label: sk.Label, Category: sk.Category, Score: sk.Score}
	}
	return out, nil
}

// RecommendTrainings runs the collaborative path.
func (s *Service) RecommendTrainings(ctx context.Context, employeeID int64, topN int, forceTrending bool) (collab.Result, error) {
	if s.Collab == nil {
		return collab.Result{}, errors.New("collaborative filter not configured")
	}
	return s.Collab.Recommend(ctx, employeeID, s.topN(topN), forceTrending)
}

// RecordFeedback logs the vote, applies it to the employee's existing score
// and requests a background retrain. The store write completes before this
// returns; the retrain does not.
func (s *Service) RecordFeedback(ctx context.Context, employeeID, skillID int64, rawVote string) (FeedbackAck, error) {
	vote, err := skills.ParseVote(rawVote)
	if err != nil {
		return FeedbackAck{}, err
	}
	if _, err := s.Employees.GetByID(ctx, employeeID); err != nil {
		if errors.Is(err, employees.ErrNotFound) {
			return FeedbackAck{}, ErrUnknownEmployee
		}
		return FeedbackAck{}, err
	}
	if _, err := s.Skills.GetByID(ctx, skillID); err != nil {
		if errors.Is(err, skills.ErrNotFound) {
			return FeedbackAck{}, ErrUnknownSkill
		}
		return FeedbackAck{}, err
	}

	res, err := s.Skills.RecordFeedback(ctx, employeeID, skillID, vote)
	if err != nil {
		return FeedbackAck{}, fmt.Errorf("record feedback: %w", err)
	}
	metrics.IncFeedback(string(vote))

	ack := FeedbackAck{
		Success:    true,
		FeedbackID: res.FeedbackID,
		EmployeeID: employeeID,
		SkillID:    skillID,
		Vote:       vote,
		RecordedAt: res.CreatedAt,
	}
	if res.Applied {
		score := res.Score
		ack.Score = &score
		ack.ScoreChange = res.Change
	}

	fields := map[string]any{
		"employee_id": employeeID,
		"skill_id":    skillID,
		"vote":        string(vote),
		"applied":     res.Applied,
	}
	if s.Retrain != nil {
		if err := s.Retrain.Dispatch(context.WithoutCancel(ctx), "feedback"); err != nil {
			fields["retrain_error"] = err
		} else {
			ack.RetrainQueued = true
		}
	}
	telemetry.Info("feedback.recorded", fields)
	return ack, nil
}

// ListNeeds returns the employee's persisted recommendations by score.
func (s *Service) ListNeeds(ctx context.Context, employeeID int64) ([]skills.Need, error) {
	if _, err := s.Employees.GetByID(ctx, employeeID); err != nil {
		if errors.Is(err, employees.ErrNotFound) {
			return nil, ErrUnknownEmployee
		}
		return nil, err
	}
	return s.Skills.ListNeeds(ctx, employeeID)
}

func (s *Service) ListSkills(ctx context.Context, limit int) ([]skills.Skill, error) {
	return s.Skills.List(ctx, limit)
}

// ModelInfo returns the serving manifest.
func (s *Service) ModelInfo() (artifact.Manifest, error) {
	snap := s.Model.Load()
	if snap == nil {
		return artifact.Manifest{}, classifier.ErrModelNotLoaded
	}
	return snap.Manifest, nil
}

// RequestRetrain asks for a retrain outside the feedback path.
func (s *Service) RequestRetrain(ctx context.Context) error {
	if s.Retrain == nil {
		return errors.New("retrain not configured")
	}
	return s.Retrain.Dispatch(context.WithoutCancel(ctx), "manual")
}

func (s *Service) employee(ctx context.Context, employeeID int64) (employees.Employee, error) {
	emp, err := s.Employees.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, employees.ErrNotFound) {
			return employees.Employee{}, ErrUnknownEmployee
		}
		return employees.Employee{}, err
	}
	if strings.TrimSpace(emp.JobTitle) == "" {
		return employees.Employee{}, ErrUnknownEmployee
	}
	return emp, nil
}
