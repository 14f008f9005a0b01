package skills

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) FindOrCreate(ctx context.Context, label string) (Skill, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Skill{}, ErrInvalidLabel
	}

	const selectQuery = `
SELECT id, preferred_label, skill_type, created_at
FROM skill
WHERE lower(preferred_label) = lower($1)
LIMIT 1`
	skill, err := scanSkill(r.DB.QueryRowContext(ctx, selectQuery, label))
	if err == nil {
		return skill, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Skill{}, err
	}

	// A concurrent insert of the same label lands on the unique index and
	// returns the winner's row.
	const insertQuery = `
INSERT INTO skill (preferred_label, created_at)
VALUES ($1, now())
ON CONFLICT ((lower(preferred_label))) DO UPDATE SET preferred_label = skill.preferred_label
RETURNING id, preferred_label, skill_type, created_at`
	return scanSkill(r.DB.QueryRowContext(ctx, insertQuery, label))
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (Skill, error) {
	const query = `
SELECT id, preferred_label, skill_type, created_at
FROM skill
WHERE id = $1`
	return scanSkill(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) List(ctx context.Context, limit int) ([]Skill, error) {
	query := `
SELECT id, preferred_label, skill_type, created_at
FROM skill
ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += "\nLIMIT $1"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		var s Skill
		var category sql.NullString
		if err := rows.Scan(&s.ID, &s.Label, &category, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Category = category.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpsertNeeds(ctx context.Context, employeeID int64, needs []NeedScore) error {
	if len(needs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
INSERT INTO skill_need (employee_id, skill_id, recommendation_score)
VALUES ($1, $2, $3)
ON CONFLICT (employee_id, skill_id) DO UPDATE SET
  recommendation_score = EXCLUDED.recommendation_score`
	for _, need := range needs {
		if _, err := tx.ExecContext(ctx, query, employeeID, need.SkillID, ClampScore(need.Score)); err != nil {
			return fmt.Errorf("upsert skill_need skill=%d: %w", need.SkillID, err)
		}
	}
	return tx.Commit()
}

func (r *PGRepo) ListNeeds(ctx context.Context, employeeID int64) ([]Need, error) {
	const query = `
SELECT sn.employee_id, sn.skill_id, s.preferred_label, s.skill_type, sn.recommendation_score
FROM skill_need sn
JOIN skill s ON s.id = sn.skill_id
WHERE sn.employee_id = $1
ORDER BY sn.recommendation_score DESC, sn.skill_id`
	rows, err := r.DB.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Need
	for rows.Next() {
		var n Need
		var category sql.NullString
		if err := rows.Scan(&n.EmployeeID, &n.SkillID, &n.Label, &category, &n.Score); err != nil {
			return nil, err
		}
		n.Category = category.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PGRepo) CountNeeds(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM skill_need`).Scan(&n)
	return n, err
}

func (r *PGRepo) RecordFeedback(ctx context.Context, employeeID, skillID int64, vote Vote) (FeedbackResult, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return FeedbackResult{}, err
	}
	defer tx.Rollback()

	var res FeedbackResult
	const insertQuery = `
INSERT INTO skill_feedback (employee_id, skill_id, vote, created_at)
VALUES ($1, $2, $3, now())
RETURNING id, created_at`
	if err := tx.QueryRowContext(ctx, insertQuery, employeeID, skillID, string(vote)).Scan(&res.FeedbackID, &res.CreatedAt); err != nil {
		return FeedbackResult{}, fmt.Errorf("insert skill_feedback: %w", err)
	}

	// FOR UPDATE serialises concurrent votes on the pair and pins the prior
	// score the change is measured from.
	const updateQuery = `
WITH prev AS (
  SELECT recommendation_score
  FROM skill_need
  WHERE employee_id = $2 AND skill_id = $3
  FOR UPDATE
)
UPDATE skill_need
SET recommendation_score = GREATEST(0, LEAST(100, prev.recommendation_score + $1))
FROM prev
WHERE employee_id = $2 AND skill_id = $3
RETURNING prev.recommendation_score, skill_need.recommendation_score`
	var prev int
	err = tx.QueryRowContext(ctx, updateQuery, vote.Delta(), employeeID, skillID).Scan(&prev, &res.Score)
	switch {
	case err == nil:
		res.Applied = true
		res.Change = res.Score - prev
	case errors.Is(err, sql.ErrNoRows):
		res.Applied = false
	default:
		return FeedbackResult{}, fmt.Errorf("adjust skill_need: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return FeedbackResult{}, err
	}
	return res, nil
}

func (r *PGRepo) ListVotes(ctx context.Context) ([]LabeledVote, error) {
	const query = `
SELECT sf.employee_id, s.preferred_label, sf.vote
FROM skill_feedback sf
JOIN skill s ON s.id = sf.skill_id
ORDER BY sf.id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LabeledVote
	for rows.Next() {
		var v LabeledVote
		var vote string
		if err := rows.Scan(&v.EmployeeID, &v.SkillLabel, &vote); err != nil {
			return nil, err
		}
		v.Vote = Vote(vote)
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanSkill(row *sql.Row) (Skill, error) {
	var s Skill
	var category sql.NullString
	if err := row.Scan(&s.ID, &s.Label, &category, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Skill{}, ErrNotFound
		}
		return Skill{}, err
	}
	s.Category = category.String
	return s, nil
}

var _ Repo = (*PGRepo)(nil)
