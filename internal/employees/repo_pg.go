package employees

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (Employee, error) {
	const query = `
SELECT id, first_name, last_name, department, job_title
FROM employee
WHERE id = $1`
	var e Employee
	var first, last, dept, title sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&e.ID, &first, &last, &dept, &title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	e.FirstName, e.LastName, e.Department, e.JobTitle = first.String, last.String, dept.String, title.String
	return e, nil
}

func (r *PGRepo) List(ctx context.Context) ([]Employee, error) {
	const query = `
SELECT id, first_name, last_name, department, job_title
FROM employee
ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		var first, last, dept, title sql.NullString
		if err := rows.Scan(&e.ID, &first, &last, &dept, &title); err != nil {
			return nil, err
		}
		e.FirstName, e.LastName, e.Department, e.JobTitle = first.String, last.String, dept.String, title.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepo) SkillIDs(ctx context.Context, employeeID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT skill_id FROM employee_skill WHERE employee_id = $1 ORDER BY skill_id`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *PGRepo) Trainings(ctx context.Context) ([]Training, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, title, category FROM training ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Training
	for rows.Next() {
		var t Training
		var category sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &category); err != nil {
			return nil, err
		}
		t.Category = category.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) Completions(ctx context.Context) ([]Completion, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT employee_id, training_id FROM employee_training`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.EmployeeID, &c.TrainingID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
