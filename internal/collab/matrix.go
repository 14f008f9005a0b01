package collab

import "skill-recommender/internal/employees"

// Matrix is the binary employee x training interaction matrix.
type Matrix struct {
	rows  map[int64]int
	cols  map[int64]int
	cells [][]bool
}

// BuildMatrix indexes completions over the known employees and trainings.
// Completions that reference unknown ids are ignored.
func BuildMatrix(employeeIDs, trainingIDs []int64, history []employees.Completion) *Matrix {
	m := &Matrix{
		rows:  make(map[int64]int, len(employeeIDs)),
		cols:  make(map[int64]int, len(trainingIDs)),
		cells: make([][]bool, len(employeeIDs)),
	}
	for i, id := range employeeIDs {
		m.rows[id] = i
		m.cells[i] = make([]bool, len(trainingIDs))
	}
	for j, id := range trainingIDs {
		m.cols[id] = j
	}
	for _, c := range history {
		u, okU := m.rows[c.EmployeeID]
		t, okT := m.cols[c.TrainingID]
		if okU && okT {
			m.cells[u][t] = true
		}
	}
	return m
}

// Known reports whether the employee has a row.
func (m *Matrix) Known(employeeID int64) bool {
	_, ok := m.rows[employeeID]
	return ok
}

// Taken reports whether the employee completed the training.
func (m *Matrix) Taken(employeeID, trainingID int64) bool {
	u, okU := m.rows[employeeID]
	t, okT := m.cols[trainingID]
	return okU && okT && m.cells[u][t]
}
