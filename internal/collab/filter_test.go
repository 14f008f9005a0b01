package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skill-recommender/internal/employees"
	"skill-recommender/internal/skills"
)

type stubDefaults struct {
	calls int
}

func (s *stubDefaults) DefaultSkills(_ context.Context, topN int) ([]Candidate, error) {
	s.calls++
	out := []Candidate{{SkillID: 100, Label: "customer service", Score: 100}, {SkillID: 101, Label: "ticketing", Score: 95}}
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

type fixture struct {
	emps     *employees.MemoryRepo
	skills   *skills.MemoryRepo
	defaults *stubDefaults
	filter   *Filter
}

func newFixture() fixture {
	emps := employees.NewMemoryRepo()
	skillRepo := skills.NewMemoryRepo()
	defaults := &stubDefaults{}
	return fixture{emps: emps, skills: skillRepo, defaults: defaults, filter: NewFilter(emps, skillRepo, defaults)}
}

func TestRecommendMissingSkills(t *testing.T) {
	f := newFixture()
	f.emps.Put(employees.Employee{ID: 1, JobTitle: "Developer"})
	golang := f.skills.Seed("golang", "")
	sql := f.skills.Seed("sql", "")
	docker := f.skills.Seed("docker", "")
	f.skills.SetNeed(1, golang.ID, 80)
	f.emps.GrantSkill(1, golang.ID)

	f.emps.AddTraining(employees.Training{ID: 1, Title: "Intro to SQL", Category: "databases"})
	f.emps.AddTraining(employees.Training{ID: 2, Title: "Containers 101", Category: "docker"})
	f.emps.AddTraining(employees.Training{ID: 3, Title: "Advanced SQL", Category: "databases"})
	f.emps.Complete(1, 3)

	res, err := f.filter.Recommend(context.Background(), 1, 5, false)
	require.NoError(t, err)

	assert.Equal(t, SourceCollaborative, res.Source)
	assert.Equal(t, []Candidate{
		{SkillID: sql.ID, Label: "sql", Score: 100},
		{SkillID: docker.ID, Label: "docker", Score: 95},
	}, res.Skills)

	require.Len(t, res.Trainings, 2)
	assert.Equal(t, int64(1), res.Trainings[0].TrainingID)
	assert.Equal(t, 100, res.Trainings[0].Score)
	assert.Equal(t, int64(2), res.Trainings[1].TrainingID)
	assert.Equal(t, "docker", res.Trainings[1].Skill)
	assert.Zero(t, f.defaults.calls)
}

func TestRecommendFallsBackToDefaultRole(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f fixture)
		force bool
	}{
		{
			name:  "unknown employee",
			setup: func(f fixture) {},
		},
		{
			name: "no skill needs",
			setup: func(f fixture) {
				f.emps.Put(employees.Employee{ID: 1})
				f.skills.Seed("golang", "")
			},
		},
		{
			name: "nothing missing",
			setup: func(f fixture) {
				f.emps.Put(employees.Employee{ID: 1})
				s := f.skills.Seed("golang", "")
				f.skills.SetNeed(1, s.ID, 50)
				f.emps.GrantSkill(1, s.ID)
			},
		},
		{
			name: "forced",
			setup: func(f fixture) {
				f.emps.Put(employees.Employee{ID: 1})
				s := f.skills.Seed("golang", "")
				f.skills.SetNeed(1, s.ID, 50)
			},
			force: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			f.emps.AddTraining(employees.Training{ID: 7, Title: "Customer Service Basics"})

			res, err := f.filter.Recommend(context.Background(), 1, 5, tt.force)
			require.NoError(t, err)
			assert.Equal(t, SourceDefaultRole, res.Source)
			assert.Equal(t, 1, f.defaults.calls)
			require.Len(t, res.Skills, 2)
			require.Len(t, res.Trainings, 1)
			assert.Equal(t, int64(7), res.Trainings[0].TrainingID)
		})
	}
}

func TestRecommendRespectsTopN(t *testing.T) {
	f := newFixture()
	f.emps.Put(employees.Employee{ID: 1})
	for _, label := range []string{"a1", "b2", "c3", "d4"} {
		s := f.skills.Seed(label, "")
		f.skills.SetNeed(2, s.ID, 10)
	}

	res, err := f.filter.Recommend(context.Background(), 1, 2, false)
	require.NoError(t, err)
	require.Len(t, res.Skills, 2)
	assert.Equal(t, []int{100, 95}, []int{res.Skills[0].Score, res.Skills[1].Score})
}

func TestMatrix(t *testing.T) {
	m := BuildMatrix([]int64{1, 2}, []int64{10, 20}, []employees.Completion{{EmployeeID: 1, TrainingID: 20}, {EmployeeID: 9, TrainingID: 10}})
	assert.True(t, m.Known(2))
	assert.False(t, m.Known(9))
	assert.True(t, m.Taken(1, 20))
	assert.False(t, m.Taken(1, 10))
	assert.False(t, m.Taken(9, 10))
}
