package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skill-recommender/internal/artifact"
	"skill-recommender/internal/bootstrap"
	"skill-recommender/internal/employees"
	"skill-recommender/internal/recommend"
	"skill-recommender/internal/shared/config"
)

func testApp(t *testing.T) *bootstrap.App {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reference.csv")
	rows := "job_title,skill\nSupport Specialist,customer service\nSupport Specialist,ticketing\nNurse,patient care\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(rows), 0o600))

	app, err := bootstrap.Build(config.Config{
		Port:             "0",
		Env:              "dev",
		ObjectStoreType:  "local",
		LocalStoreDir:    filepath.Join(dir, "store"),
		ReferenceCSVPath: csvPath,
		ModelName:        "cli_model",
		DefaultRoleTitle: "Support Specialist",
		PredictTopN:      10,
		RetrainMode:      "inline",
		FeedbackRate:     1,
		FeedbackBurst:    5,
	}, bootstrap.Options{SkipRouter: true})
	require.NoError(t, err)

	repo, ok := app.Employees.(*employees.MemoryRepo)
	require.True(t, ok)
	repo.Put(employees.Employee{ID: 7, FirstName: "Ada", LastName: "Ng", JobTitle: "Support Specialist"})
	return app
}

func run(t *testing.T, app *bootstrap.App, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(*cobra.Command) (*bootstrap.App, error) { return app, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPredictWritesRecommendations(t *testing.T) {
	app := testApp(t)

	out, err := run(t, app, "predict", "7", "--top", "5")
	require.NoError(t, err)

	var resp struct {
		EmployeeID        int64                   `json:"employeeId"`
		RecommendedSkills []recommend.ScoredSkill `json:"recommendedSkills"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(7), resp.EmployeeID)
	require.Len(t, resp.RecommendedSkills, 2)
	assert.Equal(t, 100, resp.RecommendedSkills[0].Score)

	out, err = run(t, app, "needs", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "customer service")
}

func TestFeedbackRetrainsAndPublishes(t *testing.T) {
	app := testApp(t)
	_, err := run(t, app, "predict", "7")
	require.NoError(t, err)

	_, err = run(t, app, "model")
	require.Error(t, err)

	out, err := run(t, app, "feedback", "7", "--skill", "1", "--vote", "down")
	require.NoError(t, err)

	var ack recommend.FeedbackAck
	require.NoError(t, json.Unmarshal([]byte(out), &ack))
	assert.True(t, ack.RetrainQueued)
	require.NotNil(t, ack.Score)
	assert.Equal(t, 95, *ack.Score)

	out, err = run(t, app, "model")
	require.NoError(t, err)
	var manifest artifact.Manifest
	require.NoError(t, json.Unmarshal([]byte(out), &manifest))
	assert.Equal(t, "cli_model", manifest.Name)
	assert.Equal(t, app.Model.Version(), manifest.Version)
}

func TestRetrainCommand(t *testing.T) {
	app := testApp(t)

	out, err := run(t, app, "retrain", "--reason", "nightly")
	require.NoError(t, err)
	assert.Contains(t, out, "cli_model")
	assert.NotEmpty(t, app.Model.Version())
}

func TestArgumentValidation(t *testing.T) {
	app := testApp(t)

	_, err := run(t, app, "predict", "abc")
	assert.ErrorContains(t, err, "invalid employee id")

	_, err = run(t, app, "predict")
	assert.Error(t, err)

	_, err = run(t, app, "feedback", "7", "--vote", "up")
	assert.ErrorContains(t, err, "required")

	_, err = run(t, app, "feedback", "7", "--skill", "1", "--vote", "sideways")
	assert.Error(t, err)

	_, err = run(t, app, "predict", "99")
	assert.ErrorIs(t, err, recommend.ErrUnknownEmployee)
}
