package skills

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoFindOrCreateExisting(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM skill\\s+WHERE lower\\(preferred_label\\) = lower\\(\\$1\\)").
		WithArgs("Python").
		WillReturnRows(sqlmock.NewRows([]string{"id", "preferred_label", "skill_type", "created_at"}).
			AddRow(int64(7), "python", "knowledge", now))

	skill, err := repo.FindOrCreate(context.Background(), " Python ")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if skill.ID != 7 || skill.Label != "python" || skill.Category != "knowledge" {
		t.Fatalf("unexpected skill: %+v", skill)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFindOrCreateInserts(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM skill").
		WithArgs("Kubernetes").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO skill").
		WithArgs("Kubernetes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "preferred_label", "skill_type", "created_at"}).
			AddRow(int64(11), "Kubernetes", nil, now))

	skill, err := repo.FindOrCreate(context.Background(), "Kubernetes")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if skill.ID != 11 || skill.Category != "" {
		t.Fatalf("unexpected skill: %+v", skill)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFindOrCreateRejectsEmpty(t *testing.T) {
	repo, _ := newMock(t)
	if _, err := repo.FindOrCreate(context.Background(), "  "); err != ErrInvalidLabel {
		t.Fatalf("expected ErrInvalidLabel, got %v", err)
	}
}

func TestPGRepoUpsertNeedsClampsInOneTransaction(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO skill_need").
		WithArgs(int64(3), int64(1), 100).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(employee_id, skill_id\\) DO UPDATE").
		WithArgs(int64(3), int64(2), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpsertNeeds(context.Background(), 3, []NeedScore{{SkillID: 1, Score: 120}, {SkillID: 2, Score: -4}})
	if err != nil {
		t.Fatalf("UpsertNeeds: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRecordFeedbackApplied(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO skill_feedback").
		WithArgs(int64(5), int64(9), "up").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))
	mock.ExpectQuery("UPDATE skill_need").
		WithArgs(5, int64(5), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"recommendation_score", "recommendation_score"}).AddRow(60, 65))
	mock.ExpectCommit()

	res, err := repo.RecordFeedback(context.Background(), 5, 9, VoteUp)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if !res.Applied || res.Score != 65 || res.Change != 5 || res.FeedbackID != 42 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRecordFeedbackWithoutNeedIsNoop(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO skill_feedback").
		WithArgs(int64(5), int64(9), "down").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(43), time.Now()))
	mock.ExpectQuery("UPDATE skill_need").
		WithArgs(-5, int64(5), int64(9)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	res, err := repo.RecordFeedback(context.Background(), 5, 9, VoteDown)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if res.Applied {
		t.Fatalf("expected no-op, got %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListVotes(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("FROM skill_feedback sf").
		WillReturnRows(sqlmock.NewRows([]string{"employee_id", "preferred_label", "vote"}).
			AddRow(int64(1), "golang", "up").
			AddRow(int64(2), "cobol", "down"))

	votes, err := repo.ListVotes(context.Background())
	if err != nil {
		t.Fatalf("ListVotes: %v", err)
	}
	if len(votes) != 2 || votes[1].Vote != VoteDown || votes[0].SkillLabel != "golang" {
		t.Fatalf("unexpected votes: %+v", votes)
	}
}
