package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/abrezinsky/forumelections/internal/models"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Repository{db: db, conn: db}, mock
}

// TestGetUser_ScanError tests row scanning error
func TestGetUser_ScanError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "username", "name", "avatar_template", "trust_level", "admin", "moderator", "anonymous", "moderator_category_id"}).
		AddRow("not-a-number", "bob", nil, nil, 1, false, false, false, nil)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").WillReturnRows(rows)

	if _, err := repo.GetUser(context.Background(), 1); err == nil {
		t.Error("expected scan error, got nil")
	}
}

// TestGetUsers_QueryError tests query failure propagation
func TestGetUsers_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id IN").WillReturnError(errors.New("db down"))

	if _, err := repo.GetUsers(context.Background(), []int64{1, 2}); err == nil {
		t.Error("expected error, got nil")
	}
}

// TestGetElectionList_CorruptJSON tests decode failure of the stored list
func TestGetElectionList_CorruptJSON(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT election_list FROM categories").
		WillReturnRows(sqlmock.NewRows([]string{"election_list"}).AddRow("{not json"))

	if _, err := repo.GetElectionList(context.Background(), 3); err == nil {
		t.Error("expected decode error, got nil")
	}
}

// TestGetElection_BadStatusField tests a non-numeric status value
func TestGetElection_BadStatusField(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM topics WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "category_id", "title", "slug", "user_id", "subtype", "closed", "created_at"}).
			AddRow(7, 1, "Election", "election", 1, "election", false, time.Now()))
	mock.ExpectQuery("SELECT name, value FROM topic_custom_fields").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow(FieldStatus, "poll"))

	_, err := repo.GetElection(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error for bad status field")
	}
	if errors.Is(err, ErrNotElection) {
		t.Error("expected a decode error, not ErrNotElection")
	}
}

// TestSaveElection_ExecError tests that the first failed write aborts the save
func TestSaveElection_ExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO topic_custom_fields").WillReturnError(errors.New("disk full"))

	err := repo.SaveElection(context.Background(), &models.Election{TopicID: 1, Status: models.StatusNomination})
	if err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestInTx_RollsBackOnError tests rollback when the callback fails
func TestInTx_RollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE topics SET closed").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.InTx(context.Background(), func(tx FullRepository) error {
		if err := tx.SetTopicClosed(context.Background(), 1, true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestInTx_CommitError tests commit failure propagation
func TestInTx_CommitError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("locked"))

	err := repo.InTx(context.Background(), func(tx FullRepository) error { return nil })
	if err == nil {
		t.Error("expected commit error, got nil")
	}
}

// TestInTx_BeginError tests begin failure propagation
func TestInTx_BeginError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin().WillReturnError(errors.New("busy"))

	called := false
	err := repo.InTx(context.Background(), func(tx FullRepository) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected begin error, got nil")
	}
	if called {
		t.Error("callback should not run when begin fails")
	}
}

// TestClaimDueJobs_QueryError tests claim failure propagation
func TestClaimDueJobs_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("DELETE FROM scheduled_jobs").WillReturnError(errors.New("db down"))

	if _, err := repo.ClaimDueJobs(context.Background(), time.Now(), 10); err == nil {
		t.Error("expected error, got nil")
	}
}

// TestUpdatePost_RevisionInsertError tests failure while keeping a revision
func TestUpdatePost_RevisionInsertError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO post_revisions").WillReturnError(errors.New("constraint"))

	if err := repo.UpdatePost(context.Background(), 1, "raw", "cooked", false); err == nil {
		t.Error("expected error, got nil")
	}
}
