package services_test

import (
	"strings"
	"testing"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/services"
)

func TestStatementService_Upsert(t *testing.T) {
	svc := services.NewStatementService(logger.Discard())
	e := &models.Election{Nominations: []int64{1, 2}}

	st, err := svc.Upsert(e, &models.Post{ID: 10, UserID: 1, Cooked: "<p>First words</p>"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if st.Excerpt != "First words" {
		t.Errorf("unexpected excerpt %q", st.Excerpt)
	}

	if _, err := svc.Upsert(e, &models.Post{ID: 20, UserID: 2, Cooked: "<p>Bob here</p>"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Same post gets a fresh excerpt in place
	if _, err := svc.Upsert(e, &models.Post{ID: 10, UserID: 1, Cooked: "<p>Edited words</p>"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(e.Statements) != 2 || e.Statements[0].PostID != 10 || e.Statements[0].Excerpt != "Edited words" {
		t.Errorf("expected in place update, got %+v", e.Statements)
	}

	// A newer post of the same author replaces the older entry
	if _, err := svc.Upsert(e, &models.Post{ID: 30, UserID: 1, Cooked: "<p>Newest</p>"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(e.Statements) != 2 || e.Statements[0].PostID != 30 {
		t.Errorf("expected one statement per user, got %+v", e.Statements)
	}
}

func TestStatementService_UpsertTruncates(t *testing.T) {
	svc := services.NewStatementService(logger.Discard())
	e := &models.Election{}

	long := strings.Repeat("a", services.ExcerptLength+50)
	st, err := svc.Upsert(e, &models.Post{ID: 1, UserID: 1, Cooked: "<p>" + long + "</p>"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	want := strings.Repeat("a", services.ExcerptLength) + "&hellip;"
	if st.Excerpt != want {
		t.Errorf("expected truncated excerpt, got %q", st.Excerpt)
	}
}

func TestStatementService_Remove(t *testing.T) {
	svc := services.NewStatementService(logger.Discard())
	e := &models.Election{Statements: []models.NominationStatement{
		{PostID: 10, UserID: 1},
		{PostID: 20, UserID: 2},
		{PostID: 30, UserID: 3},
	}}

	removed := svc.Remove(e, []int64{1, 3, 4})
	if len(removed) != 2 {
		t.Errorf("expected 2 removed, got %+v", removed)
	}
	if len(e.Statements) != 1 || e.Statements[0].UserID != 2 {
		t.Errorf("expected only user 2 left, got %+v", e.Statements)
	}

	if !svc.RemovePost(e, 20) {
		t.Error("expected RemovePost to find post 20")
	}
	if svc.RemovePost(e, 20) {
		t.Error("expected second RemovePost to report false")
	}
	if len(e.Statements) != 0 {
		t.Errorf("expected no statements left, got %+v", e.Statements)
	}
}
