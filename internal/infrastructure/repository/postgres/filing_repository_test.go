package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*FilingRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewFilingRepository(db), mock, func() { _ = db.Close() }
}

var filingColumns = []string{"id", "application_id", "application_type", "status", "files", "outcome", "error_message", "created_at", "updated_at"}

func TestCreateFiling(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	filing := &domain.Filing{
		ID:              "f-1",
		ApplicationID:   "APP-42",
		ApplicationType: "mortgage",
		Status:          domain.FilingQueued,
		Files:           []domain.FilingFile{{Filename: "passport.png", StorageKey: "f-1/000_passport.png", SizeBytes: 10}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	filesJSON, _ := json.Marshal(filing.Files)

	mock.ExpectExec("INSERT INTO filings").
		WithArgs("f-1", "APP-42", "mortgage", "queued", filesJSON, "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), filing); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesOutcome(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	outcome := domain.ApplicationOutcome{
		ApplicationID:       "APP-42",
		DocumentCheckStatus: domain.CheckPass,
		PolicyCheckStatus:   domain.CheckFail,
		SystemStatus:        domain.SystemDeclined,
		Policies:            []domain.PolicyEvaluationResult{{PolicyName: "Passport Validity", Result: domain.CheckFail, Comment: "expired"}},
	}
	outcomeJSON, _ := json.Marshal(outcome)

	mock.ExpectQuery("SELECT id, application_id, application_type, status").
		WithArgs("f-1").
		WillReturnRows(sqlmock.NewRows(filingColumns).AddRow(
			"f-1", "APP-42", "mortgage", "completed", []byte(`[{"filename":"passport.png","storage_key":"k","size_bytes":10}]`),
			outcomeJSON, "", now, now,
		))

	got, err := repo.GetByID(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.FilingCompleted || len(got.Files) != 1 || got.Files[0].StorageKey != "k" {
		t.Fatalf("unexpected filing: %+v", got)
	}
	if got.Outcome == nil || got.Outcome.SystemStatus != domain.SystemDeclined || got.Outcome.Policies[0].Comment != "expired" {
		t.Fatalf("unexpected outcome: %+v", got.Outcome)
	}
}

func TestGetByIDWithoutOutcome(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, application_id").
		WithArgs("f-2").
		WillReturnRows(sqlmock.NewRows(filingColumns).AddRow("f-2", "APP-1", "mortgage", "queued", []byte(`[]`), nil, "", now, now))

	got, err := repo.GetByID(context.Background(), "f-2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Outcome != nil {
		t.Fatalf("expected no outcome, got %+v", got.Outcome)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, application_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrFilingNotFound) {
		t.Fatalf("expected ErrFilingNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE filings").
		WithArgs("missing", string(domain.FilingProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.FilingProcessing, "")
	if !domain.IsKind(err, domain.ErrFilingNotFound) {
		t.Fatalf("expected ErrFilingNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveOutcomeReplacesWholeOutcome(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	outcome := domain.ApplicationOutcome{SystemStatus: domain.SystemApproved, DocumentCheckStatus: domain.CheckPass, PolicyCheckStatus: domain.CheckPass}
	outcomeJSON, _ := json.Marshal(outcome)

	mock.ExpectExec("UPDATE filings").
		WithArgs("f-1", outcomeJSON, "Approved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveOutcome(context.Background(), "f-1", outcome); err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveOutcomeReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE filings").
		WithArgs("missing", sqlmock.AnyArg(), "Declined", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveOutcome(context.Background(), "missing", domain.ApplicationOutcome{SystemStatus: domain.SystemDeclined})
	if !domain.IsKind(err, domain.ErrFilingNotFound) {
		t.Fatalf("expected ErrFilingNotFound, got %v", err)
	}
}
