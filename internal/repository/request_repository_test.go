package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*RequestRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRequestRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func requestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "professor_id", "access_code", "status", "student_name", "student_email",
		"student_phone", "program", "institution", "major", "gpa", "graduation_year",
		"relationship", "custom_fields", "deadline", "created_at", "updated_at",
	})
}

func TestRequestFindByAccessCodeIsCaseInsensitive(t *testing.T) {
	repo, mock := newRequestRepoMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM requests WHERE LOWER(access_code) = LOWER($1)")).
		WithArgs("abcdefghjk").
		WillReturnRows(requestRows().AddRow(
			"req1", "prof1", "ABCDEFGHJK", "PENDING", "Jane Park", "jane@example.edu",
			nil, nil, nil, nil, nil, nil, nil, []byte(`{"hobby":"robotics"}`), nil, now, now,
		))

	request, err := repo.FindByAccessCode(context.Background(), "abcdefghjk")
	require.NoError(t, err)
	assert.Equal(t, "req1", request.ID)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Equal(t, "robotics", request.CustomFields["hobby"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestListAppliesFilterAndCount(t *testing.T) {
	repo, mock := newRequestRepoMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM requests WHERE professor_id = $1 AND status = $2 AND (student_name ILIKE $3 OR student_email ILIKE $3) ORDER BY deadline ASC LIMIT 10 OFFSET 10")).
		WithArgs("prof1", models.RequestStatusSubmitted, "%jane%").
		WillReturnRows(requestRows().AddRow(
			"req1", "prof1", "ABCDEFGHJK", "SUBMITTED", "Jane Park", "jane@example.edu",
			nil, nil, nil, nil, nil, nil, nil, []byte(`{}`), nil, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests WHERE professor_id = $1")).
		WithArgs("prof1", models.RequestStatusSubmitted, "%jane%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(13))

	requests, total, err := repo.List(context.Background(), "prof1", models.RequestFilter{
		Status:    models.RequestStatusSubmitted,
		Search:    "jane",
		Page:      2,
		PageSize:  10,
		SortBy:    "deadline",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, 13, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestListIgnoresUnknownSortColumn(t *testing.T) {
	repo, mock := newRequestRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("prof1").
		WillReturnRows(requestRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests WHERE professor_id = $1")).
		WithArgs("prof1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), "prof1", models.RequestFilter{SortBy: "access_code; DROP TABLE requests"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestCreateAssignsID(t *testing.T) {
	repo, mock := newRequestRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	request := &models.Request{
		ProfessorID:  "prof1",
		AccessCode:   "ABCDEFGHJK",
		Status:       models.RequestStatusPending,
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
		CustomFields: models.JSONMap{},
	}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.NotEmpty(t, request.ID)
	assert.False(t, request.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestExistsAccessCode(t *testing.T) {
	repo, mock := newRequestRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM requests WHERE LOWER(access_code) = LOWER($1) LIMIT 1")).
		WithArgs("TAKEN12345").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM requests WHERE LOWER(access_code) = LOWER($1) LIMIT 1")).
		WithArgs("FREE123456").
		WillReturnError(sql.ErrNoRows)

	taken, err := repo.ExistsAccessCode(context.Background(), "TAKEN12345")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.ExistsAccessCode(context.Background(), "FREE123456")
	require.NoError(t, err)
	assert.False(t, taken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestUpdateStatus(t *testing.T) {
	repo, mock := newRequestRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("req1", models.RequestStatusArchived, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "req1", models.RequestStatusArchived))
	require.NoError(t, mock.ExpectationsWereMet())
}
