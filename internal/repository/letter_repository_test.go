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

func newLetterRepoMock(t *testing.T) (*LetterRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLetterRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func letterRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "request_id", "destination_id", "template_id", "content", "version",
		"is_master", "is_finalized", "pdf_path", "pdf_generated_at", "created_at", "updated_at",
	})
}

func TestLetterFindCurrentMaster(t *testing.T) {
	repo, mock := newLetterRepoMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, request_id, destination_id, template_id, content, version, is_master, is_finalized, pdf_path, pdf_generated_at, created_at, updated_at FROM letters WHERE request_id = $1 AND destination_id IS NULL ORDER BY version DESC LIMIT 1")).
		WithArgs("req1").
		WillReturnRows(letterRows().AddRow("ltr1", "req1", nil, "tpl1", "content", 3, true, false, nil, nil, now, now))

	letter, err := repo.FindCurrent(context.Background(), "req1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ltr1", letter.ID)
	assert.Equal(t, 3, letter.Version)
	assert.True(t, letter.IsMaster)
	assert.Nil(t, letter.DestinationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterFindCurrentForDestination(t *testing.T) {
	repo, mock := newLetterRepoMock(t)
	now := time.Now().UTC()
	destID := "dest1"

	mock.ExpectQuery(regexp.QuoteMeta("FROM letters WHERE request_id = $1 AND destination_id = $2 ORDER BY version DESC LIMIT 1")).
		WithArgs("req1", "dest1").
		WillReturnRows(letterRows().AddRow("ltr2", "req1", destID, nil, "content", 1, false, true, nil, nil, now, now))

	letter, err := repo.FindCurrent(context.Background(), "req1", &destID)
	require.NoError(t, err)
	assert.Equal(t, "ltr2", letter.ID)
	require.NotNil(t, letter.DestinationID)
	assert.Equal(t, "dest1", *letter.DestinationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterFindCurrentNoRows(t *testing.T) {
	repo, mock := newLetterRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM letters WHERE request_id = $1 AND destination_id IS NULL")).
		WithArgs("req1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCurrent(context.Background(), "req1", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterCreateAssignsIDAndTimestamps(t *testing.T) {
	repo, mock := newLetterRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO letters")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	letter := &models.Letter{RequestID: "req1", Content: "content", Version: 1, IsMaster: true}
	require.NoError(t, repo.Create(context.Background(), letter))
	assert.NotEmpty(t, letter.ID)
	assert.False(t, letter.CreatedAt.IsZero())
	assert.Equal(t, letter.CreatedAt, letter.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterUpdateTouchesUpdatedAt(t *testing.T) {
	repo, mock := newLetterRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE letters SET content =")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	letter := &models.Letter{ID: "ltr1", Content: "edited", Version: 2}
	require.NoError(t, repo.Update(context.Background(), letter))
	assert.False(t, letter.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterUpdatePDFKeepsUpdatedAt(t *testing.T) {
	repo, mock := newLetterRepoMock(t)
	generatedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE letters SET pdf_path = $2, pdf_generated_at = $3 WHERE id = $1")).
		WithArgs("ltr1", "ltr1_v2_100.pdf", generatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePDF(context.Background(), "ltr1", "ltr1_v2_100.pdf", generatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterSetFinalizedKeepsUpdatedAt(t *testing.T) {
	repo, mock := newLetterRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE letters SET is_finalized = $2 WHERE id = $1")).
		WithArgs("ltr1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE letters SET is_finalized = $2 WHERE id = $1")).
		WithArgs("ltr1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetFinalized(context.Background(), "ltr1", true))
	require.NoError(t, repo.SetFinalized(context.Background(), "ltr1", false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterDeleteByRequestReturnsPDFPaths(t *testing.T) {
	repo, mock := newLetterRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pdf_path FROM letters WHERE request_id = $1 AND pdf_path IS NOT NULL")).
		WithArgs("req1").
		WillReturnRows(sqlmock.NewRows([]string{"pdf_path"}).AddRow("a.pdf").AddRow("b.pdf"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM letters WHERE request_id = $1")).
		WithArgs("req1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	paths, err := repo.DeleteByRequest(context.Background(), "req1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, paths)
	require.NoError(t, mock.ExpectationsWereMet())
}
