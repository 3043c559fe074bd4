package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Gopika0263/donation-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV, Days: 7},
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.ReportStatusQueued, job.Status)

	rows := sqlmock.NewRows([]string{"id", "params", "status", "result_path", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow(job.ID, `{"format":"csv","days":7}`, "QUEUED", nil, "admin-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatCSV, found.Params.Format)
	require.Equal(t, 7, found.Params.Days)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryMarkProcessingRequiresQueued(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $2 WHERE id = $1 AND status = $3")).
		WithArgs("job-1", models.ReportStatusProcessing, models.ReportStatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkProcessing(context.Background(), "job-1")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryMarkFinished(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $2, result_path = $3, finished_at = $4 WHERE id = $1")).
		WithArgs("job-1", models.ReportStatusFinished, "reports/donations-job-1.csv", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFinished(context.Background(), "job-1", "reports/donations-job-1.csv", at))
	require.NoError(t, mock.ExpectationsWereMet())
}
