package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Gopika0263/donation-api/internal/dto"
	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
	"github.com/Gopika0263/donation-api/pkg/jobs"
	"github.com/Gopika0263/donation-api/pkg/storage"
)

type reportRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: make(map[string]*models.ReportJob)}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	copy := *job
	r.jobs[job.ID] = &copy
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if j, ok := r.jobs[id]; ok {
		copy := *j
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *reportRepoStub) MarkProcessing(ctx context.Context, id string) error {
	j, ok := r.jobs[id]
	if !ok || j.Status != models.ReportStatusQueued {
		return sql.ErrNoRows
	}
	j.Status = models.ReportStatusProcessing
	return nil
}

func (r *reportRepoStub) MarkFinished(ctx context.Context, id, resultPath string, at time.Time) error {
	j, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	j.Status = models.ReportStatusFinished
	j.ResultPath = &resultPath
	j.FinishedAt = &at
	return nil
}

func (r *reportRepoStub) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	j, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	j.Status = models.ReportStatusFailed
	j.ErrorMessage = &message
	j.FinishedAt = &at
	return nil
}

type queueStub struct {
	enqueued []jobs.Job
	fail     bool
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.fail {
		return io.ErrClosedPipe
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

func newReportFixture(t *testing.T) (*ReportService, *reportRepoStub, *donationRepoStub, *queueStub, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := newReportRepoStub()
	donations := newDonationRepoStub()
	queue := &queueStub{}
	signer := storage.NewSignedURLSigner("test-reports-secret", time.Hour)
	svc := NewReportService(repo, donations, queue, files, signer, nil, ReportServiceConfig{})
	return svc, repo, donations, queue, files
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, _, queue, _ := newReportFixture(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, dto.CreateReportRequest{Format: models.ReportFormatCSV, Days: 7}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusQueued, job.Status)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, job.ID, queue.enqueued[0].ID)
	require.Contains(t, repo.jobs, job.ID)
}

func TestReportServiceCreateJobAdminOnly(t *testing.T) {
	svc, _, _, _, _ := newReportFixture(t)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, dto.CreateReportRequest{Format: models.ReportFormatCSV}, donorClaims("donor-1", "Asha"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(ctx, dto.CreateReportRequest{Format: models.ReportFormatCSV}, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	svc, repo, _, queue, _ := newReportFixture(t)
	queue.fail = true

	_, err := svc.CreateJob(context.Background(), dto.CreateReportRequest{Format: models.ReportFormatPDF}, adminClaims("admin-1"))
	require.Error(t, err)

	require.Len(t, repo.jobs, 1)
	for _, j := range repo.jobs {
		require.Equal(t, models.ReportStatusFailed, j.Status)
	}
}

func TestReportWorkerGeneratesCSV(t *testing.T) {
	svc, repo, donations, _, files := newReportFixture(t)
	ctx := context.Background()

	receiver := "rec-1"
	receiverName := "Hope NGO"
	donations.donations["d1"] = &models.Donation{
		ID:            "d1",
		DonorID:       "donor-1",
		DonorName:     "Asha",
		ReceiverID:    &receiver,
		ReceiverName:  &receiverName,
		FoodType:      "Rice and curry",
		Quantity:      "10 plates",
		PickupAddress: "12 Main St",
		Status:        models.StatusClaimed,
		CreatedAt:     time.Now().UTC(),
	}

	job, err := svc.CreateJob(ctx, dto.CreateReportRequest{Format: models.ReportFormatCSV}, adminClaims("admin-1"))
	require.NoError(t, err)

	worker := NewReportWorker(repo, donations, files, nil, nil)
	require.NoError(t, worker.Handle(ctx, jobs.Job{ID: job.ID}))

	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFinished, stored.Status)
	require.NotNil(t, stored.ResultPath)

	file, err := files.Open(*stored.ResultPath)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Contains(t, string(content), "Rice and curry")
	require.Contains(t, string(content), "Hope NGO")
}

func TestReportServiceStatusAndDownload(t *testing.T) {
	svc, repo, donations, _, files := newReportFixture(t)
	ctx := context.Background()

	donations.donations["d1"] = &models.Donation{
		ID: "d1", DonorID: "donor-1", DonorName: "Asha",
		FoodType: "Bread", Quantity: "5 loaves", PickupAddress: "1 Side St",
		Status: models.StatusAvailable, CreatedAt: time.Now().UTC(),
	}

	job, err := svc.CreateJob(ctx, dto.CreateReportRequest{Format: models.ReportFormatCSV}, adminClaims("admin-1"))
	require.NoError(t, err)

	worker := NewReportWorker(repo, donations, files, nil, nil)
	require.NoError(t, worker.Handle(ctx, jobs.Job{ID: job.ID}))

	status, err := svc.GetStatus(ctx, job.ID, adminClaims("admin-1"))
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFinished, status.Status)
	require.NotNil(t, status.ResultURL)

	token := (*status.ResultURL)[strings.LastIndex(*status.ResultURL, "/")+1:]
	download, err := svc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, models.ReportFormatCSV, download.Format)
	require.True(t, strings.HasSuffix(download.Filename, ".csv"))

	_, err = svc.ResolveDownload(ctx, token+"broken")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
