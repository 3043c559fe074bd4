package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gopika0263/donation-api/internal/dto"
	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
	"github.com/Gopika0263/donation-api/pkg/export"
	"github.com/Gopika0263/donation-api/pkg/jobs"
	"github.com/Gopika0263/donation-api/pkg/storage"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultPath string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportFileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ReportServiceConfig governs download links and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	DownloadBase    string
}

// ReportService queues donation exports, exposes job status, and resolves
// signed downloads.
type ReportService struct {
	repo      reportJobStore
	donations donationLister
	queue     jobDispatcher
	files     reportFileStore
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, donations donationLister, queue jobDispatcher, files reportFileStore, signer *storage.SignedURLSigner, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.DownloadBase == "" {
		cfg.DownloadBase = "/api/admin/reports/download"
	}
	return &ReportService{
		repo:      repo,
		donations: donations,
		queue:     queue,
		files:     files,
		signer:    signer,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob validates the request, persists a queued job, and dispatches it.
// Exports are restricted to admins.
func (s *ReportService) CreateJob(ctx context.Context, req dto.CreateReportRequest, claims *models.JWTClaims) (*models.ReportJob, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	for _, status := range req.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}
	job := &models.ReportJob{
		Params:    models.ReportJobParams{Format: req.Format, Status: req.Status, Days: req.Days},
		Status:    models.ReportStatusQueued,
		CreatedBy: claims.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Params.Format)}); err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job", now); markErr != nil {
			s.logger.Warn("mark failed after enqueue error", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return job, nil
}

// GetStatus returns job metadata. A signed download URL is attached once the
// job has finished.
func (s *ReportService) GetStatus(ctx context.Context, id string, claims *models.JWTClaims) (*models.ReportJob, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status == models.ReportStatusFinished && job.ResultPath != nil {
		token, _, err := s.signer.Generate(job.ID, *job.ResultPath)
		if err != nil {
			s.logger.Warn("sign download url failed", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			url := s.cfg.DownloadBase + "/" + token
			job.ResultURL = &url
		}
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the stored export file.
// Token validity stands in for authentication on this route.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.files.CleanupOlderThan(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Warn("report cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("expired report files removed", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

// ReportWorker renders queued export jobs to disk.
type ReportWorker struct {
	repo      reportJobStore
	donations donationLister
	files     reportFileStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, donations donationLister, files reportFileStore, metrics *MetricsService, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{
		repo:      repo,
		donations: donations,
		files:     files,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes a queue job. Returning an error lets the queue retry;
// the terminal failure is recorded on the last attempt by the queue logging.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job: %w", err)
	}
	if record.Status == models.ReportStatusFinished {
		return nil
	}
	if record.Status == models.ReportStatusQueued {
		if err := w.repo.MarkProcessing(ctx, job.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("mark processing: %w", err)
		}
	}

	relPath, err := w.generate(ctx, record)
	if err != nil {
		now := w.now().UTC()
		if markErr := w.repo.MarkFailed(ctx, job.ID, err.Error(), now); markErr != nil {
			w.logger.Warn("mark report failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		w.metrics.RecordReportJob(string(models.ReportStatusFailed))
		return err
	}
	if err := w.repo.MarkFinished(ctx, job.ID, relPath, w.now().UTC()); err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	w.metrics.RecordReportJob(string(models.ReportStatusFinished))
	w.logger.Info("report export finished", zap.String("job_id", job.ID), zap.String("path", relPath))
	return nil
}

func (w *ReportWorker) generate(ctx context.Context, job *models.ReportJob) (string, error) {
	filter := models.DonationFilter{Status: job.Params.Status}
	if job.Params.Days > 0 {
		filter.CreatedAfter = w.now().AddDate(0, 0, -job.Params.Days)
	}
	donations, err := w.donations.List(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("list donations: %w", err)
	}
	dataset := donationDataset(donations)

	var data []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		data, err = w.csv.Render(dataset)
	case models.ReportFormatPDF:
		data, err = w.pdf.Render(dataset, "Donation Report")
	default:
		return "", fmt.Errorf("unsupported format %q", job.Params.Format)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", job.Params.Format, err)
	}

	relPath := filepath.Join("reports", fmt.Sprintf("donations-%s.%s", job.ID, job.Params.Format))
	if _, err := w.files.Save(relPath, data); err != nil {
		return "", fmt.Errorf("store export: %w", err)
	}
	return relPath, nil
}

func donationDataset(donations []models.Donation) export.Dataset {
	headers := []string{"ID", "Food Type", "Quantity", "Donor", "Receiver", "Status", "Pickup Address", "Created At"}
	rows := make([]map[string]string, 0, len(donations))
	for _, d := range donations {
		receiver := ""
		if d.ReceiverName != nil {
			receiver = *d.ReceiverName
		}
		rows = append(rows, map[string]string{
			"ID":             d.ID,
			"Food Type":      d.FoodType,
			"Quantity":       d.Quantity,
			"Donor":          d.DonorName,
			"Receiver":       receiver,
			"Status":         string(d.Status),
			"Pickup Address": d.PickupAddress,
			"Created At":     d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
