package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Gopika0263/donation-api/internal/dto"
	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
)

type donationLister interface {
	List(ctx context.Context, filter models.DonationFilter) ([]models.Donation, error)
}

// StatsServiceConfig tunes the admin statistics endpoint.
type StatsServiceConfig struct {
	CacheTTL    time.Duration
	DefaultDays int
	MaxDays     int
}

// StatsService composes the admin dashboard aggregation. Results are cached
// with a short TTL; cache failures degrade to a recompute.
type StatsService struct {
	repo    donationLister
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	cfg     StatsServiceConfig
}

// NewStatsService constructs a StatsService with sane defaults.
func NewStatsService(repo donationLister, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg StatsServiceConfig) *StatsService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 7
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 90
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, cache: cache, metrics: metrics, logger: logger, now: time.Now, cfg: cfg}
}

// Overview returns aggregate donation statistics for the trailing window.
// The boolean reports cache utilisation.
func (s *StatsService) Overview(ctx context.Context, days int) (*dto.StatsOverview, bool, error) {
	if days <= 0 {
		days = s.cfg.DefaultDays
	}
	if days > s.cfg.MaxDays {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("days must be at most %d", s.cfg.MaxDays))
	}

	cacheKey := fmt.Sprintf("stats:overview:%d", days)
	if s.cache != nil {
		var cached dto.StatsOverview
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	donations, err := s.repo.List(ctx, models.DonationFilter{})
	s.metrics.ObserveDBQuery("donations_list", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load donations")
	}

	overview := s.compose(donations, days)
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return overview, false, nil
}

// InvalidateOverview drops every cached overview window. Called after an
// admin override so dashboards do not serve the pre-override numbers for a
// full TTL.
func (s *StatsService) InvalidateOverview(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, "stats:overview:*")
}

func (s *StatsService) compose(donations []models.Donation, days int) *dto.StatsOverview {
	donors := make(map[string]struct{})
	receivers := make(map[string]struct{})
	byStatus := make(map[models.DonationStatus]int, 5)
	for _, d := range donations {
		donors[d.DonorID] = struct{}{}
		if d.ReceiverID != nil {
			receivers[*d.ReceiverID] = struct{}{}
		}
		byStatus[d.Status]++
	}
	return &dto.StatsOverview{
		TotalDonations: len(donations),
		TotalDonors:    len(donors),
		TotalReceivers: len(receivers),
		ByStatus:       byStatus,
		Daily:          DailyActivity(donations, days, s.now()),
		Days:           days,
	}
}

// DailyActivity buckets donations by creation date into the trailing window
// of calendar days ending at now, oldest bucket first. Each bucket counts the
// donations created that day plus the distinct donors and receivers active in
// it. Labels use the local short month/day form the dashboard charts render.
func DailyActivity(donations []models.Donation, days int, now time.Time) []dto.DailyActivity {
	if days <= 0 {
		return nil
	}

	type daily struct {
		donations int
		donors    map[string]struct{}
		receivers map[string]struct{}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	buckets := make([]daily, days)
	index := make(map[string]int, days)
	labels := make([]string, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -(days - 1 - i))
		key := day.Format("2006-01-02")
		index[key] = i
		labels[i] = day.Format("Jan 2")
		buckets[i] = daily{donors: make(map[string]struct{}), receivers: make(map[string]struct{})}
	}

	for _, d := range donations {
		key := d.CreatedAt.In(now.Location()).Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			continue
		}
		buckets[i].donations++
		buckets[i].donors[d.DonorID] = struct{}{}
		if d.ReceiverID != nil {
			buckets[i].receivers[*d.ReceiverID] = struct{}{}
		}
	}

	result := make([]dto.DailyActivity, days)
	for i := range buckets {
		result[i] = dto.DailyActivity{
			Label:     labels[i],
			Donations: buckets[i].donations,
			Donors:    len(buckets[i].donors),
			Receivers: len(buckets[i].receivers),
		}
	}
	return result
}
