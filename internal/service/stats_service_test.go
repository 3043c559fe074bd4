package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
)

type cacheRepoStub struct {
	entries map[string][]byte
	gets    int
	sets    int
	deleted []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: make(map[string][]byte)}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deleted = append(c.deleted, pattern)
	c.entries = make(map[string][]byte)
	return nil
}

func donationAt(donor, receiver string, status models.DonationStatus, createdAt time.Time) models.Donation {
	d := models.Donation{
		ID:        donor + "-" + createdAt.Format("20060102T150405"),
		DonorID:   donor,
		Status:    status,
		CreatedAt: createdAt,
	}
	if receiver != "" {
		d.ReceiverID = &receiver
	}
	return d
}

func TestDailyActivityBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 8, 15, 30, 0, 0, time.UTC)
	donations := []models.Donation{
		donationAt("donor-1", "", models.StatusAvailable, now.Add(-2*time.Hour)),
		donationAt("donor-2", "rec-1", models.StatusClaimed, now.Add(-1*time.Hour)),
		donationAt("donor-1", "rec-1", models.StatusCompleted, now.AddDate(0, 0, -3)),
		// outside the window
		donationAt("donor-3", "", models.StatusAvailable, now.AddDate(0, 0, -10)),
	}

	daily := DailyActivity(donations, 7, now)
	require.Len(t, daily, 7)

	// oldest bucket first
	require.Equal(t, "Jan 2", daily[0].Label)
	require.Equal(t, "Jan 8", daily[6].Label)

	// three days ago: one donation by donor-1, claimed by rec-1
	require.Equal(t, 1, daily[3].Donations)
	require.Equal(t, 1, daily[3].Donors)
	require.Equal(t, 1, daily[3].Receivers)

	// today: two donations from two donors, one claimed
	require.Equal(t, 2, daily[6].Donations)
	require.Equal(t, 2, daily[6].Donors)
	require.Equal(t, 1, daily[6].Receivers)

	// untouched days stay zero
	require.Equal(t, 0, daily[1].Donations)
	require.Equal(t, 0, daily[1].Donors)
}

func TestDailyActivityDistinctDonorsPerDay(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	donations := []models.Donation{
		donationAt("donor-1", "", models.StatusAvailable, now),
		donationAt("donor-1", "", models.StatusAvailable, now.Add(-30*time.Minute)),
		donationAt("donor-1", "", models.StatusAvailable, now.Add(-1*time.Hour)),
	}

	daily := DailyActivity(donations, 1, now)
	require.Len(t, daily, 1)
	require.Equal(t, 3, daily[0].Donations)
	require.Equal(t, 1, daily[0].Donors)
	require.Equal(t, 0, daily[0].Receivers)
}

func TestStatsServiceOverview(t *testing.T) {
	now := time.Date(2026, time.January, 8, 15, 30, 0, 0, time.UTC)
	repo := newDonationRepoStub()
	receiver := "rec-1"
	repo.donations["d1"] = &models.Donation{ID: "d1", DonorID: "donor-1", Status: models.StatusAvailable, CreatedAt: now}
	repo.donations["d2"] = &models.Donation{ID: "d2", DonorID: "donor-2", ReceiverID: &receiver, Status: models.StatusClaimed, CreatedAt: now.AddDate(0, 0, -3)}

	svc := NewStatsService(repo, nil, nil, nil, StatsServiceConfig{DefaultDays: 7, MaxDays: 90})
	svc.now = func() time.Time { return now }

	overview, cached, err := svc.Overview(context.Background(), 0)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 7, overview.Days)
	require.Equal(t, 2, overview.TotalDonations)
	require.Equal(t, 2, overview.TotalDonors)
	require.Equal(t, 1, overview.TotalReceivers)
	require.Equal(t, 1, overview.ByStatus[models.StatusAvailable])
	require.Equal(t, 1, overview.ByStatus[models.StatusClaimed])
	require.Len(t, overview.Daily, 7)
	require.Equal(t, 1, overview.Daily[6].Donations)
	require.Equal(t, 1, overview.Daily[3].Donations)
}

func TestStatsServiceOverviewUsesCache(t *testing.T) {
	now := time.Date(2026, time.January, 8, 15, 30, 0, 0, time.UTC)
	repo := newDonationRepoStub()
	repo.donations["d1"] = &models.Donation{ID: "d1", DonorID: "donor-1", Status: models.StatusAvailable, CreatedAt: now}

	cacheRepo := newCacheRepoStub()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewStatsService(repo, cacheSvc, nil, nil, StatsServiceConfig{DefaultDays: 7, MaxDays: 90})
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	first, cached, err := svc.Overview(ctx, 7)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, cacheRepo.sets)

	second, cached, err := svc.Overview(ctx, 7)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, first.TotalDonations, second.TotalDonations)
	require.Equal(t, 1, cacheRepo.sets)
}

func TestStatsServiceInvalidateOverview(t *testing.T) {
	now := time.Date(2026, time.January, 8, 15, 30, 0, 0, time.UTC)
	repo := newDonationRepoStub()
	repo.donations["d1"] = &models.Donation{ID: "d1", DonorID: "donor-1", Status: models.StatusAvailable, CreatedAt: now}

	cacheRepo := newCacheRepoStub()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewStatsService(repo, cacheSvc, nil, nil, StatsServiceConfig{DefaultDays: 7, MaxDays: 90})
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, err := svc.Overview(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 1, cacheRepo.sets)

	require.NoError(t, svc.InvalidateOverview(ctx))
	require.Equal(t, []string{"stats:overview:*"}, cacheRepo.deleted)

	// the cached entry is gone, so the next call recomputes
	_, cached, err := svc.Overview(ctx, 7)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 2, cacheRepo.sets)
}

func TestStatsServiceOverviewObservesQueryTiming(t *testing.T) {
	now := time.Date(2026, time.January, 8, 15, 30, 0, 0, time.UTC)
	repo := newDonationRepoStub()
	repo.donations["d1"] = &models.Donation{ID: "d1", DonorID: "donor-1", Status: models.StatusAvailable, CreatedAt: now}

	metrics := NewMetricsService()
	svc := NewStatsService(repo, nil, metrics, nil, StatsServiceConfig{DefaultDays: 7, MaxDays: 90})
	svc.now = func() time.Time { return now }

	_, _, err := svc.Overview(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, testutil.CollectAndCount(metrics.dbQueryDuration))
}

func TestStatsServiceOverviewDaysCap(t *testing.T) {
	svc := NewStatsService(newDonationRepoStub(), nil, nil, nil, StatsServiceConfig{DefaultDays: 7, MaxDays: 30})
	_, _, err := svc.Overview(context.Background(), 31)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
