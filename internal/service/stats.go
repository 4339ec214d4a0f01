package service

import (
	"context"
	"math"
	"time"

	"shortlink/internal/types"
)

const (
	maxRangeDays     = 365
	defaultRangeDays = 30
	topLimit         = 5
)

// StatsStore is the Postgres side of aggregation: entity counts and scope
// resolution.
type StatsStore interface {
	GetLink(ctx context.Context, id int64) (*types.Link, error)
	GetUser(ctx context.Context, id int64) (*types.User, error)
	LinkIDsByUser(ctx context.Context, userID int64) ([]int64, error)
	CountLinks(ctx context.Context, activeOnly bool) (int64, error)
	CountLinksByUser(ctx context.Context, userID int64, activeOnly bool) (int64, error)
	CountUsers(ctx context.Context, from, to time.Time) (int64, error)
}

// AnalyticsStore is the ClickHouse side: click counts and breakdowns.
// An empty linkIDs slice means system-wide scope.
type AnalyticsStore interface {
	CountClicks(ctx context.Context, linkIDs []int64, from, to time.Time) (uint64, error)
	CountUniqueClicks(ctx context.Context, linkIDs []int64, from, to time.Time) (uint64, error)
	CountLinksWithClicks(ctx context.Context, linkIDs []int64, from, to time.Time) (uint64, error)
	DailyCounts(ctx context.Context, linkIDs []int64, from, to time.Time) (map[string]uint64, error)
	HourlyCounts(ctx context.Context, linkIDs []int64, from, to time.Time) ([24]uint64, error)
	TopByDimension(ctx context.Context, dim types.Dimension, linkIDs []int64, from, to time.Time, limit int) ([]types.TopEntry, error)
	TopLinks(ctx context.Context, linkIDs []int64, from, to time.Time, limit int) ([]types.TopLink, error)
}

// Aggregator is the read side: histograms, counts and top-N breakdowns over
// a link, a user's links, or the whole system. Every operation returns an
// explicit error; storage failures are never silently folded into zeros.
type Aggregator struct {
	store     StatsStore
	analytics AnalyticsStore
	now       func() time.Time
}

func NewAggregator(store StatsStore, analytics AnalyticsStore) *Aggregator {
	return &Aggregator{store: store, analytics: analytics, now: time.Now}
}

// normalizeRange turns an optional inclusive [start, end] day range into a
// half-open [from, to) timestamp range. Zero values default to the last
// defaultRangeDays days. A range wider than maxRangeDays is clamped by
// moving the end inward, never rejected.
func (g *Aggregator) normalizeRange(start, end time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = g.now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -(defaultRangeDays - 1))
	}

	start = truncateDay(start)
	end = truncateDay(end)

	if end.Before(start) {
		end = start
	}
	if limit := start.AddDate(0, 0, maxRangeDays); end.After(limit) {
		end = limit
	}
	return start, end.AddDate(0, 0, 1)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// fillDaily materializes every calendar day in [from, to) in ascending
// order, zero-filling days without clicks. Partial sparse results are a
// defect.
func fillDaily(counts map[string]uint64, from, to time.Time) []types.DailyCount {
	var daily []types.DailyCount
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		daily = append(daily, types.DailyCount{Date: key, Count: counts[key]})
	}
	return daily
}

// LinkStats aggregates one link over the given range.
func (g *Aggregator) LinkStats(ctx context.Context, linkID int64, start, end time.Time) (*types.LinkStats, error) {
	if _, err := g.store.GetLink(ctx, linkID); err != nil {
		return nil, err
	}

	from, to := g.normalizeRange(start, end)
	scope := []int64{linkID}

	total, err := g.analytics.CountClicks(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	unique, err := g.analytics.CountUniqueClicks(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	dailyRaw, err := g.analytics.DailyCounts(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	hourly, err := g.analytics.HourlyCounts(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	stats := &types.LinkStats{
		TotalClicks:  total,
		UniqueClicks: unique,
		Daily:        fillDaily(dailyRaw, from, to),
		Hourly:       hourly,
	}

	if stats.TopCountries, err = g.analytics.TopByDimension(ctx, types.ByCountry, scope, from, to, topLimit); err != nil {
		return nil, err
	}
	if stats.TopBrowsers, err = g.analytics.TopByDimension(ctx, types.ByBrowser, scope, from, to, topLimit); err != nil {
		return nil, err
	}
	if stats.TopOS, err = g.analytics.TopByDimension(ctx, types.ByOS, scope, from, to, topLimit); err != nil {
		return nil, err
	}
	return stats, nil
}

// UserDashboard aggregates over every link the user owns, over the default
// range. A user without links gets an all-zero dashboard, not a system-wide
// one.
func (g *Aggregator) UserDashboard(ctx context.Context, userID int64) (*types.UserDashboard, error) {
	if _, err := g.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	dash := &types.UserDashboard{}

	var err error
	if dash.TotalLinks, err = g.store.CountLinksByUser(ctx, userID, false); err != nil {
		return nil, err
	}
	if dash.ActiveLinks, err = g.store.CountLinksByUser(ctx, userID, true); err != nil {
		return nil, err
	}

	linkIDs, err := g.store.LinkIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(linkIDs) == 0 {
		return dash, nil
	}

	from, to := g.normalizeRange(time.Time{}, time.Time{})

	if dash.TotalClicks, err = g.analytics.CountClicks(ctx, linkIDs, from, to); err != nil {
		return nil, err
	}
	if dash.UniqueClicks, err = g.analytics.CountUniqueClicks(ctx, linkIDs, from, to); err != nil {
		return nil, err
	}
	if dash.TopLinks, err = g.analytics.TopLinks(ctx, linkIDs, from, to, topLimit); err != nil {
		return nil, err
	}
	if dash.TopCountries, err = g.analytics.TopByDimension(ctx, types.ByCountry, linkIDs, from, to, topLimit); err != nil {
		return nil, err
	}
	if dash.TopBrowsers, err = g.analytics.TopByDimension(ctx, types.ByBrowser, linkIDs, from, to, topLimit); err != nil {
		return nil, err
	}
	if dash.TopOS, err = g.analytics.TopByDimension(ctx, types.ByOS, linkIDs, from, to, topLimit); err != nil {
		return nil, err
	}
	if dash.Hourly, err = g.analytics.HourlyCounts(ctx, linkIDs, from, to); err != nil {
		return nil, err
	}
	return dash, nil
}

// AdminDashboard aggregates system-wide over the given range.
func (g *Aggregator) AdminDashboard(ctx context.Context, start, end time.Time) (*types.AdminDashboard, error) {
	from, to := g.normalizeRange(start, end)

	dash := &types.AdminDashboard{}

	var err error
	if dash.TotalLinks, err = g.store.CountLinks(ctx, false); err != nil {
		return nil, err
	}
	if dash.ActiveLinks, err = g.store.CountLinks(ctx, true); err != nil {
		return nil, err
	}
	if dash.TotalUsers, err = g.store.CountUsers(ctx, time.Time{}, time.Time{}); err != nil {
		return nil, err
	}
	if dash.TotalClicks, err = g.analytics.CountClicks(ctx, nil, from, to); err != nil {
		return nil, err
	}
	if dash.UniqueClicks, err = g.analytics.CountUniqueClicks(ctx, nil, from, to); err != nil {
		return nil, err
	}

	linksWithClicks, err := g.analytics.CountLinksWithClicks(ctx, nil, from, to)
	if err != nil {
		return nil, err
	}
	dash.AvgClicksPerLink = avgClicksPerLink(dash.UniqueClicks, linksWithClicks)

	dailyRaw, err := g.analytics.DailyCounts(ctx, nil, from, to)
	if err != nil {
		return nil, err
	}
	dash.Daily = fillDaily(dailyRaw, from, to)

	if dash.Hourly, err = g.analytics.HourlyCounts(ctx, nil, from, to); err != nil {
		return nil, err
	}
	if dash.TopCountries, err = g.analytics.TopByDimension(ctx, types.ByCountry, nil, from, to, topLimit); err != nil {
		return nil, err
	}
	if dash.TopBrowsers, err = g.analytics.TopByDimension(ctx, types.ByBrowser, nil, from, to, topLimit); err != nil {
		return nil, err
	}
	if dash.TopOS, err = g.analytics.TopByDimension(ctx, types.ByOS, nil, from, to, topLimit); err != nil {
		return nil, err
	}
	return dash, nil
}

// avgClicksPerLink is round(unique / links with any click), 0 when no link
// has clicks.
func avgClicksPerLink(uniqueClicks, linksWithClicks uint64) int64 {
	if linksWithClicks == 0 {
		return 0
	}
	return int64(math.Round(float64(uniqueClicks) / float64(linksWithClicks)))
}
