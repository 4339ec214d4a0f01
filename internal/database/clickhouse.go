package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	clickmigrations "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"shortlink/internal/types"
)

//go:embed migrations/clickhouse/*.sql
var migrationsClickHouseFS embed.FS

// Analytics owns the link_histories table: a buffered append path for click
// events and the aggregation read side.
type Analytics struct {
	db           *sql.DB
	clicksBuffer chan types.ClickEvent
}

const (
	clickBufferSize = 1000
	clickBatchSize  = 100
	clickFlushEvery = 5 * time.Second
)

func ConnectClickHouse(addr, user, pass, dbName string) (*Analytics, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: user,
			Password: pass,
		},
		DialTimeout: time.Second * 30,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	a := &Analytics{
		db:           conn,
		clicksBuffer: make(chan types.ClickEvent, clickBufferSize),
	}

	if err := a.runMigrations(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Analytics) runMigrations() error {
	d, err := iofs.New(migrationsClickHouseFS, "migrations/clickhouse")
	if err != nil {
		return err
	}

	driver, err := clickmigrations.WithInstance(a.db, &clickmigrations.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"clickhouse", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	slog.Info("ClickHouse migrations applied successfully")
	return nil
}

// Start launches the batching writer. Buffered events are flushed on size,
// on a timer, and once more when ctx is cancelled.
func (a *Analytics) Start(ctx context.Context) {
	go a.worker(ctx)
}

func (a *Analytics) worker(ctx context.Context) {
	var buffer []types.ClickEvent
	ticker := time.NewTicker(clickFlushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		if err := a.recordClicks(buffer); err != nil {
			slog.Warn("recordClicks error", "error", err, "dropped", len(buffer))
		}
		buffer = nil
	}

	for {
		select {
		case event := <-a.clicksBuffer:
			buffer = append(buffer, event)
			if len(buffer) >= clickBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case event := <-a.clicksBuffer:
					buffer = append(buffer, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (a *Analytics) Close() error {
	return a.db.Close()
}

func (a *Analytics) recordClicks(clicks []types.ClickEvent) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO link_histories
		(link_id, ip_address, user_agent, browser, os, device, country_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range clicks {
		_, err = stmt.Exec(c.LinkID, c.IPAddress, c.UserAgent, c.Browser, c.OS, c.Device, c.CountryName, c.CreatedAt)
		if err != nil {
			slog.Error("failed to exec insert for click", "error", err, "link_id", c.LinkID)
			continue
		}
	}
	return tx.Commit()
}

// PushClick enqueues a click for the batching writer. Tracking is
// best-effort: a full buffer drops the event instead of blocking the
// redirect path.
func (a *Analytics) PushClick(event types.ClickEvent) {
	select {
	case a.clicksBuffer <- event:
	default:
		slog.Warn("analytics buffer full, dropping click event", "link_id", event.LinkID)
	}
}

// scopeClause builds a link_id filter. An empty slice means system-wide.
func scopeClause(linkIDs []int64) (string, []any) {
	if len(linkIDs) == 0 {
		return "1 = 1", nil
	}
	placeholders := make([]string, len(linkIDs))
	args := make([]any, len(linkIDs))
	for i, id := range linkIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	return "link_id IN (" + strings.Join(placeholders, ", ") + ")", args
}

func (a *Analytics) CountClicks(ctx context.Context, linkIDs []int64, from, to time.Time) (uint64, error) {
	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(
		`SELECT count() FROM link_histories WHERE %s AND created_at >= ? AND created_at < ?`, scope)
	args = append(args, from, to)

	var n uint64
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountUniqueClicks counts distinct (ip_address, link_id) pairs. Two links
// clicked from the same IP count as two unique clicks.
func (a *Analytics) CountUniqueClicks(ctx context.Context, linkIDs []int64, from, to time.Time) (uint64, error) {
	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(
		`SELECT uniqExact((ip_address, link_id)) FROM link_histories
		  WHERE %s AND created_at >= ? AND created_at < ?`, scope)
	args = append(args, from, to)

	var n uint64
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (a *Analytics) CountLinksWithClicks(ctx context.Context, linkIDs []int64, from, to time.Time) (uint64, error) {
	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(
		`SELECT uniqExact(link_id) FROM link_histories
		  WHERE %s AND created_at >= ? AND created_at < ?`, scope)
	args = append(args, from, to)

	var n uint64
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DailyCounts returns raw per-day counts keyed YYYY-MM-DD. Days without
// clicks are absent here; the aggregator zero-fills the full range.
func (a *Analytics) DailyCounts(ctx context.Context, linkIDs []int64, from, to time.Time) (map[string]uint64, error) {
	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(
		`SELECT toDate(created_at) AS day, count() AS clicks
		   FROM link_histories
		  WHERE %s AND created_at >= ? AND created_at < ?
		  GROUP BY day`, scope)
	args = append(args, from, to)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var (
			day    time.Time
			clicks uint64
		)
		if err := rows.Scan(&day, &clicks); err != nil {
			return nil, err
		}
		counts[day.Format("2006-01-02")] = clicks
	}
	return counts, rows.Err()
}

// HourlyCounts returns a fixed 24-slot histogram summed over the range.
// The slot index is the event timestamp's hour component.
func (a *Analytics) HourlyCounts(ctx context.Context, linkIDs []int64, from, to time.Time) ([24]uint64, error) {
	var hours [24]uint64

	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(
		`SELECT toHour(created_at) AS hour, count() AS clicks
		   FROM link_histories
		  WHERE %s AND created_at >= ? AND created_at < ?
		  GROUP BY hour`, scope)
	args = append(args, from, to)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return hours, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			hour   uint8
			clicks uint64
		)
		if err := rows.Scan(&hour, &clicks); err != nil {
			return hours, err
		}
		if hour < 24 {
			hours[hour] = clicks
		}
	}
	return hours, rows.Err()
}

// TopByDimension groups by the given dimension and counts distinct IPs per
// group, descending, label ascending on ties. The column is picked by a
// closed switch, never interpolated from input.
func (a *Analytics) TopByDimension(ctx context.Context, dim types.Dimension, linkIDs []int64, from, to time.Time, limit int) ([]types.TopEntry, error) {
	var column string
	switch dim {
	case types.ByCountry:
		column = "country_name"
	case types.ByBrowser:
		column = "browser"
	case types.ByOS:
		column = "os"
	default:
		return nil, fmt.Errorf("unknown dimension %d", dim)
	}

	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(
		`SELECT %s AS label, uniqExact(ip_address) AS visitors
		   FROM link_histories
		  WHERE %s AND created_at >= ? AND created_at < ?
		  GROUP BY label
		  ORDER BY visitors DESC, label ASC
		  LIMIT ?`, column, scope)
	args = append(args, from, to, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.TopEntry
	for rows.Next() {
		var e types.TopEntry
		if err := rows.Scan(&e.Label, &e.Count); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (a *Analytics) TopLinks(ctx context.Context, linkIDs []int64, from, to time.Time, limit int) ([]types.TopLink, error) {
	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(
		`SELECT link_id, count() AS clicks
		   FROM link_histories
		  WHERE %s AND created_at >= ? AND created_at < ?
		  GROUP BY link_id
		  ORDER BY clicks DESC, link_id ASC
		  LIMIT ?`, scope)
	args = append(args, from, to, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []types.TopLink
	for rows.Next() {
		var l types.TopLink
		if err := rows.Scan(&l.LinkID, &l.Clicks); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// PurgeLinkHistories drops every click row for the given links. Runs inside
// the owning Postgres transaction for bans and cascading deletes so a purge
// failure aborts the whole operation.
func (a *Analytics) PurgeLinkHistories(ctx context.Context, linkIDs []int64) error {
	if len(linkIDs) == 0 {
		return nil
	}
	scope, args := scopeClause(linkIDs)
	query := fmt.Sprintf(`DELETE FROM link_histories WHERE %s`, scope)
	_, err := a.db.ExecContext(ctx, query, args...)
	return err
}
