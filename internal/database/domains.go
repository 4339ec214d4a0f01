package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"shortlink/internal/types"
)

func (db *Database) CreateDomain(ctx context.Context, name string) (*types.Domain, error) {
	var d types.Domain
	err := db.db.GetContext(ctx, &d,
		`INSERT INTO domains (name) VALUES ($1) RETURNING id, name, available, created_at`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, types.ErrConflict
		}
		return nil, err
	}
	return &d, nil
}

func (db *Database) GetDomain(ctx context.Context, id int64) (*types.Domain, error) {
	var d types.Domain
	err := db.db.GetContext(ctx, &d,
		`SELECT id, name, available, created_at FROM domains WHERE id = $1`, id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &d, nil
}

func (db *Database) ListDomains(ctx context.Context) ([]types.Domain, error) {
	var domains []types.Domain
	err := db.db.SelectContext(ctx, &domains,
		`SELECT id, name, available, created_at FROM domains ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return domains, nil
}

// PickRandomAvailableDomain selects uniformly among available domains.
// Returns (nil, nil) when none is available; that is a hard stop for
// link creation, not a retryable condition.
func (db *Database) PickRandomAvailableDomain(ctx context.Context) (*types.Domain, error) {
	var d types.Domain
	err := db.db.GetContext(ctx, &d,
		`SELECT id, name, available, created_at FROM domains
		  WHERE available = TRUE
		  ORDER BY random() LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (db *Database) SetDomainAvailable(ctx context.Context, id int64, available bool) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE domains SET available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteDomain removes the domain and, via FK cascade, every link hosted on
// it. The purge callback runs inside the transaction with the ids of those
// links so their click history can be removed before anything commits.
func (db *Database) DeleteDomain(ctx context.Context, id int64, purge func(linkIDs []int64) error) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		var linkIDs []int64
		if err := tx.SelectContext(ctx, &linkIDs,
			`SELECT id FROM links WHERE domain_id = $1`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM domains WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}

		if purge != nil && len(linkIDs) > 0 {
			return purge(linkIDs)
		}
		return nil
	})
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}
