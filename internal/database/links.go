package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"shortlink/internal/types"
)

const linkColumns = `id, user_id, domain_id, creator_ip, custom_name, destination, short_name, available, created_at`

// CreateLink inserts a new link in its own transaction. A duplicate
// (domain_id, short_name) pair surfaces as ErrConflict so the caller can
// retry with a fresh path.
func (db *Database) CreateLink(ctx context.Context, link *types.Link) (*types.Link, error) {
	var created types.Link
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &created,
			`INSERT INTO links (user_id, domain_id, creator_ip, custom_name, destination, short_name)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+linkColumns,
			link.UserID, link.DomainID, link.CreatorIP, link.CustomName, link.Destination, link.ShortName)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, types.ErrConflict
		}
		return nil, err
	}
	return &created, nil
}

func (db *Database) GetLink(ctx context.Context, id int64) (*types.Link, error) {
	var l types.Link
	err := db.db.GetContext(ctx, &l,
		`SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &l, nil
}

// GetLinkByHostPath resolves an inbound (host, path) pair to an active link.
// Disabled links do not resolve.
func (db *Database) GetLinkByHostPath(ctx context.Context, host, path string) (*types.Link, error) {
	var l types.Link
	err := db.db.GetContext(ctx, &l,
		`SELECT l.id, l.user_id, l.domain_id, l.creator_ip, l.custom_name,
		        l.destination, l.short_name, l.available, l.created_at
		   FROM links l
		   JOIN domains d ON d.id = l.domain_id
		  WHERE d.name = $1 AND l.short_name = $2 AND l.available = TRUE`,
		host, path)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &l, nil
}

func (db *Database) ListLinksByUser(ctx context.Context, userID int64) ([]types.Link, error) {
	var links []types.Link
	err := db.db.SelectContext(ctx, &links,
		`SELECT `+linkColumns+` FROM links WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (db *Database) ListLinksByDomain(ctx context.Context, domainID int64) ([]types.Link, error) {
	var links []types.Link
	err := db.db.SelectContext(ctx, &links,
		`SELECT `+linkColumns+` FROM links WHERE domain_id = $1 ORDER BY id`, domainID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (db *Database) LinkIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := db.db.SelectContext(ctx, &ids,
		`SELECT id FROM links WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (db *Database) UpdateLink(ctx context.Context, id int64, customName, destination string) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE links
		    SET custom_name = NULLIF($2, ''),
		        destination = COALESCE(NULLIF($3, ''), destination)
		  WHERE id = $1`,
		id, customName, destination)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (db *Database) SetLinkAvailable(ctx context.Context, id int64, available bool) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE links SET available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteLink removes a link; the purge callback runs inside the transaction
// so the link's click history is gone before the row delete commits. A
// partial delete must never be observable.
func (db *Database) DeleteLink(ctx context.Context, id int64, purge func(linkIDs []int64) error) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}
		if purge != nil {
			return purge([]int64{id})
		}
		return nil
	})
}

func (db *Database) CountLinks(ctx context.Context, activeOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM links`
	if activeOnly {
		query += ` WHERE available = TRUE`
	}
	var n int64
	if err := db.db.GetContext(ctx, &n, query); err != nil {
		return 0, err
	}
	return n, nil
}

func (db *Database) CountLinksByUser(ctx context.Context, userID int64, activeOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM links WHERE user_id = $1`
	if activeOnly {
		query += ` AND available = TRUE`
	}
	var n int64
	if err := db.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, err
	}
	return n, nil
}

