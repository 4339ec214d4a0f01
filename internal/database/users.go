package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"shortlink/internal/types"
)

const userColumns = `id, name, email, password_hash, status, created_at`

func (db *Database) CreateUser(ctx context.Context, name, email, passwordHash string) (*types.User, error) {
	var u types.User
	err := db.db.GetContext(ctx, &u,
		`INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		name, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, types.ErrConflict
		}
		return nil, err
	}
	return &u, nil
}

func (db *Database) GetUser(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	err := db.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

func (db *Database) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	var u types.User
	err := db.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

func (db *Database) UpdateUser(ctx context.Context, id int64, name, email string) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3 WHERE id = $1`, id, name, email)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrConflict
		}
		return err
	}
	return checkAffected(res)
}

func (db *Database) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (db *Database) CountUsers(ctx context.Context, from, to time.Time) (int64, error) {
	var (
		n   int64
		err error
	)
	if from.IsZero() && to.IsZero() {
		err = db.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	} else {
		err = db.db.GetContext(ctx, &n,
			`SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2`,
			from, to)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SetUserStatus moves the account to status and disables every link the
// user owns, in one transaction. When purge is non-nil it runs inside the
// transaction with the user's link ids (the ban path uses this to drop
// click history before committing). The returned slice holds the ids of the
// links that were disabled.
func (db *Database) SetUserStatus(ctx context.Context, userID int64, status types.UserStatus, purge func(linkIDs []int64) error) ([]int64, error) {
	var linkIDs []int64
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET status = $2 WHERE id = $1`, userID, status)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}

		if err := tx.SelectContext(ctx, &linkIDs,
			`SELECT id FROM links WHERE user_id = $1`, userID); err != nil {
			return err
		}

		if status == types.StatusFreezed || status == types.StatusBanned {
			if _, err := tx.ExecContext(ctx,
				`UPDATE links SET available = FALSE WHERE user_id = $1`, userID); err != nil {
				return err
			}
		}

		if purge != nil && len(linkIDs) > 0 {
			return purge(linkIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return linkIDs, nil
}

// DeleteUser removes the user and, via FK cascade, every owned link. The
// purge callback runs inside the transaction with those link ids.
func (db *Database) DeleteUser(ctx context.Context, id int64, purge func(linkIDs []int64) error) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		var linkIDs []int64
		if err := tx.SelectContext(ctx, &linkIDs,
			`SELECT id FROM links WHERE user_id = $1`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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
