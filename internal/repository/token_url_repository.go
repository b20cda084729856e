package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/token-url-service/internal/model"
)

// TokenURLRepo persists token urls and the per-email issuance locks that
// back the one-active-token-per-email rule.
type TokenURLRepo struct{ DB *sql.DB }

func NewTokenURLRepo(db *sql.DB) *TokenURLRepo { return &TokenURLRepo{DB: db} }

const tokenURLColumns = `id, email, token, notice_id, user_id, expiration_date,
       valid_forever, documents_notification, created_at, updated_at`

// ActiveTemporaryExists reports whether a non-permanent token for email
// expires after now.
func (r *TokenURLRepo) ActiveTemporaryExists(ctx context.Context, email string, now time.Time) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM token_urls
		  WHERE email = ? AND valid_forever = 0 AND expiration_date > ?)`,
		email, now.UTC()).Scan(&exists)
	return exists, err
}

// CreateTemporary inserts a time-limited token. In the same transaction it
// takes the email's issuance lock: a lock that is still live yields
// ErrEmailInUse, an expired one is renewed to the new token's expiry. Two
// concurrent first-time inserts collide on the lock's primary key and the
// loser also gets ErrEmailInUse. On success t.ID is set.
func (r *TokenURLRepo) CreateTemporary(ctx context.Context, t *model.TokenURL, now time.Time) (err error) {
	if t.ExpiresAt == nil {
		return errors.New("temporary token without expiry")
	}
	exp := t.ExpiresAt.UTC()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var lockedUntil time.Time
	err = tx.QueryRowContext(ctx,
		"SELECT expires_at FROM token_url_email_locks WHERE email = ? FOR UPDATE",
		t.Email).Scan(&lockedUntil)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO token_url_email_locks (email, expires_at) VALUES (?, ?)",
			t.Email, exp)
	case err != nil:
		return lockError(err)
	case lockedUntil.After(now.UTC()):
		return ErrEmailInUse
	default:
		_, err = tx.ExecContext(ctx,
			"UPDATE token_url_email_locks SET expires_at = ? WHERE email = ?",
			exp, t.Email)
	}
	if err != nil {
		return lockError(err)
	}

	id, err := insertTokenURL(ctx, tx, t)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	t.ID = id
	return nil
}

// CreatePermanent inserts a token without touching the issuance locks.
func (r *TokenURLRepo) CreatePermanent(ctx context.Context, t *model.TokenURL) error {
	id, err := insertTokenURL(ctx, r.DB, t)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTokenURL(ctx context.Context, db execer, t *model.TokenURL) (uint64, error) {
	var exp any
	if t.ExpiresAt != nil {
		exp = t.ExpiresAt.UTC()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO token_urls
		   (email, token, notice_id, user_id, expiration_date, valid_forever, documents_notification)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Email, t.Token, nullableID(t.NoticeID), nullableID(t.UserID), exp, t.ValidForever, t.DocumentsNotification)
	if err != nil {
		return 0, fieldError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns ErrNotFound when no token url has the id.
func (r *TokenURLRepo) GetByID(ctx context.Context, id uint64) (model.TokenURL, error) {
	var (
		t        model.TokenURL
		noticeID sql.NullInt64
		userID   sql.NullInt64
		exp      sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenURLColumns+" FROM token_urls WHERE id = ? LIMIT 1", id).
		Scan(&t.ID, &t.Email, &t.Token, &noticeID, &userID, &exp,
			&t.ValidForever, &t.DocumentsNotification, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TokenURL{}, ErrNotFound
	}
	if err != nil {
		return model.TokenURL{}, err
	}
	if noticeID.Valid {
		v := uint64(noticeID.Int64)
		t.NoticeID = &v
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		t.UserID = &v
	}
	if exp.Valid {
		v := exp.Time
		t.ExpiresAt = &v
	}
	return t, nil
}

// DisableDocumentsNotification clears the flag. The update never sets it
// back to true.
func (r *TokenURLRepo) DisableDocumentsNotification(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE token_urls SET documents_notification = 0 WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 for rows already disabled; only a missing row is an error.
		var one int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM token_urls WHERE id = ?", id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func lockError(err error) error {
	if num, _, ok := mysqlErrNumber(err); ok {
		switch num {
		case errDupEntry, errDeadlock, errLockTimeout:
			return ErrEmailInUse
		}
	}
	return fmt.Errorf("email lock: %w", err)
}

func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}
