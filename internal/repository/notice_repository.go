package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/token-url-service/internal/model"
)

// NoticeRepo reads notices. It never writes them.
type NoticeRepo struct{ DB *sql.DB }

func NewNoticeRepo(db *sql.DB) *NoticeRepo { return &NoticeRepo{DB: db} }

// GetByID returns ErrNotFound when no notice has the id.
func (r *NoticeRepo) GetByID(ctx context.Context, id uint64) (model.Notice, error) {
	var n model.Notice
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, title, restricted, created_at FROM notices WHERE id = ? LIMIT 1",
		id).Scan(&n.ID, &n.Title, &n.Restricted, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Notice{}, ErrNotFound
	}
	if err != nil {
		return model.Notice{}, err
	}
	return n, nil
}
