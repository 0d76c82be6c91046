package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores images in the images table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a Repository with the given connection pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches an image by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`SELECT id, url, user_id FROM images WHERE id = $1`,
		id,
	).Scan(&img.ID, &img.URL, &img.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image %q: %w", id, err)
	}
	return img, nil
}

// Put inserts img or overwrites the existing row with the same id.
func (r *PostgresRepository) Put(ctx context.Context, img *Image) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO images (id, url, user_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET url = EXCLUDED.url, user_id = EXCLUDED.user_id, updated_at = now()`,
		img.ID, img.URL, img.UserID,
	)
	if err != nil {
		return fmt.Errorf("put image %q: %w", img.ID, err)
	}
	return nil
}

// Delete removes the row and returns it.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`DELETE FROM images WHERE id = $1 RETURNING id, url, user_id`,
		id,
	).Scan(&img.ID, &img.URL, &img.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete image %q: %w", id, err)
	}
	return img, nil
}

// Scan walks every row ordered by id.
func (r *PostgresRepository) Scan(ctx context.Context, fn func(*Image) error) error {
	rows, err := r.db.Query(ctx, `SELECT id, url, user_id FROM images ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scan images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		img := &Image{}
		if err := rows.Scan(&img.ID, &img.URL, &img.UserID); err != nil {
			return fmt.Errorf("scan images: %w", err)
		}
		if err := fn(img); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan images: %w", err)
	}
	return nil
}
