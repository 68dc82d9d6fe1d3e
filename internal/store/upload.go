// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront/internal/models"
)

// UploadStore records images pushed to object storage.
type UploadStore struct {
	db *sql.DB
}

// NewUploadStore creates a new UploadStore with the given database connection.
func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db}
}

// uploadColumns lists the columns selected in upload queries.
const uploadColumns = `id, owner_id, purpose, content_type, size_bytes,
	bucket, s3_key, thumb_s3_key, url, created_at`

const (
	queryUploadInsert = `
		INSERT INTO uploads (owner_id, purpose, content_type, size_bytes,
			bucket, s3_key, thumb_s3_key, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + uploadColumns

	queryUploadsByOwner = `SELECT ` + uploadColumns + `
		FROM uploads WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	queryUploadDelete = `DELETE FROM uploads WHERE id = $1 AND owner_id = $2
		RETURNING ` + uploadColumns
)

// scanUpload scans an upload row from the result set.
func scanUpload(scanner interface{ Scan(...any) error }) (*models.Upload, error) {
	var u models.Upload
	err := scanner.Scan(
		&u.ID, &u.OwnerID, &u.Purpose, &u.ContentType, &u.SizeBytes,
		&u.Bucket, &u.S3Key, &u.ThumbS3Key, &u.URL, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new upload record and returns it with the generated ID.
func (s *UploadStore) Create(ctx context.Context, u *models.Upload) (*models.Upload, error) {
	row := s.db.QueryRowContext(ctx, queryUploadInsert,
		u.OwnerID, u.Purpose, u.ContentType, u.SizeBytes,
		u.Bucket, u.S3Key, u.ThumbS3Key, u.URL,
	)
	created, err := scanUpload(row)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	return created, nil
}

// ListByOwner returns the user's most recent uploads.
func (s *UploadStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Upload, error) {
	rows, err := s.db.QueryContext(ctx, queryUploadsByOwner, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var items []models.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		items = append(items, *u)
	}
	return items, rows.Err()
}

// Delete removes an upload owned by ownerID and returns it so the caller
// can clean up the corresponding S3 objects. Returns nil if not found.
func (s *UploadStore) Delete(ctx context.Context, id, ownerID uuid.UUID) (*models.Upload, error) {
	u, err := scanUpload(s.db.QueryRowContext(ctx, queryUploadDelete, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete upload: %w", err)
	}
	return u, nil
}
