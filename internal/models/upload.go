// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UploadPurpose names where an uploaded image is used on a site.
type UploadPurpose string

const (
	PurposeHeader  UploadPurpose = "header"
	PurposeProduct UploadPurpose = "product"
)

// Valid reports whether p is a known purpose.
func (p UploadPurpose) Valid() bool {
	return p == PurposeHeader || p == PurposeProduct
}

// Upload represents an image pushed to S3-compatible object storage.
// Metadata is stored in PostgreSQL; the file itself lives in the bucket.
type Upload struct {
	ID          uuid.UUID     `json:"id"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	Purpose     UploadPurpose `json:"purpose"`
	ContentType string        `json:"content_type"`
	SizeBytes   int64         `json:"size_bytes"`
	Bucket      string        `json:"bucket"`
	S3Key       string        `json:"s3_key"`
	ThumbS3Key  *string       `json:"thumb_s3_key,omitempty"`
	URL         string        `json:"url"`
	CreatedAt   time.Time     `json:"created_at"`
}

// HumanSize returns a human-readable file size string.
func (u *Upload) HumanSize() string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case u.SizeBytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(u.SizeBytes)/float64(mb))
	case u.SizeBytes >= kb:
		return fmt.Sprintf("%.0f KB", float64(u.SizeBytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", u.SizeBytes)
	}
}
