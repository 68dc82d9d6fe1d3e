// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"storefront/internal/imaging"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

// MaxImageSize is the largest image accepted for upload (5 MB).
const MaxImageSize = 5 << 20

var (
	// ErrUnsupportedType is returned for content that is not an accepted image.
	ErrUnsupportedType = errors.New("storage: unsupported image type")

	// ErrImageTooLarge is returned for images above MaxImageSize.
	ErrImageTooLarge = errors.New("storage: image exceeds 5 MB")
)

// acceptedTypes lists the sniffed MIME types allowed for upload.
var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// thumbableTypes are image types that get a thumbnail.
// GIF is excluded to preserve animation.
var thumbableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ObjectStore is the blob store behind Images; *Client implements it.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	Bucket() string
	FileURL(key string) string
}

// UploadRecorder persists upload metadata. Implemented by *store.UploadStore.
type UploadRecorder interface {
	Create(ctx context.Context, u *models.Upload) (*models.Upload, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (*models.Upload, error)
}

// Images validates image bytes, pushes them and their thumbnail to
// object storage and records the metadata.
type Images struct {
	objects ObjectStore
	uploads UploadRecorder
}

// NewImages creates an image service.
func NewImages(objects ObjectStore, uploads UploadRecorder) *Images {
	return &Images{objects: objects, uploads: uploads}
}

// Store uploads an image for owner and returns the recorded upload.
// The content type is sniffed from the bytes, never trusted from the client.
func (im *Images) Store(ctx context.Context, owner uuid.UUID, purpose models.UploadPurpose, data []byte) (*models.Upload, error) {
	contentType, err := checkImage(data)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(owner, purpose, extensionFromType(contentType))
	if err := im.objects.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}

	var thumbKey *string
	if thumbableTypes[contentType] {
		thumb, err := imaging.Thumbnail(data, imaging.ThumbWidth)
		if err != nil {
			slog.Warn("thumbnail generation failed", "error", err, "key", key)
		} else if thumb != nil {
			tk := ThumbKey(key)
			if err := im.objects.Upload(ctx, tk, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
				slog.Warn("thumbnail upload failed", "error", err, "key", tk)
			} else {
				thumbKey = &tk
			}
		}
	}

	created, err := im.uploads.Create(ctx, &models.Upload{
		OwnerID:     owner,
		Purpose:     purpose,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Bucket:      im.objects.Bucket(),
		S3Key:       key,
		ThumbS3Key:  thumbKey,
		URL:         im.objects.FileURL(key),
	})
	if err != nil {
		im.removeObjects(ctx, key, thumbKey)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues(string(purpose)).Inc()
	return created, nil
}

// checkImage enforces the size limit and sniffs an accepted image type.
func checkImage(data []byte) (string, error) {
	if len(data) > MaxImageSize {
		return "", ErrImageTooLarge
	}
	contentType := http.DetectContentType(data)
	if !acceptedTypes[contentType] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if _, err := imaging.Inspect(data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return contentType, nil
}

// CheckDataURI reports whether an inline image would be accepted by
// Store: valid base64, a JPEG, PNG, GIF or WebP image, at most MaxImageSize.
func CheckDataURI(uri string) error {
	_, data, err := DecodeDataURI(uri)
	if err != nil {
		return err
	}
	_, err = checkImage(data)
	return err
}

// StoreDataURI decodes an inline image and stores it.
func (im *Images) StoreDataURI(ctx context.Context, owner uuid.UUID, purpose models.UploadPurpose, uri string) (*models.Upload, error) {
	_, data, err := DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	return im.Store(ctx, owner, purpose, data)
}

// Discard deletes an upload's metadata row and its objects. It undoes a
// Store whose result is no longer needed; failures are only logged.
func (im *Images) Discard(ctx context.Context, u *models.Upload) {
	if _, err := im.uploads.Delete(ctx, u.ID, u.OwnerID); err != nil {
		slog.Warn("discard upload record failed", "error", err, "upload_id", u.ID)
	}
	im.removeObjects(ctx, u.S3Key, u.ThumbS3Key)
}

// Remove deletes the objects behind an upload whose metadata row has
// already been deleted.
func (im *Images) Remove(ctx context.Context, u *models.Upload) {
	im.removeObjects(ctx, u.S3Key, u.ThumbS3Key)
}

// ThumbURL returns the public thumbnail URL, or the image URL when no
// thumbnail was generated.
func (im *Images) ThumbURL(u *models.Upload) string {
	if u.ThumbS3Key != nil {
		return im.objects.FileURL(*u.ThumbS3Key)
	}
	return u.URL
}

func (im *Images) removeObjects(ctx context.Context, key string, thumbKey *string) {
	if err := im.objects.Delete(ctx, key); err != nil {
		slog.Warn("s3 delete failed", "error", err, "key", key)
	}
	if thumbKey != nil {
		if err := im.objects.Delete(ctx, *thumbKey); err != nil {
			slog.Warn("s3 delete failed", "error", err, "key", *thumbKey)
		}
	}
}
