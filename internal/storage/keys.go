package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"storefront/internal/models"
)

// ErrBadDataURI is returned for data URIs that are not base64 images.
var ErrBadDataURI = errors.New("storage: malformed image data URI")

// ObjectKey builds the key for a new object:
// users/<owner>/<purpose>/<xid><ext>. ext includes the leading dot.
func ObjectKey(owner uuid.UUID, purpose models.UploadPurpose, ext string) string {
	return fmt.Sprintf("users/%s/%s/%s%s", owner, purpose, xid.New().String(), ext)
}

// ThumbKey derives the thumbnail key from an object key.
func ThumbKey(key string) string {
	if dot := strings.LastIndexByte(key, '.'); dot > strings.LastIndexByte(key, '/') {
		key = key[:dot]
	}
	return key + "_thumb.jpg"
}

// DecodeDataURI splits a "data:image/<type>;base64,<payload>" URI into
// its declared content type and decoded bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	if !models.IsDataURI(uri) {
		return "", nil, ErrBadDataURI
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	return contentType, data, nil
}

// extensionFromType returns a file extension for accepted image types.
func extensionFromType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
