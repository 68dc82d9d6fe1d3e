package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/render"
	"storefront/internal/storage"
)

// Uploads handles image uploads for the site form and their removal
// from the profile page.
type Uploads struct {
	images  ImageStore
	uploads UploadRepository
}

// NewUploads creates the Uploads handler group. images is nil when
// object storage is not configured.
func NewUploads(images ImageStore, uploads UploadRepository) *Uploads {
	return &Uploads{images: images, uploads: uploads}
}

// Create stores a multipart "image" file and returns its URLs as JSON.
func (u *Uploads) Create(w http.ResponseWriter, r *http.Request) {
	if u.images == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Image storage is not configured.")
		return
	}

	// Leave room for the multipart envelope and the purpose field.
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+64*1024)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "Image too large. Maximum size is 5 MB.")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "Expected a multipart image upload.")
		return
	}

	purpose := models.UploadPurpose(r.FormValue("purpose"))
	if purpose == "" {
		purpose = models.PurposeProduct
	}
	if !purpose.Valid() {
		writeJSONError(w, http.StatusBadRequest, "Unknown image purpose.")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No image provided.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Failed to read image.")
		return
	}

	upload, err := u.images.Store(r.Context(), middleware.UserID(r.Context()), purpose, data)
	switch {
	case errors.Is(err, storage.ErrImageTooLarge):
		writeJSONError(w, http.StatusRequestEntityTooLarge, "Image too large. Maximum size is 5 MB.")
		return
	case errors.Is(err, storage.ErrUnsupportedType):
		writeJSONError(w, http.StatusBadRequest, "Only JPEG, PNG, GIF and WebP images are accepted.")
		return
	case err != nil:
		slog.Error("image upload failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to upload image.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       upload.ID,
		"url":      upload.URL,
		"thumbUrl": u.images.ThumbURL(upload),
		"size":     upload.HumanSize(),
		"type":     upload.ContentType,
	})
}

// Delete removes one of the caller's uploads and its objects.
func (u *Uploads) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	deleted, err := u.uploads.Delete(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("upload delete failed", "error", err, "upload_id", id)
		render.SetFlash(w, render.FlashError, genericError)
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	if deleted == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if u.images != nil {
		u.images.Remove(r.Context(), deleted)
	}
	render.SetFlash(w, render.FlashSuccess, "Image deleted.")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}
