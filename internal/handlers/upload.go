package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/odinbook/backend/internal/content"
)

const defaultMaxUploadBytes = 5 << 20

// formFile caps the request body at limit bytes and returns the named
// multipart file.
func formFile(w http.ResponseWriter, r *http.Request, field string, limit int64) (multipart.File, error) {
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, err
		}
		return nil, content.Invalid(field, "body", "Request must be multipart/form-data.", nil)
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, content.Invalid(field, "body", "File is required.", nil)
		}
		return nil, err
	}
	return file, nil
}
