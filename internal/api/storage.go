package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
)

func (h *Handler) storage(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/")
	if public, ok := strings.CutPrefix(rest, "public/"); ok {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.serveImage(w, r, public)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.uploadImage(w, r, rest)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request, objectPath string) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}
	bucket, name, ok := h.splitObjectPath(objectPath)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown bucket or object name")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "image exceeds "+strconv.FormatInt(h.maxImageBytes, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "image body is empty")
		return
	}

	contentType := strings.TrimSpace(r.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "only images are accepted")
		return
	}

	_, err = h.images.PutImage(r.Context(), domain.StoredImage{
		Bucket:      bucket,
		Name:        name,
		OwnerID:     claims.Subject,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, domain.ErrImageExists) {
			writeError(w, http.StatusConflict, "duplicate", "object already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	resp := UploadResponse{Key: bucket + "/" + name}
	if h.publicBaseURL != "" {
		resp.PublicURL = h.publicBaseURL + "/storage/v1/object/public/" + resp.Key
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) serveImage(w http.ResponseWriter, r *http.Request, objectPath string) {
	bucket, name, ok := h.splitObjectPath(objectPath)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown bucket or object name")
		return
	}

	img, err := h.images.GetImage(r.Context(), bucket, name)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "object not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// splitObjectPath accepts "{bucket}/{name}" for the configured bucket and a flat name.
func (h *Handler) splitObjectPath(objectPath string) (string, string, bool) {
	bucket, name, ok := strings.Cut(objectPath, "/")
	if !ok || bucket != h.bucket {
		return "", "", false
	}
	if name == "" || strings.Contains(name, "/") || name == "." || name == ".." {
		return "", "", false
	}
	return bucket, name, true
}
