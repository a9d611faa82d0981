// Package api exposes the hosted workout log collection and image bucket over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
)

const (
	defaultTable         = "workout_logs"
	defaultBucket        = "workout-images"
	defaultMaxImageBytes = 10 << 20
)

// LogRepository captures owner-scoped log persistence.
type LogRepository interface {
	List(ctx context.Context, ownerID string, ascending bool) ([]domain.StoredLog, error)
	Insert(ctx context.Context, ownerID string, entry domain.ActivityLog) (domain.StoredLog, error)
	DeleteByTimestamp(ctx context.Context, ownerID string, timestamp int64) (int64, error)
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

// ImageStore captures bucket object persistence.
type ImageStore interface {
	PutImage(ctx context.Context, img domain.StoredImage) (domain.StoredImage, error)
	GetImage(ctx context.Context, bucket, name string) (domain.StoredImage, error)
}

// Options tunes the exposed collection.
type Options struct {
	Table         string
	Bucket        string
	MaxImageBytes int64
	// PublicBaseURL prefixes the public object URL returned by uploads.
	PublicBaseURL string
}

// Handler coordinates HTTP requests with the log and image stores.
type Handler struct {
	logs          LogRepository
	images        ImageStore
	table         string
	bucket        string
	maxImageBytes int64
	publicBaseURL string
}

// NewHandler builds a Handler.
func NewHandler(logs LogRepository, images ImageStore, opts Options) *Handler {
	h := &Handler{
		logs:          logs,
		images:        images,
		table:         opts.Table,
		bucket:        opts.Bucket,
		maxImageBytes: opts.MaxImageBytes,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
	}
	if h.table == "" {
		h.table = defaultTable
	}
	if h.bucket == "" {
		h.bucket = defaultBucket
	}
	if h.maxImageBytes <= 0 {
		h.maxImageBytes = defaultMaxImageBytes
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/rest/v1/", h.rest)
	mux.HandleFunc("/storage/v1/object/", h.storage)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) rest(w http.ResponseWriter, r *http.Request) {
	if strings.TrimPrefix(r.URL.Path, "/rest/v1/") != h.table {
		writeError(w, http.StatusNotFound, "not_found", "unknown table")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.listLogs(w, r)
	case http.MethodPost:
		h.createLog(w, r)
	case http.MethodDelete:
		h.deleteLogs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	ascending, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	stored, err := h.logs.List(r.Context(), claims.Subject, ascending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	views := make([]LogView, 0, len(stored))
	for _, s := range stored {
		views = append(views, toLogView(s))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createLog(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req CreateLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	stored, err := h.logs.Insert(r.Context(), claims.Subject, req.toDomain())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	if !wantsRepresentation(r.Header) {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, []LogView{toLogView(stored)})
}

func (h *Handler) deleteLogs(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	filter, err := parseDeleteFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if filter.all {
		_, err = h.logs.DeleteAll(r.Context(), claims.Subject)
	} else {
		_, err = h.logs.DeleteByTimestamp(r.Context(), claims.Subject, filter.timestamp)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

func parseListQuery(query url.Values) (bool, error) {
	ascending := false
	for key, values := range query {
		value := values[0]
		switch key {
		case "select":
			if value != "*" {
				return false, errors.New("only select=* is supported")
			}
		case "order":
			switch value {
			case "timestamp.desc":
			case "timestamp.asc":
				ascending = true
			default:
				return false, errors.New("order must be timestamp.asc or timestamp.desc")
			}
		default:
			return false, errors.New("unsupported query parameter " + key)
		}
	}
	return ascending, nil
}

type deleteFilter struct {
	all       bool
	timestamp int64
}

func parseDeleteFilter(query url.Values) (deleteFilter, error) {
	if len(query) == 0 {
		return deleteFilter{}, errors.New("delete requires a filter")
	}
	if len(query) > 1 {
		return deleteFilter{}, errors.New("delete accepts a single filter")
	}

	if raw, ok := query["timestamp"]; ok {
		value, found := strings.CutPrefix(raw[0], "eq.")
		if !found {
			return deleteFilter{}, errors.New("timestamp filter must be eq.<millis>")
		}
		ts, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return deleteFilter{}, errors.New("timestamp filter must be eq.<millis>")
		}
		return deleteFilter{timestamp: ts}, nil
	}
	if raw, ok := query["id"]; ok && raw[0] == "neq.null" {
		return deleteFilter{all: true}, nil
	}
	return deleteFilter{}, errors.New("unsupported delete filter")
}

func wantsRepresentation(header http.Header) bool {
	for _, value := range header.Values("Prefer") {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "return=representation" {
				return true
			}
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
