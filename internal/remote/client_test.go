package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/domain"
)

func TestListSendsAuthAndOrdering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/rest/v1/workout_logs", r.URL.Path)
		require.Equal(t, "*", r.URL.Query().Get("select"))
		require.Equal(t, "timestamp.desc", r.URL.Query().Get("order"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))
		require.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"a","date":"2025-03-05","time":"08:00","workout":"HIIT","duration_minutes":5,"calories":61.25,"timestamp":2,"image_uri":"https://img/1.jpg","created_at":"2025-03-05T08:05:00Z"},
			{"id":"b","date":"2025-03-04","time":"07:00","workout":"Yoga","duration_minutes":10,"calories":36.75,"timestamp":1,"image_uri":null}
		]`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	logs, err := client.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.ActivityLog{
		{Date: "2025-03-05", Time: "08:00", Workout: "HIIT", DurationMinutes: 5, Calories: 61.25, Timestamp: 2, ImageRef: "https://img/1.jpg"},
		{Date: "2025-03-04", Time: "07:00", Workout: "Yoga", DurationMinutes: 10, Calories: 36.75, Timestamp: 1},
	}, logs)
}

func TestInsertUsesSnakeCaseAndReturnRepresentation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "return=representation", r.Header.Get("Prefer"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Running", body["workout"])
		require.InDelta(t, 10.0, body["duration_minutes"], 1e-9)
		require.Contains(t, body, "image_uri")
		require.Nil(t, body["image_uri"])
		require.NotContains(t, body, "id")

		body["id"] = "row-1"
		body["created_at"] = "2025-03-05T08:00:00Z"
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode([]map[string]any{body}))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	entry := domain.ActivityLog{Date: "2025-03-05", Time: "08:00", Workout: "Running", DurationMinutes: 10, Calories: 98, Timestamp: 1741161600000}

	stored, err := client.Insert(context.Background(), entry)
	require.NoError(t, err)
	require.Equal(t, entry, stored)
}

func TestDeleteFilters(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		queries = append(queries, r.URL.RawQuery)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.DeleteByTimestamp(context.Background(), 1741161600000))
	require.NoError(t, client.DeleteAll(context.Background()))

	require.Equal(t, []string{"timestamp=eq.1741161600000", "id=neq.null"}, queries)
}

func TestNon2xxBecomesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"JWT expired"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).List(context.Background())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusUnauthorized, statusErr.Code)
	require.Contains(t, statusErr.Body, "JWT expired")
}

func TestUploadImageReturnsPublicURL(t *testing.T) {
	var uploadedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "image/png", r.Header.Get("Content-Type"))
		payload, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "png-bytes", string(payload))
		uploadedPath = r.URL.Path
		_, _ = w.Write([]byte(`{"Key":"workout-images/x"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	publicURL, err := client.UploadImage(context.Background(), strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)

	name := regexp.MustCompile(`^workout-1741161600000-[0-9a-f-]{36}\.png$`)
	require.True(t, strings.HasPrefix(uploadedPath, "/storage/v1/object/workout-images/"))
	require.Regexp(t, name, strings.TrimPrefix(uploadedPath, "/storage/v1/object/workout-images/"))
	require.Equal(t, srv.URL+"/storage/v1/object/public/workout-images/"+strings.TrimPrefix(uploadedPath, "/storage/v1/object/workout-images/"), publicURL)
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestAccessTokenDefaultsToAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "anon-key"})
	require.NoError(t, err)

	logs, err := client.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestExtensionFor(t *testing.T) {
	require.Equal(t, "jpg", extensionFor("image/jpeg"))
	require.Equal(t, "png", extensionFor("image/png; charset=binary"))
	require.Equal(t, "jpg", extensionFor("application/octet-stream"))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:     baseURL,
		APIKey:      "anon-key",
		AccessToken: "user-token",
		Timeout:     5 * time.Second,
	}, WithClock(func() time.Time { return time.UnixMilli(1741161600000) }))
	require.NoError(t, err)
	return client
}
