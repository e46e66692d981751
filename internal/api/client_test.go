package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000/", "secret123")
	require.NotNil(t, c)
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret123", c.secret)
	assert.NotNil(t, c.http)
}

func TestHealthcheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"server error", http.StatusInternalServerError, true},
		{"not found", http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/healthcheck", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := New(server.URL, "").Healthcheck(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	assert.Error(t, New(url, "").Healthcheck(context.Background()))
}

func writeReplay(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heat_1.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("replay-bytes"), 0644))
	return path
}

func TestUpload(t *testing.T) {
	path := writeReplay(t)

	var form map[string]string
	var fileBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sessions/add", r.URL.Path)

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			fileBody = string(data)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := New(server.URL, "secret").Upload(context.Background(), path, core.UploadMetadata{
		SessionName: "Heat 1",
		TrackName:   "stadium",
		Duration:    90500 * time.Millisecond,
		Karts:       4,
		Tag:         "practice",
	})
	require.NoError(t, err)

	assert.Equal(t, "secret", form["secret"])
	assert.Equal(t, "heat_1.json.gz", form["filename"])
	assert.Equal(t, "Heat 1", form["sessionName"])
	assert.Equal(t, "stadium", form["trackName"])
	assert.Equal(t, "90.500", form["duration"])
	assert.Equal(t, "4", form["karts"])
	assert.Equal(t, "practice", form["tag"])
	assert.Equal(t, "replay-bytes", fileBody)
}

func TestUpload_ServerRejects(t *testing.T) {
	path := writeReplay(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := New(server.URL, "wrong").Upload(context.Background(), path, core.UploadMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUpload_MissingFile(t *testing.T) {
	err := New("http://localhost:5000", "").Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), core.UploadMetadata{})
	assert.Error(t, err)
}
