package backup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

func newTestDrive(t *testing.T, handler http.HandlerFunc) *OneDrive {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOneDrive(srv.URL, staticToken("t0k"), WithRetry(2, time.Millisecond, 2*time.Millisecond))
}

func TestListRemoteFilesFollowsNextLink(t *testing.T) {
	var base string
	drive := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t0k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/me/drive/items/backups/children":
			if r.URL.Query().Get("page") == "2" {
				fmt.Fprint(w, `{"value":[{"id":"f2","name":"dayplan-2024-01-16.db","size":2048,"file":{}}]}`)
				return
			}
			fmt.Fprintf(w, `{"value":[
				{"id":"f1","name":"dayplan-2024-01-15.db","size":1024,"lastModifiedDateTime":"2024-01-15T08:00:00Z","file":{}},
				{"id":"d1","name":"old","folder":{"childCount":3}}
			],"@odata.nextLink":"%s/me/drive/items/backups/children?page=2"}`, base)
		default:
			http.NotFound(w, r)
		}
	})
	base = drive.baseURL

	files, err := drive.ListRemoteFiles(context.Background(), "backups")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "f1", files[0].ID)
	assert.Equal(t, int64(1024), files[0].Size)
	assert.Equal(t, 2024, files[0].Modified.Year())
	assert.True(t, files[1].IsFolder)
	assert.Equal(t, "dayplan-2024-01-16.db", files[2].Name)
}

func TestListRemoteFilesDefaultsToRoot(t *testing.T) {
	drive := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/drive/root/children" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"value":[]}`)
	})
	files, err := drive.ListRemoteFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadAndDownload(t *testing.T) {
	var stored []byte
	drive := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/me/drive/items/backups:/day.db:/content":
			stored, _ = io.ReadAll(r.Body)
			fmt.Fprintf(w, `{"id":"new-id","name":"day.db","size":%d}`, len(stored))
		case r.Method == http.MethodGet && r.URL.Path == "/me/drive/items/new-id/content":
			_, _ = w.Write(stored)
		default:
			http.NotFound(w, r)
		}
	})

	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	require.NoError(t, os.WriteFile(src, []byte("snapshot bytes"), 0o600))

	file, err := drive.UploadFile(context.Background(), "backups", "day.db", src)
	require.NoError(t, err)
	assert.Equal(t, "new-id", file.ID)
	assert.Equal(t, int64(len("snapshot bytes")), file.Size)

	dest := filepath.Join(dir, "dest.db")
	require.NoError(t, drive.DownloadRemoteFile(context.Background(), "new-id", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "snapshot bytes", string(got))
}

func TestDownloadErrorKeepsExistingFile(t *testing.T) {
	drive := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"itemNotFound","message":"The resource could not be found."}}`)
	})
	dest := filepath.Join(t.TempDir(), "dest.db")
	require.NoError(t, os.WriteFile(dest, []byte("local"), 0o600))

	err := drive.DownloadRemoteFile(context.Background(), "gone", dest)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "itemNotFound", ge.Code)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "local", string(got))
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var calls atomic.Int32
	drive := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"value":[{"id":"f1","name":"a.db"}]}`)
	})
	files, err := drive.ListRemoteFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenErrorStopsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer srv.Close()
	drive := NewOneDrive(srv.URL, func(context.Context) (string, error) { return "", ErrNotSignedIn })

	_, err := drive.ListRemoteFiles(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Zero(t, calls.Load())
}
