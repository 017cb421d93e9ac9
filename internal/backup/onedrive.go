package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

type RemoteFile struct {
	ID       string
	Name     string
	Size     int64
	Modified time.Time
	IsFolder bool
}

// Remote is a file store the database snapshots are copied to.
type Remote interface {
	// ListRemoteFiles lists folderID, or the drive root when it is empty.
	ListRemoteFiles(ctx context.Context, folderID string) ([]RemoteFile, error)
	DownloadRemoteFile(ctx context.Context, fileID, destPath string) error
	UploadFile(ctx context.Context, folderID, name, localPath string) (RemoteFile, error)
}

// GraphError is a non-2xx answer from Microsoft Graph.
type GraphError struct {
	Status  int
	Code    string
	Message string
}

func (e *GraphError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph: status %d", e.Status)
	}
	return fmt.Sprintf("graph: %s (status %d): %s", e.Code, e.Status, e.Message)
}

// TokenFunc returns a bearer token for each request.
type TokenFunc func(ctx context.Context) (string, error)

// TokenFrom adapts an Identity for one account to a TokenFunc.
func TokenFrom(id Identity, account string) TokenFunc {
	return func(ctx context.Context) (string, error) {
		return id.AcquireTokenSilently(ctx, account)
	}
}

// OneDrive talks to the Microsoft Graph drive API of the signed-in user.
type OneDrive struct {
	baseURL string
	token   TokenFunc
	client  *retryablehttp.Client
	logger  *slog.Logger
}

type OneDriveOption func(*OneDrive)

func WithRetry(max int, minWait, maxWait time.Duration) OneDriveOption {
	return func(d *OneDrive) {
		d.client.RetryMax = max
		d.client.RetryWaitMin = minWait
		d.client.RetryWaitMax = maxWait
	}
}

func WithOneDriveLogger(logger *slog.Logger) OneDriveOption {
	return func(d *OneDrive) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewOneDrive(baseURL string, token TokenFunc, opts ...OneDriveOption) *OneDrive {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	d := &OneDrive{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.client.Logger = d.logger
	return d
}

func (d *OneDrive) ListRemoteFiles(ctx context.Context, folderID string) ([]RemoteFile, error) {
	next := d.baseURL + "/me/drive/root/children"
	if folderID != "" {
		next = d.baseURL + "/me/drive/items/" + url.PathEscape(folderID) + "/children"
	}
	out := make([]RemoteFile, 0)
	for next != "" {
		body, err := d.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		for _, item := range gjson.GetBytes(body, "value").Array() {
			out = append(out, parseDriveItem(item))
		}
		next = gjson.GetBytes(body, `@odata\.nextLink`).String()
	}
	return out, nil
}

// DownloadRemoteFile writes the file content to destPath. A partial download
// never replaces an existing file.
func (d *OneDrive) DownloadRemoteFile(ctx context.Context, fileID, destPath string) error {
	resp, err := d.send(ctx, http.MethodGet, d.baseURL+"/me/drive/items/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp := filepath.Join(filepath.Dir(destPath), "."+uuid.NewString()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close download file: %w", err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move download into place: %w", err)
	}
	return nil
}

// UploadFile uploads localPath as name, replacing a file of the same name.
func (d *OneDrive) UploadFile(ctx context.Context, folderID, name, localPath string) (RemoteFile, error) {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return RemoteFile{}, fmt.Errorf("read upload file: %w", err)
	}
	target := d.baseURL + "/me/drive/root:/" + url.PathEscape(name) + ":/content"
	if folderID != "" {
		target = d.baseURL + "/me/drive/items/" + url.PathEscape(folderID) + ":/" + url.PathEscape(name) + ":/content"
	}
	body, err := d.do(ctx, http.MethodPut, target, content)
	if err != nil {
		return RemoteFile{}, err
	}
	file := parseDriveItem(gjson.ParseBytes(body))
	d.logger.Info("uploaded file", "name", file.Name, "id", file.ID, "bytes", len(content))
	return file, nil
}

func (d *OneDrive) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	resp, err := d.send(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}
	return raw, nil
}

// send returns the response for a 2xx status; the caller closes the body.
func (d *OneDrive) send(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	token, err := d.token(ctx)
	if err != nil {
		return nil, err
	}
	var payload any
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &GraphError{
			Status:  resp.StatusCode,
			Code:    gjson.GetBytes(raw, "error.code").String(),
			Message: gjson.GetBytes(raw, "error.message").String(),
		}
	}
	return resp, nil
}

func parseDriveItem(item gjson.Result) RemoteFile {
	modified, _ := time.Parse(time.RFC3339, item.Get("lastModifiedDateTime").String())
	return RemoteFile{
		ID:       item.Get("id").String(),
		Name:     item.Get("name").String(),
		Size:     item.Get("size").Int(),
		Modified: modified,
		IsFolder: item.Get("folder").Exists(),
	}
}

// IsNotFound reports whether err is a Graph 404.
func IsNotFound(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.Status == http.StatusNotFound
}
