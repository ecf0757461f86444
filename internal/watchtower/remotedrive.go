package watchtower

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/worldline-go/klient"

	"github.com/aramirez087/tuitbot/internal/core"
)

// RemoteDrive is a polling-only ContentSourceProvider for a remote drive
// endpoint: no filesystem watcher, the 5-min watchtower_scan interval is
// its only cadence. Built on github.com/worldline-go/klient, the same HTTP
// client internal/toolkit uses for the X API, rather than a vendor-specific
// Drive SDK: the remote-drive wire shape is a generic list/download API,
// so a thin client built on the toolkit's own HTTP pattern covers it
// without a vendor SDK dependency.
type RemoteDrive struct {
	client *klient.Client

	// ListPath returns a JSON array of {"path":"...","modified_at":"..."}
	// describing every file currently in the drive folder.
	ListPath string
	// DownloadPathFn builds the path to fetch raw file bytes from, given the
	// file's relative path as reported by ListPath.
	DownloadPathFn func(relativePath string) string
}

var _ core.ContentSourceProvider = RemoteDrive{}

// NewRemoteDrive builds a RemoteDrive authenticated with an OAuth2 bearer
// token, mirroring internal/toolkit.New's client construction.
func NewRemoteDrive(baseURL, bearerToken, listPath string, downloadPathFn func(string) string) (RemoteDrive, error) {
	c, err := klient.New(
		klient.WithBaseURL(baseURL),
		klient.WithHeaderSet(http.Header{"Authorization": []string{"Bearer " + bearerToken}}),
	)
	if err != nil {
		return RemoteDrive{}, fmt.Errorf("build remote drive client: %w", err)
	}
	return RemoteDrive{client: c, ListPath: listPath, DownloadPathFn: downloadPathFn}, nil
}

type remoteDriveEntry struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Scan lists the drive folder's current contents via one GET to ListPath.
func (d RemoteDrive) Scan(ctx context.Context) ([]core.SourceFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.ListPath, nil)
	if err != nil {
		return nil, core.Wrap(core.CodeXNetworkError, "build remote drive list request", err)
	}

	var entries []remoteDriveEntry
	var decodeErr error
	doErr := d.client.Do(req, func(r *http.Response) error {
		data, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			return readErr
		}
		decodeErr = json.Unmarshal(data, &entries)
		return nil
	})
	if doErr != nil {
		return nil, core.Wrap(core.CodeXNetworkError, "list remote drive", doErr)
	}
	if decodeErr != nil {
		return nil, core.Wrap(core.CodeSerializationError, "decode remote drive listing", decodeErr)
	}

	out := make([]core.SourceFile, 0, len(entries))
	for _, e := range entries {
		out = append(out, core.SourceFile{RelativePath: e.Path, ModifiedAt: e.ModifiedAt})
	}
	return out, nil
}

// Read downloads one file's raw bytes via a GET to DownloadPathFn(path).
func (d RemoteDrive) Read(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.DownloadPathFn(path), nil)
	if err != nil {
		return nil, core.Wrap(core.CodeXNetworkError, "build remote drive download request", err)
	}

	var data []byte
	var readErr error
	doErr := d.client.Do(req, func(r *http.Response) error {
		data, readErr = io.ReadAll(r.Body)
		return readErr
	})
	if doErr != nil {
		return nil, core.Wrap(core.CodeXNetworkError, "download remote drive file "+path, doErr)
	}
	if readErr != nil {
		return nil, core.Wrap(core.CodeXNetworkError, "read remote drive file body "+path, readErr)
	}
	return data, nil
}
