package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/aramirez087/tuitbot/internal/core"
)

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// UploadMedia performs a single-request multipart upload (chunked upload is
// the remote API's concern above a size threshold; the capability contract
// only promises a handle back). Returns the media id to pass to PostTweet etc.
func (c *Client) UploadMedia(ctx context.Context, path string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", core.Wrap(core.CodeSerializationError, "build multipart media part", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return "", core.Wrap(core.CodeSerializationError, "write media bytes", err)
	}
	if err := w.Close(); err != nil {
		return "", core.Wrap(core.CodeSerializationError, "close multipart writer", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "", &buf)
	if err != nil {
		return "", core.Wrap(core.CodeXNetworkError, "build media upload request", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var statusErr error
	var bodyData []byte
	doErr := c.upload.Do(req, func(r *http.Response) error {
		respData, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			return core.Wrap(core.CodeXNetworkError, "read media upload response", readErr)
		}
		bodyData = respData
		statusErr = mapStatus(r, respData)
		return nil
	})
	if doErr != nil {
		return "", core.Wrap(core.CodeXNetworkError, "media upload request failed", doErr)
	}
	if statusErr != nil {
		return "", statusErr
	}

	var resp mediaUploadResponse
	if err := json.Unmarshal(bodyData, &resp); err != nil {
		return "", core.Wrap(core.CodeSerializationError, fmt.Sprintf("decode media upload response for %s", path), err)
	}
	return resp.MediaIDString, nil
}
