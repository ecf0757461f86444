package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/worldline-go/klient"

	"github.com/aramirez087/tuitbot/internal/core"
)

// doJSON issues an HTTP request through client and decodes a 2xx JSON body
// into out. method/path/query build the request; body, if non-nil, is
// marshaled as the JSON request payload.
func doJSON(ctx context.Context, client *klient.Client, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return core.Wrap(core.CodeSerializationError, "marshal request body", err)
		}
		reader = bytes.NewReader(data)
	}

	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return core.Wrap(core.CodeXNetworkError, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var statusErr error
	var bodyData []byte
	doErr := client.Do(req, func(r *http.Response) error {
		data, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			return core.Wrap(core.CodeXNetworkError, "read response body", readErr)
		}
		bodyData = data
		statusErr = mapStatus(r, data)
		return nil
	})
	if doErr != nil {
		return core.Wrap(core.CodeXNetworkError, "x api request failed", doErr)
	}
	if statusErr != nil {
		return statusErr
	}

	if out == nil || len(bodyData) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyData, out); err != nil {
		return core.Wrap(core.CodeSerializationError, fmt.Sprintf("decode response from %s", path), err)
	}
	return nil
}
