package toolkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
)

// apiErrorBody is the X API v2 error envelope shape.
type apiErrorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (b apiErrorBody) message() string {
	if b.Detail != "" {
		return b.Detail
	}
	if b.Title != "" {
		return b.Title
	}
	if len(b.Errors) > 0 {
		return b.Errors[0].Message
	}
	return "x api error"
}

// mapStatus converts an X API HTTP response into core's fixed error
// taxonomy. body may be nil when the response had no parseable error
// payload.
func mapStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)
	msg := parsed.message()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return core.NewError(core.CodeXAuthExpired, msg)
	case http.StatusForbidden:
		return core.NewError(core.CodeXForbidden, msg)
	case http.StatusTooManyRequests:
		reset := parseResetHeader(resp.Header.Get("x-rate-limit-reset"))
		return core.NewError(core.CodeXRateLimited, msg).WithRateLimitReset(reset)
	case http.StatusLocked: // 423 account restricted
		return core.NewError(core.CodeXAccountRestricted, msg)
	default:
		if resp.StatusCode >= 500 {
			return core.NewError(core.CodeXNetworkError, fmt.Sprintf("x api returned %d: %s", resp.StatusCode, msg))
		}
		return core.NewError(core.CodeXAPIError, fmt.Sprintf("x api returned %d: %s", resp.StatusCode, msg))
	}
}

func parseResetHeader(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
