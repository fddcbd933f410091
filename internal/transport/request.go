package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
)

// ReadBody reads at most limit bytes of the response body and closes it.
// A body larger than limit is an error rather than silently truncated.
func ReadBody(ctx context.Context, resp *http.Response, limit int64) ([]byte, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			// Log warning but don't override the main error
			logging.FromContext(ctx).Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}
	if int64(len(body)) > limit {
		return nil, &errors.ResourceError{
			Operation: "read",
			Resource:  "response body",
			Message:   fmt.Sprintf("exceeds %d bytes", limit),
		}
	}
	return body, nil
}

// Endpoint renders a request URL without its query string, for logs and
// error messages that must not leak credentials.
func Endpoint(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
