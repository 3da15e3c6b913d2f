package session

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"
)

type retriedKey struct{}

// Interceptor is the RoundTripper behind Manager.HTTPClient. It attaches
// the session bearer and, on a 401 from a non-auth endpoint, refreshes the
// session and replays the request once.
type Interceptor struct {
	manager *Manager
	base    http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (it *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get("Authorization") == "" {
		if bearer := it.manager.Bearer(); bearer != "" {
			out.Header.Set("Authorization", "Bearer "+bearer)
		}
	}

	resp, err := it.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if it.manager.gateway != nil && it.manager.gateway.IsAuthEndpoint(req.URL.Path) {
		return resp, nil
	}
	if retried, _ := req.Context().Value(retriedKey{}).(bool); retried {
		return resp, nil
	}

	ctx := req.Context()
	if !it.manager.Refresh(ctx) {
		it.manager.clear(ctx, "unauthorized", true)
		return resp, nil
	}

	retry, ok := replayable(req.WithContext(context.WithValue(ctx, retriedKey{}, true)))
	if !ok {
		it.manager.logger.Debug("request body is not replayable, returning 401", zap.String("path", req.URL.Path))
		return resp, nil
	}
	drain(resp)

	retry.Header.Set("Authorization", "Bearer "+it.manager.Bearer())
	return it.RoundTrip(retry)
}

// replayable returns a copy of req with a fresh body, or false when the
// body cannot be produced again.
func replayable(req *http.Request) (*http.Request, bool) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	retry.Body = body
	return retry, true
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
