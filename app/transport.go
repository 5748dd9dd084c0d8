package app

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

func NewTransport(log *zap.Logger) http.RoundTripper {
	return &transport{http.DefaultTransport, log}
}

// transport logs every upstream request. Query strings are left out since
// they can carry API tokens.
type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := tpt.base.RoundTrip(req)

	fields := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"elapsed", time.Since(start),
	}
	if err != nil {
		tpt.log.Sugar().Debugw("Upstream request failed", append(fields, "err", err)...)
		return resp, err
	}
	tpt.log.Sugar().Debugw("Upstream request", append(fields, "status", resp.StatusCode)...)
	return resp, nil
}
