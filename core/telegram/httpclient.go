package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/m3rciful/postbot/core/logger"
	"github.com/m3rciful/postbot/core/telegram/netutil"
)

const retryBackoff = 2 * time.Second

// BuildHTTPClient returns the Bot API HTTP client. retries bounds how many
// times a request is re-sent after a transient transport failure; 0 sends
// each request once.
func BuildHTTPClient(retries int) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	var rt http.RoundTripper = base
	if retries > 0 {
		rt = &retryTransport{next: base, retries: retries, backoff: retryBackoff}
	}
	// Long polling holds requests open; the client timeout must exceed the poll timeout.
	return &http.Client{Timeout: 75 * time.Second, Transport: rt}
}

type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	for n := 1; err != nil && n <= t.retries && netutil.Retryable(err); n++ {
		retry, rerr := rewind(req)
		if rerr != nil {
			return nil, err
		}
		delay := netutil.Backoff(t.backoff, n)
		logger.LogEvent(context.Background(), logger.TG, slog.LevelWarn, "api.retry",
			slog.String("method", path.Base(req.URL.Path)),
			slog.Int("attempt", n),
			slog.Duration("backoff", delay),
		)
		if serr := netutil.Sleep(req.Context(), delay); serr != nil {
			return nil, serr
		}
		resp, err = t.next.RoundTrip(retry)
	}
	return resp, err
}

// rewind clones req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, http.ErrBodyReadAfterClose
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
