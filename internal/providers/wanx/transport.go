package wanx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"wanx/internal/domain"
	"wanx/internal/infra"
)

// Transport issues requests against a single DashScope host and returns raw
// response bodies. Keep-alives are disabled on the default client so each call
// uses its own connection.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewTransport builds a Transport. A nil httpClient gets a default client with
// the given timeout.
func NewTransport(baseURL string, httpClient *http.Client, timeout time.Duration, logger *infra.Logger) *Transport {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send performs one request against path on the configured host. It returns the
// HTTP status and the body, which must be valid UTF-8 text.
func (t *Transport) Send(ctx context.Context, method, path string, header http.Header, body []byte) (int, []byte, error) {
	endpoint := t.baseURL + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("wanx: build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	status, raw, err := t.do(req)
	if err != nil {
		return 0, nil, err
	}
	if !utf8.Valid(raw) {
		return status, nil, &domain.ProtocolError{URL: endpoint, Reason: "response body is not valid UTF-8"}
	}
	return status, raw, nil
}

// Download fetches the raw bytes behind an absolute artifact URL.
func (t *Transport) Download(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("wanx: invalid artifact url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("wanx: build download request: %w", err)
	}
	status, data, err := t.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("wanx: download status %d", status)
	}
	return data, nil
}

func (t *Transport) do(req *http.Request) (int, []byte, error) {
	started := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, &domain.NetworkError{Method: req.Method, URL: redact(req.URL), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &domain.NetworkError{Method: req.Method, URL: redact(req.URL), Err: err}
	}
	t.logger.Debug().
		Str("method", req.Method).
		Str("url", redact(req.URL)).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("duration", time.Since(started)).
		Msg("wanx: http call")
	return resp.StatusCode, raw, nil
}

func redact(u *url.URL) string {
	return domain.RedactURL(u.String())
}
