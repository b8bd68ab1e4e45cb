// Package parabank drives a ParaBank web application over plain HTTP:
// registration through the HTML form, everything else through the bank's
// JSON services.
package parabank

import (
	"bank_onboarder/internal/channel"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	indexPage    = "index.htm"
	registerPage = "register.htm"
	logoutPage   = "logout.htm"
	servicesRoot = "services/bank/"

	maxBodyBytes = 2 << 20
)

var _ channel.Gateway = (*Gateway)(nil)

type Gateway struct {
	baseURL *url.URL
	timeout time.Duration
	logger  *slog.Logger
}

func NewGateway(baseURL string, timeout time.Duration, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse bank base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bank base url must be absolute: %s", baseURL)
	}
	return &Gateway{
		baseURL: u,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Open starts a fresh web session with its own cookie jar.
func (g *Gateway) Open(ctx context.Context) (channel.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	s := &session{
		gw: g,
		client: &http.Client{
			Timeout: g.timeout,
			Jar:     jar,
		},
	}

	if _, err := s.do(ctx, http.MethodGet, g.resolve(indexPage, nil), nil, ""); err != nil {
		s.client.CloseIdleConnections()
		return nil, fmt.Errorf("open bank session: %w", err)
	}

	g.logger.DebugContext(ctx, "Bank session opened", slog.String("base_url", g.baseURL.String()))
	return s, nil
}

func (g *Gateway) resolve(path string, query url.Values) string {
	u := g.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (g *Gateway) service(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := g.baseURL.ResolveReference(&url.URL{
		Path:    servicesRoot + strings.Join(segments, "/"),
		RawPath: servicesRoot + strings.Join(escaped, "/"),
	})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type response struct {
	status int
	body   []byte
}

func readResponse(resp *http.Response) (response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response body: %w", err)
	}
	return response{status: resp.StatusCode, body: body}, nil
}
