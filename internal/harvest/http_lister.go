package harvest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

var contentDispositionFilename = regexp.MustCompile(`^.*filename=["']([^"']+)["']`)

// httpFetcher issues GET requests with the config's headers,
// retrying on network errors and on 404, 500 and 502 responses.
type httpFetcher struct {
	client  *http.Client
	headers []domain.HttpHeader
	retries int
	delay   time.Duration
	logger  *zap.Logger
}

func (t *Transports) httpFetcher(headers []domain.HttpHeader) *httpFetcher {
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           t.dialer.DialContext,
		TLSHandshakeTimeout:   t.opts.DialTimeout,
		ResponseHeaderTimeout: 5 * time.Minute,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   2,
	}
	return &httpFetcher{
		client:  &http.Client{Transport: transport},
		headers: headers,
		retries: t.opts.HTTPRetries,
		delay:   t.opts.HTTPRetryDelay,
		logger:  t.logger,
	}
}

func isRetryStatus(status int) bool {
	return status == http.StatusNotFound ||
		status == http.StatusInternalServerError ||
		status == http.StatusBadGateway
}

// get returns a 200 response; anything else is a TransportError.
func (f *httpFetcher) get(ctx context.Context, target string) (*http.Response, error) {
	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = f.do(ctx, target)
		retry := err != nil || isRetryStatus(resp.StatusCode)
		if !retry || attempt >= f.retries || ctx.Err() != nil {
			break
		}
		if resp != nil {
			drain(resp.Body)
		}
		f.logger.Warn("http get failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		timer := time.NewTimer(f.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, transportErr(domain.ProtocolHTTP, "get", target, ctx.Err())
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, transportErr(domain.ProtocolHTTP, "get", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, transportErr(domain.ProtocolHTTP, "get", target,
			fmt.Errorf("got status %d", resp.StatusCode))
	}
	return resp, nil
}

func (f *httpFetcher) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for _, h := range f.headers {
		if h.Key != "" {
			req.Header.Add(h.Key, h.Value)
		}
	}
	return f.client.Do(req)
}

// getText 读取响应正文，按 Content-Type 中的字符集解码为 UTF-8
func (f *httpFetcher) getText(ctx context.Context, target string) (string, error) {
	resp, err := f.get(ctx, target)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if cs := params["charset"]; cs != "" && !strings.EqualFold(cs, "utf-8") {
			if enc, err := htmlindex.Get(cs); err == nil {
				body = enc.NewDecoder().Reader(resp.Body)
			}
		}
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", transportErr(domain.ProtocolHTTP, "read", target, err)
	}
	return string(b), nil
}

func (f *httpFetcher) close() {
	f.client.CloseIdleConnections()
}

func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// filenameFromResponse 优先使用 Content-Disposition 中的文件名，否则取 URL 最后一段
func filenameFromResponse(resp *http.Response, target string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if m := contentDispositionFilename.FindStringSubmatch(cd); m != nil {
			return m[1]
		}
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return filenameFromURL(target)
}

func filenameFromURL(target string) string {
	p := target
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimSuffix(p, "/")
	name := path.Base(p)
	if name == "." || name == "/" {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			host, _, splitErr := net.SplitHostPort(u.Host)
			if splitErr != nil {
				return u.Host
			}
			return host
		}
	}
	return name
}

// httpLister fetches a single data file, optionally locating its URL in a landing page first.
type httpLister struct {
	payload *domain.HttpPayload
	fetcher *httpFetcher
	now     func() time.Time
	logger  *zap.Logger

	mu      sync.Mutex
	pending []*pendingBody
}

func newHTTPLister(p *domain.HttpPayload, f *httpFetcher, now func() time.Time, lg *zap.Logger) *httpLister {
	return &httpLister{payload: p, fetcher: f, now: now, logger: lg}
}

func (l *httpLister) List(ctx context.Context) ([]*RemoteFile, error) {
	target, err := SubstituteRelativeUTC(l.payload.URL, l.now())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("http harvester has no url")
	}

	if l.payload.URLPattern != "" {
		target, err = l.findInContent(ctx, target, l.payload.URLPattern)
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	l.logger.Info("listing files", zap.String("url", target))
	resp, err := l.fetcher.get(ctx, target)
	if err != nil {
		return nil, err
	}
	l.logger.Info("listing done",
		zap.String("url", target),
		zap.Duration(logger.FieldDuration, time.Since(start)))

	pb := &pendingBody{body: resp.Body}
	l.mu.Lock()
	l.pending = append(l.pending, pb)
	l.mu.Unlock()

	dataURL := target
	open := func(ctx context.Context) (io.ReadCloser, error) {
		if body := pb.take(); body != nil {
			return body, nil
		}
		r, err := l.fetcher.get(ctx, dataURL)
		if err != nil {
			return nil, err
		}
		return r.Body, nil
	}
	return []*RemoteFile{
		NewRemoteFile(filenameFromResponse(resp, target), resp.ContentLength, lastModified(resp), open),
	}, nil
}

// findInContent 在页面中查找与 pattern 匹配的最短字符串作为数据文件地址
func (l *httpLister) findInContent(ctx context.Context, page, pattern string) (string, error) {
	glob, err := CompileGlob(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid url pattern %q: %w", pattern, err)
	}
	l.logger.Info("looking for pattern", zap.String("pattern", pattern), zap.String("url", page))
	content, err := l.fetcher.getText(ctx, page)
	if err != nil {
		return "", err
	}
	found, ok := glob.FindShortest(content)
	if !ok {
		return "", transportErr(domain.ProtocolHTTP, "search", page,
			fmt.Errorf("no matches found for pattern %s", pattern))
	}
	if base, err := url.Parse(page); err == nil {
		if ref, err := url.Parse(found); err == nil && !ref.IsAbs() {
			found = base.ResolveReference(ref).String()
		}
	}
	l.logger.Info("found url for pattern", zap.String("pattern", pattern), zap.String("url", found))
	return found, nil
}

func (l *httpLister) Close() error {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, pb := range pending {
		_ = pb.Close()
	}
	l.fetcher.close()
	return nil
}

func lastModified(resp *http.Response) time.Time {
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			return t
		}
	}
	return time.Time{}
}
