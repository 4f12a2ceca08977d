package harvest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// PageNoToken 分页 URL 中的页码占位符
const PageNoToken = "${PAGE_NO}"

// maxPages 防止远端永远返回非空数组
const maxPages = 10000

var pageParam = regexp.MustCompile(`(?:\?|&)page=(\d+)`)

// pagedLister walks a JSON API page by page, starting at page 0,
// until a page returns an empty array. Every non-empty page becomes one file.
// pagedLister 逐页读取 JSON 数组，每个非空页面作为一个文件
type pagedLister struct {
	payload *domain.HttpPayload
	fetcher *httpFetcher
	now     func() time.Time
	logger  *zap.Logger
}

func newPagedLister(p *domain.HttpPayload, f *httpFetcher, now func() time.Time, lg *zap.Logger) *pagedLister {
	return &pagedLister{payload: p, fetcher: f, now: now, logger: lg}
}

func (l *pagedLister) List(ctx context.Context) ([]*RemoteFile, error) {
	template, err := SubstituteRelativeUTC(l.payload.URL, l.now())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("http harvester has no url")
	}

	stamp := l.now().Format("20060102150405")
	var files []*RemoteFile
	for pageNo := 0; pageNo < maxPages; pageNo++ {
		target := strings.ReplaceAll(template, PageNoToken, strconv.Itoa(pageNo))
		if !hasPageNo(target, pageNo) {
			l.logger.Error("PAGE_NO variable is not used correctly", zap.String("url", template))
			break
		}

		start := time.Now()
		body, count, err := l.fetchPage(ctx, target)
		if err != nil {
			return nil, err
		}
		l.logger.Info("listing page done",
			zap.String("url", target),
			zap.Int("records", count),
			zap.Duration(logger.FieldDuration, time.Since(start)))
		if count == 0 {
			break
		}

		content := body
		files = append(files, NewRemoteFile(
			fmt.Sprintf("%s.page%d", stamp, pageNo),
			int64(len(content)),
			time.Time{},
			func(context.Context) (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(content)), nil
			},
		))
	}
	return files, nil
}

func (l *pagedLister) fetchPage(ctx context.Context, target string) ([]byte, int, error) {
	resp, err := l.fetcher.get(ctx, target)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, transportErr(domain.ProtocolHTTP, "read", target, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, 0, transportErr(domain.ProtocolHTTP, "read", target, fmt.Errorf("empty response body"))
	}

	var records []interface{}
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, 0, transportErr(domain.ProtocolHTTP, "decode", target, err)
	}
	return body, len(records), nil
}

func hasPageNo(target string, pageNo int) bool {
	m := pageParam.FindStringSubmatch(target)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	return err == nil && n == pageNo
}

func (l *pagedLister) Close() error {
	l.fetcher.close()
	return nil
}
