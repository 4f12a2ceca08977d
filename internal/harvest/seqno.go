package harvest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrIllegalSeqno 截取结果不是整数
var ErrIllegalSeqno = errors.New("extracted seqno is not a number")

// SeqnoMatcher decides whether a file name is past the seqno watermark.
// An empty extract expression disables the check and every file is fetched without a seqno.
// SeqnoMatcher 判断文件名中的序号是否超过水位
type SeqnoMatcher struct {
	cut     *Cut
	err     error
	current int64
}

// NewSeqnoMatcher 根据截取表达式与当前水位创建匹配器
func NewSeqnoMatcher(extract string, current int64) *SeqnoMatcher {
	m := &SeqnoMatcher{current: current}
	cut, err := ParseCut(extract)
	switch {
	case errors.Is(err, ErrEmptyCut):
	case err != nil:
		m.err = err
	default:
		m.cut = cut
	}
	return m
}

// Enabled 是否配置了序号截取
func (m *SeqnoMatcher) Enabled() bool {
	return m.cut != nil || m.err != nil
}

// Extract returns the seqno carried by filename, nil when seqno extraction is disabled.
// Leading and trailing blanks of the file name are ignored.
func (m *SeqnoMatcher) Extract(filename string) (*int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.cut == nil {
		return nil, nil
	}
	raw, err := m.cut.Of(strings.TrimSpace(filename))
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrIllegalSeqno, raw)
	}
	return &n, nil
}

// ShouldFetch reports whether filename is eligible, along with its seqno.
// Extraction failures are returned as errors and the file must be skipped.
// ShouldFetch 返回是否需要下载以及提取的序号
func (m *SeqnoMatcher) ShouldFetch(filename string) (bool, *int64, error) {
	seqno, err := m.Extract(filename)
	if err != nil {
		return false, nil, err
	}
	if seqno == nil {
		return true, nil, nil
	}
	return *seqno > m.current, seqno, nil
}
