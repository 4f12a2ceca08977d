// Package harvest lists, filters and delivers remote files for one harvester config
// Package harvest 负责单个采集配置的列举、过滤与投递
package harvest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrEmptyCut 空的截取表达式，表示条目没有序号
	ErrEmptyCut = errors.New("empty cut expression")
	// ErrCutOutOfRange 截取范围超出文件名长度
	ErrCutOutOfRange = errors.New("cut range out of bounds")
)

// InvalidCutError 表达式无法解析
type InvalidCutError struct {
	Expr string
	Part string
}

func (e *InvalidCutError) Error() string {
	return fmt.Sprintf("invalid cut expression %q at %q", e.Expr, e.Part)
}

type charRange struct {
	from int // 0-based, inclusive
	to   int // 0-based, exclusive; -1 = end of string
}

// Cut selects character ranges from a string, like cut(1) -c.
//
//	N      the N'th character, counted from 1
//	N-     from the N'th character to the end
//	N-M    from the N'th to the M'th character, inclusive
//	-M     from the first to the M'th character, inclusive
//
// Ranges are comma separated and the selections are concatenated in order.
type Cut struct {
	expr   string
	ranges []charRange
}

// ParseCut 解析截取表达式，空白字符会被忽略
func ParseCut(expr string) (*Cut, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expr)
	if compact == "" {
		return nil, ErrEmptyCut
	}

	c := &Cut{expr: expr}
	for _, part := range strings.Split(compact, ",") {
		r, err := parseRange(part)
		if err != nil {
			return nil, &InvalidCutError{Expr: expr, Part: part}
		}
		c.ranges = append(c.ranges, r)
	}
	return c, nil
}

func parseRange(part string) (charRange, error) {
	from, to, isRange := strings.Cut(part, "-")
	if !isRange {
		n, err := parsePosition(from)
		if err != nil {
			return charRange{}, err
		}
		return charRange{from: n - 1, to: n}, nil
	}
	if from == "" && to == "" {
		return charRange{}, errors.New("empty range")
	}

	r := charRange{from: 0, to: -1}
	if from != "" {
		n, err := parsePosition(from)
		if err != nil {
			return charRange{}, err
		}
		r.from = n - 1
	}
	if to != "" {
		n, err := parsePosition(to)
		if err != nil {
			return charRange{}, err
		}
		r.to = n
	}
	return r, nil
}

func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("positions are counted from 1")
	}
	return n, nil
}

// Of applies the cut to s. A range reaching outside s is an error.
func (c *Cut) Of(s string) (string, error) {
	runes := []rune(s)
	var sb strings.Builder
	for _, r := range c.ranges {
		to := r.to
		if to == -1 {
			to = len(runes)
		}
		if r.from > to || to > len(runes) {
			return "", ErrCutOutOfRange
		}
		sb.WriteString(string(runes[r.from:to]))
	}
	return sb.String(), nil
}

func (c *Cut) String() string {
	return c.expr
}
