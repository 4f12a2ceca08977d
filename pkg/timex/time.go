// Package timex 提供可直接用于 JSON 与数据库的时间类型
package timex

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format of Time, the same ISO-8601 shape the GUI parses
const Layout = "2006-01-02T15:04:05.000Z07:00"

// Time wraps time.Time; the zero value encodes as JSON null
// Time 包装 time.Time，零值编码为 JSON null
type Time time.Time

func Now() Time {
	return Time(time.Now())
}

func (t Time) Time() time.Time {
	return time.Time(t)
}

func (t Time) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t Time) Unix() int64 {
	return time.Time(t).Unix()
}

func (t Time) UnixMilli() int64 {
	return time.Time(t).UnixMilli()
}

func (t Time) UnixMicro() int64 {
	return time.Time(t).UnixMicro()
}

func (t Time) UnixNano() int64 {
	return time.Time(t).UnixNano()
}

func (t Time) String() string {
	if t.IsZero() {
		return ""
	}
	return time.Time(t).Format(Layout)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + time.Time(t).Format(Layout) + `"`), nil
}

// UnmarshalJSON accepts null, RFC 3339 strings and epoch milliseconds
// UnmarshalJSON 支持 null、RFC 3339 字符串和毫秒时间戳
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*t = Time{}
		return nil
	}
	if !strings.HasPrefix(s, `"`) {
		var ms int64
		if _, err := fmt.Sscan(s, &ms); err != nil {
			return fmt.Errorf("timex: invalid time %s", s)
		}
		*t = Time(time.UnixMilli(ms))
		return nil
	}
	s = strings.Trim(s, `"`)
	for _, layout := range []string{Layout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Time(parsed)
			return nil
		}
	}
	return fmt.Errorf("timex: invalid time %q", s)
}

// Value implements driver.Valuer, zero is stored as NULL
func (t Time) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return time.Time(t), nil
}

// Scan implements sql.Scanner
func (t *Time) Scan(v interface{}) error {
	switch val := v.(type) {
	case nil:
		*t = Time{}
	case time.Time:
		*t = Time(val)
	case string:
		parsed, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", val)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339Nano, val)
			if err != nil {
				return fmt.Errorf("timex: can not scan %q", val)
			}
		}
		*t = Time(parsed)
	case []byte:
		return t.Scan(string(val))
	default:
		return fmt.Errorf("timex: can not scan %T", v)
	}
	return nil
}
