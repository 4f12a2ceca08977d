package harvest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UTCTokenLayout ${utc(...)} 替换后的时间格式
const UTCTokenLayout = "2006-01-02T15:04:05"

var (
	utcTokenPattern   = regexp.MustCompile(`\$\{utc\(([^}]+)\)}`)
	isoDurationRegexp = regexp.MustCompile(`(?i)^([-+]?)P(?:([-+]?[0-9]+)D)?(T(?:([-+]?[0-9]+)H)?(?:([-+]?[0-9]+)M)?(?:([-+]?[0-9]+)(?:[.,]([0-9]{0,9}))?S)?)?$`)
)

// SubstituteRelativeUTC replaces every ${utc(<ISO-8601 duration>)} token in url
// with now (UTC) minus the duration, formatted as yyyy-MM-ddTHH:mm:ss.
// SubstituteRelativeUTC 替换 URL 中的相对 UTC 时间标记
func SubstituteRelativeUTC(url string, now time.Time) (string, error) {
	if url == "" || !strings.Contains(url, "${utc(") {
		return url, nil
	}
	var firstErr error
	out := utcTokenPattern.ReplaceAllStringFunc(url, func(token string) string {
		m := utcTokenPattern.FindStringSubmatch(token)
		d, err := ParseISODuration(m[1])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return token
		}
		return now.UTC().Add(-d).Format(UTCTokenLayout)
	})
	return out, firstErr
}

// ParseISODuration parses the day-time subset of ISO-8601 durations: PnDTnHnMn.nS.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationRegexp.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || (m[2] == "" && m[3] == "") || m[3] == "T" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}

	var total time.Duration
	add := func(field string, unit time.Duration) error {
		if field == "" {
			return nil
		}
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += time.Duration(n) * unit
		return nil
	}
	if err := add(m[2], 24*time.Hour); err != nil {
		return 0, err
	}
	if err := add(m[4], time.Hour); err != nil {
		return 0, err
	}
	if err := add(m[5], time.Minute); err != nil {
		return 0, err
	}
	if err := add(m[6], time.Second); err != nil {
		return 0, err
	}
	if frac := m[7]; frac != "" {
		nanos, _ := strconv.ParseInt((frac + "000000000")[:9], 10, 64)
		if strings.HasPrefix(m[6], "-") {
			nanos = -nanos
		}
		total += time.Duration(nanos)
	}
	if m[1] == "-" {
		total = -total
	}
	return total, nil
}
