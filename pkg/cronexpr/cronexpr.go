// Package cronexpr validates and evaluates the 5-field cron expressions used as harvest schedules
// Package cronexpr 校验并计算采集调度使用的 5 段 cron 表达式
package cronexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var fieldPattern = regexp.MustCompile(`^[0-9*,/\-]+$`)

// InvalidScheduleFormatError is returned for expressions that can not be used as a schedule
// InvalidScheduleFormatError 表达式不能作为调度使用
type InvalidScheduleFormatError struct {
	Expr   string
	Reason error
}

func (e *InvalidScheduleFormatError) Error() string {
	return fmt.Sprintf("invalid schedule value %q", e.Expr)
}

func (e *InvalidScheduleFormatError) Unwrap() error {
	return e.Reason
}

func invalid(expr string, format string, args ...any) error {
	return &InvalidScheduleFormatError{Expr: expr, Reason: fmt.Errorf(format, args...)}
}

// Parse returns the schedule for expr
// Parse 解析表达式
func Parse(expr string) (cron.Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return nil, invalid(expr, "empty expression")
	}
	if len(fields) != 5 {
		return nil, invalid(expr, "expected 5 fields, got %d", len(fields))
	}
	for i, f := range fields {
		if !fieldPattern.MatchString(f) {
			return nil, invalid(expr, "field %d %q contains unsupported characters", i+1, f)
		}
	}

	dow, err := normalizeDow(fields[4])
	if err != nil {
		return nil, &InvalidScheduleFormatError{Expr: expr, Reason: err}
	}
	fields[4] = dow

	sched, err := parser.Parse(strings.Join(fields, " "))
	if err != nil {
		return nil, &InvalidScheduleFormatError{Expr: expr, Reason: err}
	}
	return sched, nil
}

// Validate reports whether expr is a usable schedule
// Validate 校验表达式
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// NextFireTime returns the first fire time strictly after after
// NextFireTime 返回 after 之后的第一次触发时间
func NextFireTime(expr string, after time.Time) (time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no fire time after %s for %q", after.Format(time.RFC3339), expr)
	}
	return next, nil
}

// ShouldExecute reports whether a harvest is due at now.
// It is due when now falls inside a matching minute, or when the first fire time
// after lastHarvested lies before the start of the current minute (a missed fire).
// ShouldExecute 当前分钟匹配表达式，或上次采集之后错过了触发时间，则需要执行
func ShouldExecute(expr string, lastHarvested *time.Time, now time.Time) (bool, error) {
	sched, err := Parse(expr)
	if err != nil {
		return false, err
	}

	minute := now.Truncate(time.Minute)
	if sched.Next(minute.Add(-time.Second)).Equal(minute) {
		return true, nil
	}
	if lastHarvested == nil || lastHarvested.IsZero() {
		return false, nil
	}

	next := sched.Next(*lastHarvested)
	if next.IsZero() {
		return false, fmt.Errorf("failed to get next execution time based on %q and last harvest time %s",
			expr, lastHarvested.Format(time.RFC3339))
	}
	return next.Truncate(time.Minute).Before(minute), nil
}

// normalizeDow rewrites day-of-week 7 to 0, both mean Sunday
func normalizeDow(field string) (string, error) {
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		rangePart, step := part, ""
		if i := strings.Index(part, "/"); i >= 0 {
			rangePart, step = part[:i], part[i+1:]
		}

		lo, hi, isRange := strings.Cut(rangePart, "-")
		switch {
		case !isRange && lo == "7":
			if step != "" {
				out = append(out, "0/"+step)
			} else {
				out = append(out, "0")
			}
		case isRange && hi == "7":
			start, err := strconv.Atoi(lo)
			if err != nil {
				return "", fmt.Errorf("invalid day-of-week range %q", part)
			}
			inc := 1
			if step != "" {
				if inc, err = strconv.Atoi(step); err != nil || inc <= 0 {
					return "", fmt.Errorf("invalid day-of-week step %q", part)
				}
			}
			if start < 0 || start > 7 {
				return "", fmt.Errorf("day-of-week %d out of range", start)
			}
			for d := start; d <= 7; d += inc {
				out = append(out, strconv.Itoa(d%7))
			}
		default:
			out = append(out, part)
		}
	}
	return strings.Join(out, ","), nil
}
