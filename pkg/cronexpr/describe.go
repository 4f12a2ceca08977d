package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
)

var monthNames = []string{"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}

var dowNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type fieldSpec struct {
	unit   string
	prefix string
	every  string
	names  []string
}

var fieldSpecs = [5]fieldSpec{
	{unit: "minute", prefix: "at minute", every: "every minute"},
	{unit: "hour", prefix: "at hour", every: "every hour"},
	{unit: "day-of-month", prefix: "on day-of-month"},
	{unit: "month", prefix: "in", names: monthNames},
	{unit: "day-of-week", prefix: "on", names: dowNames},
}

// Describe returns a human readable English description of a valid expression
// Describe 返回表达式的英文描述
func Describe(expr string) (string, error) {
	if err := Validate(expr); err != nil {
		return "", err
	}

	var parts []string
	for i, field := range strings.Fields(expr) {
		if s := describeField(fieldSpecs[i], field); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", "), nil
}

func describeField(spec fieldSpec, field string) string {
	if field == "*" {
		return spec.every
	}

	items := strings.Split(field, ",")
	if len(items) == 1 && strings.Contains(field, "/") {
		rng, step, _ := strings.Cut(field, "/")
		n, _ := strconv.Atoi(step)
		s := fmt.Sprintf("every %s %s", ordinal(n), spec.unit)
		if rng != "*" {
			lo, hi, isRange := strings.Cut(rng, "-")
			if isRange {
				s += fmt.Sprintf(" from %s through %s", spec.name(lo), spec.name(hi))
			} else {
				s += " starting at " + spec.name(lo)
			}
		}
		return s
	}

	words := make([]string, 0, len(items))
	for _, item := range items {
		rng, step, hasStep := strings.Cut(item, "/")
		var w string
		if lo, hi, isRange := strings.Cut(rng, "-"); isRange {
			w = fmt.Sprintf("%s through %s", spec.name(lo), spec.name(hi))
		} else if rng == "*" {
			w = "every " + spec.unit
		} else {
			w = spec.name(rng)
		}
		if hasStep {
			w += " every " + step
		}
		words = append(words, w)
	}
	return spec.prefix + " " + joinWords(words)
}

func (s fieldSpec) name(v string) string {
	if s.names == nil {
		return v
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n >= len(s.names) {
		return v
	}
	return s.names[n]
}

func joinWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	}
	return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
