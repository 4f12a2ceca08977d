package harvest

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCut_Of(t *testing.T) {
	tests := []struct {
		expr string
		in   string
		want string
	}{
		{"1", "abcdef", "a"},
		{"3", "abcdef", "c"},
		{"2-", "abcdef", "bcdef"},
		{"-3", "abcdef", "abc"},
		{"2-4", "abcdef", "bcd"},
		{"1,3,5", "abcdef", "ace"},
		{"2-3,6-7", "v46.i23.xml", "4623"},
		{" 2 - 3 , 6 - 7 ", "v46.i23.xml", "4623"},
		{"1-6", "abcdef", "abcdef"},
		{"7-", "abcdef", ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.expr, tt.in), func(t *testing.T) {
			c, err := ParseCut(tt.expr)
			require.NoError(t, err)
			got, err := c.Of(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCut_Errors(t *testing.T) {
	_, err := ParseCut("")
	assert.ErrorIs(t, err, ErrEmptyCut)
	_, err = ParseCut("   ")
	assert.ErrorIs(t, err, ErrEmptyCut)

	for _, expr := range []string{"a", "1-b", "0", "0-3", "-", "1,,2", "1-2-3"} {
		_, err := ParseCut(expr)
		var invalid *InvalidCutError
		assert.Truef(t, errors.As(err, &invalid), "expected InvalidCutError for %q, got %v", expr, err)
	}

	c, err := ParseCut("3-8")
	require.NoError(t, err)
	_, err = c.Of("abc")
	assert.ErrorIs(t, err, ErrCutOutOfRange)

	c, err = ParseCut("9-")
	require.NoError(t, err)
	_, err = c.Of("abc")
	assert.ErrorIs(t, err, ErrCutOutOfRange)
}

func TestCut_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("1- returns the whole string", prop.ForAll(
		func(s string) bool {
			c, err := ParseCut("1-")
			if err != nil {
				return false
			}
			got, err := c.Of(s)
			return err == nil && got == s
		},
		gen.AlphaString(),
	))

	properties.Property("N- is the suffix from N", prop.ForAll(
		func(s string, n int) bool {
			c, err := ParseCut(fmt.Sprintf("%d-", n))
			if err != nil {
				return false
			}
			got, err := c.Of(s)
			if n-1 > len(s) {
				return errors.Is(err, ErrCutOutOfRange)
			}
			return err == nil && got == s[n-1:]
		},
		gen.AlphaString(),
		gen.IntRange(1, 40),
	))

	properties.Property("a list of single positions concatenates characters", prop.ForAll(
		func(s string) bool {
			if s == "" {
				return true
			}
			positions := make([]string, len(s))
			for i := range s {
				positions[i] = fmt.Sprint(i + 1)
			}
			c, err := ParseCut(strings.Join(positions, ","))
			if err != nil {
				return false
			}
			got, err := c.Of(s)
			return err == nil && got == s
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestSeqnoMatcher(t *testing.T) {
	m := NewSeqnoMatcher("2-3,6-7", 4622)

	fetch, seqno, err := m.ShouldFetch("v46.i23.xml")
	require.NoError(t, err)
	assert.True(t, fetch)
	require.NotNil(t, seqno)
	assert.EqualValues(t, 4623, *seqno)

	fetch, seqno, err = m.ShouldFetch("v46.i22.xml")
	require.NoError(t, err)
	assert.False(t, fetch)
	assert.EqualValues(t, 4622, *seqno)

	// 文件名两端的空格不参与截取
	fetch, _, err = m.ShouldFetch("  v46.i24.xml ")
	require.NoError(t, err)
	assert.True(t, fetch)

	_, _, err = m.ShouldFetch("vab.icd.xml")
	assert.ErrorIs(t, err, ErrIllegalSeqno)

	_, _, err = m.ShouldFetch("v4")
	assert.ErrorIs(t, err, ErrCutOutOfRange)
}

func TestSeqnoMatcher_EmptyExpression(t *testing.T) {
	m := NewSeqnoMatcher("", 100)
	assert.False(t, m.Enabled())
	fetch, seqno, err := m.ShouldFetch("anything")
	require.NoError(t, err)
	assert.True(t, fetch)
	assert.Nil(t, seqno)
}

func TestSeqnoMatcher_InvalidExpression(t *testing.T) {
	m := NewSeqnoMatcher("x-y", 0)
	assert.True(t, m.Enabled())
	fetch, _, err := m.ShouldFetch("v46.i23.xml")
	assert.Error(t, err)
	assert.False(t, fetch)
}

func TestSeqnoMatcher_Property(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("fetch iff extracted seqno is above the watermark", prop.ForAll(
		func(n, current int64) bool {
			m := NewSeqnoMatcher("2-7", current)
			fetch, seqno, err := m.ShouldFetch(fmt.Sprintf("v%06d.dat", n))
			return err == nil && seqno != nil && *seqno == n && fetch == (n > current)
		},
		gen.Int64Range(0, 999999),
		gen.Int64Range(0, 999999),
	))
	properties.TestingRun(t)
}
