package harvest

import (
	"regexp"
	"strings"
)

// Glob is a file name pattern where * matches any run of characters and ? matches one.
// Glob 文件名通配符，* 匹配任意字符串，? 匹配单个字符
type Glob struct {
	pattern string
	search  *regexp.Regexp
	full    *regexp.Regexp
}

// CompileGlob 编译通配符，空模式匹配所有文件名
func CompileGlob(pattern string) (*Glob, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = "*"
	}
	expr := globToRegex(pattern)
	search, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	full, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, err
	}
	return &Glob{pattern: pattern, search: search, full: full}, nil
}

// MustCompileGlob 编译失败时 panic，仅用于测试和常量模式
func MustCompileGlob(pattern string) *Glob {
	g, err := CompileGlob(pattern)
	if err != nil {
		panic(err)
	}
	return g
}

func globToRegex(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

// Match reports whether the whole of name matches the pattern.
func (g *Glob) Match(name string) bool {
	return g.full.MatchString(name)
}

// FindShortest searches content for the pattern and returns the shortest match.
// FindShortest 在内容中查找最短的匹配
func (g *Glob) FindShortest(content string) (string, bool) {
	matches := g.search.FindAllString(content, -1)
	if len(matches) == 0 {
		return "", false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if len(m) < len(best) {
			best = m
		}
	}
	return best, true
}

func (g *Glob) String() string {
	return g.pattern
}
