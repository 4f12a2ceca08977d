package fileurl

import (
	"path/filepath"
	"testing"
)

func TestJoinKey(t *testing.T) {
	cases := []struct{ prefix, key, want string }{
		{"", "a.txt", "a.txt"},
		{"harvest", "a.txt", "harvest/a.txt"},
		{"harvest/", "/a.txt", "harvest/a.txt"},
	}
	for _, c := range cases {
		if got := JoinKey(c.prefix, c.key); got != c.want {
			t.Errorf("JoinKey(%q, %q) = %q, want %q", c.prefix, c.key, got, c.want)
		}
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"file.xml":            "file.xml",
		"/remote/dir/f.xml":   "f.xml",
		"..":                  "",
		"../../etc/passwd":    "passwd",
		"dir\\windows\\f.iso": "f.iso",
		"":                    "",
	}
	for in, want := range cases {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetAbsPath(t *testing.T) {
	if got := GetAbsPath("/abs/config.yaml", "/root"); got != "/abs/config.yaml" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := GetAbsPath("config.yaml", "/srv"); got != filepath.Join("/srv", "config.yaml") {
		t.Errorf("relative path = %s", got)
	}
}
