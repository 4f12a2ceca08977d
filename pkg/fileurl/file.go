package fileurl

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IsExist 判断所给路径是否存在
func IsExist(dst string) bool {
	_, err := os.Stat(dst)
	if err != nil {
		return os.IsExist(err)
	}
	return true
}

// IsDir 判断所给路径是否为文件夹
func IsDir(p string) bool {
	s, err := os.Stat(p)
	if err != nil {
		return false
	}
	return s.IsDir()
}

// CreatePath creates the parent directory of dst
// CreatePath 创建 dst 的父目录
func CreatePath(dst string, perm os.FileMode) error {
	return os.MkdirAll(filepath.Dir(dst), perm)
}

// PathSuffixCheckAdd 检查路径后缀，如果没有则添加
func PathSuffixCheckAdd(p string, suffix string) string {
	if !strings.HasSuffix(p, suffix) {
		p = p + suffix
	}
	return p
}

// JoinKey prefixes key with an optional storage prefix using forward slashes
// JoinKey 使用可选前缀拼接对象键
func JoinKey(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return PathSuffixCheckAdd(prefix, "/") + key
}

// BaseName returns the last element of a remote path or URL path; both separators are accepted
// BaseName 返回远端路径的最后一段，兼容 / 与 \
func BaseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// SafeName strips directory components so a remote supplied name can not escape the output directory
// SafeName 去除目录部分，防止远端文件名逃逸输出目录
func SafeName(name string) string {
	name = BaseName(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// GetAbsPath resolves p against root, or against the working directory when root is empty
// GetAbsPath 获取绝对路径
func GetAbsPath(p string, root string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if root == "" {
		root, _ = os.Getwd()
	}
	return filepath.Join(root, p)
}
