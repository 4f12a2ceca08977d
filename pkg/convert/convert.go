// Package convert holds the string and struct conversions used by the API and DAO layers
package convert

import (
	"strconv"
	"strings"

	"github.com/jinzhu/copier"
)

// StrTo converts query values
type StrTo string

func (s StrTo) String() string {
	return string(s)
}

func (s StrTo) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(s.String()))
}

func (s StrTo) MustInt() int {
	v, _ := s.Int()
	return v
}

// StructAssign copies same-named fields from src into dst
// StructAssign 把 src 与 dst 同名字段的值复制到 dst 中
func StructAssign(src any, dst any) error {
	return copier.Copy(dst, src)
}
