package middleware

import (
	"strings"

	"github.com/haierkeys/harvester-service/pkg/code"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// Lang picks the translator for validation messages from ?lang= or the lang header
// Lang 根据 lang 参数或请求头选择翻译器
func Lang(uni *ut.UniversalTranslator) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.Query("lang")
		if lang == "" {
			lang = c.GetHeader("lang")
		}
		lang = strings.ToLower(strings.ReplaceAll(lang, "-", "_"))

		trans, found := uni.GetTranslator(lang)
		if !found {
			trans, _ = uni.GetTranslator("en")
		}
		c.Set("trans", trans)
		_ = code.SetGlobalDefaultLang(lang)

		c.Next()
	}
}
