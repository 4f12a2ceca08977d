// Package validator wires go-playground/validator into gin binding with the harvester specific tags
// Package validator 将 validator 接入 gin 绑定，并注册采集相关的自定义标签
package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/haierkeys/harvester-service/pkg/cronexpr"

	"github.com/gin-gonic/gin/binding"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// CustomValidator implements binding.StructValidator with lazy initialization
// CustomValidator 实现 gin 的 binding.StructValidator
type CustomValidator struct {
	once     sync.Once
	Validate *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{}
}

func (v *CustomValidator) ValidateStruct(obj any) error {
	if kindOfData(obj) == reflect.Struct {
		v.lazyinit()
		if err := v.Validate.Struct(obj); err != nil {
			return err
		}
	}
	return nil
}

func (v *CustomValidator) Engine() any {
	v.lazyinit()
	return v.Validate
}

func (v *CustomValidator) lazyinit() {
	v.once.Do(func() {
		v.Validate = validator.New()
		v.Validate.SetTagName("binding")
		registerTags(v.Validate)
	})
}

func kindOfData(data any) reflect.Kind {
	value := reflect.ValueOf(data)
	valueType := value.Kind()
	if valueType == reflect.Ptr {
		valueType = value.Elem().Kind()
	}
	return valueType
}

// ValidateSchedule backs the `cron` tag
func ValidateSchedule(fl validator.FieldLevel) bool {
	return cronexpr.Validate(fl.Field().String()) == nil
}

// ValidateTransfile backs the `transfile` tag: non-empty and without the reserved "f=" key
// ValidateTransfile 非空且不包含保留键 "f="
func ValidateTransfile(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.TrimSpace(s) != "" && !strings.Contains(s, "f=")
}

// ValidateAgency backs the `agency` tag: the prefix starts with a numeric library id
func ValidateAgency(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func registerTags(v *validator.Validate) {
	_ = v.RegisterValidation("cron", ValidateSchedule)
	_ = v.RegisterValidation("transfile", ValidateTransfile)
	_ = v.RegisterValidation("agency", ValidateAgency)
}

var customMessages = map[string]map[string]string{
	"en": {
		"cron":      "invalid schedule value \"{1}\"",
		"transfile": "{0} must be non-empty and must not contain \"f=\"",
		"agency":    "{0} must start with a numeric library id",
	},
	"zh": {
		"cron":      "无效的调度表达式 \"{1}\"",
		"transfile": "{0} 不能为空且不能包含 \"f=\"",
		"agency":    "{0} 必须以数字图书馆编号开头",
	},
}

// RegisterTranslations adds translated messages for the custom tags
// RegisterTranslations 为自定义标签注册翻译
func RegisterTranslations(v *validator.Validate, locale string, trans ut.Translator) error {
	messages, ok := customMessages[locale]
	if !ok {
		return nil
	}
	for tag, msg := range messages {
		tag, msg := tag, msg
		err := v.RegisterTranslation(tag, trans,
			func(ut ut.Translator) error {
				return ut.Add(tag, msg, true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, err := ut.T(tag, fe.Field(), fmt.Sprint(fe.Value()))
				if err != nil {
					return fe.Error()
				}
				return t
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// Default binds the custom validator to gin once per process
// Default 将自定义校验器设置为 gin 默认校验器
func Default() *CustomValidator {
	cv := NewCustomValidator()
	binding.Validator = cv
	return cv
}
