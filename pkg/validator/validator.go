// Package validator 在 gin 的绑定校验引擎上注册自定义规则与中英文错误翻译。
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Language constants for i18n support.
const (
	LangEN = "en"
	LangZH = "zh"
)

// TagNotBlank 字符串去除空白后非空。
const TagNotBlank = "notblank"

// Validator wraps go-playground/validator with translations.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	global     *Validator
	globalErr  error
	globalOnce sync.Once
)

// Install 在 gin 默认绑定引擎上完成注册，只执行一次。
func Install() (*Validator, error) {
	globalOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			globalErr = errors.New("gin binding engine is not go-playground/validator")
			return
		}
		global, globalErr = setup(v)
	})
	return global, globalErr
}

// New 创建独立实例，使用 validate 标签。
func New() (*Validator, error) {
	return setup(validator.New())
}

func setup(v *validator.Validate) (*Validator, error) {
	// 错误中的字段名使用 json 标签
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation(TagNotBlank, validateNotBlank); err != nil {
		return nil, fmt.Errorf("register %s: %w", TagNotBlank, err)
	}

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())
	out := &Validator{validate: v, trans: make(map[string]ut.Translator, 2)}

	enTrans, _ := uni.GetTranslator(LangEN)
	if err := en_translations.RegisterDefaultTranslations(v, enTrans); err != nil {
		return nil, err
	}
	out.trans[LangEN] = enTrans

	zhTrans, _ := uni.GetTranslator(LangZH)
	if err := zh_translations.RegisterDefaultTranslations(v, zhTrans); err != nil {
		return nil, err
	}
	out.trans[LangZH] = zhTrans

	custom := map[string]string{
		LangEN: "{0} must not be blank",
		LangZH: "{0}不能为空白",
	}
	for lang, msg := range custom {
		if err := v.RegisterTranslation(TagNotBlank, out.trans[lang],
			func(t ut.Translator) error { return t.Add(TagNotBlank, msg, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(TagNotBlank, fe.Field())
				return s
			},
		); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func validateNotBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(field.String()) != ""
}

// Struct 校验结构体，返回翻译后的错误。
func (v *Validator) Struct(s any, lang string) Violations {
	return v.Translate(v.validate.Struct(s), lang)
}

// Translate 将校验错误翻译为指定语言，无法识别的错误原样保留。
func (v *Validator) Translate(err error, lang string) Violations {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return opaque(err)
	}

	trans, ok := v.trans[lang]
	if !ok {
		trans = v.trans[LangEN]
	}
	out := make(Violations, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Violation{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}
