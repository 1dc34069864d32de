package form

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// NonFieldErrors 不属于某个字段的错误
const NonFieldErrors = "__all__"

// Errors 字段名 -> 错误信息列表
type Errors map[string][]string

// Add 添加错误
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has 是否有错误
func (e Errors) Has() bool {
	return len(e) > 0
}

// Merge 合并带前缀的错误，formset 行使用
func (e Errors) Merge(prefix string, other Errors) {
	for field, msgs := range other {
		key := field
		if prefix != "" {
			key = prefix + field
		}
		e[key] = append(e[key], msgs...)
	}
}

// 字段组规则的错误信息
var groupMessages = map[string]string{
	"promise_amount":   "Enter an amount.",
	"promise_lastname": "Enter a last name.",
	"promise_contact":  "Enter a phone number or email.",
	"step_date":        "Enter a date in mm/dd/yyyy format.",
	"step_description": "Enter a description.",
	"password_match":   "Passwords did not match.",
	"required":         "This field is required.",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// 错误使用表单字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "amount", func(fl validator.FieldLevel) bool {
		_, err := ParseAmount(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "stepdate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "percent", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
		return err == nil && n >= 0 && n <= 100
	})

	v.RegisterStructValidation(stepDoneRules, StepDoneForm{})
	v.RegisterStructValidation(massStepRules, MassStep{})
	v.RegisterStructValidation(registrationRules, RegistrationForm{})
	v.RegisterStructValidation(orgRegisterRules, OrgRegisterForm{})
	v.RegisterStructValidation(grantApplicationRules, GrantApplicationForm{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register validation %s: %v", tag, err))
	}
}

// Validate 校验表单结构体，返回字段错误
func Validate(f interface{}) Errors {
	errs := Errors{}
	err := validate.Struct(f)
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add(NonFieldErrors, err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "Enter a valid email address."
	case "amount":
		return "Enter a whole number."
	case "stepdate":
		return "Enter a date in mm/dd/yyyy format."
	case "percent":
		return "Enter a whole number between 0 and 100."
	case "oneof":
		return "Select a valid choice."
	case "numeric":
		return "Enter a number."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).",
			fe.Param(), utf8.RuneCountInString(fmt.Sprint(fe.Value())))
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	}
	if msg, ok := groupMessages[fe.Tag()]; ok {
		return msg
	}
	return "Enter a valid value."
}

// ParseAmount 解析整数金额，允许千分位逗号
func ParseAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, errors.New("empty amount")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative amount %d", n)
	}
	return n, nil
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "01/02/06", "1/2/06"}

// ParseDate 解析 YYYY-MM-DD 或 mm/dd/yyyy 日期
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// Checked 复选框是否勾选
func Checked(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// optionalInt 可选整数字段，空串返回 nil
func optionalInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := ParseAmount(s)
	if err != nil {
		return nil
	}
	return &n
}
