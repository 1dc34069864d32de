package form

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// 回复选项
const (
	ResponsePromised  = "1"
	ResponseUndecided = "2"
	ResponseDeclined  = "3"
)

// StepDoneForm 完成步骤
type StepDoneForm struct {
	Asked          string   `form:"asked" json:"asked"`
	Response       string   `form:"response" json:"response" validate:"omitempty,oneof=1 2 3"`
	PromisedAmount string   `form:"promised_amount" json:"promised_amount"`
	LastName       string   `form:"last_name" json:"last_name" validate:"max=255"`
	Phone          string   `form:"phone" json:"phone" validate:"max=20"`
	Email          string   `form:"email" json:"email" validate:"omitempty,email"`
	Notes          string   `form:"notes" json:"notes" validate:"max=253"`
	LikelyToJoin   string   `form:"likely_to_join" json:"likely_to_join" validate:"omitempty,oneof=0 1 2 3"`
	PromiseReason  []string `form:"promise_reason" json:"promise_reason"`
	NextStep       string   `form:"next_step" json:"next_step" validate:"max=255"`
	NextStepDate   string   `form:"next_step_date" json:"next_step_date" validate:"omitempty,stepdate"`
}

// IsAsked 记录了请求；回复承诺或拒绝也视为已请求
func (f *StepDoneForm) IsAsked() bool {
	return Checked(f.Asked) || f.Response == ResponsePromised || f.Response == ResponseDeclined
}

// Amount 承诺金额，未填返回 0
func (f *StepDoneForm) Amount() int64 {
	n, _ := ParseAmount(f.PromisedAmount)
	return n
}

// LikelyToJoinValue 可选整数
func (f *StepDoneForm) LikelyToJoinValue() *int64 {
	return optionalInt(f.LikelyToJoin)
}

// NextStepValues 下一步内容和日期，两者都有时 ok 为 true
func (f *StepDoneForm) NextStepValues() (string, time.Time, bool) {
	desc := strings.TrimSpace(f.NextStep)
	if desc == "" || strings.TrimSpace(f.NextStepDate) == "" {
		return "", time.Time{}, false
	}
	date, err := ParseDate(f.NextStepDate)
	if err != nil {
		return "", time.Time{}, false
	}
	return desc, date, true
}

func stepDoneRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(StepDoneForm)

	// 金额只在承诺时校验，拒绝时忽略
	if f.Response == ResponsePromised {
		amount := strings.TrimSpace(f.PromisedAmount)
		if amount == "" {
			sl.ReportError(f.PromisedAmount, "promised_amount", "PromisedAmount", "promise_amount", "")
		} else if n, err := ParseAmount(amount); err != nil {
			sl.ReportError(f.PromisedAmount, "promised_amount", "PromisedAmount", "amount", "")
		} else if n == 0 {
			sl.ReportError(f.PromisedAmount, "promised_amount", "PromisedAmount", "promise_amount", "")
		}
		if strings.TrimSpace(f.LastName) == "" {
			sl.ReportError(f.LastName, "last_name", "LastName", "promise_lastname", "")
		}
		if strings.TrimSpace(f.Phone) == "" && strings.TrimSpace(f.Email) == "" {
			sl.ReportError(f.Phone, "phone", "Phone", "promise_contact", "")
		}
	}

	stepGroupRules(sl, f.NextStep, f.NextStepDate, "next_step", "next_step_date")
}

// stepGroupRules 描述和日期要么都填要么都不填
func stepGroupRules(sl validator.StructLevel, desc, date, descField, dateField string) {
	hasDesc := strings.TrimSpace(desc) != ""
	hasDate := strings.TrimSpace(date) != ""
	if hasDesc && !hasDate {
		sl.ReportError(date, dateField, dateField, "step_date", "")
	}
	if hasDate && !hasDesc {
		sl.ReportError(desc, descField, descField, "step_description", "")
	}
}

// StepForm 新增或编辑步骤
type StepForm struct {
	Date        string `form:"date" json:"date" validate:"required,stepdate"`
	Description string `form:"description" json:"description" validate:"required,max=255"`
}

// DateValue 已校验的日期
func (f *StepForm) DateValue() time.Time {
	t, _ := ParseDate(f.Date)
	return t
}

// MassStep 批量步骤中的一行
type MassStep struct {
	Donor       string `form:"donor" json:"donor" validate:"required,numeric"`
	Date        string `form:"date" json:"date" validate:"omitempty,stepdate"`
	Description string `form:"description" json:"description" validate:"max=255"`
}

// Empty 没有填写步骤
func (f *MassStep) Empty() bool {
	return strings.TrimSpace(f.Date) == "" && strings.TrimSpace(f.Description) == ""
}

func massStepRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(MassStep)
	stepGroupRules(sl, f.Description, f.Date, "description", "date")
}

// DonorPreForm 培训前编辑联系人
type DonorPreForm struct {
	Firstname string `form:"firstname" json:"firstname" validate:"required,max=100"`
	Lastname  string `form:"lastname" json:"lastname" validate:"max=100"`
	Phone     string `form:"phone" json:"phone" validate:"max=20"`
	Email     string `form:"email" json:"email" validate:"omitempty,email"`
	Notes     string `form:"notes" json:"notes" validate:"max=253"`
}

// DonorForm 培训后编辑联系人，预估必填
type DonorForm struct {
	DonorPreForm
	Amount     string `form:"amount" json:"amount" validate:"required,amount"`
	Likelihood string `form:"likelihood" json:"likelihood" validate:"required,percent"`
}

// MassDonorPre 批量添加联系人中的一行
type MassDonorPre struct {
	Firstname string `form:"firstname" json:"firstname" validate:"required,max=100"`
	Lastname  string `form:"lastname" json:"lastname" validate:"max=100"`
	Confirm   string `form:"confirm" json:"confirm"`
}

// Confirmed 用户确认添加同名联系人
func (f *MassDonorPre) Confirmed() bool {
	return f.Confirm == "1"
}

// MassDonor 培训后批量添加，预估必填
type MassDonor struct {
	MassDonorPre
	Amount     string `form:"amount" json:"amount" validate:"required,amount"`
	Likelihood string `form:"likelihood" json:"likelihood" validate:"required,percent"`
}

// DonorEstimates 补填预估
type DonorEstimates struct {
	Donor      string `form:"donor" json:"donor" validate:"required,numeric"`
	Amount     string `form:"amount" json:"amount" validate:"required,amount"`
	Likelihood string `form:"likelihood" json:"likelihood" validate:"required,percent"`
}

// CopyContacts 复制联系人中的一行
type CopyContacts struct {
	Select    string `form:"select" json:"select"`
	Firstname string `form:"firstname" json:"firstname" validate:"required,max=100"`
	Lastname  string `form:"lastname" json:"lastname" validate:"max=100"`
	Phone     string `form:"phone" json:"phone" validate:"max=20"`
	Email     string `form:"email" json:"email" validate:"omitempty,email"`
	Notes     string `form:"notes" json:"notes" validate:"max=253"`
}

// LoginForm 登录
type LoginForm struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

// RegistrationForm 成员注册
type RegistrationForm struct {
	Email         string `form:"email" json:"email" validate:"required,email"`
	Password      string `form:"password" json:"password" validate:"required,min=6"`
	Passwordb     string `form:"passwordb" json:"passwordb" validate:"required"`
	FirstName     string `form:"first_name" json:"first_name" validate:"required,max=100"`
	LastName      string `form:"last_name" json:"last_name" validate:"required,max=100"`
	GivingProject string `form:"giving_project" json:"giving_project" validate:"omitempty,numeric"`
}

func registrationRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(RegistrationForm)
	if f.Passwordb != "" && f.Password != f.Passwordb {
		sl.ReportError(f.Passwordb, "passwordb", "Passwordb", "password_match", "")
	}
}

// OrgRegisterForm 机构注册
type OrgRegisterForm struct {
	Organization string `form:"organization" json:"organization" validate:"required,max=255"`
	Email        string `form:"email" json:"email" validate:"required,email"`
	Password     string `form:"password" json:"password" validate:"required,min=6"`
	Passwordb    string `form:"passwordb" json:"passwordb" validate:"required"`
}

func orgRegisterRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(OrgRegisterForm)
	if f.Passwordb != "" && f.Password != f.Passwordb {
		sl.ReportError(f.Passwordb, "passwordb", "Passwordb", "password_match", "")
	}
}

// AddProjectForm 加入募捐项目
type AddProjectForm struct {
	GivingProject string `form:"giving_project" json:"giving_project" validate:"required,numeric"`
}
