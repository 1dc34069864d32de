package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/zekeo/sjfnw/internal/model"
)

// 资助类型
const (
	SupportGeneral = "General support"
	SupportProject = "Project support"
)

// GrantApplicationForm 资助申请表
type GrantApplicationForm struct {
	Address         string `form:"address" validate:"required,max=100"`
	City            string `form:"city" validate:"required,max=50"`
	State           string `form:"state" validate:"required,max=2"`
	Zip             string `form:"zip" validate:"required,max=50"`
	TelephoneNumber string `form:"telephone_number" validate:"required,max=20"`
	FaxNumber       string `form:"fax_number" validate:"max=20"`
	EmailAddress    string `form:"email_address" validate:"required,email"`
	Website         string `form:"website" validate:"max=50"`
	Status          string `form:"status" validate:"required"`
	Ein             string `form:"ein" validate:"required,max=50"`
	Founded         string `form:"founded" validate:"required,numeric"`
	Mission         string `form:"mission" validate:"required"`

	FiscalOrg       string `form:"fiscal_org" validate:"max=255"`
	FiscalPerson    string `form:"fiscal_person" validate:"max=255"`
	FiscalTelephone string `form:"fiscal_telephone" validate:"max=25"`
	FiscalEmail     string `form:"fiscal_email" validate:"omitempty,email"`
	FiscalAddress   string `form:"fiscal_address" validate:"max=255"`

	AmountRequested    string `form:"amount_requested" validate:"required,amount"`
	SupportType        string `form:"support_type" validate:"required"`
	GrantPeriod        string `form:"grant_period" validate:"max=255"`
	ProjectTitle       string `form:"project_title" validate:"max=250"`
	ProjectBudget      string `form:"project_budget" validate:"omitempty,amount"`
	BudgetLast         string `form:"budget_last" validate:"required,amount"`
	BudgetCurrent      string `form:"budget_current" validate:"required,amount"`
	GrantRequest       string `form:"grant_request" validate:"required"`
	ContactPerson      string `form:"contact_person" validate:"required,max=250"`
	ContactPersonTitle string `form:"contact_person_title" validate:"required,max=100"`

	Narrative1    string `form:"narrative1" validate:"required"`
	Narrative2    string `form:"narrative2" validate:"required"`
	Narrative3    string `form:"narrative3" validate:"required"`
	Narrative4    string `form:"narrative4" validate:"required"`
	Narrative5    string `form:"narrative5" validate:"required"`
	Narrative6    string `form:"narrative6" validate:"required"`
	CycleQuestion string `form:"cycle_question"`
}

func grantApplicationRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(GrantApplicationForm)

	if f.SupportType != "" && f.SupportType != SupportGeneral && f.SupportType != SupportProject {
		sl.ReportError(f.SupportType, "support_type", "SupportType", "oneof", "")
	}

	// 托管机构需要填写财务托管方信息
	if f.Status == model.OrgStatusSponsored {
		fiscal := []struct{ value, name string }{
			{f.FiscalOrg, "fiscal_org"},
			{f.FiscalPerson, "fiscal_person"},
			{f.FiscalTelephone, "fiscal_telephone"},
			{f.FiscalAddress, "fiscal_address"},
		}
		for _, fld := range fiscal {
			if strings.TrimSpace(fld.value) == "" {
				sl.ReportError(fld.value, fld.name, fld.name, "required", "")
			}
		}
	}

	// 项目资助需要项目名称和预算
	if f.SupportType == SupportProject {
		if strings.TrimSpace(f.ProjectTitle) == "" {
			sl.ReportError(f.ProjectTitle, "project_title", "ProjectTitle", "required", "")
		}
		if strings.TrimSpace(f.ProjectBudget) == "" {
			sl.ReportError(f.ProjectBudget, "project_budget", "ProjectBudget", "required", "")
		}
	}
}

// DecodeApplication 把草稿内容解析为申请表
func DecodeApplication(fields map[string]string) (*GrantApplicationForm, error) {
	values := make(map[string][]string, len(fields))
	for k, v := range fields {
		values[k] = []string{v}
	}
	var f GrantApplicationForm
	if err := binding.MapFormWithTag(&f, values, "form"); err != nil {
		return nil, fmt.Errorf("failed to decode application: %w", err)
	}
	return &f, nil
}

// ApplicationCheck 提交时的上下文校验参数
type ApplicationCheck struct {
	Files           model.AppFiles
	ExtraQuestion   string
	NarrativeLimits map[string]int
}

// Check 完整校验：字段规则、字数限制、周期附加问题、附件
func (f *GrantApplicationForm) Check(ctx ApplicationCheck) Errors {
	errs := Validate(f)

	narratives := map[string]string{
		"narrative1": f.Narrative1,
		"narrative2": f.Narrative2,
		"narrative3": f.Narrative3,
		"narrative4": f.Narrative4,
		"narrative5": f.Narrative5,
		"narrative6": f.Narrative6,
	}
	names := make([]string, 0, len(ctx.NarrativeLimits))
	for name := range ctx.NarrativeLimits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		limit := ctx.NarrativeLimits[name]
		if n := WordCount(narratives[name]); limit > 0 && n > limit {
			errs.Add(name, fmt.Sprintf("Ensure this value has at most %d words (it has %d).", limit, n))
		}
	}

	if strings.TrimSpace(ctx.ExtraQuestion) != "" && strings.TrimSpace(f.CycleQuestion) == "" {
		errs.Add("cycle_question", groupMessages["required"])
	}

	if ctx.Files.Budget == "" {
		errs.Add(model.FileBudget, groupMessages["required"])
	}
	if f.Status == model.OrgStatusSponsored && ctx.Files.FiscalLetter == "" {
		errs.Add(model.FileFiscalLetter, groupMessages["required"])
	}
	return errs
}

// WordCount 按空白分词计数
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Profile 申请中的机构资料
func (f *GrantApplicationForm) Profile() model.OrgProfile {
	return model.OrgProfile{
		Address:         strings.TrimSpace(f.Address),
		City:            strings.TrimSpace(f.City),
		State:           strings.TrimSpace(f.State),
		Zip:             strings.TrimSpace(f.Zip),
		TelephoneNumber: strings.TrimSpace(f.TelephoneNumber),
		FaxNumber:       strings.TrimSpace(f.FaxNumber),
		EmailAddress:    strings.TrimSpace(f.EmailAddress),
		Website:         strings.TrimSpace(f.Website),
		Status:          f.Status,
		Ein:             strings.TrimSpace(f.Ein),
		Founded:         strings.TrimSpace(f.Founded),
		Mission:         f.Mission,
		FiscalOrg:       strings.TrimSpace(f.FiscalOrg),
		FiscalPerson:    strings.TrimSpace(f.FiscalPerson),
		FiscalTelephone: strings.TrimSpace(f.FiscalTelephone),
		FiscalEmail:     strings.TrimSpace(f.FiscalEmail),
		FiscalAddress:   f.FiscalAddress,
	}
}

// Application 生成申请记录，调用前需通过 Check
func (f *GrantApplicationForm) Application(files model.AppFiles) *model.GrantApplicationModel {
	amount := func(s string) int64 {
		n, _ := ParseAmount(s)
		return n
	}
	return &model.GrantApplicationModel{
		OrgProfile:         f.Profile(),
		AmountRequested:    amount(f.AmountRequested),
		SupportType:        f.SupportType,
		GrantPeriod:        strings.TrimSpace(f.GrantPeriod),
		ProjectTitle:       strings.TrimSpace(f.ProjectTitle),
		ProjectBudget:      amount(f.ProjectBudget),
		BudgetLast:         amount(f.BudgetLast),
		BudgetCurrent:      amount(f.BudgetCurrent),
		GrantRequest:       f.GrantRequest,
		ContactPerson:      strings.TrimSpace(f.ContactPerson),
		ContactPersonTitle: strings.TrimSpace(f.ContactPersonTitle),
		Narrative1:         f.Narrative1,
		Narrative2:         f.Narrative2,
		Narrative3:         f.Narrative3,
		Narrative4:         f.Narrative4,
		Narrative5:         f.Narrative5,
		Narrative6:         f.Narrative6,
		CycleQuestion:      f.CycleQuestion,
		AppFiles:           files,
	}
}

// ApplicationContents 已提交申请转回草稿内容
func ApplicationContents(app *model.GrantApplicationModel) map[string]string {
	fields := app.OrgProfile.ToMap()
	itoa := func(n int64) string {
		if n == 0 {
			return ""
		}
		return fmt.Sprint(n)
	}
	fields["amount_requested"] = itoa(app.AmountRequested)
	fields["support_type"] = app.SupportType
	fields["grant_period"] = app.GrantPeriod
	fields["project_title"] = app.ProjectTitle
	fields["project_budget"] = itoa(app.ProjectBudget)
	fields["budget_last"] = itoa(app.BudgetLast)
	fields["budget_current"] = itoa(app.BudgetCurrent)
	fields["grant_request"] = app.GrantRequest
	fields["contact_person"] = app.ContactPerson
	fields["contact_person_title"] = app.ContactPersonTitle
	fields["narrative1"] = app.Narrative1
	fields["narrative2"] = app.Narrative2
	fields["narrative3"] = app.Narrative3
	fields["narrative4"] = app.Narrative4
	fields["narrative5"] = app.Narrative5
	fields["narrative6"] = app.Narrative6
	fields["cycle_question"] = app.CycleQuestion
	return fields
}
