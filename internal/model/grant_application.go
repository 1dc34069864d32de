package model

import (
	"encoding/json"
	"time"
)

// 附件字段
const (
	FileBudget         = "budget"
	FileDemographics   = "demographics"
	FileFundingSources = "funding_sources"
	FileFiscalLetter   = "fiscal_letter"
)

// FileFields 全部附件字段
var FileFields = []string{FileBudget, FileDemographics, FileFundingSources, FileFiscalLetter}

// AppFiles 附件存储 key
type AppFiles struct {
	Budget         string `json:"budget"`
	Demographics   string `json:"demographics"`
	FundingSources string `json:"funding_sources"`
	FiscalLetter   string `json:"fiscal_letter"`
}

// Get 按字段名取 key
func (f *AppFiles) Get(field string) (string, bool) {
	switch field {
	case FileBudget:
		return f.Budget, true
	case FileDemographics:
		return f.Demographics, true
	case FileFundingSources:
		return f.FundingSources, true
	case FileFiscalLetter:
		return f.FiscalLetter, true
	}
	return "", false
}

// Set 按字段名设置 key
func (f *AppFiles) Set(field, key string) bool {
	switch field {
	case FileBudget:
		f.Budget = key
	case FileDemographics:
		f.Demographics = key
	case FileFundingSources:
		f.FundingSources = key
	case FileFiscalLetter:
		f.FiscalLetter = key
	default:
		return false
	}
	return true
}

// DraftGrantApplicationModel 未提交的申请草稿
type DraftGrantApplicationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"modified"`

	OrganizationId int64 `json:"organization_id" gorm:"uniqueIndex:idx_draft_org_cycle;not null"`
	GrantCycleId   int64 `json:"grant_cycle_id" gorm:"uniqueIndex:idx_draft_org_cycle;not null"`

	// JSON 对象，字段名 -> 值
	Contents string `json:"contents" gorm:"type:text;not null"`
	AppFiles `gorm:"embedded"`

	ExtendedDeadline *time.Time `json:"extended_deadline"`

	Organization OrganizationModel `json:"-" gorm:"foreignKey:OrganizationId"`
	GrantCycle   GrantCycleModel   `json:"grant_cycle" gorm:"foreignKey:GrantCycleId"`
}

// TableName 自定义表名
func (DraftGrantApplicationModel) TableName() string {
	return "draft_grant_application"
}

// Fields 解析草稿内容
func (d *DraftGrantApplicationModel) Fields() map[string]string {
	fields := map[string]string{}
	if d.Contents != "" {
		_ = json.Unmarshal([]byte(d.Contents), &fields)
	}
	return fields
}

// SetFields 写入草稿内容
func (d *DraftGrantApplicationModel) SetFields(fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	d.Contents = string(data)
	return nil
}

// Editable 周期开放或截止日期被延长
func (d *DraftGrantApplicationModel) Editable(now time.Time) bool {
	if d.ExtendedDeadline != nil && d.ExtendedDeadline.After(now) {
		return true
	}
	return d.GrantCycle.GetStatus(now) == CycleStatusOpen
}

// GrantApplicationModel 已提交的申请
type GrantApplicationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationId  int64     `json:"organization_id" gorm:"uniqueIndex:idx_app_org_cycle;not null"`
	GrantCycleId    int64     `json:"grant_cycle_id" gorm:"uniqueIndex:idx_app_org_cycle;not null"`
	SubmissionTime  time.Time `json:"submission_time" gorm:"not null"`
	ScreeningStatus int       `json:"screening_status" gorm:"default:10"`

	OrgProfile `gorm:"embedded"`

	// 申请内容
	AmountRequested    int64  `json:"amount_requested"`
	SupportType        string `json:"support_type"`
	GrantPeriod        string `json:"grant_period"`
	ProjectTitle       string `json:"project_title"`
	ProjectBudget      int64  `json:"project_budget"`
	BudgetLast         int64  `json:"budget_last"`
	BudgetCurrent      int64  `json:"budget_current"`
	GrantRequest       string `json:"grant_request" gorm:"type:text"`
	ContactPerson      string `json:"contact_person"`
	ContactPersonTitle string `json:"contact_person_title"`
	Narrative1         string `json:"narrative1" gorm:"type:text"`
	Narrative2         string `json:"narrative2" gorm:"type:text"`
	Narrative3         string `json:"narrative3" gorm:"type:text"`
	Narrative4         string `json:"narrative4" gorm:"type:text"`
	Narrative5         string `json:"narrative5" gorm:"type:text"`
	Narrative6         string `json:"narrative6" gorm:"type:text"`
	CycleQuestion      string `json:"cycle_question" gorm:"type:text"`

	AppFiles `gorm:"embedded"`

	// 评分加分
	ScoringBonusPoc bool `json:"scoring_bonus_poc" gorm:"default:false"`
	ScoringBonusGeo bool `json:"scoring_bonus_geo" gorm:"default:false"`

	Organization OrganizationModel `json:"organization" gorm:"foreignKey:OrganizationId"`
	GrantCycle   GrantCycleModel   `json:"grant_cycle" gorm:"foreignKey:GrantCycleId"`
}

// TableName 自定义表名
func (GrantApplicationModel) TableName() string {
	return "grant_application"
}

// ProjectAppModel 分配给募捐项目评审的申请
type ProjectAppModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	GivingProjectId int64 `json:"giving_project_id" gorm:"index;not null"`
	ApplicationId   int64 `json:"application_id" gorm:"index;not null"`
	ScreeningStatus int   `json:"screening_status" gorm:"default:0"`

	Application GrantApplicationModel `json:"application" gorm:"foreignKey:ApplicationId"`
}

// TableName 自定义表名
func (ProjectAppModel) TableName() string {
	return "project_app"
}

// GrantAwardModel 资助发放
type GrantAwardModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ApplicationId   int64      `json:"application_id" gorm:"index;not null"`
	Amount          int64      `json:"amount" gorm:"not null"`
	CheckMailed     *time.Time `json:"check_mailed"`
	AgreementMailed *time.Time `json:"agreement_mailed"`
	Approved        *time.Time `json:"approved"`
}

// TableName 自定义表名
func (GrantAwardModel) TableName() string {
	return "grant_award"
}
