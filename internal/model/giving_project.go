package model

import (
	"strings"
	"time"
)

// GivingProjectModel 募捐项目（一期志愿者）
type GivingProjectModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title               string    `json:"title" gorm:"not null"`
	FundraisingTraining time.Time `json:"fundraising_training" gorm:"not null"`
	FundraisingDeadline time.Time `json:"fundraising_deadline" gorm:"not null"`
	FundGoal            int64     `json:"fund_goal" gorm:"default:0"`
	// 每行一条建议步骤
	SuggestedSteps string `json:"suggested_steps" gorm:"type:text"`
	// 逗号分隔的预批准邮箱
	PreApproved string `json:"pre_approved" gorm:"type:text"`
	SiteVisits  bool   `json:"site_visits" gorm:"default:false"`
	Public      bool   `json:"public"`
}

// TableName 自定义表名
func (GivingProjectModel) TableName() string {
	return "giving_project"
}

// RequireEstimates 培训之后联系人需要填写预估金额
func (g *GivingProjectModel) RequireEstimates(now time.Time) bool {
	return !g.FundraisingTraining.After(now)
}

// IsPreApproved 判断邮箱是否在预批准列表中
func (g *GivingProjectModel) IsPreApproved(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || g.PreApproved == "" {
		return false
	}
	for _, e := range strings.Split(g.PreApproved, ",") {
		if strings.ToLower(strings.TrimSpace(e)) == email {
			return true
		}
	}
	return false
}

// GetSuggestedSteps 建议步骤列表
func (g *GivingProjectModel) GetSuggestedSteps() []string {
	var steps []string
	for _, line := range strings.Split(g.SuggestedSteps, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

// SurveyModel 问卷
type SurveyModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Title string `json:"title" gorm:"not null"`
	// JSON 数组，每个元素是一个问题
	Questions string `json:"questions" gorm:"type:text;not null"`
}

// TableName 自定义表名
func (SurveyModel) TableName() string {
	return "survey"
}

// GPSurveyModel 项目问卷排期
type GPSurveyModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	GivingProjectId int64     `json:"giving_project_id" gorm:"index;not null"`
	SurveyId        int64     `json:"survey_id" gorm:"not null"`
	Date            time.Time `json:"date" gorm:"not null"`

	Survey SurveyModel `json:"survey" gorm:"foreignKey:SurveyId"`
}

// TableName 自定义表名
func (GPSurveyModel) TableName() string {
	return "gp_survey"
}

// SurveyResponseModel 问卷答案
type SurveyResponseModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	GPSurveyId int64  `json:"gp_survey_id" gorm:"index;not null"`
	Responses  string `json:"responses" gorm:"type:text;not null"`
}

// TableName 自定义表名
func (SurveyResponseModel) TableName() string {
	return "survey_response"
}
