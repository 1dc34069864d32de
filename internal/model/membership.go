package model

import (
	"encoding/json"
	"time"
)

// MembershipModel 成员参与某个募捐项目
type MembershipModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MemberId        int64 `json:"member_id" gorm:"uniqueIndex:idx_member_project;not null"`
	GivingProjectId int64 `json:"giving_project_id" gorm:"uniqueIndex:idx_member_project;not null"`
	Approved        bool  `json:"approved" gorm:"default:false"`
	Leader          bool  `json:"leader" gorm:"default:false"`

	CopiedContacts bool   `json:"copied_contacts" gorm:"default:false"`
	Notifications  string `json:"notifications" gorm:"type:text"`
	// JSON 数组，已完成的 GPSurvey id
	CompletedSurveys string     `json:"completed_surveys" gorm:"type:text;default:'[]'"`
	LastActivity     *time.Time `json:"last_activity"`

	Member        MemberModel        `json:"member" gorm:"foreignKey:MemberId"`
	GivingProject GivingProjectModel `json:"giving_project" gorm:"foreignKey:GivingProjectId"`
}

// TableName 自定义表名
func (MembershipModel) TableName() string {
	return "membership"
}

// CompletedSurveyIds 解析已完成问卷列表
func (m *MembershipModel) CompletedSurveyIds() []int64 {
	var ids []int64
	if m.CompletedSurveys == "" {
		return ids
	}
	_ = json.Unmarshal([]byte(m.CompletedSurveys), &ids)
	return ids
}

// AddCompletedSurvey 追加已完成问卷
func (m *MembershipModel) AddCompletedSurvey(id int64) {
	ids := append(m.CompletedSurveyIds(), id)
	data, _ := json.Marshal(ids)
	m.CompletedSurveys = string(data)
}

// NewsItemModel 项目动态
type NewsItemModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MembershipId int64     `json:"membership_id" gorm:"index;not null"`
	Date         time.Time `json:"date" gorm:"not null"`
	Summary      string    `json:"summary" gorm:"type:text;not null"`
}

// TableName 自定义表名
func (NewsItemModel) TableName() string {
	return "news_item"
}
