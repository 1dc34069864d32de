package model

import (
	"time"
)

// GrantCycleModel 资助周期
type GrantCycleModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title          string    `json:"title" gorm:"not null"`
	Open           time.Time `json:"open" gorm:"not null"`
	Close          time.Time `json:"close" gorm:"not null"`
	InfoPage       string    `json:"info_page"`
	EmailSignature string    `json:"email_signature" gorm:"type:text"`
	ExtraQuestion  string    `json:"extra_question" gorm:"type:text"`
	Conflicts      string    `json:"conflicts" gorm:"type:text"`
}

// TableName 自定义表名
func (GrantCycleModel) TableName() string {
	return "grant_cycle"
}

// CycleStatus 周期状态
type CycleStatus string

const (
	CycleStatusUpcoming CycleStatus = "upcoming" // 未开始
	CycleStatusOpen     CycleStatus = "open"     // 开放申请
	CycleStatusClosed   CycleStatus = "closed"   // 已截止
)

// GetStatus 根据时间计算状态
func (c *GrantCycleModel) GetStatus(now time.Time) CycleStatus {
	if now.Before(c.Open) {
		return CycleStatusUpcoming
	}
	if !now.Before(c.Close) {
		return CycleStatusClosed
	}
	return CycleStatusOpen
}
