package model

import (
	"time"
)

// EmailMessageModel 待发送邮件（发件箱）
type EmailMessageModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	From      string     `json:"from" gorm:"not null"`
	To        string     `json:"to" gorm:"not null"`
	Cc        string     `json:"cc"`
	Subject   string     `json:"subject" gorm:"not null"`
	HTML      string     `json:"html" gorm:"type:text;not null"`
	Status    MailStatus `json:"status" gorm:"index;default:'pending'"`
	Attempts  int        `json:"attempts" gorm:"default:0"`
	LastError string     `json:"last_error" gorm:"type:text"`
	SentAt    *time.Time `json:"sent_at"`
}

// MailStatus 发送状态
type MailStatus string

const (
	MailStatusPending MailStatus = "pending" // 待发送
	MailStatusSent    MailStatus = "sent"    // 已发送
	MailStatusFailed  MailStatus = "failed"  // 超过重试次数
)

// TableName 自定义表名
func (EmailMessageModel) TableName() string {
	return "email_message"
}
