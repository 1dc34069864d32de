package model

import (
	"encoding/json"
	"strings"
	"time"
)

// DonorModel 捐赠联系人
type DonorModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MembershipId int64     `json:"membership_id" gorm:"index;not null"`
	Added        time.Time `json:"added" gorm:"not null"`

	Firstname string `json:"firstname" gorm:"not null"`
	Lastname  string `json:"lastname"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Notes     string `json:"notes" gorm:"type:text"`

	// 预估（培训后必填）
	Amount     *int64 `json:"amount"`
	Likelihood *int64 `json:"likelihood"`

	// 进度
	Talked bool `json:"talked" gorm:"default:false"`
	Asked  bool `json:"asked" gorm:"default:false"`
	// nil 未回复，0 拒绝
	Promised      *int64 `json:"promised"`
	PromiseReason string `json:"promise_reason" gorm:"type:text;default:'[]'"`
	LikelyToJoin  *int64 `json:"likely_to_join"`

	// 基金会确认到账
	ReceivedThis      int64 `json:"received_this" gorm:"default:0"`
	ReceivedNext      int64 `json:"received_next" gorm:"default:0"`
	ReceivedAfterward int64 `json:"received_afterward" gorm:"default:0"`
	GiftNotified      bool  `json:"gift_notified" gorm:"default:false"`

	Membership MembershipModel `json:"-" gorm:"foreignKey:MembershipId"`
}

// TableName 自定义表名
func (DonorModel) TableName() string {
	return "donor"
}

func (d DonorModel) String() string {
	return strings.TrimSpace(d.Firstname + " " + d.Lastname)
}

// Estimated 预估金额 = 金额 * 可能性
func (d *DonorModel) Estimated() int64 {
	if d.Amount == nil || d.Likelihood == nil {
		return 0
	}
	return *d.Amount * *d.Likelihood / 100
}

// Received 已到账总额
func (d *DonorModel) Received() int64 {
	return d.ReceivedThis + d.ReceivedNext + d.ReceivedAfterward
}

// HasPromised 已承诺且金额大于 0
func (d *DonorModel) HasPromised() bool {
	return d.Promised != nil && *d.Promised > 0
}

// Declined 已拒绝
func (d *DonorModel) Declined() bool {
	return d.Promised != nil && *d.Promised == 0
}

// PromiseReasons 解析承诺原因
func (d *DonorModel) PromiseReasons() []string {
	var reasons []string
	if d.PromiseReason != "" {
		_ = json.Unmarshal([]byte(d.PromiseReason), &reasons)
	}
	return reasons
}

// StepModel 联系步骤
type StepModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DonorId     int64      `json:"donor_id" gorm:"index;not null"`
	Date        time.Time  `json:"date" gorm:"not null"`
	Description string     `json:"description" gorm:"not null"`
	Completed   *time.Time `json:"completed"`
	// 完成时从 donor 复制
	Asked    bool   `json:"asked" gorm:"default:false"`
	Promised *int64 `json:"promised"`

	Donor *DonorModel `json:"donor,omitempty" gorm:"foreignKey:DonorId"`
}

// TableName 自定义表名
func (StepModel) TableName() string {
	return "step"
}

// IsPending 未完成
func (s *StepModel) IsPending() bool {
	return s.Completed == nil
}
