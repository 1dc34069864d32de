package model

import (
	"time"
)

// OrgProfile 机构资料，机构和申请共用
type OrgProfile struct {
	Address         string `json:"address" form:"address"`
	City            string `json:"city" form:"city"`
	State           string `json:"state" form:"state"`
	Zip             string `json:"zip" form:"zip"`
	TelephoneNumber string `json:"telephone_number" form:"telephone_number"`
	FaxNumber       string `json:"fax_number" form:"fax_number"`
	EmailAddress    string `json:"email_address" form:"email_address"`
	Website         string `json:"website" form:"website"`

	Status  string `json:"status" form:"status"` // 501c3, 501c4, Sponsored, Other
	Ein     string `json:"ein" form:"ein"`
	Founded string `json:"founded" form:"founded"`
	Mission string `json:"mission" form:"mission" gorm:"type:text"`

	// 财务托管方
	FiscalOrg       string `json:"fiscal_org" form:"fiscal_org"`
	FiscalPerson    string `json:"fiscal_person" form:"fiscal_person"`
	FiscalTelephone string `json:"fiscal_telephone" form:"fiscal_telephone"`
	FiscalEmail     string `json:"fiscal_email" form:"fiscal_email"`
	FiscalAddress   string `json:"fiscal_address" form:"fiscal_address"`
}

// OrgStatusSponsored 需要财务托管信息的机构状态
const OrgStatusSponsored = "Sponsored"

// ToMap 转为草稿内容
func (p OrgProfile) ToMap() map[string]string {
	return map[string]string{
		"address":          p.Address,
		"city":             p.City,
		"state":            p.State,
		"zip":              p.Zip,
		"telephone_number": p.TelephoneNumber,
		"fax_number":       p.FaxNumber,
		"email_address":    p.EmailAddress,
		"website":          p.Website,
		"status":           p.Status,
		"ein":              p.Ein,
		"founded":          p.Founded,
		"mission":          p.Mission,
		"fiscal_org":       p.FiscalOrg,
		"fiscal_person":    p.FiscalPerson,
		"fiscal_telephone": p.FiscalTelephone,
		"fiscal_email":     p.FiscalEmail,
		"fiscal_address":   p.FiscalAddress,
	}
}

// OrganizationModel 申请资助的机构
type OrganizationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name  string `json:"name" gorm:"uniqueIndex;not null"`
	Email string `json:"email" gorm:"uniqueIndex;not null"`

	OrgProfile `gorm:"embedded"`

	FiscalLetter string `json:"fiscal_letter"` // 存储 key
}

// TableName 自定义表名
func (OrganizationModel) TableName() string {
	return "organization"
}
