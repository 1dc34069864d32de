package logic

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"gorm.io/gorm"
)

// 批量添加联系人的提示
const (
	MsgEmptyContacts     = "Please enter at least one contact."
	MsgConfirmDuplicates = "The contacts below have the same name as contacts you have already entered. Press submit again to confirm that you want to add them."
)

// DonorLogic 联系人业务逻辑
type DonorLogic struct {
	db     *gorm.DB
	config *config.Config
}

// NewDonorLogic 创建联系人业务逻辑
func NewDonorLogic(db *gorm.DB, cfg *config.Config) *DonorLogic {
	return &DonorLogic{db: db, config: cfg}
}

// AddMultResult 批量添加结果
type AddMultResult struct {
	Created    int                 `json:"created"`
	Duplicates []map[string]string `json:"duplicates"` // 需要再次确认的同名联系人
}

// AddMult 批量添加联系人。同名且未确认的行不保存，返回给用户确认
func (l *DonorLogic) AddMult(ship *model.MembershipModel, rows []form.Row) (*AddMultResult, form.Errors, error) {
	est := ship.GivingProject.RequireEstimates(time.Now())
	errs := form.Errors{}

	type entry struct {
		first, last        string
		amount, likelihood string
		confirmed          bool
	}
	var entries []entry

	for _, row := range rows {
		if row.Blank("confirm") {
			continue
		}
		var e entry
		if est {
			var f form.MassDonor
			if err := row.Decode(&f); err != nil {
				return nil, nil, err
			}
			if rowErrs := form.Validate(&f); rowErrs.Has() {
				errs.Merge(row.FieldPrefix(form.DefaultPrefix), rowErrs)
				continue
			}
			e = entry{f.Firstname, f.Lastname, f.Amount, f.Likelihood, f.Confirmed()}
		} else {
			var f form.MassDonorPre
			if err := row.Decode(&f); err != nil {
				return nil, nil, err
			}
			if rowErrs := form.Validate(&f); rowErrs.Has() {
				errs.Merge(row.FieldPrefix(form.DefaultPrefix), rowErrs)
				continue
			}
			e = entry{first: f.Firstname, last: f.Lastname, confirmed: f.Confirmed()}
		}
		e.first = strings.TrimSpace(e.first)
		e.last = strings.TrimSpace(e.last)
		entries = append(entries, e)
	}
	if errs.Has() {
		return nil, errs, nil
	}
	if len(entries) == 0 {
		errs.Add(form.NonFieldErrors, MsgEmptyContacts)
		return nil, errs, nil
	}

	var existing []model.DonorModel
	if err := l.db.Where("membership_id = ?", ship.Id).Find(&existing).Error; err != nil {
		return nil, nil, fmt.Errorf("获取联系人失败: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, d := range existing {
		names[d.String()] = true
	}

	result := &AddMultResult{}
	now := time.Now()
	var donors []*model.DonorModel
	for _, e := range entries {
		name := strings.TrimSpace(e.first + " " + e.last)
		if !e.confirmed && names[name] {
			dup := map[string]string{"firstname": e.first, "lastname": e.last, "confirm": "1"}
			if est {
				dup["amount"] = e.amount
				dup["likelihood"] = e.likelihood
			}
			result.Duplicates = append(result.Duplicates, dup)
			continue
		}
		donor := &model.DonorModel{
			MembershipId:  ship.Id,
			Added:         now,
			Firstname:     e.first,
			Lastname:      e.last,
			PromiseReason: "[]",
		}
		if est {
			donor.Amount = parseOptional(e.amount)
			donor.Likelihood = parseOptional(e.likelihood)
		}
		donors = append(donors, donor)
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		for _, d := range donors {
			if err := tx.Create(d).Error; err != nil {
				return fmt.Errorf("创建联系人失败: %w", err)
			}
		}
		return touchActivity(tx, ship.Id, now)
	})
	if err != nil {
		return nil, nil, err
	}
	result.Created = len(donors)
	if len(result.Duplicates) > 0 {
		logger.Info("Showing confirmation for %d duplicate contacts", len(result.Duplicates))
	}
	return result, nil, nil
}

// EstimateDonors 还没有预估的联系人
func (l *DonorLogic) EstimateDonors(ship *model.MembershipModel) ([]model.DonorModel, error) {
	var donors []model.DonorModel
	err := l.db.Where("membership_id = ? AND amount IS NULL", ship.Id).Order("added").Find(&donors).Error
	if err != nil {
		return nil, fmt.Errorf("获取联系人失败: %w", err)
	}
	return donors, nil
}

// AddEstimates 补填预估，任何一行无效都不保存
func (l *DonorLogic) AddEstimates(ship *model.MembershipModel, rows []form.Row) (form.Errors, error) {
	errs := form.Errors{}
	type estimate struct {
		donorId            int64
		amount, likelihood *int64
	}
	var estimates []estimate

	for _, row := range rows {
		var f form.DonorEstimates
		if err := row.Decode(&f); err != nil {
			return nil, err
		}
		if rowErrs := form.Validate(&f); rowErrs.Has() {
			errs.Merge(row.FieldPrefix(form.DefaultPrefix), rowErrs)
			continue
		}
		donorId, _ := strconv.ParseInt(f.Donor, 10, 64)
		if _, err := findDonor(l.db, ship, donorId); err != nil {
			return nil, err
		}
		estimates = append(estimates, estimate{donorId, parseOptional(f.Amount), parseOptional(f.Likelihood)})
	}
	if errs.Has() {
		return errs, nil
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		for _, e := range estimates {
			err := tx.Model(&model.DonorModel{}).Where("id = ?", e.donorId).
				Updates(map[string]interface{}{"amount": e.amount, "likelihood": e.likelihood}).Error
			if err != nil {
				return fmt.Errorf("更新预估失败: %w", err)
			}
		}
		return touchActivity(tx, ship.Id, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// DonorInitial 编辑联系人表单初始值
func (l *DonorLogic) DonorInitial(donor *model.DonorModel) form.DonorForm {
	f := form.DonorForm{
		DonorPreForm: form.DonorPreForm{
			Firstname: donor.Firstname,
			Lastname:  donor.Lastname,
			Phone:     donor.Phone,
			Email:     donor.Email,
			Notes:     donor.Notes,
		},
	}
	if donor.Amount != nil {
		f.Amount = strconv.FormatInt(*donor.Amount, 10)
	}
	if donor.Likelihood != nil {
		f.Likelihood = strconv.FormatInt(*donor.Likelihood, 10)
	}
	return f
}

// GetDonor 获取当前 membership 下的联系人
func (l *DonorLogic) GetDonor(ship *model.MembershipModel, donorId int64) (*model.DonorModel, error) {
	return findDonor(l.db, ship, donorId)
}

// EditContact 修改联系人；培训前不校验也不保存预估
func (l *DonorLogic) EditContact(ship *model.MembershipModel, donorId int64, f *form.DonorForm) (form.Errors, error) {
	donor, err := findDonor(l.db, ship, donorId)
	if err != nil {
		return nil, err
	}

	est := ship.GivingProject.RequireEstimates(time.Now())
	var errs form.Errors
	if est {
		errs = form.Validate(f)
	} else {
		errs = form.Validate(&f.DonorPreForm)
	}
	if errs.Has() {
		return errs, nil
	}

	updates := map[string]interface{}{
		"firstname": strings.TrimSpace(f.Firstname),
		"lastname":  strings.TrimSpace(f.Lastname),
		"phone":     strings.TrimSpace(f.Phone),
		"email":     strings.TrimSpace(f.Email),
		"notes":     strings.TrimSpace(f.Notes),
	}
	if est {
		updates["amount"] = parseOptional(f.Amount)
		updates["likelihood"] = parseOptional(f.Likelihood)
	}
	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(donor).Updates(updates).Error; err != nil {
			return fmt.Errorf("更新联系人失败: %w", err)
		}
		return touchActivity(tx, ship.Id, time.Now())
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Edit donor %d success", donor.Id)
	return nil, nil
}

// DeleteContact 删除联系人及其步骤
func (l *DonorLogic) DeleteContact(ship *model.MembershipModel, donorId int64) error {
	donor, err := findDonor(l.db, ship, donorId)
	if err != nil {
		return err
	}
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("donor_id = ?", donor.Id).Delete(&model.StepModel{}).Error; err != nil {
			return fmt.Errorf("删除步骤失败: %w", err)
		}
		if err := tx.Delete(donor).Error; err != nil {
			return fmt.Errorf("删除联系人失败: %w", err)
		}
		return touchActivity(tx, ship.Id, time.Now())
	})
}

// CopyCandidates 成员在其他项目中的联系人，合并相邻重复项
func (l *DonorLogic) CopyCandidates(ship *model.MembershipModel) ([]ContactRow, error) {
	var donors []model.DonorModel
	err := l.db.Joins("JOIN membership ON membership.id = donor.membership_id").
		Where("membership.member_id = ?", ship.MemberId).
		Order("donor.firstname, donor.lastname, donor.added DESC").
		Find(&donors).Error
	if err != nil {
		return nil, fmt.Errorf("获取历史联系人失败: %w", err)
	}
	rows := MergeContacts(donors, l.config.Fund.NotesLimit)
	logger.Info("Copy contacts - %d rows from %d donors", len(rows), len(donors))
	return rows, nil
}

// SkipCopy 跳过复制联系人
func (l *DonorLogic) SkipCopy(ship *model.MembershipModel) error {
	logger.Info("Membership %d skipping copy contacts", ship.Id)
	return l.markCopied(l.db, ship)
}

// CopyContacts 复制选中的联系人到当前 membership
func (l *DonorLogic) CopyContacts(ship *model.MembershipModel, rows []form.Row) (form.Errors, error) {
	errs := form.Errors{}
	var donors []*model.DonorModel
	now := time.Now()
	for _, row := range rows {
		var f form.CopyContacts
		if err := row.Decode(&f); err != nil {
			return nil, err
		}
		if rowErrs := form.Validate(&f); rowErrs.Has() {
			errs.Merge(row.FieldPrefix(form.DefaultPrefix), rowErrs)
			continue
		}
		if !form.Checked(f.Select) {
			continue
		}
		donors = append(donors, &model.DonorModel{
			MembershipId:  ship.Id,
			Added:         now,
			Firstname:     strings.TrimSpace(f.Firstname),
			Lastname:      strings.TrimSpace(f.Lastname),
			Phone:         strings.TrimSpace(f.Phone),
			Email:         strings.TrimSpace(f.Email),
			Notes:         strings.TrimSpace(f.Notes),
			PromiseReason: "[]",
		})
	}
	if errs.Has() {
		logger.Warn("Copy contacts formset invalid: %v", errs)
		return errs, nil
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		for _, d := range donors {
			if err := tx.Create(d).Error; err != nil {
				return fmt.Errorf("复制联系人失败: %w", err)
			}
		}
		return l.markCopied(tx, ship)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Copied %d contacts into membership %d", len(donors), ship.Id)
	return nil, nil
}

func (l *DonorLogic) markCopied(tx *gorm.DB, ship *model.MembershipModel) error {
	if err := tx.Model(&model.MembershipModel{}).Where("id = ?", ship.Id).Update("copied_contacts", true).Error; err != nil {
		return fmt.Errorf("更新 copied_contacts 失败: %w", err)
	}
	ship.CopiedContacts = true
	return nil
}

func parseOptional(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := form.ParseAmount(s)
	if err != nil {
		return nil
	}
	return &n
}
