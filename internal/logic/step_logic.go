package logic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"github.com/zekeo/sjfnw/internal/worker"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StepLogic 联系步骤业务逻辑
type StepLogic struct {
	db     *gorm.DB
	config *config.Config
	runner worker.Runner
	story  *StoryLogic
}

// NewStepLogic 创建步骤业务逻辑
func NewStepLogic(db *gorm.DB, cfg *config.Config, runner worker.Runner) *StepLogic {
	return &StepLogic{
		db:     db,
		config: cfg,
		runner: runner,
		story:  NewStoryLogic(db),
	}
}

// GetDonor 获取当前 membership 下的联系人
func (l *StepLogic) GetDonor(ship *model.MembershipModel, donorId int64) (*model.DonorModel, error) {
	return findDonor(l.db, ship, donorId)
}

// GetStep 获取联系人下的步骤
func (l *StepLogic) GetStep(ship *model.MembershipModel, donorId, stepId int64) (*model.DonorModel, *model.StepModel, error) {
	donor, err := findDonor(l.db, ship, donorId)
	if err != nil {
		return nil, nil, err
	}
	var step model.StepModel
	if err := l.db.Where("id = ? AND donor_id = ?", stepId, donor.Id).First(&step).Error; err != nil {
		return nil, nil, notFound(err)
	}
	return donor, &step, nil
}

// StepDoneInitial 完成步骤表单的初始值
func (l *StepLogic) StepDoneInitial(donor *model.DonorModel) form.StepDoneForm {
	f := form.StepDoneForm{
		Notes:         donor.Notes,
		LastName:      donor.Lastname,
		Phone:         donor.Phone,
		Email:         donor.Email,
		PromiseReason: donor.PromiseReasons(),
	}
	if donor.Asked {
		f.Asked = "on"
	}
	if donor.LikelyToJoin != nil {
		f.LikelyToJoin = strconv.FormatInt(*donor.LikelyToJoin, 10)
	}
	switch {
	case donor.Declined():
		f.Response = form.ResponseDeclined
	case donor.HasPromised():
		f.Response = form.ResponsePromised
		f.PromisedAmount = strconv.FormatInt(*donor.Promised, 10)
	}
	return f
}

// CompleteStep 完成步骤。表单无效时返回字段错误，不做任何修改
func (l *StepLogic) CompleteStep(ship *model.MembershipModel, donorId, stepId int64, f *form.StepDoneForm) (form.Errors, error) {
	donor, step, err := l.GetStep(ship, donorId, stepId)
	if err != nil {
		return nil, err
	}

	if errs := form.Validate(f); errs.Has() {
		logger.Info("Invalid step completion for step %d: %v", stepId, errs)
		return errs, nil
	}

	now := time.Now()
	step.Completed = &now
	donor.Talked = true
	donor.Notes = strings.TrimSpace(f.Notes)

	if f.IsAsked() && !donor.Asked {
		step.Asked = true
		donor.Asked = true
	}

	switch f.Response {
	case form.ResponseDeclined:
		zero := int64(0)
		donor.Promised = &zero
		step.Promised = &zero
	case form.ResponsePromised:
		if amount := f.Amount(); amount > 0 && !donor.HasPromised() {
			donor.Promised = &amount
			step.Promised = &amount
			donor.Lastname = strings.TrimSpace(f.LastName)
			donor.LikelyToJoin = f.LikelyToJoinValue()
			reasons := f.PromiseReason
			if reasons == nil {
				reasons = []string{}
			}
			data, err := json.Marshal(reasons)
			if err != nil {
				return nil, fmt.Errorf("序列化承诺原因失败: %w", err)
			}
			donor.PromiseReason = string(data)
			if phone := strings.TrimSpace(f.Phone); phone != "" {
				donor.Phone = phone
			}
			if email := strings.TrimSpace(f.Email); email != "" {
				donor.Email = email
			}
		}
	}

	// 开始事务
	tx := l.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Omit(clause.Associations).Save(step).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("保存步骤失败: %w", err)
	}
	if err := tx.Omit(clause.Associations).Save(donor).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("保存联系人失败: %w", err)
	}

	if desc, date, ok := f.NextStepValues(); ok {
		next := &model.StepModel{DonorId: donor.Id, Date: date, Description: desc}
		if err := tx.Create(next).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("创建下一步失败: %w", err)
		}
		logger.Info("Next step created for donor %d", donor.Id)
	}

	if err := touchActivity(tx, ship.Id, now); err != nil {
		tx.Rollback()
		return nil, err
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	logger.Info("Step %d completed for donor %d", step.Id, donor.Id)

	shipId := ship.Id
	l.runner.Submit("update_story", func() error {
		return l.story.UpdateStory(shipId, now)
	})
	return nil, nil
}

// AddStep 为联系人新增步骤，已有未完成步骤时拒绝
func (l *StepLogic) AddStep(ship *model.MembershipModel, donorId int64, f *form.StepForm) (form.Errors, error) {
	donor, err := findDonor(l.db, ship, donorId)
	if err != nil {
		return nil, err
	}
	pending, err := pendingStep(l.db, donor.Id)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrHasPendingStep
	}
	if errs := form.Validate(f); errs.Has() {
		return errs, nil
	}

	step := &model.StepModel{
		DonorId:     donor.Id,
		Date:        f.DateValue(),
		Description: strings.TrimSpace(f.Description),
	}
	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(step).Error; err != nil {
			return fmt.Errorf("创建步骤失败: %w", err)
		}
		return touchActivity(tx, ship.Id, time.Now())
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Single step saved for donor %d", donor.Id)
	return nil, nil
}

// EditStep 修改步骤
func (l *StepLogic) EditStep(ship *model.MembershipModel, donorId, stepId int64, f *form.StepForm) (form.Errors, error) {
	_, step, err := l.GetStep(ship, donorId, stepId)
	if err != nil {
		return nil, err
	}
	if errs := form.Validate(f); errs.Has() {
		return errs, nil
	}
	err = l.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"date":        f.DateValue(),
			"description": strings.TrimSpace(f.Description),
		}
		if err := tx.Model(step).Updates(updates).Error; err != nil {
			return fmt.Errorf("更新步骤失败: %w", err)
		}
		return touchActivity(tx, ship.Id, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// MassStepDonors 可以批量添加步骤的联系人：未承诺、未到账、没有未完成步骤
func (l *StepLogic) MassStepDonors(ship *model.MembershipModel) ([]model.DonorModel, error) {
	var donors []model.DonorModel
	err := l.db.Where("membership_id = ? AND promised IS NULL", ship.Id).
		Where("NOT EXISTS (SELECT 1 FROM step WHERE step.donor_id = donor.id AND step.completed IS NULL)").
		Order("added DESC").
		Find(&donors).Error
	if err != nil {
		return nil, fmt.Errorf("获取联系人失败: %w", err)
	}

	limit := l.config.Fund.MassStepMax
	result := make([]model.DonorModel, 0, limit)
	for _, d := range donors {
		if d.Received() > 0 {
			continue
		}
		result = append(result, d)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// AddMultStep 批量添加步骤，任何一行无效都不保存
func (l *StepLogic) AddMultStep(ship *model.MembershipModel, rows []form.Row) (form.Errors, error) {
	errs := form.Errors{}
	var steps []*model.StepModel

	for _, row := range rows {
		var f form.MassStep
		if err := row.Decode(&f); err != nil {
			errs.Add(row.FieldPrefix(form.DefaultPrefix)+form.NonFieldErrors, err.Error())
			continue
		}
		if f.Empty() {
			continue
		}
		if rowErrs := form.Validate(&f); rowErrs.Has() {
			errs.Merge(row.FieldPrefix(form.DefaultPrefix), rowErrs)
			continue
		}
		donorId, _ := strconv.ParseInt(f.Donor, 10, 64)
		if _, err := findDonor(l.db, ship, donorId); err != nil {
			return nil, err
		}
		date, _ := form.ParseDate(f.Date)
		steps = append(steps, &model.StepModel{
			DonorId:     donorId,
			Date:        date,
			Description: strings.TrimSpace(f.Description),
		})
	}
	if errs.Has() {
		logger.Info("Multiple steps invalid: %v", errs)
		return errs, nil
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			if err := tx.Create(step).Error; err != nil {
				return fmt.Errorf("创建步骤失败: %w", err)
			}
		}
		return touchActivity(tx, ship.Id, time.Now())
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Multiple steps - %d steps created", len(steps))
	return nil, nil
}

func findDonor(db *gorm.DB, ship *model.MembershipModel, donorId int64) (*model.DonorModel, error) {
	var donor model.DonorModel
	if err := db.Where("id = ? AND membership_id = ?", donorId, ship.Id).First(&donor).Error; err != nil {
		return nil, notFound(err)
	}
	return &donor, nil
}

// pendingStep 联系人最早的未完成步骤，没有时返回 nil
func pendingStep(db *gorm.DB, donorId int64) (*model.StepModel, error) {
	var step model.StepModel
	err := db.Where("donor_id = ? AND completed IS NULL", donorId).Order("date").First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("获取未完成步骤失败: %w", err)
	}
	return &step, nil
}

// touchActivity 更新 membership 最近活动时间
func touchActivity(tx *gorm.DB, membershipId int64, at time.Time) error {
	err := tx.Model(&model.MembershipModel{}).Where("id = ?", membershipId).
		Update("last_activity", at).Error
	if err != nil {
		return fmt.Errorf("更新最近活动时间失败: %w", err)
	}
	return nil
}
