package logic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/model"
	"github.com/zekeo/sjfnw/internal/storage"
	"gorm.io/gorm"
)

// 邮件主题
const (
	SubjectSubmitted     = "Grant application submitted"
	SubjectDraftWarning  = "Grant cycle closing soon"
	SubjectDraftReopened = "Grant application re-opened"
)

// GrantLogic 资助申请草稿和提交
type GrantLogic struct {
	db     *gorm.DB
	config *config.Config
	store  storage.Storage
	outbox *mail.Outbox
}

// NewGrantLogic 创建资助申请业务逻辑
func NewGrantLogic(db *gorm.DB, cfg *config.Config, store storage.Storage, outbox *mail.Outbox) *GrantLogic {
	return &GrantLogic{db: db, config: cfg, store: store, outbox: outbox}
}

// OrgHomeData 机构首页
type OrgHomeData struct {
	Organization *model.OrganizationModel           `json:"organization"`
	Drafts       []model.DraftGrantApplicationModel `json:"saved"`
	Submitted    []model.GrantApplicationModel      `json:"submitted"`
	Closed       []model.GrantCycleModel            `json:"closed"`
	Open         []model.GrantCycleModel            `json:"open"`
	Applied      []model.GrantCycleModel            `json:"applied"`
	Upcoming     []model.GrantCycleModel            `json:"upcoming"`
}

// OrgHome 草稿、已提交申请，以及最近的周期按状态分组
func (l *GrantLogic) OrgHome(org *model.OrganizationModel, now time.Time) (*OrgHomeData, error) {
	data := &OrgHomeData{
		Organization: org,
		Closed:       []model.GrantCycleModel{},
		Open:         []model.GrantCycleModel{},
		Applied:      []model.GrantCycleModel{},
		Upcoming:     []model.GrantCycleModel{},
	}
	if err := l.db.Preload("GrantCycle").Where("organization_id = ?", org.Id).Find(&data.Drafts).Error; err != nil {
		return nil, fmt.Errorf("获取草稿失败: %w", err)
	}
	err := l.db.Preload("GrantCycle").Where("organization_id = ?", org.Id).
		Order("submission_time DESC").Find(&data.Submitted).Error
	if err != nil {
		return nil, fmt.Errorf("获取已提交申请失败: %w", err)
	}
	applied := make(map[int64]bool, len(data.Submitted))
	for _, app := range data.Submitted {
		applied[app.GrantCycleId] = true
	}

	since := now.AddDate(0, 0, -l.config.Grants.RecentCycleDays)
	var cycles []model.GrantCycleModel
	if err := l.db.Where("close > ?", since).Order("open").Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("获取资助周期失败: %w", err)
	}
	for _, cycle := range cycles {
		switch cycle.GetStatus(now) {
		case model.CycleStatusOpen:
			if applied[cycle.Id] {
				data.Applied = append(data.Applied, cycle)
			} else {
				data.Open = append(data.Open, cycle)
			}
		case model.CycleStatusClosed:
			data.Closed = append(data.Closed, cycle)
		case model.CycleStatusUpcoming:
			data.Upcoming = append(data.Upcoming, cycle)
		}
	}
	return data, nil
}

// ApplyData 申请表页面数据
type ApplyData struct {
	Draft    *model.DraftGrantApplicationModel `json:"draft"`
	Cycle    *model.GrantCycleModel            `json:"cycle"`
	Contents map[string]string                 `json:"contents"`
	Files    map[string]string                 `json:"files"`
	Created  bool                              `json:"created"`
	Limits   map[string]int                    `json:"limits"`
}

// Cycle 获取资助周期
func (l *GrantLogic) Cycle(cycleId int64) (*model.GrantCycleModel, error) {
	var cycle model.GrantCycleModel
	if err := l.db.First(&cycle, cycleId).Error; err != nil {
		return nil, notFound(err)
	}
	return &cycle, nil
}

// Apply 打开申请表：获取或创建草稿，新草稿用机构资料预填
func (l *GrantLogic) Apply(org *model.OrganizationModel, cycleId int64, now time.Time) (*ApplyData, error) {
	cycle, err := l.Cycle(cycleId)
	if err != nil {
		return nil, err
	}
	if err := l.checkNotSubmitted(l.db, org.Id, cycle.Id); err != nil {
		return nil, err
	}

	draft, created, err := l.getOrCreateDraft(org, cycle)
	if err != nil {
		return nil, err
	}
	if !draft.Editable(now) {
		return nil, ErrDraftClosed
	}

	return &ApplyData{
		Draft:    draft,
		Cycle:    cycle,
		Contents: draft.Fields(),
		Files:    FileNames(draft.AppFiles),
		Created:  created,
		Limits:   l.config.Grants.NarrativeLimits,
	}, nil
}

// Autosave 保存草稿内容，不做校验
func (l *GrantLogic) Autosave(org *model.OrganizationModel, cycleId int64, values map[string]string) error {
	cycle, err := l.Cycle(cycleId)
	if err != nil {
		return err
	}
	if err := l.checkNotSubmitted(l.db, org.Id, cycle.Id); err != nil {
		return err
	}
	draft, _, err := l.getOrCreateDraft(org, cycle)
	if err != nil {
		return err
	}
	if !draft.Editable(time.Now()) {
		return ErrDraftClosed
	}
	if err := draft.SetFields(values); err != nil {
		return fmt.Errorf("序列化草稿失败: %w", err)
	}
	// Save 会同时更新 modified
	if err := l.db.Omit("Organization", "GrantCycle").Save(draft).Error; err != nil {
		return fmt.Errorf("保存草稿失败: %w", err)
	}
	logger.Debug("Autosaved draft %d", draft.Id)
	return nil
}

// AddFile 上传附件到草稿，返回文件名
func (l *GrantLogic) AddFile(ctx context.Context, org *model.OrganizationModel, draftId int64, field, filename string, r io.Reader, contentType string) (string, error) {
	draft, err := l.ownDraft(org, draftId)
	if err != nil {
		return "", err
	}
	if _, ok := draft.AppFiles.Get(field); !ok {
		return "", ErrUnknownFileField
	}
	if !storage.AllowedType(filename, l.config.Storage.AllowedFileTypes) {
		logger.Warn("Rejected upload %s for draft %d", filename, draft.Id)
		return "", ErrFileType
	}

	key := storage.NewKey(l.config.Storage.Prefix, filename)
	if err := l.store.Put(ctx, key, r, contentType); err != nil {
		return "", fmt.Errorf("上传附件失败: %w", err)
	}
	if err := l.db.Model(draft).Update(field, key).Error; err != nil {
		return "", fmt.Errorf("保存附件失败: %w", err)
	}
	logger.Info("File %s added to draft %d as %s", filename, draft.Id, field)
	return storage.FileName(key), nil
}

// RemoveFile 清除草稿附件
func (l *GrantLogic) RemoveFile(org *model.OrganizationModel, draftId int64, field string) error {
	draft, err := l.ownDraft(org, draftId)
	if err != nil {
		return err
	}
	if _, ok := draft.AppFiles.Get(field); !ok {
		return ErrUnknownFileField
	}
	if err := l.db.Model(draft).Update(field, "").Error; err != nil {
		return fmt.Errorf("清除附件失败: %w", err)
	}
	return nil
}

// Submit 提交申请。校验失败时返回字段错误，草稿保持不变
func (l *GrantLogic) Submit(org *model.OrganizationModel, cycleId int64, now time.Time) (*model.GrantApplicationModel, form.Errors, error) {
	cycle, err := l.Cycle(cycleId)
	if err != nil {
		return nil, nil, err
	}
	if err := l.checkNotSubmitted(l.db, org.Id, cycle.Id); err != nil {
		return nil, nil, err
	}
	var draft model.DraftGrantApplicationModel
	err = l.db.Preload("GrantCycle").
		Where("organization_id = ? AND grant_cycle_id = ?", org.Id, cycle.Id).
		First(&draft).Error
	if err != nil {
		return nil, nil, notFound(err)
	}
	if !draft.Editable(now) {
		return nil, nil, ErrDraftClosed
	}

	f, err := form.DecodeApplication(draft.Fields())
	if err != nil {
		return nil, nil, err
	}
	errs := f.Check(form.ApplicationCheck{
		Files:           draft.AppFiles,
		ExtraQuestion:   cycle.ExtraQuestion,
		NarrativeLimits: l.config.Grants.NarrativeLimits,
	})
	if errs.Has() {
		logger.Info("Application form invalid for draft %d: %v", draft.Id, errs)
		return nil, errs, nil
	}

	app := f.Application(draft.AppFiles)
	app.OrganizationId = org.Id
	app.GrantCycleId = cycle.Id
	app.SubmissionTime = now
	app.ScreeningStatus = l.config.Grants.DefaultScreening

	html, err := mail.Render(mail.TemplateSubmitted, l.mailData(org, cycle))
	if err != nil {
		return nil, nil, err
	}

	// 开始事务
	tx := l.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Omit("Organization", "GrantCycle").Create(app).Error; err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("创建申请失败: %w", err)
	}

	org.OrgProfile = f.Profile()
	if draft.FiscalLetter != "" {
		org.FiscalLetter = draft.FiscalLetter
	}
	if err := tx.Save(org).Error; err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("更新机构资料失败: %w", err)
	}

	msg := mail.Message{
		From:    l.config.Mail.GrantFrom,
		To:      []string{org.Email},
		Cc:      []string{l.config.Mail.SupportEmail},
		Subject: SubjectSubmitted,
		HTML:    html,
	}
	if _, err := mail.Queue(tx, msg); err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Delete(&model.DraftGrantApplicationModel{}, draft.Id).Error; err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("删除草稿失败: %w", err)
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		return nil, nil, fmt.Errorf("提交事务失败: %w", err)
	}

	logger.Info("Application %d created for %s; confirmation queued", app.Id, org.Email)
	l.kick()
	return app, nil, nil
}

// Discard 删除自己的草稿
func (l *GrantLogic) Discard(org *model.OrganizationModel, draftId int64) error {
	draft, err := l.ownDraft(org, draftId)
	if err != nil {
		logger.Warn("Failed attempt to discard draft %d by organization %d", draftId, org.Id)
		return err
	}
	if err := l.db.Delete(draft).Error; err != nil {
		return fmt.Errorf("删除草稿失败: %w", err)
	}
	logger.Info("Draft %d discarded", draftId)
	return nil
}

// CopyApp 把已有申请或草稿复制为另一个开放周期的新草稿
func (l *GrantLogic) CopyApp(org *model.OrganizationModel, cycleId, appId, draftId int64, now time.Time) (*model.DraftGrantApplicationModel, error) {
	cycle, err := l.Cycle(cycleId)
	if err != nil {
		return nil, err
	}
	if cycle.GetStatus(now) != model.CycleStatusOpen {
		return nil, ErrDraftClosed
	}
	if err := l.checkNotSubmitted(l.db, org.Id, cycle.Id); err != nil {
		return nil, err
	}
	var existing int64
	err = l.db.Model(&model.DraftGrantApplicationModel{}).
		Where("organization_id = ? AND grant_cycle_id = ?", org.Id, cycle.Id).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("查询草稿失败: %w", err)
	}
	if existing > 0 {
		return nil, ErrDraftExists
	}

	draft := &model.DraftGrantApplicationModel{OrganizationId: org.Id, GrantCycleId: cycle.Id}
	var fields map[string]string
	switch {
	case appId != 0:
		var app model.GrantApplicationModel
		if err := l.db.Where("id = ? AND organization_id = ?", appId, org.Id).First(&app).Error; err != nil {
			return nil, notFound(err)
		}
		fields = form.ApplicationContents(&app)
		draft.AppFiles = app.AppFiles
	case draftId != 0:
		source, err := l.ownDraft(org, draftId)
		if err != nil {
			return nil, err
		}
		fields = source.Fields()
		draft.AppFiles = source.AppFiles
	default:
		return nil, ErrNotFound
	}
	// 周期问题不能沿用
	delete(fields, "cycle_question")
	if err := draft.SetFields(fields); err != nil {
		return nil, fmt.Errorf("序列化草稿失败: %w", err)
	}
	if err := l.db.Create(draft).Error; err != nil {
		return nil, fmt.Errorf("创建草稿失败: %w", err)
	}
	draft.GrantCycle = *cycle
	logger.Info("Copied into draft %d for cycle %d", draft.Id, cycle.Id)
	return draft, nil
}

// Application 获取已提交申请
func (l *GrantLogic) Application(appId int64) (*model.GrantApplicationModel, error) {
	var app model.GrantApplicationModel
	if err := l.db.Preload("Organization").Preload("GrantCycle").First(&app, appId).Error; err != nil {
		return nil, notFound(err)
	}
	return &app, nil
}

// Draft 获取草稿
func (l *GrantLogic) Draft(draftId int64) (*model.DraftGrantApplicationModel, error) {
	var draft model.DraftGrantApplicationModel
	if err := l.db.Preload("Organization").Preload("GrantCycle").First(&draft, draftId).Error; err != nil {
		return nil, notFound(err)
	}
	return &draft, nil
}

// OpenFile 读取附件
func (l *GrantLogic) OpenFile(ctx context.Context, files model.AppFiles, field string) (io.ReadCloser, string, error) {
	key, ok := files.Get(field)
	if !ok {
		return nil, "", ErrUnknownFileField
	}
	if key == "" {
		return nil, "", ErrNotFound
	}
	r, err := l.store.Open(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("读取附件失败: %w", err)
	}
	return r, storage.FileName(key), nil
}

// RevertToDraft 把已提交申请退回为草稿，并通知机构
func (l *GrantLogic) RevertToDraft(appId int64) (*model.DraftGrantApplicationModel, error) {
	app, err := l.Application(appId)
	if err != nil {
		return nil, err
	}

	draft := &model.DraftGrantApplicationModel{
		OrganizationId: app.OrganizationId,
		GrantCycleId:   app.GrantCycleId,
		AppFiles:       app.AppFiles,
	}
	if err := draft.SetFields(form.ApplicationContents(app)); err != nil {
		return nil, fmt.Errorf("序列化草稿失败: %w", err)
	}
	html, err := mail.Render(mail.TemplateDraftReopened, l.mailData(&app.Organization, &app.GrantCycle))
	if err != nil {
		return nil, err
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(draft).Error; err != nil {
			return fmt.Errorf("创建草稿失败: %w", err)
		}
		if err := tx.Where("application_id = ?", app.Id).Delete(&model.ProjectAppModel{}).Error; err != nil {
			return fmt.Errorf("删除项目分配失败: %w", err)
		}
		if err := tx.Delete(&model.GrantApplicationModel{}, app.Id).Error; err != nil {
			return fmt.Errorf("删除申请失败: %w", err)
		}
		_, err := mail.Queue(tx, mail.Message{
			From:    l.config.Mail.GrantFrom,
			To:      []string{app.Organization.Email},
			Cc:      []string{l.config.Mail.SupportEmail},
			Subject: SubjectDraftReopened,
			HTML:    html,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Reverted application %d to draft %d", app.Id, draft.Id)
	l.kick()
	return draft, nil
}

// DraftWarnings 截止前 2 到 3 天提醒未提交的草稿，返回提醒数量
func (l *GrantLogic) DraftWarnings(now time.Time) (int, error) {
	var drafts []model.DraftGrantApplicationModel
	if err := l.db.Preload("Organization").Preload("GrantCycle").Find(&drafts).Error; err != nil {
		return 0, fmt.Errorf("获取草稿失败: %w", err)
	}
	lower := time.Duration(l.config.Grants.WarningMinDays) * 24 * time.Hour
	upper := time.Duration(l.config.Grants.WarningMaxDays) * 24 * time.Hour

	sent := 0
	for i := range drafts {
		draft := &drafts[i]
		left := draft.GrantCycle.Close.Sub(now)
		if left <= lower || left > upper {
			continue
		}
		html, err := mail.Render(mail.TemplateDraftWarning, l.mailData(&draft.Organization, &draft.GrantCycle))
		if err != nil {
			return sent, err
		}
		_, err = mail.Queue(l.db, mail.Message{
			From:    l.config.Mail.GrantFrom,
			To:      []string{draft.Organization.Email},
			Cc:      []string{l.config.Mail.SupportEmail},
			Subject: SubjectDraftWarning,
			HTML:    html,
		})
		if err != nil {
			return sent, err
		}
		logger.Info("Draft warning queued for %s, draft %d", draft.Organization.Email, draft.Id)
		sent++
	}
	if sent > 0 {
		l.kick()
	}
	return sent, nil
}

// FileNames 附件字段对应的文件名
func FileNames(files model.AppFiles) map[string]string {
	names := make(map[string]string, len(model.FileFields))
	for _, field := range model.FileFields {
		key, _ := files.Get(field)
		names[field] = storage.FileName(key)
	}
	return names
}

func (l *GrantLogic) checkNotSubmitted(db *gorm.DB, orgId, cycleId int64) error {
	var count int64
	err := db.Model(&model.GrantApplicationModel{}).
		Where("organization_id = ? AND grant_cycle_id = ?", orgId, cycleId).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("查询申请失败: %w", err)
	}
	if count > 0 {
		return ErrAlreadySubmitted
	}
	return nil
}

// getOrCreateDraft 新草稿用机构资料和财务托管函预填
func (l *GrantLogic) getOrCreateDraft(org *model.OrganizationModel, cycle *model.GrantCycleModel) (*model.DraftGrantApplicationModel, bool, error) {
	var draft model.DraftGrantApplicationModel
	err := l.db.Where("organization_id = ? AND grant_cycle_id = ?", org.Id, cycle.Id).First(&draft).Error
	if err == nil {
		draft.GrantCycle = *cycle
		return &draft, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("获取草稿失败: %w", err)
	}

	draft = model.DraftGrantApplicationModel{OrganizationId: org.Id, GrantCycleId: cycle.Id}
	draft.FiscalLetter = org.FiscalLetter
	if err := draft.SetFields(org.OrgProfile.ToMap()); err != nil {
		return nil, false, fmt.Errorf("序列化草稿失败: %w", err)
	}
	if err := l.db.Create(&draft).Error; err != nil {
		return nil, false, fmt.Errorf("创建草稿失败: %w", err)
	}
	draft.GrantCycle = *cycle
	logger.Debug("Created new draft %d for organization %d", draft.Id, org.Id)
	return &draft, true, nil
}

func (l *GrantLogic) ownDraft(org *model.OrganizationModel, draftId int64) (*model.DraftGrantApplicationModel, error) {
	var draft model.DraftGrantApplicationModel
	err := l.db.Where("id = ? AND organization_id = ?", draftId, org.Id).First(&draft).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &draft, nil
}

func (l *GrantLogic) mailData(org *model.OrganizationModel, cycle *model.GrantCycleModel) map[string]interface{} {
	return map[string]interface{}{
		"Org":     org,
		"Cycle":   cycle,
		"BaseURL": l.config.Server.BaseURL,
	}
}

func (l *GrantLogic) kick() {
	if l.outbox != nil {
		l.outbox.Kick()
	}
}
