package logic

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/zekeo/sjfnw/internal/model"
	"gorm.io/gorm"
)

// ReportLogic 管理后台报表
type ReportLogic struct {
	db *gorm.DB
}

// NewReportLogic 创建报表业务逻辑
func NewReportLogic(db *gorm.DB) *ReportLogic {
	return &ReportLogic{db: db}
}

// MembershipProgress 单个成员的进度
type MembershipProgress struct {
	MembershipId int64  `json:"membership_id"`
	Member       string `json:"member"`
	Approved     bool   `json:"approved"`
	Progress
}

// ProjectReport 募捐项目报表
type ProjectReport struct {
	Project *model.GivingProjectModel `json:"project"`
	Rows    []MembershipProgress      `json:"rows"`
	Totals  Progress                  `json:"totals"`
}

// ProjectReport 项目内每个成员的进度及合计
func (l *ReportLogic) ProjectReport(projectId int64) (*ProjectReport, error) {
	var project model.GivingProjectModel
	if err := l.db.First(&project, projectId).Error; err != nil {
		return nil, notFound(err)
	}

	var ships []model.MembershipModel
	err := l.db.Preload("Member").Where("giving_project_id = ?", project.Id).Order("id").Find(&ships).Error
	if err != nil {
		return nil, fmt.Errorf("获取成员失败: %w", err)
	}

	var donors []model.DonorModel
	err = l.db.Joins("JOIN membership ON membership.id = donor.membership_id").
		Where("membership.giving_project_id = ?", project.Id).
		Find(&donors).Error
	if err != nil {
		return nil, fmt.Errorf("获取联系人失败: %w", err)
	}
	byShip := make(map[int64][]model.DonorModel, len(ships))
	for _, d := range donors {
		byShip[d.MembershipId] = append(byShip[d.MembershipId], d)
	}

	report := &ProjectReport{Project: &project, Rows: make([]MembershipProgress, 0, len(ships))}
	for _, ship := range ships {
		_, progress := CompileProgress(byShip[ship.Id])
		report.Rows = append(report.Rows, MembershipProgress{
			MembershipId: ship.Id,
			Member:       ship.Member.String(),
			Approved:     ship.Approved,
			Progress:     *progress,
		})
	}
	_, totals := CompileProgress(donors)
	report.Totals = *totals
	return report, nil
}

// CycleSummary 资助周期汇总
type CycleSummary struct {
	Cycle        *model.GrantCycleModel `json:"cycle"`
	Applications int                    `json:"applications"`
	ByStatus     map[int]int            `json:"by_status"`
	Drafts       int64                  `json:"drafts"`
	Requested    int64                  `json:"requested"`
}

// CycleSummary 按评审状态统计申请数量和进行中的草稿
func (l *ReportLogic) CycleSummary(cycleId int64) (*CycleSummary, error) {
	var cycle model.GrantCycleModel
	if err := l.db.First(&cycle, cycleId).Error; err != nil {
		return nil, notFound(err)
	}
	var apps []model.GrantApplicationModel
	if err := l.db.Where("grant_cycle_id = ?", cycle.Id).Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("获取申请失败: %w", err)
	}
	summary := &CycleSummary{Cycle: &cycle, Applications: len(apps), ByStatus: map[int]int{}}
	for _, app := range apps {
		summary.ByStatus[app.ScreeningStatus]++
		summary.Requested += app.AmountRequested
	}
	err := l.db.Model(&model.DraftGrantApplicationModel{}).Where("grant_cycle_id = ?", cycle.Id).
		Count(&summary.Drafts).Error
	if err != nil {
		return nil, fmt.Errorf("统计草稿失败: %w", err)
	}
	return summary, nil
}

var exportColumns = []string{
	"id", "organization", "submission_time", "screening_status", "amount_requested",
	"support_type", "project_title", "contact_person", "email_address", "telephone_number",
	"city", "state", "status",
}

// ExportApplications 导出周期内的申请为 CSV
func (l *ReportLogic) ExportApplications(w io.Writer, cycleId int64) error {
	var apps []model.GrantApplicationModel
	err := l.db.Preload("Organization").Where("grant_cycle_id = ?", cycleId).Find(&apps).Error
	if err != nil {
		return fmt.Errorf("获取申请失败: %w", err)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Organization.Name < apps[j].Organization.Name })

	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return err
	}
	for _, app := range apps {
		record := []string{
			strconv.FormatInt(app.Id, 10),
			app.Organization.Name,
			app.SubmissionTime.Format("2006-01-02 15:04"),
			strconv.Itoa(app.ScreeningStatus),
			strconv.FormatInt(app.AmountRequested, 10),
			app.SupportType,
			app.ProjectTitle,
			app.ContactPerson,
			app.EmailAddress,
			app.TelephoneNumber,
			app.City,
			app.State,
			app.Status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
