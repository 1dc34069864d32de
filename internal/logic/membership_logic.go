package logic

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"gorm.io/gorm"
)

// 首页跳转目标
const (
	RedirectSurvey       = "survey"
	RedirectCopyContacts = "copy_contacts"
	RedirectAddContacts  = "add_contacts"
	RedirectAddEstimates = "add_estimates"
)

// 没有下一步时用于排序的日期
var (
	emptyDate    = time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC)
	askedDate    = time.Date(2600, 1, 1, 0, 0, 0, 0, time.UTC)
	promisedDate = time.Date(2700, 1, 1, 0, 0, 0, 0, time.UTC)
	receivedDate = time.Date(2800, 1, 1, 0, 0, 0, 0, time.UTC)
)

// MembershipLogic 募捐首页和项目页业务逻辑
type MembershipLogic struct {
	db     *gorm.DB
	config *config.Config
}

// NewMembershipLogic 创建 membership 业务逻辑
func NewMembershipLogic(db *gorm.DB, cfg *config.Config) *MembershipLogic {
	return &MembershipLogic{db: db, config: cfg}
}

// Progress 募捐进度
type Progress struct {
	Contacts          int    `json:"contacts"`
	Estimated         int64  `json:"estimated"`
	Talked            int    `json:"talked"`
	Asked             int    `json:"asked"`
	Promised          int64  `json:"promised"`
	Received          int64  `json:"received"`
	Bar               int    `json:"bar"`
	ContactsRemaining int    `json:"contactsremaining"`
	Togo              int64  `json:"togo"`
	Header            string `json:"header"`
}

// DonorSummary 首页联系人列表中的一项
type DonorSummary struct {
	Donor         model.DonorModel  `json:"donor"`
	CompleteSteps []model.StepModel `json:"complete_steps"`
	NextStep      *model.StepModel  `json:"next_step"`
	NextDate      time.Time         `json:"next_date"`
	Overdue       bool              `json:"overdue"`
	Summary       string            `json:"summary"`
}

// BlockContent 页面顶部区块
type BlockContent struct {
	Steps  []model.StepModel       `json:"steps,omitempty"`
	News   []model.NewsItemModel   `json:"news"`
	Grants []model.ProjectAppModel `json:"grants"`
}

// HomeData 首页数据；Redirect 非空时前端应跳转
type HomeData struct {
	Redirect     string                  `json:"redirect,omitempty"`
	RedirectId   int64                   `json:"redirect_id,omitempty"`
	Header       string                  `json:"header,omitempty"`
	Donors       []DonorSummary          `json:"donor_list,omitempty"`
	Upcoming     []model.StepModel       `json:"steps,omitempty"`
	Progress     *Progress               `json:"progress,omitempty"`
	News         []model.NewsItemModel   `json:"news,omitempty"`
	Grants       []model.ProjectAppModel `json:"grants,omitempty"`
	Suggested    []string                `json:"suggested,omitempty"`
	Notification string                  `json:"notif,omitempty"`
}

// Home 个人首页。依次检查：待填问卷、复制联系人、添加联系人、补填预估
func (l *MembershipLogic) Home(ship *model.MembershipModel) (*HomeData, error) {
	now := time.Now()

	survey, err := l.PendingSurvey(ship, now)
	if err != nil {
		return nil, err
	}
	if survey != nil {
		logger.Info("Membership %d needs to fill out survey %d", ship.Id, survey.Id)
		return &HomeData{Redirect: RedirectSurvey, RedirectId: survey.Id}, nil
	}

	var donors []model.DonorModel
	if err := l.db.Where("membership_id = ?", ship.Id).Order("id").Find(&donors).Error; err != nil {
		return nil, fmt.Errorf("获取联系人失败: %w", err)
	}

	if len(donors) == 0 {
		if !ship.CopiedContacts {
			var others int64
			err := l.db.Model(&model.DonorModel{}).
				Joins("JOIN membership ON membership.id = donor.membership_id").
				Where("membership.member_id = ?", ship.MemberId).
				Count(&others).Error
			if err != nil {
				return nil, fmt.Errorf("获取历史联系人失败: %w", err)
			}
			if others > 0 {
				return &HomeData{Redirect: RedirectCopyContacts}, nil
			}
		}
		return &HomeData{Redirect: RedirectAddContacts}, nil
	}

	if ship.GivingProject.RequireEstimates(now) {
		for _, d := range donors {
			if d.Amount == nil {
				return &HomeData{Redirect: RedirectAddEstimates}, nil
			}
		}
	}

	blocks, err := l.BlockContent(ship, false)
	if err != nil {
		return nil, err
	}

	summaries, progress := CompileProgress(donors)

	var steps []model.StepModel
	err = l.db.Joins("JOIN donor ON donor.id = step.donor_id").
		Where("donor.membership_id = ?", ship.Id).
		Order("step.date").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("获取步骤失败: %w", err)
	}
	donorList, upcoming := CompileSteps(summaries, steps, now)

	data := &HomeData{
		Header:       ship.GivingProject.Title,
		Donors:       donorList,
		Upcoming:     upcoming,
		Progress:     progress,
		News:         blocks.News,
		Grants:       blocks.Grants,
		Suggested:    ship.GivingProject.GetSuggestedSteps(),
		Notification: ship.Notifications,
	}

	// 线上只显示一次通知
	if ship.Notifications != "" && l.config.Server.ShowNotificationsOnce {
		logger.Info("Displaying notification to membership %d", ship.Id)
		err := l.db.Model(&model.MembershipModel{}).Where("id = ?", ship.Id).Update("notifications", "").Error
		if err != nil {
			return nil, fmt.Errorf("清除通知失败: %w", err)
		}
		ship.Notifications = ""
	}
	return data, nil
}

// PendingSurvey 已到期且未完成的最早问卷
func (l *MembershipLogic) PendingSurvey(ship *model.MembershipModel, now time.Time) (*model.GPSurveyModel, error) {
	query := l.db.Where("giving_project_id = ? AND date <= ?", ship.GivingProjectId, now)
	if done := ship.CompletedSurveyIds(); len(done) > 0 {
		query = query.Where("id NOT IN ?", done)
	}
	var surveys []model.GPSurveyModel
	if err := query.Order("date").Limit(1).Find(&surveys).Error; err != nil {
		return nil, fmt.Errorf("获取问卷失败: %w", err)
	}
	if len(surveys) == 0 {
		return nil, nil
	}
	return &surveys[0], nil
}

// CompileProgress 统计个人进度，并生成每个联系人的摘要
func CompileProgress(donors []model.DonorModel) (map[int64]*DonorSummary, *Progress) {
	progress := &Progress{Contacts: len(donors)}
	summaries := make(map[int64]*DonorSummary, len(donors))

	for _, donor := range donors {
		s := &DonorSummary{Donor: donor, CompleteSteps: []model.StepModel{}, NextDate: emptyDate}
		var parts []string
		progress.Estimated += donor.Estimated()
		if donor.Asked {
			progress.Asked++
			s.NextDate = askedDate
			parts = append(parts, "Asked.")
		} else if donor.Talked {
			progress.Talked++
		}
		switch {
		case donor.Received() > 0:
			progress.Received += donor.Received()
			s.NextDate = receivedDate
			parts = append(parts, fmt.Sprintf("$%s received by SJF.", Intcomma(donor.Received())))
		case donor.HasPromised():
			progress.Promised += *donor.Promised
			s.NextDate = promisedDate
			parts = append(parts, fmt.Sprintf("Promised $%s.", Intcomma(*donor.Promised)))
		case donor.Asked && donor.Declined():
			parts = append(parts, "Declined to donate.")
		case donor.Asked:
			parts = append(parts, "Awaiting response.")
		}
		s.Summary = strings.Join(parts, " ")
		summaries[donor.Id] = s
	}

	chartData(progress)
	return summaries, progress
}

// chartData 进度条数据
func chartData(p *Progress) {
	if p.Contacts == 0 {
		p.ContactsRemaining = 0
		return
	}
	p.Bar = 100 * p.Asked / p.Contacts
	p.ContactsRemaining = p.Contacts - p.Talked - p.Asked
	p.Togo = p.Estimated - p.Promised - p.Received
	p.Header = fmt.Sprintf("$%s fundraising goal", Intcomma(p.Estimated))
	if p.Togo < 0 {
		// 已达到目标，显示已筹金额
		p.Togo = 0
		p.Header = fmt.Sprintf("$%s raised", Intcomma(p.Promised+p.Received))
	}
}

// CompileSteps 把步骤分配到联系人，返回按下一步日期排序的联系人和即将进行的步骤
func CompileSteps(summaries map[int64]*DonorSummary, steps []model.StepModel, now time.Time) ([]DonorSummary, []model.StepModel) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	upcoming := []model.StepModel{}

	for i := range steps {
		step := steps[i]
		s, ok := summaries[step.DonorId]
		if !ok {
			continue
		}
		if step.Completed != nil {
			s.CompleteSteps = append(s.CompleteSteps, step)
			continue
		}
		upcoming = append(upcoming, step)
		s.NextStep = &steps[i]
		s.NextDate = step.Date
		if step.Date.Before(today) {
			s.Overdue = true
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Date.Before(upcoming[j].Date) })

	list := make([]DonorSummary, 0, len(summaries))
	for _, s := range summaries {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].NextDate.Equal(list[j].NextDate) {
			return list[i].NextDate.Before(list[j].NextDate)
		}
		return list[i].Donor.Id < list[j].Donor.Id
	})
	return list, upcoming
}

// BlockContent 顶部区块：最近的步骤、项目动态、评审中的申请
func (l *MembershipLogic) BlockContent(ship *model.MembershipModel, withSteps bool) (*BlockContent, error) {
	blocks := &BlockContent{}

	if withSteps {
		err := l.db.Preload("Donor").
			Joins("JOIN donor ON donor.id = step.donor_id").
			Where("donor.membership_id = ? AND step.completed IS NULL", ship.Id).
			Order("step.date").
			Limit(l.config.Fund.UpcomingSteps).
			Find(&blocks.Steps).Error
		if err != nil {
			return nil, fmt.Errorf("获取即将进行的步骤失败: %w", err)
		}
	}

	err := l.db.Joins("JOIN membership ON membership.id = news_item.membership_id").
		Where("membership.giving_project_id = ?", ship.GivingProjectId).
		Order("news_item.date DESC").
		Limit(l.config.Fund.NewsItemsLimit).
		Find(&blocks.News).Error
	if err != nil {
		return nil, fmt.Errorf("获取项目动态失败: %w", err)
	}

	query := l.db.Preload("Application.Organization").
		Joins("JOIN grant_application ON grant_application.id = project_app.application_id").
		Joins("JOIN organization ON organization.id = grant_application.organization_id").
		Where("project_app.giving_project_id = ?", ship.GivingProjectId).
		Where("grant_application.screening_status <> ?", l.config.Grants.ScreenedOutStatus)
	if ship.GivingProject.SiteVisits {
		query = query.Where("project_app.screening_status >= ?", l.config.Grants.SiteVisitStatus)
	}
	if err := query.Order("organization.name").Find(&blocks.Grants).Error; err != nil {
		return nil, fmt.Errorf("获取项目申请失败: %w", err)
	}
	return blocks, nil
}

// ProjectProgress 项目整体进度
type ProjectProgress struct {
	Contacts          int   `json:"contacts"`
	Talked            int   `json:"talked"`
	Asked             int   `json:"asked"`
	Promised          int64 `json:"promised"`
	Received          int64 `json:"received"`
	ContactsRemaining int   `json:"contactsremaining"`
	Togo              int64 `json:"togo"`
}

// ProjectPage 项目页
func (l *MembershipLogic) ProjectPage(ship *model.MembershipModel) (*BlockContent, *ProjectProgress, error) {
	blocks, err := l.BlockContent(ship, true)
	if err != nil {
		return nil, nil, err
	}
	progress, err := l.ProjectProgress(&ship.GivingProject)
	if err != nil {
		return nil, nil, err
	}
	return blocks, progress, nil
}

// ProjectProgress 统计项目所有成员的联系人
func (l *MembershipLogic) ProjectProgress(project *model.GivingProjectModel) (*ProjectProgress, error) {
	var donors []model.DonorModel
	err := l.db.Joins("JOIN membership ON membership.id = donor.membership_id").
		Where("membership.giving_project_id = ?", project.Id).
		Find(&donors).Error
	if err != nil {
		return nil, fmt.Errorf("获取项目联系人失败: %w", err)
	}

	p := &ProjectProgress{Contacts: len(donors)}
	for _, d := range donors {
		if d.Asked {
			p.Asked++
		} else if d.Talked {
			p.Talked++
		}
		if d.Received() > 0 {
			p.Received += d.Received()
		} else if d.HasPromised() {
			p.Promised += *d.Promised
		}
	}
	p.ContactsRemaining = p.Contacts - p.Talked - p.Asked
	p.Togo = project.FundGoal - p.Promised - p.Received
	if p.Togo < 0 {
		p.Togo = 0
	}
	return p, nil
}
