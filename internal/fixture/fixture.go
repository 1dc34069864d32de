package fixture

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture 种子数据文档
type Fixture struct {
	Users          []User          `yaml:"users"`
	GivingProjects []GivingProject `yaml:"giving_projects"`
	Members        []Member        `yaml:"members"`
	Organizations  []Organization  `yaml:"organizations"`
	GrantCycles    []GrantCycle    `yaml:"grant_cycles"`
	Surveys        []Survey        `yaml:"surveys"`
}

type User struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Staff     bool   `yaml:"staff"`
}

type GivingProject struct {
	Title               string    `yaml:"title"`
	FundraisingTraining time.Time `yaml:"fundraising_training"`
	FundraisingDeadline time.Time `yaml:"fundraising_deadline"`
	FundGoal            int64     `yaml:"fund_goal"`
	SuggestedSteps      []string  `yaml:"suggested_steps"`
	PreApproved         []string  `yaml:"pre_approved"`
	SiteVisits          bool      `yaml:"site_visits"`
	Public              bool      `yaml:"public"`
}

// Member 成员及其 membership，项目按 title 引用
type Member struct {
	Email       string       `yaml:"email"`
	Password    string       `yaml:"password"`
	FirstName   string       `yaml:"first_name"`
	LastName    string       `yaml:"last_name"`
	Memberships []Membership `yaml:"memberships"`
}

type Membership struct {
	Project  string  `yaml:"project"`
	Approved bool    `yaml:"approved"`
	Leader   bool    `yaml:"leader"`
	Donors   []Donor `yaml:"donors"`
}

type Donor struct {
	Firstname  string `yaml:"firstname"`
	Lastname   string `yaml:"lastname"`
	Phone      string `yaml:"phone"`
	Email      string `yaml:"email"`
	Notes      string `yaml:"notes"`
	Amount     *int64 `yaml:"amount"`
	Likelihood *int64 `yaml:"likelihood"`
}

type Organization struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	City     string `yaml:"city"`
	State    string `yaml:"state"`
	Status   string `yaml:"status"`
	Mission  string `yaml:"mission"`
}

type GrantCycle struct {
	Title          string    `yaml:"title"`
	Open           time.Time `yaml:"open"`
	Close          time.Time `yaml:"close"`
	InfoPage       string    `yaml:"info_page"`
	EmailSignature string    `yaml:"email_signature"`
	ExtraQuestion  string    `yaml:"extra_question"`
}

// Survey 问卷及其排期，项目按 title 引用
type Survey struct {
	Title     string     `yaml:"title"`
	Questions []Question `yaml:"questions"`
	Projects  []string   `yaml:"projects"`
	Date      time.Time  `yaml:"date"`
}

// Question 问卷问题，Choices 为空时是文本题
type Question struct {
	Question string   `yaml:"question" json:"question"`
	Choices  []string `yaml:"choices" json:"choices,omitempty"`
}

// Load 解析 YAML
func Load(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("解析种子数据失败: %w", err)
	}
	return &f, nil
}

// LoadFile 从文件解析
func LoadFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开种子文件失败: %w", err)
	}
	defer file.Close()
	return Load(file)
}

// Apply 在一个事务中写入全部数据
func (f *Fixture) Apply(db *gorm.DB) error {
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := f.apply(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交种子数据失败: %w", err)
	}
	logger.Info("Fixture loaded: %d users, %d projects, %d members, %d organizations, %d cycles",
		len(f.Users), len(f.GivingProjects), len(f.Members), len(f.Organizations), len(f.GrantCycles))
	return nil
}

func (f *Fixture) apply(tx *gorm.DB) error {
	for _, u := range f.Users {
		if err := createUser(tx, u.Email, u.Password, u.FirstName, u.LastName, u.Staff); err != nil {
			return err
		}
	}

	projects := map[string]*model.GivingProjectModel{}
	for _, p := range f.GivingProjects {
		project := &model.GivingProjectModel{
			Title:               p.Title,
			FundraisingTraining: p.FundraisingTraining,
			FundraisingDeadline: p.FundraisingDeadline,
			FundGoal:            p.FundGoal,
			SuggestedSteps:      strings.Join(p.SuggestedSteps, "\n"),
			PreApproved:         strings.Join(p.PreApproved, ","),
			SiteVisits:          p.SiteVisits,
			Public:              p.Public,
		}
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("创建募捐项目 %s 失败: %w", p.Title, err)
		}
		projects[p.Title] = project
	}

	for _, m := range f.Members {
		if err := applyMember(tx, m, projects); err != nil {
			return err
		}
	}

	for _, o := range f.Organizations {
		if err := createUser(tx, o.Email, o.Password, o.Name, "", false); err != nil {
			return err
		}
		org := &model.OrganizationModel{Name: o.Name, Email: strings.ToLower(o.Email)}
		org.City = o.City
		org.State = o.State
		org.Status = o.Status
		org.Mission = o.Mission
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("创建机构 %s 失败: %w", o.Name, err)
		}
	}

	for _, c := range f.GrantCycles {
		cycle := &model.GrantCycleModel{
			Title:          c.Title,
			Open:           c.Open,
			Close:          c.Close,
			InfoPage:       c.InfoPage,
			EmailSignature: c.EmailSignature,
			ExtraQuestion:  c.ExtraQuestion,
		}
		if err := tx.Create(cycle).Error; err != nil {
			return fmt.Errorf("创建资助周期 %s 失败: %w", c.Title, err)
		}
	}

	for _, s := range f.Surveys {
		if err := applySurvey(tx, s, projects); err != nil {
			return err
		}
	}
	return nil
}

func applyMember(tx *gorm.DB, m Member, projects map[string]*model.GivingProjectModel) error {
	if m.Password != "" {
		if err := createUser(tx, m.Email, m.Password, m.FirstName, m.LastName, false); err != nil {
			return err
		}
	}
	member := &model.MemberModel{Email: strings.ToLower(m.Email), FirstName: m.FirstName, LastName: m.LastName}
	if err := tx.Create(member).Error; err != nil {
		return fmt.Errorf("创建成员 %s 失败: %w", m.Email, err)
	}

	for _, ms := range m.Memberships {
		project, ok := projects[ms.Project]
		if !ok {
			return fmt.Errorf("成员 %s 引用了不存在的募捐项目 %q", m.Email, ms.Project)
		}
		ship := &model.MembershipModel{
			MemberId:         member.Id,
			GivingProjectId:  project.Id,
			Approved:         ms.Approved,
			Leader:           ms.Leader,
			CompletedSurveys: "[]",
		}
		if err := tx.Create(ship).Error; err != nil {
			return fmt.Errorf("创建 membership 失败: %w", err)
		}
		if ship.Approved && member.Current == 0 {
			member.Current = ship.Id
			if err := tx.Model(member).Update("current", ship.Id).Error; err != nil {
				return fmt.Errorf("更新当前 membership 失败: %w", err)
			}
		}
		for _, d := range ms.Donors {
			donor := &model.DonorModel{
				MembershipId:  ship.Id,
				Added:         time.Now(),
				Firstname:     d.Firstname,
				Lastname:      d.Lastname,
				Phone:         d.Phone,
				Email:         d.Email,
				Notes:         d.Notes,
				Amount:        d.Amount,
				Likelihood:    d.Likelihood,
				PromiseReason: "[]",
			}
			if err := tx.Create(donor).Error; err != nil {
				return fmt.Errorf("创建联系人 %s 失败: %w", d.Firstname, err)
			}
		}
	}
	return nil
}

func applySurvey(tx *gorm.DB, s Survey, projects map[string]*model.GivingProjectModel) error {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("序列化问卷 %s 失败: %w", s.Title, err)
	}
	survey := &model.SurveyModel{Title: s.Title, Questions: string(questions)}
	if err := tx.Create(survey).Error; err != nil {
		return fmt.Errorf("创建问卷 %s 失败: %w", s.Title, err)
	}
	for _, title := range s.Projects {
		project, ok := projects[title]
		if !ok {
			return fmt.Errorf("问卷 %s 引用了不存在的募捐项目 %q", s.Title, title)
		}
		gps := &model.GPSurveyModel{GivingProjectId: project.Id, SurveyId: survey.Id, Date: s.Date}
		if err := tx.Create(gps).Error; err != nil {
			return fmt.Errorf("创建问卷排期失败: %w", err)
		}
	}
	return nil
}

func createUser(tx *gorm.DB, email, password, first, last string, staff bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}
	user := &model.UserModel{
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		FirstName:    first,
		LastName:     last,
		IsActive:     true,
		IsStaff:      staff,
	}
	if err := tx.Create(user).Error; err != nil {
		return fmt.Errorf("创建账号 %s 失败: %w", email, err)
	}
	return nil
}
