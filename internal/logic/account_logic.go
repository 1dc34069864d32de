package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 欢迎通知，预批准的成员加入项目时显示
const welcomeNotification = `<table><tr><td>Welcome to Project Central!<br>
I'm Odo, your Online Donor Organizer. I'm here to help you raise money for social justice!
</td><td><img src="/static/images/odo1.png" height=88 width=54 alt="Odo waving">
</td></tr></table>`

// 账号相关提示
const (
	MsgUserExistsNotMember = "That email is registered with Project Central but not as a member. Please contact an administrator."
	MsgOrgExists           = "That organization is already registered. Log in instead."
	MsgEmailExists         = "That email is already registered. Log in instead."
)

// 成员状态
const (
	StatusNoMember     = "no_member"
	StatusNoMembership = "no_membership"
	StatusNotApproved  = "not_approved"
	StatusApproved     = "approved"
)

// AccountLogic 账号、会话和 membership 管理
type AccountLogic struct {
	db     *gorm.DB
	config *config.Config
}

// NewAccountLogic 创建账号业务逻辑
func NewAccountLogic(db *gorm.DB, cfg *config.Config) *AccountLogic {
	return &AccountLogic{db: db, config: cfg}
}

// RegisterResult 注册结果
type RegisterResult struct {
	User       *model.UserModel       `json:"user"`
	Member     *model.MemberModel     `json:"member"`
	Membership *model.MembershipModel `json:"membership,omitempty"`
}

// Register 注册成员账号，可选同时加入一个募捐项目
func (l *AccountLogic) Register(f *form.RegistrationForm) (*RegisterResult, form.Errors, error) {
	if errs := form.Validate(f); errs.Has() {
		return nil, errs, nil
	}
	email := normalizeEmail(f.Email)

	var memberCount, userCount int64
	if err := l.db.Model(&model.MemberModel{}).Where("email = ?", email).Count(&memberCount).Error; err != nil {
		return nil, nil, fmt.Errorf("查询成员失败: %w", err)
	}
	if memberCount > 0 {
		return nil, nil, ErrDuplicateAccount
	}
	if err := l.db.Model(&model.UserModel{}).Where("email = ?", email).Count(&userCount).Error; err != nil {
		return nil, nil, fmt.Errorf("查询账号失败: %w", err)
	}
	if userCount > 0 {
		errs := form.Errors{}
		errs.Add(form.NonFieldErrors, MsgUserExistsNotMember)
		return nil, errs, nil
	}

	var project *model.GivingProjectModel
	if f.GivingProject != "" {
		id := parseOptional(f.GivingProject)
		if id == nil {
			errs := form.Errors{}
			errs.Add("giving_project", "Select a valid choice.")
			return nil, errs, nil
		}
		var gp model.GivingProjectModel
		if err := l.db.First(&gp, *id).Error; err != nil {
			return nil, nil, notFound(err)
		}
		project = &gp
	}

	hash, err := hashPassword(f.Password)
	if err != nil {
		return nil, nil, err
	}

	result := &RegisterResult{
		User: &model.UserModel{
			Email:        email,
			PasswordHash: hash,
			FirstName:    strings.TrimSpace(f.FirstName),
			LastName:     strings.TrimSpace(f.LastName),
			IsActive:     true,
		},
		Member: &model.MemberModel{
			Email:     email,
			FirstName: strings.TrimSpace(f.FirstName),
			LastName:  strings.TrimSpace(f.LastName),
		},
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result.User).Error; err != nil {
			return fmt.Errorf("创建账号失败: %w", err)
		}
		if err := tx.Create(result.Member).Error; err != nil {
			return fmt.Errorf("创建成员失败: %w", err)
		}
		if project == nil {
			return nil
		}
		ship, err := createMembership(tx, result.Member, project)
		if err != nil {
			return err
		}
		result.Membership = ship
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Registration - user %s created, member %d", email, result.Member.Id)
	return result, nil, nil
}

// createMembership 创建 membership，预批准时自动通过并设为当前
func createMembership(tx *gorm.DB, member *model.MemberModel, project *model.GivingProjectModel) (*model.MembershipModel, error) {
	ship := &model.MembershipModel{
		MemberId:         member.Id,
		GivingProjectId:  project.Id,
		CompletedSurveys: "[]",
	}
	if project.IsPreApproved(member.Email) {
		ship.Approved = true
		ship.Notifications = welcomeNotification
	}
	if err := tx.Create(ship).Error; err != nil {
		return nil, fmt.Errorf("创建 membership 失败: %w", err)
	}
	if err := tx.Model(&model.MemberModel{}).Where("id = ?", member.Id).Update("current", ship.Id).Error; err != nil {
		return nil, fmt.Errorf("更新当前 membership 失败: %w", err)
	}
	member.Current = ship.Id
	ship.GivingProject = *project
	logger.Info("Membership %d created for member %d, approved: %v", ship.Id, member.Id, ship.Approved)
	return ship, nil
}

// RegisterOrg 注册申请机构账号
func (l *AccountLogic) RegisterOrg(f *form.OrgRegisterForm) (*model.OrganizationModel, form.Errors, error) {
	if errs := form.Validate(f); errs.Has() {
		return nil, errs, nil
	}
	email := normalizeEmail(f.Email)
	name := strings.TrimSpace(f.Organization)

	var count int64
	if err := l.db.Model(&model.OrganizationModel{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, nil, fmt.Errorf("查询机构失败: %w", err)
	}
	if count > 0 {
		errs := form.Errors{}
		errs.Add(form.NonFieldErrors, MsgOrgExists)
		return nil, errs, nil
	}
	if err := l.db.Model(&model.UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, nil, fmt.Errorf("查询账号失败: %w", err)
	}
	if count == 0 {
		err := l.db.Model(&model.OrganizationModel{}).Where("email = ?", email).Count(&count).Error
		if err != nil {
			return nil, nil, fmt.Errorf("查询机构失败: %w", err)
		}
	}
	if count > 0 {
		errs := form.Errors{}
		errs.Add(form.NonFieldErrors, MsgEmailExists)
		return nil, errs, nil
	}

	hash, err := hashPassword(f.Password)
	if err != nil {
		return nil, nil, err
	}
	org := &model.OrganizationModel{Name: name, Email: email}
	err = l.db.Transaction(func(tx *gorm.DB) error {
		user := &model.UserModel{Email: email, PasswordHash: hash, FirstName: name, IsActive: true}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("创建账号失败: %w", err)
		}
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("创建机构失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Organization %s registered", name)
	return org, nil, nil
}

// Login 校验账号密码并创建会话
func (l *AccountLogic) Login(f *form.LoginForm) (*model.SessionModel, form.Errors, error) {
	if errs := form.Validate(f); errs.Has() {
		return nil, errs, nil
	}
	var user model.UserModel
	err := l.db.Where("email = ?", normalizeEmail(f.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("查询账号失败: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(f.Password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrInactiveAccount
	}

	session := &model.SessionModel{
		Token:     uuid.NewString(),
		UserId:    user.Id,
		ExpiresAt: time.Now().Add(l.config.Server.SessionTTL),
		User:      user,
	}
	if err := l.db.Omit("User").Create(session).Error; err != nil {
		return nil, nil, fmt.Errorf("创建会话失败: %w", err)
	}
	logger.Info("User %d logged in", user.Id)
	return session, nil, nil
}

// Logout 删除会话
func (l *AccountLogic) Logout(token string) error {
	if err := l.db.Where("token = ?", token).Delete(&model.SessionModel{}).Error; err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	return nil
}

// SessionUser 根据会话 token 获取用户，过期或不存在返回 ErrNotFound
func (l *AccountLogic) SessionUser(token string) (*model.UserModel, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	var session model.SessionModel
	err := l.db.Preload("User").Where("token = ? AND expires_at > ?", token, time.Now()).First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	if !session.User.IsActive {
		return nil, ErrInactiveAccount
	}
	return &session.User, nil
}

// PurgeSessions 清理过期会话
func (l *AccountLogic) PurgeSessions(now time.Time) (int64, error) {
	res := l.db.Where("expires_at <= ?", now).Delete(&model.SessionModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("清理会话失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MembershipStatus 用户当前的成员状态，approved 时返回当前 membership
func (l *AccountLogic) MembershipStatus(user *model.UserModel) (string, *model.MembershipModel, error) {
	var member model.MemberModel
	err := l.db.Where("email = ?", user.Email).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StatusNoMember, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("查询成员失败: %w", err)
	}

	var ship model.MembershipModel
	query := l.db.Preload("Member").Preload("GivingProject")
	if member.Current != 0 {
		err = query.Where("id = ? AND member_id = ?", member.Current, member.Id).First(&ship).Error
	} else {
		err = query.Where("member_id = ?", member.Id).Order("approved DESC, id DESC").First(&ship).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StatusNoMembership, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("查询 membership 失败: %w", err)
	}
	if !ship.Approved {
		return StatusNotApproved, &ship, nil
	}
	return StatusApproved, &ship, nil
}

// Memberships 成员的全部 membership
func (l *AccountLogic) Memberships(memberId int64) ([]model.MembershipModel, error) {
	var ships []model.MembershipModel
	err := l.db.Preload("GivingProject").Where("member_id = ?", memberId).Order("id").Find(&ships).Error
	if err != nil {
		return nil, fmt.Errorf("获取 membership 失败: %w", err)
	}
	return ships, nil
}

// JoinableProjects 未截止且尚未加入的募捐项目
func (l *AccountLogic) JoinableProjects(memberId int64, now time.Time) ([]model.GivingProjectModel, error) {
	query := l.db.Where("fundraising_deadline >= ?", now)
	if memberId != 0 {
		query = query.Where("id NOT IN (?)", l.db.Model(&model.MembershipModel{}).
			Select("giving_project_id").Where("member_id = ?", memberId))
	}
	var projects []model.GivingProjectModel
	if err := query.Order("fundraising_deadline").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("获取募捐项目失败: %w", err)
	}
	return projects, nil
}

// AddProject 已有成员加入新的募捐项目
func (l *AccountLogic) AddProject(member *model.MemberModel, f *form.AddProjectForm) (*model.MembershipModel, form.Errors, error) {
	if errs := form.Validate(f); errs.Has() {
		return nil, errs, nil
	}
	id := parseOptional(f.GivingProject)
	if id == nil {
		errs := form.Errors{}
		errs.Add("giving_project", "Select a valid choice.")
		return nil, errs, nil
	}
	var project model.GivingProjectModel
	if err := l.db.First(&project, *id).Error; err != nil {
		return nil, nil, notFound(err)
	}

	var count int64
	err := l.db.Model(&model.MembershipModel{}).
		Where("member_id = ? AND giving_project_id = ?", member.Id, project.Id).
		Count(&count).Error
	if err != nil {
		return nil, nil, fmt.Errorf("查询 membership 失败: %w", err)
	}
	if count > 0 {
		return nil, nil, ErrAlreadyMember
	}

	var ship *model.MembershipModel
	err = l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		ship, err = createMembership(tx, member, &project)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ship, nil, nil
}

// SetCurrent 切换当前 membership，只允许已批准的
func (l *AccountLogic) SetCurrent(member *model.MemberModel, shipId int64) error {
	var ship model.MembershipModel
	err := l.db.Where("id = ? AND member_id = ? AND approved = ?", shipId, member.Id, true).First(&ship).Error
	if err != nil {
		return notFound(err)
	}
	if err := l.db.Model(&model.MemberModel{}).Where("id = ?", member.Id).Update("current", ship.Id).Error; err != nil {
		return fmt.Errorf("更新当前 membership 失败: %w", err)
	}
	member.Current = ship.Id
	logger.Info("Member %d switched to membership %d", member.Id, ship.Id)
	return nil
}

// Registered 注册后检查是否被预批准，返回是否已批准
func (l *AccountLogic) Registered(user *model.UserModel) (bool, error) {
	status, ship, err := l.MembershipStatus(user)
	if err != nil {
		return false, err
	}
	switch status {
	case StatusApproved:
		return true, nil
	case StatusNotApproved:
		if !ship.GivingProject.IsPreApproved(user.Email) {
			return false, nil
		}
		err := l.db.Model(&model.MembershipModel{}).Where("id = ?", ship.Id).
			Updates(map[string]interface{}{"approved": true, "notifications": welcomeNotification}).Error
		if err != nil {
			return false, fmt.Errorf("批准 membership 失败: %w", err)
		}
		logger.Info("Membership %d pre-approved", ship.Id)
		return true, nil
	}
	return false, nil
}

// Member 用户对应的成员
func (l *AccountLogic) Member(user *model.UserModel) (*model.MemberModel, error) {
	var member model.MemberModel
	if err := l.db.Where("email = ?", user.Email).First(&member).Error; err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

// Organization 机构账号对应的机构
func (l *AccountLogic) Organization(user *model.UserModel) (*model.OrganizationModel, error) {
	var org model.OrganizationModel
	if err := l.db.Where("email = ?", user.Email).First(&org).Error; err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("生成密码哈希失败: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
