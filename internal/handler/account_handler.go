package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/middleware"
	"gorm.io/gorm"
)

// AccountHandler 登录、注册和账号管理
type AccountHandler struct {
	config       *config.Config
	accountLogic *logic.AccountLogic
}

func NewAccountHandler(db *gorm.DB, cfg *config.Config) *AccountHandler {
	return &AccountHandler{
		config:       cfg,
		accountLogic: logic.NewAccountLogic(db, cfg),
	}
}

// Accounts 中间件共用的账号逻辑
func (h *AccountHandler) Accounts() *logic.AccountLogic {
	return h.accountLogic
}

// Login 登录并写入会话 cookie
func (h *AccountHandler) Login(c *gin.Context) {
	var f form.LoginForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.login(c, &f, "login") {
		return
	}
	formSuccess(c)
}

// login 成功时写 cookie，失败时已渲染表单
func (h *AccountHandler) login(c *gin.Context, f *form.LoginForm, name string) bool {
	session, errs, err := h.accountLogic.Login(f)
	f.Password = ""
	switch {
	case errors.Is(err, logic.ErrInvalidCredentials), errors.Is(err, logic.ErrInactiveAccount):
		renderForm(c, name, f, form.Errors{form.NonFieldErrors: {err.Error()}}, nil)
		return false
	case err != nil:
		respondError(c, err)
		return false
	case errs.Has():
		renderForm(c, name, f, errs, nil)
		return false
	}
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetCookie(h.config.Server.SessionCookie, session.Token, maxAge, "/", "", false, true)
	return true
}

// Logout 删除会话
func (h *AccountHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.config.Server.SessionCookie); err == nil && token != "" {
		if err := h.accountLogic.Logout(token); err != nil {
			respondError(c, err)
			return
		}
	}
	c.SetCookie(h.config.Server.SessionCookie, "", -1, "/", "", false, true)
	formSuccess(c)
}

// RegisterForm 注册页可选的募捐项目
func (h *AccountHandler) RegisterForm(c *gin.Context) {
	projects, err := h.accountLogic.JoinableProjects(0, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"giving_projects": projects})
}

// Register 注册成员并登录
func (h *AccountHandler) Register(c *gin.Context) {
	var f form.RegistrationForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, errs, err := h.accountLogic.Register(&f)
	if errors.Is(err, logic.ErrDuplicateAccount) {
		errs, err = form.Errors{form.NonFieldErrors: {logic.MsgEmailExists}}, nil
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		f.Password, f.Passwordb = "", ""
		renderForm(c, "register", f, errs, nil)
		return
	}
	if !h.login(c, &form.LoginForm{Email: f.Email, Password: f.Password}, "register") {
		return
	}
	formSuccess(c)
}

// Registered 注册后检查预批准
func (h *AccountHandler) Registered(c *gin.Context) {
	approved, err := h.accountLogic.Registered(middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": approved})
}

// Manage 成员的全部 membership 和可加入的项目
func (h *AccountHandler) Manage(c *gin.Context) {
	member, err := h.accountLogic.Member(middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ships, err := h.accountLogic.Memberships(member.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	projects, err := h.accountLogic.JoinableProjects(member.Id, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"member":          member,
		"memberships":     ships,
		"giving_projects": projects,
	})
}

// AddProject 加入新的募捐项目
func (h *AccountHandler) AddProject(c *gin.Context) {
	member, err := h.accountLogic.Member(middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	var f form.AddProjectForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ship, errs, err := h.accountLogic.AddProject(member, &f)
	if errors.Is(err, logic.ErrAlreadyMember) {
		errs, err = form.Errors{form.NonFieldErrors: {err.Error()}}, nil
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "add_project", f, errs, nil)
		return
	}
	logger.Info("Member %d joined giving project %d", member.Id, ship.GivingProjectId)
	formSuccess(c)
}

// SetCurrent 切换当前 membership
func (h *AccountHandler) SetCurrent(c *gin.Context) {
	id, ok := parseID(c, "ship_id")
	if !ok {
		return
	}
	member, err := h.accountLogic.Member(middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.accountLogic.SetCurrent(member, id); err != nil {
		respondError(c, err)
		return
	}
	formSuccess(c)
}

// RegisterOrg 注册申请机构并登录
func (h *AccountHandler) RegisterOrg(c *gin.Context) {
	var f form.OrgRegisterForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, errs, err := h.accountLogic.RegisterOrg(&f)
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		f.Password, f.Passwordb = "", ""
		renderForm(c, "org_register", f, errs, nil)
		return
	}
	if !h.login(c, &form.LoginForm{Email: f.Email, Password: f.Password}, "org_register") {
		return
	}
	formSuccess(c)
}
