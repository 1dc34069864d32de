package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/model"
)

// context key
const (
	keyUser         = "sjfnw.user"
	keyMembership   = "sjfnw.membership"
	keyOrganization = "sjfnw.organization"
)

// SessionAuth 从 cookie 读取会话，有效时把用户放入上下文
func SessionAuth(accounts *logic.AccountLogic, cookie string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookie)
		if err != nil || token == "" {
			c.Next()
			return
		}
		user, err := accounts.SessionUser(token)
		switch {
		case err == nil:
			c.Set(keyUser, user)
		case errors.Is(err, logic.ErrNotFound), errors.Is(err, logic.ErrInactiveAccount):
			// 过期或停用的会话当作未登录
		default:
			logger.Error("Failed to load session: %v", err)
		}
		c.Next()
	}
}

// RequireLogin 未登录返回 401
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}

// ApprovedMembership 需要已批准的当前 membership
func ApprovedMembership(accounts *logic.AccountLogic) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		status, ship, err := accounts.MembershipStatus(user)
		if err != nil {
			logger.Error("Failed to load membership for user %d: %v", user.Id, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if status != logic.StatusApproved {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "membership not approved", "status": status})
			return
		}
		c.Set(keyMembership, ship)
		c.Next()
	}
}

// RegisteredOrg 需要已注册的机构账号
func RegisteredOrg(accounts *logic.AccountLogic) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		org, err := accounts.Organization(user)
		if errors.Is(err, logic.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a registered organization"})
			return
		}
		if err != nil {
			logger.Error("Failed to load organization for user %d: %v", user.Id, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set(keyOrganization, org)
		c.Next()
	}
}

// StaffOnly 只允许工作人员
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		if !user.IsStaff {
			logger.Warn("Non-staff user %d tried to access %s", user.Id, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

// CurrentUser 当前登录用户，未登录返回 nil
func CurrentUser(c *gin.Context) *model.UserModel {
	if v, ok := c.Get(keyUser); ok {
		return v.(*model.UserModel)
	}
	return nil
}

// CurrentMembership ApprovedMembership 之后可用
func CurrentMembership(c *gin.Context) *model.MembershipModel {
	if v, ok := c.Get(keyMembership); ok {
		return v.(*model.MembershipModel)
	}
	return nil
}

// CurrentOrganization RegisteredOrg 之后可用
func CurrentOrganization(c *gin.Context) *model.OrganizationModel {
	if v, ok := c.Get(keyOrganization); ok {
		return v.(*model.OrganizationModel)
	}
	return nil
}
