package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/middleware"
	"github.com/zekeo/sjfnw/internal/model"
	"github.com/zekeo/sjfnw/internal/storage"
	"gorm.io/gorm"
)

// GrantHandler 机构申请页面
type GrantHandler struct {
	config       *config.Config
	grantLogic   *logic.GrantLogic
	accountLogic *logic.AccountLogic
}

func NewGrantHandler(db *gorm.DB, cfg *config.Config, store storage.Storage, outbox *mail.Outbox) *GrantHandler {
	return &GrantHandler{
		config:       cfg,
		grantLogic:   logic.NewGrantLogic(db, cfg, store, outbox),
		accountLogic: logic.NewAccountLogic(db, cfg),
	}
}

// OrgHome 机构首页
func (h *GrantHandler) OrgHome(c *gin.Context) {
	data, err := h.grantLogic.OrgHome(middleware.CurrentOrganization(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Apply 打开申请表
func (h *GrantHandler) Apply(c *gin.Context) {
	cycleId, ok := parseID(c, "cycle_id")
	if !ok {
		return
	}
	data, err := h.grantLogic.Apply(middleware.CurrentOrganization(c), cycleId, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Submit 提交申请，请求中的字段先写入草稿
func (h *GrantHandler) Submit(c *gin.Context) {
	cycleId, ok := parseID(c, "cycle_id")
	if !ok {
		return
	}
	org := middleware.CurrentOrganization(c)
	if values := postValues(c); len(values) > 0 {
		if err := h.grantLogic.Autosave(org, cycleId, flatten(values)); err != nil {
			respondError(c, err)
			return
		}
	}

	now := time.Now()
	app, errs, err := h.grantLogic.Submit(org, cycleId, now)
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		data, err := h.grantLogic.Apply(org, cycleId, now)
		if err != nil {
			respondError(c, err)
			return
		}
		renderForm(c, "apply", data.Contents, errs, gin.H{"draft_id": data.Draft.Id, "files": data.Files})
		return
	}
	logger.Info("Organization %d submitted application %d", org.Id, app.Id)
	formSuccess(c)
}

// Autosave 保存草稿
func (h *GrantHandler) Autosave(c *gin.Context) {
	cycleId, ok := parseID(c, "cycle_id")
	if !ok {
		return
	}
	if err := h.grantLogic.Autosave(middleware.CurrentOrganization(c), cycleId, flatten(postValues(c))); err != nil {
		respondError(c, err)
		return
	}
	formSuccess(c)
}

// AddFile 上传附件，请求中第一个附件字段生效
func (h *GrantHandler) AddFile(c *gin.Context) {
	draftId, ok := parseID(c, "draft_id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.Storage.MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(h.config.Storage.MaxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload: " + err.Error()})
		return
	}

	for _, field := range model.FileFields {
		header, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		file, err := header.Open()
		if err != nil {
			respondError(c, fmt.Errorf("打开上传文件失败: %w", err))
			return
		}
		defer file.Close()

		name, err := h.grantLogic.AddFile(c.Request.Context(), middleware.CurrentOrganization(c), draftId,
			field, header.Filename, file, header.Header.Get("Content-Type"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"field": field, "name": name})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "no file received"})
}

// RemoveFile 清除附件
func (h *GrantHandler) RemoveFile(c *gin.Context) {
	draftId, ok := parseID(c, "draft_id")
	if !ok {
		return
	}
	if err := h.grantLogic.RemoveFile(middleware.CurrentOrganization(c), draftId, c.Param("field")); err != nil {
		respondError(c, err)
		return
	}
	formSuccess(c)
}

// Discard 删除草稿
func (h *GrantHandler) Discard(c *gin.Context) {
	draftId, ok := parseID(c, "draft_id")
	if !ok {
		return
	}
	if err := h.grantLogic.Discard(middleware.CurrentOrganization(c), draftId); err != nil {
		respondError(c, err)
		return
	}
	formSuccess(c)
}

// CopyApp 复制申请或草稿到新周期
func (h *GrantHandler) CopyApp(c *gin.Context) {
	values := postValues(c)
	cycleId, err := strconv.ParseInt(values.Get("cycle"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle"})
		return
	}
	appId, _ := strconv.ParseInt(values.Get("application"), 10, 64)
	draftId, _ := strconv.ParseInt(values.Get("draft"), 10, 64)

	draft, err := h.grantLogic.CopyApp(middleware.CurrentOrganization(c), cycleId, appId, draftId, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft_id": draft.Id, "cycle_id": draft.GrantCycleId})
}

// ViewApplication 查看已提交申请，本机构或工作人员可见
func (h *GrantHandler) ViewApplication(c *gin.Context) {
	app, ok := h.viewableApp(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app, "files": logic.FileNames(app.AppFiles)})
}

// ApplicationFile 下载已提交申请的附件
func (h *GrantHandler) ApplicationFile(c *gin.Context) {
	app, ok := h.viewableApp(c)
	if !ok {
		return
	}
	h.serveFile(c, app.AppFiles)
}

// DraftFile 下载草稿附件
func (h *GrantHandler) DraftFile(c *gin.Context) {
	draftId, ok := parseID(c, "draft_id")
	if !ok {
		return
	}
	draft, err := h.grantLogic.Draft(draftId)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.canView(c, draft.OrganizationId) {
		return
	}
	h.serveFile(c, draft.AppFiles)
}

func (h *GrantHandler) viewableApp(c *gin.Context) (*model.GrantApplicationModel, bool) {
	appId, ok := parseID(c, "app_id")
	if !ok {
		return nil, false
	}
	app, err := h.grantLogic.Application(appId)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !h.canView(c, app.OrganizationId) {
		return nil, false
	}
	return app, true
}

// canView 工作人员或所属机构
func (h *GrantHandler) canView(c *gin.Context, orgId int64) bool {
	user := middleware.CurrentUser(c)
	if user.IsStaff {
		return true
	}
	org, err := h.accountLogic.Organization(user)
	if err == nil && org.Id == orgId {
		return true
	}
	if err != nil && !errors.Is(err, logic.ErrNotFound) {
		respondError(c, err)
		return false
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	return false
}

func (h *GrantHandler) serveFile(c *gin.Context, files model.AppFiles) {
	r, name, err := h.grantLogic.OpenFile(c.Request.Context(), files, c.Param("field"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer r.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, r); err != nil {
		logger.Warn("Failed to stream file %s: %v", name, err)
	}
}
