package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zekeo/sjfnw/internal/admin"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/storage"
	"gorm.io/gorm"
)

// AdminHandler 工作人员后台
type AdminHandler struct {
	admin       *admin.Admin
	reportLogic *logic.ReportLogic
	grantLogic  *logic.GrantLogic
}

func NewAdminHandler(db *gorm.DB, cfg *config.Config, store storage.Storage, outbox *mail.Outbox) *AdminHandler {
	return &AdminHandler{
		admin:       admin.New(db, admin.DefaultRegistry()),
		reportLogic: logic.NewReportLogic(db),
		grantLogic:  logic.NewGrantLogic(db, cfg, store, outbox),
	}
}

// Entities 可管理的实体
func (h *AdminHandler) Entities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entities": h.admin.Registry().Names()})
}

// List 实体列表
func (h *AdminHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, p, err := h.admin.List(c.Param("entity"), c.Query("q"), page, pageSize)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{
		"items":      items,
		"pagination": p,
	})
}

// Get 单条记录
func (h *AdminHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	obj, err := h.admin.Get(c.Param("entity"), id)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", obj)
}

// Update 修改白名单字段
func (h *AdminHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	values := map[string]interface{}{}
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	obj, err := h.admin.Update(c.Param("entity"), id, values)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "updated", obj)
}

// Delete 删除记录
func (h *AdminHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.Delete(c.Param("entity"), id); err != nil {
		respondAdminError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "deleted", nil)
}

// ProjectReport 募捐项目进度报表
func (h *AdminHandler) ProjectReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	report, err := h.reportLogic.ProjectReport(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CycleSummary 资助周期统计
func (h *AdminHandler) CycleSummary(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	summary, err := h.reportLogic.CycleSummary(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ExportCycle 导出周期申请 CSV
func (h *AdminHandler) ExportCycle(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.reportLogic.ExportApplications(&buf, id); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=cycle-%d.csv", id))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// RevertApplication 申请退回为草稿
func (h *AdminHandler) RevertApplication(c *gin.Context) {
	id, ok := parseID(c, "app_id")
	if !ok {
		return
	}
	draft, err := h.grantLogic.RevertToDraft(id)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "reverted", gin.H{"draft_id": draft.Id})
}

func respondAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, admin.ErrUnknownEntity), errors.Is(err, admin.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, admin.ErrNotEditable):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, err)
	}
}
