package handler

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
)

// 表单提交成功时的响应体
const successBody = "success"

//go:embed templates/*.html
var templateFS embed.FS

// Templates 表单错误页模板
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// formSuccess 表单保存成功
func formSuccess(c *gin.Context) {
	c.String(http.StatusOK, successBody)
}

// renderForm 表单校验失败时重新渲染，按 Accept 返回 JSON 或 HTML
func renderForm(c *gin.Context, name string, values interface{}, errs form.Errors, extra gin.H) {
	view := FormView{
		Name:   name,
		Values: formValues(values),
		Errors: errs,
		Extra:  extra,
	}
	c.Negotiate(http.StatusOK, gin.Negotiate{
		Offered:  []string{gin.MIMEJSON, gin.MIMEHTML},
		HTMLName: "form.html",
		Data:     view,
	})
}

// formValues 表单结构体或 url.Values 转为字段 map
func formValues(v interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	switch vals := v.(type) {
	case nil:
		return out
	case url.Values:
		for k := range vals {
			out[k] = vals.Get(k)
		}
		return out
	case map[string]string:
		for k, s := range vals {
			out[k] = s
		}
		return out
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Failed to encode form values: %v", err)
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// respondError 业务错误转换为 HTTP 状态码
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, logic.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, logic.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": "already applied", "status": "submitted"})
	case errors.Is(err, logic.ErrDraftClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "grant cycle is closed", "status": "closed"})
	case errors.Is(err, logic.ErrDraftExists):
		c.JSON(http.StatusConflict, gin.H{"error": "a draft already exists for that cycle", "status": "draft_exists"})
	case errors.Is(err, logic.ErrHasPendingStep):
		c.JSON(http.StatusConflict, gin.H{"error": "contact already has an incomplete step"})
	case errors.Is(err, logic.ErrDuplicateAccount), errors.Is(err, logic.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, logic.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, logic.ErrInactiveAccount):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, logic.ErrFileType), errors.Is(err, logic.ErrUnknownFileField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseID 读取路径中的 id
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// postValues 解析 urlencoded 或 multipart 表单
func postValues(c *gin.Context) url.Values {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		logger.Warn("Failed to parse form for %s: %v", c.Request.URL.Path, err)
	}
	return c.Request.PostForm
}

// flatten 每个字段取第一个值
func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}

// formset 读取 formset 行
func formset(c *gin.Context) []form.Row {
	return form.ParseFormset(postValues(c), form.DefaultPrefix)
}
