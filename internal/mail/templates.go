package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

// 邮件模板名
const (
	TemplateSubmitted     = "submitted.html"
	TemplateDraftWarning  = "draft_warning.html"
	TemplateDraftReopened = "draft_reopened.html"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render 渲染邮件 HTML
func Render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render mail template %s: %w", name, err)
	}
	return buf.String(), nil
}
