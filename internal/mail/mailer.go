package mail

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/logger"
)

// Message 一封邮件
type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	HTML    string
}

// Mailer 邮件发送后端
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer 按配置创建发送后端
func NewMailer(cfg config.MailConfig) (Mailer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "smtp":
		if cfg.Host == "" {
			return nil, fmt.Errorf("smtp host is empty")
		}
		return &SMTPMailer{cfg: cfg}, nil
	case "log", "":
		return LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unsupported mail driver: %s", cfg.Driver)
	}
}

var textPolicy = bluemonday.StrictPolicy()

// TextBody 去掉 HTML 标签得到纯文本正文
func TextBody(body string) string {
	text := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "</p>", "\n\n", "</tr>", "\n").Replace(body)
	text = html.UnescapeString(textPolicy.Sanitize(text))
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// LogMailer 只记录日志，开发环境使用
type LogMailer struct{}

// Send 记录邮件
func (LogMailer) Send(_ context.Context, msg Message) error {
	logger.Info("Mail to %s (cc %s): %s\n%s",
		strings.Join(msg.To, ", "), strings.Join(msg.Cc, ", "), msg.Subject, TextBody(msg.HTML))
	return nil
}

// SMTPMailer 通过 SMTP 发送 multipart/alternative 邮件
type SMTPMailer struct {
	cfg config.MailConfig
}

// Send 发送邮件
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	rcpts := append(append([]string{}, msg.To...), msg.Cc...)
	body := buildMIME(msg, time.Now())

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, envelopeAddress(msg.From), envelopeAddresses(rcpts), body)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail to %s: %w", strings.Join(msg.To, ", "), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(msg Message, now time.Time) []byte {
	boundary := "sjfnw-" + uuid.New().String()
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, TextBody(msg.HTML))
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// envelopeAddress 从 "Name <a@b>" 中取出地址
func envelopeAddress(s string) string {
	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.LastIndex(s, ">"); j > i {
			return s[i+1 : j]
		}
	}
	return strings.TrimSpace(s)
}

func envelopeAddresses(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if a := envelopeAddress(s); a != "" {
			out = append(out, a)
		}
	}
	return out
}
