package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"github.com/zekeo/sjfnw/internal/worker"
	"gorm.io/gorm"
)

// Queue 在调用方事务中写入发件箱
func Queue(tx *gorm.DB, msg Message) (*model.EmailMessageModel, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("mail %q has no recipients", msg.Subject)
	}
	row := &model.EmailMessageModel{
		From:    msg.From,
		To:      strings.Join(msg.To, ","),
		Cc:      strings.Join(msg.Cc, ","),
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Status:  model.MailStatusPending,
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to queue mail: %w", err)
	}
	return row, nil
}

// Outbox 发件箱投递
type Outbox struct {
	db          *gorm.DB
	mailer      Mailer
	runner      worker.Runner
	maxAttempts int
}

// NewOutbox 创建发件箱
func NewOutbox(db *gorm.DB, mailer Mailer, runner worker.Runner, maxAttempts int) *Outbox {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Outbox{db: db, mailer: mailer, runner: runner, maxAttempts: maxAttempts}
}

// Kick 提交一次后台投递
func (o *Outbox) Kick() {
	o.runner.Submit("mail_outbox", func() error {
		_, err := o.Dispatch(context.Background())
		return err
	})
}

// Dispatch 投递所有待发送邮件，返回成功数量
func (o *Outbox) Dispatch(ctx context.Context) (int, error) {
	var pending []model.EmailMessageModel
	err := o.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", model.MailStatusPending, o.maxAttempts).
		Order("id").
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending mail: %w", err)
	}

	sent := 0
	for i := range pending {
		row := &pending[i]

		// 抢占：attempts 未变才发送，避免重复投递
		res := o.db.WithContext(ctx).Model(&model.EmailMessageModel{}).
			Where("id = ? AND status = ? AND attempts = ?", row.Id, model.MailStatusPending, row.Attempts).
			Update("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil {
			logger.Error("Failed to claim mail %d: %v", row.Id, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		row.Attempts++

		err := o.mailer.Send(ctx, Message{
			From:    row.From,
			To:      splitList(row.To),
			Cc:      splitList(row.Cc),
			Subject: row.Subject,
			HTML:    row.HTML,
		})

		updates := map[string]interface{}{}
		if err != nil {
			logger.Error("Failed to send mail %d (attempt %d): %v", row.Id, row.Attempts, err)
			updates["last_error"] = err.Error()
			if row.Attempts >= o.maxAttempts {
				updates["status"] = model.MailStatusFailed
			}
		} else {
			now := time.Now()
			updates["status"] = model.MailStatusSent
			updates["sent_at"] = &now
			updates["last_error"] = ""
			sent++
		}
		if err := o.db.WithContext(ctx).Model(row).Updates(updates).Error; err != nil {
			logger.Error("Failed to update mail %d: %v", row.Id, err)
		}
	}

	if len(pending) > 0 {
		logger.Info("Mail outbox dispatched %d of %d messages", sent, len(pending))
	}
	return sent, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
