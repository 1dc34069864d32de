package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/mail"
)

// 任务名
const (
	JobDraftWarning = "draft_warning"
	JobOutbox       = "outbox_dispatch"
	JobSessionPurge = "session_purge"
)

// DraftWarningJob 每天提醒即将截止的草稿
type DraftWarningJob struct {
	grants *logic.GrantLogic
	config *config.Config
	now    func() time.Time
}

func NewDraftWarningJob(grants *logic.GrantLogic, cfg *config.Config) *DraftWarningJob {
	return &DraftWarningJob{grants: grants, config: cfg, now: time.Now}
}

func (j *DraftWarningJob) GetName() string {
	return JobDraftWarning
}

func (j *DraftWarningJob) GetSchedule() gocron.JobDefinition {
	return gocron.DailyJob(1, gocron.NewAtTimes(
		gocron.NewAtTime(uint(j.config.Scheduler.DraftWarningHour), 0, 0),
	))
}

func (j *DraftWarningJob) Execute() {
	logger.Info("Starting draft warning task")
	sent, err := j.grants.DraftWarnings(j.now())
	if err != nil {
		logger.Error("Draft warning task failed: %v", err)
		return
	}
	logger.Info("Draft warning task completed. Sent %d warnings", sent)
}

// OutboxJob 定期发送待发邮件
type OutboxJob struct {
	outbox *mail.Outbox
	config *config.Config
}

func NewOutboxJob(outbox *mail.Outbox, cfg *config.Config) *OutboxJob {
	return &OutboxJob{outbox: outbox, config: cfg}
}

func (j *OutboxJob) GetName() string {
	return JobOutbox
}

func (j *OutboxJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval())
}

func (j *OutboxJob) interval() time.Duration {
	if j.config.Scheduler.OutboxInterval <= 0 {
		return time.Minute
	}
	return time.Duration(j.config.Scheduler.OutboxInterval) * time.Second
}

func (j *OutboxJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval())
	defer cancel()
	sent, err := j.outbox.Dispatch(ctx)
	if err != nil {
		logger.Error("Outbox dispatch failed: %v", err)
		return
	}
	if sent > 0 {
		logger.Info("Outbox dispatched %d messages", sent)
	}
}

// SessionPurgeJob 每小时清理过期会话
type SessionPurgeJob struct {
	accounts *logic.AccountLogic
}

func NewSessionPurgeJob(accounts *logic.AccountLogic) *SessionPurgeJob {
	return &SessionPurgeJob{accounts: accounts}
}

func (j *SessionPurgeJob) GetName() string {
	return JobSessionPurge
}

func (j *SessionPurgeJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Hour)
}

func (j *SessionPurgeJob) Execute() {
	n, err := j.accounts.PurgeSessions(time.Now())
	if err != nil {
		logger.Error("Session purge failed: %v", err)
		return
	}
	logger.Debug("Purged %d expired sessions", n)
}
