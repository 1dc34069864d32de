package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/mail"
	"gorm.io/gorm"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

// NewManager 创建新的任务管理器
func NewManager(jobs ...Job) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler: s,
		jobs:      jobs,
	}
}

// DefaultJobs 服务运行时的全部任务
func DefaultJobs(db *gorm.DB, cfg *config.Config, grants *logic.GrantLogic, outbox *mail.Outbox) []Job {
	return []Job{
		NewDraftWarningJob(grants, cfg),
		NewOutboxJob(outbox, cfg),
		NewSessionPurgeJob(logic.NewAccountLogic(db, cfg)),
	}
}

// Start 注册所有任务并启动调度器
func (m *Manager) Start() {
	m.RegisterJobs()
	m.scheduler.Start()
	logger.Info("Task manager started with %d jobs", len(m.jobs))
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	for _, job := range m.jobs {
		m.registerJob(job)
	}
}

// Find 按名称查找任务
func (m *Manager) Find(name string) (Job, bool) {
	for _, job := range m.jobs {
		if job.GetName() == name {
			return job, true
		}
	}
	return nil, false
}

func (m *Manager) registerJob(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
