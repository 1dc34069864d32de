package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Mail      MailConfig      `mapstructure:"mail"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Fund      FundConfig      `mapstructure:"fund"`
	Grants    GrantsConfig    `mapstructure:"grants"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
	// 会话 cookie
	SessionCookie string        `mapstructure:"session_cookie"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	// 通知只显示一次（线上环境）
	ShowNotificationsOnce bool `mapstructure:"show_notifications_once"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"` // postgres, sqlite
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN 返回 postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// StorageConfig 附件存储配置
type StorageConfig struct {
	Driver           string   `mapstructure:"driver"` // s3, local
	Bucket           string   `mapstructure:"bucket"`
	Region           string   `mapstructure:"region"`
	Prefix           string   `mapstructure:"prefix"`
	LocalDir         string   `mapstructure:"local_dir"`
	AllowedFileTypes []string `mapstructure:"allowed_file_types"`
	MaxUploadBytes   int64    `mapstructure:"max_upload_bytes"`
}

// MailConfig 邮件配置
type MailConfig struct {
	Driver       string `mapstructure:"driver"` // smtp, log
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	FundFrom     string `mapstructure:"fund_from"`
	GrantFrom    string `mapstructure:"grant_from"`
	SupportEmail string `mapstructure:"support_email"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
}

type WorkerConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

type SchedulerConfig struct {
	OutboxInterval   int `mapstructure:"outbox_interval"` // 秒
	DraftWarningHour int `mapstructure:"draft_warning_hour"`
}

// FundConfig 募捐模块配置
type FundConfig struct {
	NotesLimit     int `mapstructure:"notes_limit"`
	AddMultRows    int `mapstructure:"add_mult_rows"`
	MassStepMax    int `mapstructure:"mass_step_max"`
	UpcomingSteps  int `mapstructure:"upcoming_steps"`
	NewsItemsLimit int `mapstructure:"news_items_limit"`
}

// GrantsConfig 资助申请模块配置
type GrantsConfig struct {
	NarrativeLimits   map[string]int `mapstructure:"narrative_limits"`
	RecentCycleDays   int            `mapstructure:"recent_cycle_days"`
	WarningMinDays    int            `mapstructure:"warning_min_days"`
	WarningMaxDays    int            `mapstructure:"warning_max_days"`
	DefaultScreening  int            `mapstructure:"default_screening"`
	ScreenedOutStatus int            `mapstructure:"screened_out_status"`
	SiteVisitStatus   int            `mapstructure:"site_visit_status"`
}

// Load 读取配置文件，path 为空时按默认路径查找
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/sjfnw")
	}

	SetDefaults(v)

	// 自动读取环境变量
	v.SetEnvPrefix("sjfnw")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// Default 返回全部默认值，测试和 seed 命令使用
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults 设置默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "http://localhost:8080/")
	v.SetDefault("server.session_cookie", "sjfnw_session")
	v.SetDefault("server.session_ttl", "336h")
	v.SetDefault("server.show_notifications_once", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "sjfdb")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "sjfnw.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.bucket", "sjfnw-grant-files")
	v.SetDefault("storage.region", "us-west-2")
	v.SetDefault("storage.prefix", "grants")
	v.SetDefault("storage.local_dir", "data/files")
	v.SetDefault("storage.allowed_file_types", []string{
		"jpeg", "png", "gif", "tiff", "bmp", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
		"pdf", "mpeg4", "mov", "avi", "wmv", "jpg", "txt",
	})
	v.SetDefault("storage.max_upload_bytes", 10<<20)

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.fund_from", "Project Central <projectcentral@socialjusticefund.org>")
	v.SetDefault("mail.grant_from", "Social Justice Fund Grants <grants@socialjusticefund.org>")
	v.SetDefault("mail.support_email", "techsupport@socialjusticefund.org")
	v.SetDefault("mail.max_attempts", 5)

	v.SetDefault("worker.pool_size", 16)

	v.SetDefault("scheduler.outbox_interval", 60)
	v.SetDefault("scheduler.draft_warning_hour", 9)

	v.SetDefault("fund.notes_limit", 253)
	v.SetDefault("fund.add_mult_rows", 5)
	v.SetDefault("fund.mass_step_max", 10)
	v.SetDefault("fund.upcoming_steps", 2)
	v.SetDefault("fund.news_items_limit", 25)

	v.SetDefault("grants.narrative_limits", map[string]int{
		"narrative1": 300, "narrative2": 150, "narrative3": 450,
		"narrative4": 300, "narrative5": 300, "narrative6": 450,
	})
	v.SetDefault("grants.recent_cycle_days", 180)
	v.SetDefault("grants.warning_min_days", 2)
	v.SetDefault("grants.warning_max_days", 3)
	v.SetDefault("grants.default_screening", 10)
	v.SetDefault("grants.screened_out_status", 45)
	v.SetDefault("grants.site_visit_status", 70)
}
