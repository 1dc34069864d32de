package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/database"
	"github.com/zekeo/sjfnw/internal/logger"
	"gorm.io/gorm"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "sjfnw",
		Short:         "Project Central fundraising and grant application service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd(), jobsCmd())

	if err := root.Execute(); err != nil {
		logger.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

// bootstrap 加载配置、初始化日志并连接数据库
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, nil, err
	}
	db, err := database.Init(cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
