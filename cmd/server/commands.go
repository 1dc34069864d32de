package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zekeo/sjfnw/internal/fixture"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/scheduler"
	"github.com/zekeo/sjfnw/internal/storage"
	"github.com/zekeo/sjfnw/internal/worker"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := bootstrap(); err != nil {
				return err
			}
			logger.Info("Database migrated")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load a YAML fixture into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			f, err := fixture.LoadFile(args[0])
			if err != nil {
				return err
			}
			return f.Apply(db)
		},
	}
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run a scheduled job once",
	}
	cmd.AddCommand(
		jobCmd("draft-warning", scheduler.JobDraftWarning, "Email organizations whose drafts are due in 2-3 days"),
		jobCmd("outbox", scheduler.JobOutbox, "Send pending email"),
		jobCmd("purge-sessions", scheduler.JobSessionPurge, "Delete expired login sessions"),
	)
	return cmd
}

func jobCmd(use, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), name)
		},
	}
}

// runJob 同步执行一次任务，邮件在当前进程内投递
func runJob(ctx context.Context, name string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	mailer, err := mail.NewMailer(cfg.Mail)
	if err != nil {
		return err
	}
	outbox := mail.NewOutbox(db, mailer, worker.Inline{}, cfg.Mail.MaxAttempts)
	grants := logic.NewGrantLogic(db, cfg, store, outbox)

	for _, job := range scheduler.DefaultJobs(db, cfg, grants, outbox) {
		if job.GetName() != name {
			continue
		}
		start := time.Now()
		job.Execute()
		logger.Info("Job %s finished in %v", name, time.Since(start))
		return nil
	}
	return fmt.Errorf("unknown job %s", name)
}
