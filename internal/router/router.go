package router

import (
	"github.com/gin-gonic/gin"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/handler"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/middleware"
	"github.com/zekeo/sjfnw/internal/storage"
	"github.com/zekeo/sjfnw/internal/worker"
	"gorm.io/gorm"
)

// Deps 路由依赖
type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Store  storage.Storage
	Outbox *mail.Outbox
	Runner worker.Runner
}

func Setup(d Deps) *gin.Engine {
	gin.SetMode(d.Config.Server.Mode)
	r := gin.New()
	r.SetHTMLTemplate(handler.Templates())
	r.MaxMultipartMemory = d.Config.Storage.MaxUploadBytes

	// 中间件
	r.Use(middleware.RequestLogger())
	r.Use(gin.Recovery())
	r.Use(middleware.Cors())

	accountHandler := handler.NewAccountHandler(d.DB, d.Config)
	fundHandler := handler.NewFundHandler(d.DB, d.Config, d.Runner)
	grantHandler := handler.NewGrantHandler(d.DB, d.Config, d.Store, d.Outbox)
	adminHandler := handler.NewAdminHandler(d.DB, d.Config, d.Store, d.Outbox)
	accounts := accountHandler.Accounts()

	r.Use(middleware.SessionAuth(accounts, d.Config.Server.SessionCookie))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "sjfnw",
		})
	})

	r.POST("/login", accountHandler.Login)
	r.POST("/logout", accountHandler.Logout)

	fund := r.Group("/fund")
	{
		fund.GET("/register", accountHandler.RegisterForm)
		fund.POST("/register", accountHandler.Register)

		account := fund.Group("", middleware.RequireLogin())
		{
			account.GET("/registered", accountHandler.Registered)
			account.GET("/manage", accountHandler.Manage)
			account.POST("/manage", accountHandler.AddProject)
			account.POST("/set-current/:ship_id", accountHandler.SetCurrent)
		}

		member := fund.Group("", middleware.ApprovedMembership(accounts))
		{
			member.GET("/", fundHandler.Home)
			member.GET("/gp", fundHandler.Project)
			member.GET("/survey/:gp_survey_id", fundHandler.Survey)
			member.POST("/survey/:gp_survey_id", fundHandler.SubmitSurvey)
			member.GET("/copy", fundHandler.CopyContacts)
			member.POST("/copy", fundHandler.SubmitCopyContacts)
			member.GET("/add-contacts", fundHandler.AddContacts)
			member.POST("/add-contacts", fundHandler.SubmitAddContacts)
			member.GET("/add-estimates", fundHandler.AddEstimates)
			member.POST("/add-estimates", fundHandler.SubmitAddEstimates)
			member.GET("/stepmult", fundHandler.AddMultStep)
			member.POST("/stepmult", fundHandler.SubmitAddMultStep)

			donors := member.Group("/donors/:donor_id")
			{
				donors.GET("/edit", fundHandler.EditContact)
				donors.POST("/edit", fundHandler.SubmitEditContact)
				donors.POST("/delete", fundHandler.DeleteContact)
				donors.GET("/step", fundHandler.AddStep)
				donors.POST("/step", fundHandler.SubmitAddStep)
				donors.GET("/steps/:step_id", fundHandler.EditStep)
				donors.POST("/steps/:step_id", fundHandler.SubmitEditStep)
				donors.GET("/steps/:step_id/done", fundHandler.DoneStep)
				donors.POST("/steps/:step_id/done", fundHandler.SubmitDoneStep)
			}
		}
	}

	apply := r.Group("/apply")
	{
		apply.POST("/register", accountHandler.RegisterOrg)

		org := apply.Group("", middleware.RegisteredOrg(accounts))
		{
			org.GET("/", grantHandler.OrgHome)
			org.GET("/cycles/:cycle_id", grantHandler.Apply)
			org.POST("/cycles/:cycle_id", grantHandler.Submit)
			org.POST("/cycles/:cycle_id/autosave", grantHandler.Autosave)
			org.POST("/drafts/:draft_id/add-file", grantHandler.AddFile)
			org.POST("/drafts/:draft_id/remove/:field", grantHandler.RemoveFile)
			org.POST("/drafts/:draft_id/discard", grantHandler.Discard)
			org.POST("/copy", grantHandler.CopyApp)
		}
	}

	grants := r.Group("/grants", middleware.RequireLogin())
	{
		grants.GET("/view/:app_id", grantHandler.ViewApplication)
		grants.GET("/view/:app_id/file/:field", grantHandler.ApplicationFile)
		grants.GET("/draft/:draft_id/file/:field", grantHandler.DraftFile)
	}

	staff := r.Group("/admin", middleware.StaffOnly())
	{
		staff.GET("/grid", adminHandler.Entities)
		staff.GET("/grid/:entity", adminHandler.List)
		staff.GET("/grid/:entity/:id", adminHandler.Get)
		staff.POST("/grid/:entity/:id", adminHandler.Update)
		staff.DELETE("/grid/:entity/:id", adminHandler.Delete)
		staff.GET("/reports/projects/:id", adminHandler.ProjectReport)
		staff.GET("/reports/cycles/:id", adminHandler.CycleSummary)
		staff.GET("/reports/cycles/:id/export", adminHandler.ExportCycle)
		staff.POST("/revert/:app_id", adminHandler.RevertApplication)
	}

	return r
}
