package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/middleware"
	"github.com/zekeo/sjfnw/internal/worker"
	"gorm.io/gorm"
)

// FundHandler 募捐成员页面
type FundHandler struct {
	config          *config.Config
	membershipLogic *logic.MembershipLogic
	donorLogic      *logic.DonorLogic
	stepLogic       *logic.StepLogic
	surveyLogic     *logic.SurveyLogic
}

func NewFundHandler(db *gorm.DB, cfg *config.Config, runner worker.Runner) *FundHandler {
	return &FundHandler{
		config:          cfg,
		membershipLogic: logic.NewMembershipLogic(db, cfg),
		donorLogic:      logic.NewDonorLogic(db, cfg),
		stepLogic:       logic.NewStepLogic(db, cfg, runner),
		surveyLogic:     logic.NewSurveyLogic(db),
	}
}

// Home 个人首页
func (h *FundHandler) Home(c *gin.Context) {
	data, err := h.membershipLogic.Home(middleware.CurrentMembership(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Project 项目页
func (h *FundHandler) Project(c *gin.Context) {
	ship := middleware.CurrentMembership(c)
	block, progress, err := h.membershipLogic.ProjectPage(ship)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project":  ship.GivingProject,
		"news":     block.News,
		"grants":   block.Grants,
		"progress": progress,
	})
}

// Survey 问卷
func (h *FundHandler) Survey(c *gin.Context) {
	id, ok := parseID(c, "gp_survey_id")
	if !ok {
		return
	}
	gps, questions, err := h.surveyLogic.Get(middleware.CurrentMembership(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"survey": gps, "questions": questions})
}

// SubmitSurvey 提交问卷
func (h *FundHandler) SubmitSurvey(c *gin.Context) {
	id, ok := parseID(c, "gp_survey_id")
	if !ok {
		return
	}
	values := flatten(postValues(c))
	errs, err := h.surveyLogic.Respond(middleware.CurrentMembership(c), id, values)
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "survey", values, errs, nil)
		return
	}
	formSuccess(c)
}

// CopyContacts 可复制的历史联系人
func (h *FundHandler) CopyContacts(c *gin.Context) {
	ship := middleware.CurrentMembership(c)
	if ship.CopiedContacts {
		c.JSON(http.StatusOK, gin.H{"redirect": "home"})
		return
	}
	rows, err := h.donorLogic.CopyCandidates(ship)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": rows})
}

// SubmitCopyContacts 复制选中的联系人，skip 时只标记已处理
func (h *FundHandler) SubmitCopyContacts(c *gin.Context) {
	ship := middleware.CurrentMembership(c)
	values := postValues(c)
	if values.Get("skip") != "" {
		if err := h.donorLogic.SkipCopy(ship); err != nil {
			respondError(c, err)
			return
		}
		formSuccess(c)
		return
	}
	errs, err := h.donorLogic.CopyContacts(ship, form.ParseFormset(values, form.DefaultPrefix))
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "copy_contacts", values, errs, nil)
		return
	}
	formSuccess(c)
}

// AddContacts 批量添加联系人表单
func (h *FundHandler) AddContacts(c *gin.Context) {
	ship := middleware.CurrentMembership(c)
	c.JSON(http.StatusOK, gin.H{
		"rows":      h.config.Fund.AddMultRows,
		"estimates": ship.GivingProject.RequireEstimates(time.Now()),
	})
}

// SubmitAddContacts 批量添加联系人
func (h *FundHandler) SubmitAddContacts(c *gin.Context) {
	values := postValues(c)
	result, errs, err := h.donorLogic.AddMult(middleware.CurrentMembership(c), form.ParseFormset(values, form.DefaultPrefix))
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "add_contacts", values, errs, nil)
		return
	}
	if len(result.Duplicates) > 0 {
		renderForm(c, "add_contacts", values, form.Errors{form.NonFieldErrors: {logic.MsgConfirmDuplicates}},
			gin.H{"created": result.Created, "duplicates": result.Duplicates})
		return
	}
	formSuccess(c)
}

// AddEstimates 缺少预估的联系人
func (h *FundHandler) AddEstimates(c *gin.Context) {
	donors, err := h.donorLogic.EstimateDonors(middleware.CurrentMembership(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donors": donors})
}

// SubmitAddEstimates 补填预估
func (h *FundHandler) SubmitAddEstimates(c *gin.Context) {
	values := postValues(c)
	errs, err := h.donorLogic.AddEstimates(middleware.CurrentMembership(c), form.ParseFormset(values, form.DefaultPrefix))
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "add_estimates", values, errs, nil)
		return
	}
	formSuccess(c)
}

// EditContact 联系人编辑表单
func (h *FundHandler) EditContact(c *gin.Context) {
	id, ok := parseID(c, "donor_id")
	if !ok {
		return
	}
	donor, err := h.donorLogic.GetDonor(middleware.CurrentMembership(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donor": donor, "form": h.donorLogic.DonorInitial(donor)})
}

// SubmitEditContact 保存联系人
func (h *FundHandler) SubmitEditContact(c *gin.Context) {
	id, ok := parseID(c, "donor_id")
	if !ok {
		return
	}
	var f form.DonorForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	errs, err := h.donorLogic.EditContact(middleware.CurrentMembership(c), id, &f)
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "edit_contact", f, errs, nil)
		return
	}
	formSuccess(c)
}

// DeleteContact 删除联系人
func (h *FundHandler) DeleteContact(c *gin.Context) {
	id, ok := parseID(c, "donor_id")
	if !ok {
		return
	}
	if err := h.donorLogic.DeleteContact(middleware.CurrentMembership(c), id); err != nil {
		respondError(c, err)
		return
	}
	formSuccess(c)
}

// AddStep 新增步骤表单
func (h *FundHandler) AddStep(c *gin.Context) {
	id, ok := parseID(c, "donor_id")
	if !ok {
		return
	}
	donor, err := h.stepLogic.GetDonor(middleware.CurrentMembership(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donor": donor})
}

// SubmitAddStep 保存新步骤
func (h *FundHandler) SubmitAddStep(c *gin.Context) {
	id, ok := parseID(c, "donor_id")
	if !ok {
		return
	}
	var f form.StepForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	errs, err := h.stepLogic.AddStep(middleware.CurrentMembership(c), id, &f)
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "add_step", f, errs, nil)
		return
	}
	formSuccess(c)
}

// AddMultStep 批量步骤表单
func (h *FundHandler) AddMultStep(c *gin.Context) {
	donors, err := h.stepLogic.MassStepDonors(middleware.CurrentMembership(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donors": donors})
}

// SubmitAddMultStep 批量保存步骤
func (h *FundHandler) SubmitAddMultStep(c *gin.Context) {
	values := postValues(c)
	errs, err := h.stepLogic.AddMultStep(middleware.CurrentMembership(c), form.ParseFormset(values, form.DefaultPrefix))
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "add_mult_step", values, errs, nil)
		return
	}
	formSuccess(c)
}

// EditStep 步骤编辑表单
func (h *FundHandler) EditStep(c *gin.Context) {
	donorId, stepId, ok := stepIDs(c)
	if !ok {
		return
	}
	donor, step, err := h.stepLogic.GetStep(middleware.CurrentMembership(c), donorId, stepId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donor": donor, "step": step})
}

// SubmitEditStep 保存步骤
func (h *FundHandler) SubmitEditStep(c *gin.Context) {
	donorId, stepId, ok := stepIDs(c)
	if !ok {
		return
	}
	var f form.StepForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	errs, err := h.stepLogic.EditStep(middleware.CurrentMembership(c), donorId, stepId, &f)
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "edit_step", f, errs, nil)
		return
	}
	formSuccess(c)
}

// DoneStep 完成步骤表单，带联系人当前信息
func (h *FundHandler) DoneStep(c *gin.Context) {
	donorId, stepId, ok := stepIDs(c)
	if !ok {
		return
	}
	donor, step, err := h.stepLogic.GetStep(middleware.CurrentMembership(c), donorId, stepId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"donor": donor,
		"step":  step,
		"form":  h.stepLogic.StepDoneInitial(donor),
	})
}

// SubmitDoneStep 完成步骤
func (h *FundHandler) SubmitDoneStep(c *gin.Context) {
	donorId, stepId, ok := stepIDs(c)
	if !ok {
		return
	}
	var f form.StepDoneForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	errs, err := h.stepLogic.CompleteStep(middleware.CurrentMembership(c), donorId, stepId, &f)
	if err != nil {
		respondError(c, err)
		return
	}
	if errs.Has() {
		renderForm(c, "done_step", f, errs, nil)
		return
	}
	formSuccess(c)
}

func stepIDs(c *gin.Context) (int64, int64, bool) {
	donorId, ok := parseID(c, "donor_id")
	if !ok {
		return 0, 0, false
	}
	stepId, ok := parseID(c, "step_id")
	if !ok {
		return 0, 0, false
	}
	return donorId, stepId, true
}
