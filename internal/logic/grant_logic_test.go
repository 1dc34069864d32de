package logic

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/model"
	"github.com/zekeo/sjfnw/internal/storage"
	"github.com/zekeo/sjfnw/internal/worker"
	"gorm.io/gorm"
)

type recordingMailer struct {
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type grantFixture struct {
	db     *gorm.DB
	logic  *GrantLogic
	mailer *recordingMailer
	org    *model.OrganizationModel
	cycle  *model.GrantCycleModel
}

func newGrantFixture(t *testing.T) *grantFixture {
	t.Helper()
	db := newTestDB(t)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	mailer := &recordingMailer{}
	cfg := testConfig()
	outbox := mail.NewOutbox(db, mailer, worker.Inline{}, cfg.Mail.MaxAttempts)

	org := &model.OrganizationModel{Name: "Fierce Grannies", Email: "fg@example.org"}
	org.Mission = "Old mission."
	org.City = "Tacoma"
	require.NoError(t, db.Create(org).Error)
	cycle := &model.GrantCycleModel{
		Title: "Rapid Response",
		Open:  time.Now().AddDate(0, 0, -10),
		Close: time.Now().AddDate(0, 0, 10),
	}
	require.NoError(t, db.Create(cycle).Error)

	return &grantFixture{
		db:     db,
		logic:  NewGrantLogic(db, cfg, store, outbox),
		mailer: mailer,
		org:    org,
		cycle:  cycle,
	}
}

func applicationValues() map[string]string {
	return map[string]string{
		"address":              "1904 3rd Ave",
		"city":                 "Seattle",
		"state":                "WA",
		"zip":                  "98101",
		"telephone_number":     "206-555-0100",
		"email_address":        "org@example.org",
		"status":               "501c3",
		"ein":                  "91-0000000",
		"founded":              "1998",
		"mission":              "Justice.",
		"amount_requested":     "10,000",
		"support_type":         form.SupportGeneral,
		"budget_last":          "50000",
		"budget_current":       "60000",
		"grant_request":        "Support our organizing.",
		"contact_person":       "Lee",
		"contact_person_title": "Director",
		"narrative1":           "one",
		"narrative2":           "two",
		"narrative3":           "three",
		"narrative4":           "four",
		"narrative5":           "five",
		"narrative6":           "six",
	}
}

func TestApplyCreatesPrefilledDraft(t *testing.T) {
	fx := newGrantFixture(t)
	require.NoError(t, fx.db.Model(fx.org).Update("fiscal_letter", "grants/abc/letter.pdf").Error)
	fx.org.FiscalLetter = "grants/abc/letter.pdf"

	data, err := fx.logic.Apply(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)
	assert.True(t, data.Created)
	assert.Equal(t, "Old mission.", data.Contents["mission"])
	assert.Equal(t, "Tacoma", data.Contents["city"])
	assert.Equal(t, "letter.pdf", data.Files[model.FileFiscalLetter])
	assert.Equal(t, "", data.Files[model.FileBudget])

	again, err := fx.logic.Apply(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, data.Draft.Id, again.Draft.Id)

	_, err = fx.logic.Apply(fx.org, fx.cycle.Id+100, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyClosedCycle(t *testing.T) {
	fx := newGrantFixture(t)
	later := time.Now().AddDate(0, 0, 20)
	_, err := fx.logic.Apply(fx.org, fx.cycle.Id, later)
	assert.ErrorIs(t, err, ErrDraftClosed)

	var draft model.DraftGrantApplicationModel
	require.NoError(t, fx.db.First(&draft).Error)
	extended := later.Add(time.Hour)
	require.NoError(t, fx.db.Model(&draft).Update("extended_deadline", extended).Error)
	_, err = fx.logic.Apply(fx.org, fx.cycle.Id, later)
	assert.NoError(t, err)
}

func TestAutosaveClosedCycleKeepsDraft(t *testing.T) {
	fx := newGrantFixture(t)
	require.NoError(t, fx.logic.Autosave(fx.org, fx.cycle.Id, map[string]string{"mission": "Original."}))
	require.NoError(t, fx.db.Model(fx.cycle).Update("close", time.Now().Add(-time.Hour)).Error)

	err := fx.logic.Autosave(fx.org, fx.cycle.Id, map[string]string{"mission": "Changed."})
	assert.ErrorIs(t, err, ErrDraftClosed)

	var draft model.DraftGrantApplicationModel
	require.NoError(t, fx.db.First(&draft).Error)
	assert.Equal(t, "Original.", draft.Fields()["mission"])
}

func TestSubmitPanicRollsBack(t *testing.T) {
	fx := newGrantFixture(t)
	require.NoError(t, fx.logic.Autosave(fx.org, fx.cycle.Id, applicationValues()))
	data, err := fx.logic.Apply(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)
	_, err = fx.logic.AddFile(context.Background(), fx.org, data.Draft.Id, model.FileBudget, "budget.pdf", strings.NewReader("numbers"), "application/pdf")
	require.NoError(t, err)

	require.NoError(t, fx.db.Callback().Create().Before("gorm:create").Register("test:panic_app", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Model.(*model.GrantApplicationModel); ok {
			panic("insert failed")
		}
	}))

	assert.Panics(t, func() {
		_, _, _ = fx.logic.Submit(fx.org, fx.cycle.Id, time.Now())
	})

	var drafts, apps int64
	require.NoError(t, fx.db.Model(&model.DraftGrantApplicationModel{}).Count(&drafts).Error)
	require.NoError(t, fx.db.Model(&model.GrantApplicationModel{}).Count(&apps).Error)
	assert.Equal(t, int64(1), drafts)
	assert.Zero(t, apps)
}

func TestSubmitInvalidKeepsDraft(t *testing.T) {
	fx := newGrantFixture(t)
	values := applicationValues()
	delete(values, "mission")
	require.NoError(t, fx.logic.Autosave(fx.org, fx.cycle.Id, values))

	app, errs, err := fx.logic.Submit(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)
	assert.Nil(t, app)
	assert.Equal(t, []string{"This field is required."}, errs["mission"])
	assert.Equal(t, []string{"This field is required."}, errs[model.FileBudget])

	var drafts, apps, mails int64
	require.NoError(t, fx.db.Model(&model.DraftGrantApplicationModel{}).Count(&drafts).Error)
	require.NoError(t, fx.db.Model(&model.GrantApplicationModel{}).Count(&apps).Error)
	require.NoError(t, fx.db.Model(&model.EmailMessageModel{}).Count(&mails).Error)
	assert.Equal(t, int64(1), drafts)
	assert.Zero(t, apps)
	assert.Zero(t, mails)
}

func TestSubmitCreatesApplication(t *testing.T) {
	fx := newGrantFixture(t)
	require.NoError(t, fx.logic.Autosave(fx.org, fx.cycle.Id, applicationValues()))
	data, err := fx.logic.Apply(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)

	name, err := fx.logic.AddFile(context.Background(), fx.org, data.Draft.Id, model.FileBudget, "budget.xlsx", strings.NewReader("numbers"), "application/vnd.ms-excel")
	require.NoError(t, err)
	assert.Equal(t, "budget.xlsx", name)

	_, err = fx.logic.AddFile(context.Background(), fx.org, data.Draft.Id, model.FileBudget, "virus.exe", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrFileType)
	_, err = fx.logic.AddFile(context.Background(), fx.org, data.Draft.Id, "photo", "a.png", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrUnknownFileField)

	app, errs, err := fx.logic.Submit(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)
	require.Empty(t, errs)
	assert.Equal(t, int64(10000), app.AmountRequested)
	assert.Equal(t, 10, app.ScreeningStatus)

	var drafts int64
	require.NoError(t, fx.db.Model(&model.DraftGrantApplicationModel{}).Count(&drafts).Error)
	assert.Zero(t, drafts)

	var org model.OrganizationModel
	require.NoError(t, fx.db.First(&org, fx.org.Id).Error)
	assert.Equal(t, "Justice.", org.Mission)
	assert.Equal(t, "Seattle", org.City)

	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, SubjectSubmitted, fx.mailer.sent[0].Subject)
	assert.Equal(t, []string{"fg@example.org"}, fx.mailer.sent[0].To)

	stored, err := fx.logic.Application(app.Id)
	require.NoError(t, err)
	r, filename, err := fx.logic.OpenFile(context.Background(), stored.AppFiles, model.FileBudget)
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "numbers", string(body))
	assert.Equal(t, "budget.xlsx", filename)

	_, err = fx.logic.Apply(fx.org, fx.cycle.Id, time.Now())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitRequiresCycleQuestion(t *testing.T) {
	fx := newGrantFixture(t)
	require.NoError(t, fx.db.Model(fx.cycle).Update("extra_question", "How do you center racial justice?").Error)
	values := applicationValues()
	values["narrative2"] = strings.Repeat("word ", 151)
	require.NoError(t, fx.logic.Autosave(fx.org, fx.cycle.Id, values))

	_, errs, err := fx.logic.Submit(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"This field is required."}, errs["cycle_question"])
	assert.Equal(t, []string{"Ensure this value has at most 150 words (it has 151)."}, errs["narrative2"])
}

func TestDiscardOwnDraftOnly(t *testing.T) {
	fx := newGrantFixture(t)
	data, err := fx.logic.Apply(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)

	other := &model.OrganizationModel{Name: "Other", Email: "other@example.org"}
	require.NoError(t, fx.db.Create(other).Error)
	assert.ErrorIs(t, fx.logic.Discard(other, data.Draft.Id), ErrNotFound)
	require.NoError(t, fx.logic.Discard(fx.org, data.Draft.Id))
	assert.ErrorIs(t, fx.logic.Discard(fx.org, data.Draft.Id), ErrNotFound)
}

func TestRevertToDraftAndCopy(t *testing.T) {
	fx := newGrantFixture(t)
	require.NoError(t, fx.logic.Autosave(fx.org, fx.cycle.Id, applicationValues()))
	var draft model.DraftGrantApplicationModel
	require.NoError(t, fx.db.First(&draft).Error)
	require.NoError(t, fx.db.Model(&draft).Update("budget", "grants/x/budget.pdf").Error)

	app, errs, err := fx.logic.Submit(fx.org, fx.cycle.Id, time.Now())
	require.NoError(t, err)
	require.Empty(t, errs)

	reverted, err := fx.logic.RevertToDraft(app.Id)
	require.NoError(t, err)
	assert.Equal(t, "grants/x/budget.pdf", reverted.Budget)
	assert.Equal(t, "Justice.", reverted.Fields()["mission"])
	assert.Equal(t, "10000", reverted.Fields()["amount_requested"])
	_, err = fx.logic.Application(app.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, fx.mailer.sent, 2)
	assert.Equal(t, SubjectDraftReopened, fx.mailer.sent[1].Subject)

	next := &model.GrantCycleModel{Title: "Economic Justice", Open: time.Now().Add(-time.Hour), Close: time.Now().AddDate(0, 1, 0)}
	require.NoError(t, fx.db.Create(next).Error)
	copied, err := fx.logic.CopyApp(fx.org, next.Id, 0, reverted.Id, time.Now())
	require.NoError(t, err)
	assert.Equal(t, next.Id, copied.GrantCycleId)
	assert.Equal(t, "Justice.", copied.Fields()["mission"])

	_, err = fx.logic.CopyApp(fx.org, next.Id, 0, reverted.Id, time.Now())
	assert.ErrorIs(t, err, ErrDraftExists)
}

func TestDraftWarnings(t *testing.T) {
	fx := newGrantFixture(t)
	now := time.Now()
	closing := &model.GrantCycleModel{Title: "Closing Soon", Open: now.AddDate(0, 0, -5), Close: now.Add(60 * time.Hour)}
	require.NoError(t, fx.db.Create(closing).Error)
	_, err := fx.logic.Apply(fx.org, closing.Id, now)
	require.NoError(t, err)
	_, err = fx.logic.Apply(fx.org, fx.cycle.Id, now)
	require.NoError(t, err)

	sent, err := fx.logic.DraftWarnings(now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, SubjectDraftWarning, fx.mailer.sent[0].Subject)
	assert.Contains(t, fx.mailer.sent[0].HTML, "Closing Soon")
}

func TestOrgHome(t *testing.T) {
	fx := newGrantFixture(t)
	now := time.Now()
	require.NoError(t, fx.db.Create(&model.GrantCycleModel{Title: "Old", Open: now.AddDate(-2, 0, 0), Close: now.AddDate(-1, 0, 0)}).Error)
	require.NoError(t, fx.db.Create(&model.GrantCycleModel{Title: "Recent", Open: now.AddDate(0, -2, 0), Close: now.AddDate(0, -1, 0)}).Error)
	require.NoError(t, fx.db.Create(&model.GrantCycleModel{Title: "Next", Open: now.AddDate(0, 1, 0), Close: now.AddDate(0, 2, 0)}).Error)
	_, err := fx.logic.Apply(fx.org, fx.cycle.Id, now)
	require.NoError(t, err)

	data, err := fx.logic.OrgHome(fx.org, now)
	require.NoError(t, err)
	require.Len(t, data.Closed, 1)
	assert.Equal(t, "Recent", data.Closed[0].Title)
	require.Len(t, data.Open, 1)
	require.Len(t, data.Upcoming, 1)
	assert.Empty(t, data.Applied)
	assert.Len(t, data.Drafts, 1)
}
