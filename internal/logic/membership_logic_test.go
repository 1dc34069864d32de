package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zekeo/sjfnw/internal/model"
)

func TestHomeRedirects(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	l := NewMembershipLogic(db, cfg)
	ship := seedMembership(t, db, "alex@example.org")

	data, err := l.Home(ship)
	require.NoError(t, err)
	assert.Equal(t, RedirectAddContacts, data.Redirect)

	survey := &model.SurveyModel{Title: "Check-in", Questions: `[{"question":"How is it going?"}]`}
	require.NoError(t, db.Create(survey).Error)
	gps := &model.GPSurveyModel{GivingProjectId: ship.GivingProjectId, SurveyId: survey.Id, Date: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(gps).Error)

	data, err = l.Home(ship)
	require.NoError(t, err)
	assert.Equal(t, RedirectSurvey, data.Redirect)
	assert.Equal(t, gps.Id, data.RedirectId)

	ship.AddCompletedSurvey(gps.Id)
	donor := seedDonor(t, db, ship, "Ana", "Lopez")
	require.NoError(t, db.Model(donor).Update("amount", nil).Error)

	data, err = l.Home(ship)
	require.NoError(t, err)
	assert.Equal(t, RedirectAddEstimates, data.Redirect)
}

func TestHomeCopyContactsRedirect(t *testing.T) {
	db := newTestDB(t)
	old := seedMembership(t, db, "alex@example.org")
	seedDonor(t, db, old, "Ana", "Lopez")

	project := &model.GivingProjectModel{
		Title:               "Economic Justice",
		FundraisingTraining: time.Now().AddDate(0, 0, 10),
		FundraisingDeadline: time.Now().AddDate(0, 3, 0),
	}
	require.NoError(t, db.Create(project).Error)
	ship := seedShip(t, db, "alex@example.org", project)

	l := NewMembershipLogic(db, testConfig())
	data, err := l.Home(ship)
	require.NoError(t, err)
	assert.Equal(t, RedirectCopyContacts, data.Redirect)

	ship.CopiedContacts = true
	data, err = l.Home(ship)
	require.NoError(t, err)
	assert.Equal(t, RedirectAddContacts, data.Redirect)
}

func TestHomeProgressAndSteps(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.Server.ShowNotificationsOnce = true
	ship := seedMembership(t, db, "alex@example.org")
	require.NoError(t, db.Model(ship).Update("notifications", "Welcome").Error)
	ship.Notifications = "Welcome"

	asked := seedDonor(t, db, ship, "Ana", "Lopez")
	require.NoError(t, db.Model(asked).Updates(map[string]interface{}{"talked": true, "asked": true, "promised": 300}).Error)
	talked := seedDonor(t, db, ship, "Bo", "Kim")
	require.NoError(t, db.Model(talked).Update("talked", true).Error)
	overdue := seedDonor(t, db, ship, "Cy", "Park")
	seedStep(t, db, overdue, time.Now().AddDate(0, 0, -3))

	l := NewMembershipLogic(db, cfg)
	data, err := l.Home(ship)
	require.NoError(t, err)
	require.Empty(t, data.Redirect)

	p := data.Progress
	assert.Equal(t, 3, p.Contacts)
	assert.Equal(t, int64(750), p.Estimated)
	assert.Equal(t, 1, p.Talked)
	assert.Equal(t, 1, p.Asked)
	assert.Equal(t, int64(300), p.Promised)
	assert.Equal(t, 33, p.Bar)
	assert.Equal(t, 1, p.ContactsRemaining)
	assert.Equal(t, int64(450), p.Togo)
	assert.Equal(t, "$750 fundraising goal", p.Header)

	require.Len(t, data.Donors, 3)
	assert.Equal(t, overdue.Id, data.Donors[0].Donor.Id)
	assert.True(t, data.Donors[0].Overdue)
	assert.Equal(t, asked.Id, data.Donors[2].Donor.Id)
	assert.Equal(t, "Asked. Promised $300.", data.Donors[2].Summary)
	require.Len(t, data.Upcoming, 1)
	assert.Equal(t, []string{"Talk to about project", "Invite to SJF event"}, data.Suggested)

	assert.Equal(t, "Welcome", data.Notification)
	var got model.MembershipModel
	require.NoError(t, db.First(&got, ship.Id).Error)
	assert.Empty(t, got.Notifications)
}

func TestCompileProgressRaised(t *testing.T) {
	amount, likelihood := int64(100), int64(100)
	donors := []model.DonorModel{
		{Id: 1, Amount: &amount, Likelihood: &likelihood, Asked: true, Promised: int64p(250)},
		{Id: 2, Asked: true, Promised: int64p(0)},
		{Id: 3, Asked: true},
	}
	summaries, p := CompileProgress(donors)
	assert.Equal(t, int64(0), p.Togo)
	assert.Equal(t, "$250 raised", p.Header)
	assert.Equal(t, 100, p.Bar)
	assert.Equal(t, "Asked. Declined to donate.", summaries[2].Summary)
	assert.Equal(t, "Asked. Awaiting response.", summaries[3].Summary)
}

func TestProjectPage(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	ship := seedMembership(t, db, "alex@example.org")
	other := seedShip(t, db, "sam@example.org", &ship.GivingProject)

	d1 := seedDonor(t, db, ship, "Ana", "Lopez")
	require.NoError(t, db.Model(d1).Updates(map[string]interface{}{"asked": true, "promised": 1000}).Error)
	d2 := seedDonor(t, db, other, "Bo", "Kim")
	require.NoError(t, db.Model(d2).Updates(map[string]interface{}{"asked": true, "received_this": 2000}).Error)
	seedStep(t, db, d1, time.Now().AddDate(0, 0, 2))
	require.NoError(t, db.Create(&model.NewsItemModel{MembershipId: other.Id, Date: time.Now(), Summary: "Alex talked to 1 person."}).Error)

	org := &model.OrganizationModel{Name: "Fierce Grannies", Email: "fg@example.org"}
	require.NoError(t, db.Create(org).Error)
	cycle := &model.GrantCycleModel{Title: "Rural", Open: time.Now(), Close: time.Now().AddDate(0, 1, 0)}
	require.NoError(t, db.Create(cycle).Error)
	app := &model.GrantApplicationModel{OrganizationId: org.Id, GrantCycleId: cycle.Id, SubmissionTime: time.Now(), ScreeningStatus: 60}
	require.NoError(t, db.Create(app).Error)
	screened := &model.GrantApplicationModel{OrganizationId: org.Id, GrantCycleId: cycle.Id + 1, SubmissionTime: time.Now(), ScreeningStatus: cfg.Grants.ScreenedOutStatus}
	require.NoError(t, db.Create(screened).Error)
	require.NoError(t, db.Create(&model.ProjectAppModel{GivingProjectId: ship.GivingProjectId, ApplicationId: app.Id}).Error)
	require.NoError(t, db.Create(&model.ProjectAppModel{GivingProjectId: ship.GivingProjectId, ApplicationId: screened.Id}).Error)

	l := NewMembershipLogic(db, cfg)
	blocks, progress, err := l.ProjectPage(ship)
	require.NoError(t, err)
	require.Len(t, blocks.Steps, 1)
	require.NotNil(t, blocks.Steps[0].Donor)
	assert.Equal(t, "Ana", blocks.Steps[0].Donor.Firstname)
	assert.Len(t, blocks.News, 1)
	require.Len(t, blocks.Grants, 1)
	assert.Equal(t, "Fierce Grannies", blocks.Grants[0].Application.Organization.Name)

	assert.Equal(t, 2, progress.Asked)
	assert.Equal(t, int64(1000), progress.Promised)
	assert.Equal(t, int64(2000), progress.Received)
	assert.Equal(t, int64(47000), progress.Togo)
}
