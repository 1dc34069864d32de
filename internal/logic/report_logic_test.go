package logic

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zekeo/sjfnw/internal/model"
)

func TestProjectReport(t *testing.T) {
	db := newTestDB(t)
	ship := seedMembership(t, db, "alex@example.org")
	other := seedShip(t, db, "sam@example.org", &ship.GivingProject)
	d := seedDonor(t, db, ship, "Ana", "Lopez")
	require.NoError(t, db.Model(d).Updates(map[string]interface{}{"asked": true, "promised": 400}).Error)
	seedDonor(t, db, other, "Bo", "Kim")

	report, err := NewReportLogic(db).ProjectReport(ship.GivingProjectId)
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, "Alex Rivera", report.Rows[0].Member)
	assert.Equal(t, int64(400), report.Rows[0].Promised)
	assert.Equal(t, 1, report.Rows[1].Contacts)
	assert.Equal(t, 2, report.Totals.Contacts)
	assert.Equal(t, int64(500), report.Totals.Estimated)

	_, err = NewReportLogic(db).ProjectReport(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCycleSummaryAndExport(t *testing.T) {
	db := newTestDB(t)
	cycle := &model.GrantCycleModel{Title: "Rural", Open: time.Now(), Close: time.Now().AddDate(0, 1, 0)}
	require.NoError(t, db.Create(cycle).Error)
	for i, name := range []string{"Zeta Collective", "Alpha Union"} {
		org := &model.OrganizationModel{Name: name, Email: name + "@example.org"}
		require.NoError(t, db.Create(org).Error)
		app := &model.GrantApplicationModel{
			OrganizationId:  org.Id,
			GrantCycleId:    cycle.Id,
			SubmissionTime:  time.Now(),
			ScreeningStatus: 10 + i*60,
			AmountRequested: 5000,
		}
		require.NoError(t, db.Create(app).Error)
	}
	other := &model.OrganizationModel{Name: "Drafting", Email: "d@example.org"}
	require.NoError(t, db.Create(other).Error)
	require.NoError(t, db.Create(&model.DraftGrantApplicationModel{OrganizationId: other.Id, GrantCycleId: cycle.Id, Contents: "{}"}).Error)

	l := NewReportLogic(db)
	summary, err := l.CycleSummary(cycle.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Applications)
	assert.Equal(t, map[int]int{10: 1, 70: 1}, summary.ByStatus)
	assert.Equal(t, int64(1), summary.Drafts)
	assert.Equal(t, int64(10000), summary.Requested)

	var buf bytes.Buffer
	require.NoError(t, l.ExportApplications(&buf, cycle.Id))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "organization", records[0][1])
	assert.Equal(t, "Alpha Union", records[1][1])
	assert.Equal(t, "Zeta Collective", records[2][1])
}
