package logic

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/database"
	"github.com/zekeo/sjfnw/internal/model"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// seedMembership 一个已批准、培训已结束的 membership
func seedMembership(t *testing.T, db *gorm.DB, email string) *model.MembershipModel {
	t.Helper()
	now := time.Now()
	project := &model.GivingProjectModel{
		Title:               "Rural Justice",
		FundraisingTraining: now.AddDate(0, 0, -30),
		FundraisingDeadline: now.AddDate(0, 2, 0),
		FundGoal:            50000,
		SuggestedSteps:      "Talk to about project\nInvite to SJF event",
	}
	require.NoError(t, db.Create(project).Error)
	return seedShip(t, db, email, project)
}

func seedShip(t *testing.T, db *gorm.DB, email string, project *model.GivingProjectModel) *model.MembershipModel {
	t.Helper()
	var member model.MemberModel
	err := db.Where("email = ?", email).First(&member).Error
	if err != nil {
		member = model.MemberModel{Email: email, FirstName: "Alex", LastName: "Rivera"}
		require.NoError(t, db.Create(&member).Error)
	}
	ship := &model.MembershipModel{
		MemberId:         member.Id,
		GivingProjectId:  project.Id,
		Approved:         true,
		CompletedSurveys: "[]",
	}
	require.NoError(t, db.Create(ship).Error)
	require.NoError(t, db.Model(&member).Update("current", ship.Id).Error)
	ship.Member = member
	ship.GivingProject = *project
	return ship
}

func seedDonor(t *testing.T, db *gorm.DB, ship *model.MembershipModel, first, last string) *model.DonorModel {
	t.Helper()
	amount, likelihood := int64(500), int64(50)
	donor := &model.DonorModel{
		MembershipId:  ship.Id,
		Added:         time.Now(),
		Firstname:     first,
		Lastname:      last,
		Amount:        &amount,
		Likelihood:    &likelihood,
		PromiseReason: "[]",
	}
	require.NoError(t, db.Create(donor).Error)
	return donor
}

func seedStep(t *testing.T, db *gorm.DB, donor *model.DonorModel, date time.Time) *model.StepModel {
	t.Helper()
	step := &model.StepModel{DonorId: donor.Id, Date: date, Description: "Talk to about project"}
	require.NoError(t, db.Create(step).Error)
	return step
}

func testConfig() *config.Config {
	return config.Default()
}

func int64p(n int64) *int64 {
	return &n
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
