package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zekeo/sjfnw/internal/model"
)

func TestUpdateStory(t *testing.T) {
	db := newTestDB(t)
	ship := seedMembership(t, db, "story@example.com")
	a := seedDonor(t, db, ship, "Dana", "Lee")
	b := seedDonor(t, db, ship, "Eli", "Park")

	at := time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
	morning := at.Add(-5 * time.Hour)
	stepA := &model.StepModel{DonorId: a.Id, Date: morning, Description: "Ask", Completed: &morning, Asked: true, Promised: int64p(1200)}
	stepB := &model.StepModel{DonorId: b.Id, Date: morning, Description: "Talk", Completed: &morning}
	yesterday := at.AddDate(0, 0, -1)
	old := &model.StepModel{DonorId: b.Id, Date: yesterday, Description: "Old", Completed: &yesterday, Asked: true}
	require.NoError(t, db.Create(stepA).Error)
	require.NoError(t, db.Create(stepB).Error)
	require.NoError(t, db.Create(old).Error)

	story := NewStoryLogic(db)
	require.NoError(t, story.UpdateStory(ship.Id, at))

	var items []model.NewsItemModel
	require.NoError(t, db.Where("membership_id = ?", ship.Id).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "Alex talked to 2 people, asked 1, got $1,200 in promises.", items[0].Summary)

	// 同一天再次汇总只更新已有动态
	later := at.Add(time.Hour)
	stepC := &model.StepModel{DonorId: a.Id, Date: later, Description: "Thank", Completed: &later}
	require.NoError(t, db.Create(stepC).Error)
	require.NoError(t, story.UpdateStory(ship.Id, later))

	require.NoError(t, db.Where("membership_id = ?", ship.Id).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "Alex talked to 2 people, asked 1, got $1,200 in promises.", items[0].Summary)
}

func TestUpdateStoryNothingDone(t *testing.T) {
	db := newTestDB(t)
	ship := seedMembership(t, db, "quiet@example.com")

	require.NoError(t, NewStoryLogic(db).UpdateStory(ship.Id, time.Now()))

	var count int64
	require.NoError(t, db.Model(&model.NewsItemModel{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, NewStoryLogic(db).UpdateStory(9999, time.Now()), ErrNotFound)
}

func TestStorySummaryAndIntcomma(t *testing.T) {
	steps := []model.StepModel{{DonorId: 1}}
	assert.Equal(t, "Sam talked to 1 person.", storySummary(" Sam ", steps))
	assert.Empty(t, storySummary("Sam", nil))

	for in, want := range map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -45000: "-45,000"} {
		assert.Equal(t, want, Intcomma(in))
	}
}
