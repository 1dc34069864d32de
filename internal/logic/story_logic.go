package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zekeo/sjfnw/internal/model"
	"gorm.io/gorm"
)

// StoryLogic 成员每日动态
type StoryLogic struct {
	db *gorm.DB
}

// NewStoryLogic 创建动态业务逻辑
func NewStoryLogic(db *gorm.DB) *StoryLogic {
	return &StoryLogic{db: db}
}

// UpdateStory 汇总成员当天完成的步骤，每个成员每天一条动态
func (s *StoryLogic) UpdateStory(membershipId int64, at time.Time) error {
	var ship model.MembershipModel
	if err := s.db.Preload("Member").First(&ship, membershipId).Error; err != nil {
		return fmt.Errorf("获取 membership %d 失败: %w", membershipId, notFound(err))
	}

	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	next := day.AddDate(0, 0, 1)

	var steps []model.StepModel
	err := s.db.Joins("JOIN donor ON donor.id = step.donor_id").
		Where("donor.membership_id = ? AND step.completed >= ? AND step.completed < ?", membershipId, day, next).
		Find(&steps).Error
	if err != nil {
		return fmt.Errorf("获取当天完成步骤失败: %w", err)
	}

	summary := storySummary(ship.Member.FirstName, steps)
	if summary == "" {
		return nil
	}

	var item model.NewsItemModel
	err = s.db.Where("membership_id = ? AND date = ?", membershipId, day).First(&item).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = model.NewsItemModel{MembershipId: membershipId, Date: day, Summary: summary}
		if err := s.db.Create(&item).Error; err != nil {
			return fmt.Errorf("创建动态失败: %w", err)
		}
	case err != nil:
		return fmt.Errorf("获取动态失败: %w", err)
	default:
		if err := s.db.Model(&item).Update("summary", summary).Error; err != nil {
			return fmt.Errorf("更新动态失败: %w", err)
		}
	}
	return nil
}

func storySummary(name string, steps []model.StepModel) string {
	if len(steps) == 0 {
		return ""
	}
	talked := map[int64]bool{}
	asked := 0
	var promised int64
	for _, st := range steps {
		talked[st.DonorId] = true
		if st.Asked {
			asked++
		}
		if st.Promised != nil {
			promised += *st.Promised
		}
	}

	people := "people"
	if len(talked) == 1 {
		people = "person"
	}
	parts := []string{fmt.Sprintf("%s talked to %d %s", strings.TrimSpace(name), len(talked), people)}
	if asked > 0 {
		parts = append(parts, fmt.Sprintf("asked %d", asked))
	}
	if promised > 0 {
		parts = append(parts, fmt.Sprintf("got $%s in promises", Intcomma(promised)))
	}
	return strings.Join(parts, ", ") + "."
}

// Intcomma 千分位格式化
func Intcomma(n int64) string {
	s := fmt.Sprint(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
