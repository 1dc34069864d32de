package logic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/model"
	"gorm.io/gorm"
)

// SurveyQuestion 问卷问题，Choices 为空时是文本题
type SurveyQuestion struct {
	Question string   `json:"question"`
	Choices  []string `json:"choices,omitempty"`
}

// SurveyAnswer 一个问题的答案
type SurveyAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SurveyLogic 项目问卷
type SurveyLogic struct {
	db *gorm.DB
}

// NewSurveyLogic 创建问卷业务逻辑
func NewSurveyLogic(db *gorm.DB) *SurveyLogic {
	return &SurveyLogic{db: db}
}

// Get 获取项目问卷及其问题
func (l *SurveyLogic) Get(ship *model.MembershipModel, gpSurveyId int64) (*model.GPSurveyModel, []SurveyQuestion, error) {
	var gps model.GPSurveyModel
	err := l.db.Preload("Survey").
		Where("id = ? AND giving_project_id = ?", gpSurveyId, ship.GivingProjectId).
		First(&gps).Error
	if err != nil {
		return nil, nil, notFound(err)
	}
	questions, err := ParseQuestions(gps.Survey.Questions)
	if err != nil {
		return nil, nil, err
	}
	return &gps, questions, nil
}

// ParseQuestions 解析问卷问题
func ParseQuestions(raw string) ([]SurveyQuestion, error) {
	var questions []SurveyQuestion
	if strings.TrimSpace(raw) == "" {
		return questions, nil
	}
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("解析问卷问题失败: %w", err)
	}
	return questions, nil
}

// Respond 保存问卷答案，并标记 membership 已完成该问卷。
// 答案字段名为 responses-N，N 从 0 开始
func (l *SurveyLogic) Respond(ship *model.MembershipModel, gpSurveyId int64, values map[string]string) (form.Errors, error) {
	gps, questions, err := l.Get(ship, gpSurveyId)
	if err != nil {
		return nil, err
	}

	errs := form.Errors{}
	answers := make([]SurveyAnswer, 0, len(questions))
	for i, q := range questions {
		field := "responses-" + strconv.Itoa(i)
		answer := strings.TrimSpace(values[field])
		if answer == "" {
			errs.Add(field, "This field is required.")
			continue
		}
		if len(q.Choices) > 0 && !contains(q.Choices, answer) {
			errs.Add(field, "Select a valid choice.")
			continue
		}
		answers = append(answers, SurveyAnswer{Question: q.Question, Answer: answer})
	}
	if errs.Has() {
		return errs, nil
	}

	data, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("序列化问卷答案失败: %w", err)
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		resp := &model.SurveyResponseModel{GPSurveyId: gps.Id, Responses: string(data)}
		if err := tx.Create(resp).Error; err != nil {
			return fmt.Errorf("保存问卷答案失败: %w", err)
		}
		ship.AddCompletedSurvey(gps.Id)
		err := tx.Model(&model.MembershipModel{}).Where("id = ?", ship.Id).
			Update("completed_surveys", ship.CompletedSurveys).Error
		if err != nil {
			return fmt.Errorf("更新已完成问卷失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Survey response saved for gp survey %d", gps.Id)
	return nil, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
