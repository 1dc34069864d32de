package admin

import (
	"sort"

	"github.com/zekeo/sjfnw/internal/model"
)

// Entity 后台可管理的一类记录
type Entity struct {
	Name     string
	New      func() interface{} // 返回 *Model
	NewSlice func() interface{} // 返回 *[]Model
	Order    string
	Search   []string
	Editable []string
	Preload  []string
}

// CanEdit 字段是否允许修改
func (e Entity) CanEdit(field string) bool {
	for _, f := range e.Editable {
		if f == field {
			return true
		}
	}
	return false
}

// Registry 实体注册表
type Registry struct {
	entities map[string]Entity
}

// NewRegistry 创建注册表
func NewRegistry(entities ...Entity) *Registry {
	r := &Registry{entities: make(map[string]Entity, len(entities))}
	for _, e := range entities {
		r.entities[e.Name] = e
	}
	return r
}

// Get 按名称查找
func (r *Registry) Get(name string) (Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names 全部实体名，按字母排序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry 募捐和资助申请的全部后台表格
func DefaultRegistry() *Registry {
	return NewRegistry(
		Entity{
			Name:     "users",
			New:      func() interface{} { return &model.UserModel{} },
			NewSlice: func() interface{} { return &[]model.UserModel{} },
			Order:    "email",
			Search:   []string{"email", "first_name", "last_name"},
			Editable: []string{"first_name", "last_name", "is_active", "is_staff"},
		},
		Entity{
			Name:     "members",
			New:      func() interface{} { return &model.MemberModel{} },
			NewSlice: func() interface{} { return &[]model.MemberModel{} },
			Order:    "first_name, last_name",
			Search:   []string{"email", "first_name", "last_name"},
			Editable: []string{"first_name", "last_name"},
		},
		Entity{
			Name:     "giving_projects",
			New:      func() interface{} { return &model.GivingProjectModel{} },
			NewSlice: func() interface{} { return &[]model.GivingProjectModel{} },
			Order:    "fundraising_deadline DESC",
			Search:   []string{"title"},
			Editable: []string{
				"title", "fundraising_training", "fundraising_deadline", "fund_goal",
				"suggested_steps", "pre_approved", "site_visits", "public",
			},
		},
		Entity{
			Name:     "memberships",
			New:      func() interface{} { return &model.MembershipModel{} },
			NewSlice: func() interface{} { return &[]model.MembershipModel{} },
			Order:    "id DESC",
			Editable: []string{"approved", "leader", "notifications"},
			Preload:  []string{"Member", "GivingProject"},
		},
		Entity{
			Name:     "donors",
			New:      func() interface{} { return &model.DonorModel{} },
			NewSlice: func() interface{} { return &[]model.DonorModel{} },
			Order:    "firstname, lastname",
			Search:   []string{"firstname", "lastname", "email"},
			Editable: []string{"received_this", "received_next", "received_afterward", "gift_notified", "notes"},
		},
		Entity{
			Name:     "steps",
			New:      func() interface{} { return &model.StepModel{} },
			NewSlice: func() interface{} { return &[]model.StepModel{} },
			Order:    "date DESC",
			Search:   []string{"description"},
			Editable: []string{"date", "description"},
		},
		Entity{
			Name:     "news",
			New:      func() interface{} { return &model.NewsItemModel{} },
			NewSlice: func() interface{} { return &[]model.NewsItemModel{} },
			Order:    "date DESC",
			Search:   []string{"summary"},
			Editable: []string{"summary"},
		},
		Entity{
			Name:     "surveys",
			New:      func() interface{} { return &model.SurveyModel{} },
			NewSlice: func() interface{} { return &[]model.SurveyModel{} },
			Order:    "title",
			Search:   []string{"title"},
			Editable: []string{"title", "questions"},
		},
		Entity{
			Name:     "gp_surveys",
			New:      func() interface{} { return &model.GPSurveyModel{} },
			NewSlice: func() interface{} { return &[]model.GPSurveyModel{} },
			Order:    "date DESC",
			Editable: []string{"date"},
			Preload:  []string{"Survey"},
		},
		Entity{
			Name:     "organizations",
			New:      func() interface{} { return &model.OrganizationModel{} },
			NewSlice: func() interface{} { return &[]model.OrganizationModel{} },
			Order:    "name",
			Search:   []string{"name", "email"},
			Editable: []string{"name", "email", "status", "ein", "mission", "website"},
		},
		Entity{
			Name:     "grant_cycles",
			New:      func() interface{} { return &model.GrantCycleModel{} },
			NewSlice: func() interface{} { return &[]model.GrantCycleModel{} },
			Order:    "close DESC",
			Search:   []string{"title"},
			Editable: []string{"title", "open", "close", "info_page", "email_signature", "extra_question", "conflicts"},
		},
		Entity{
			Name:     "drafts",
			New:      func() interface{} { return &model.DraftGrantApplicationModel{} },
			NewSlice: func() interface{} { return &[]model.DraftGrantApplicationModel{} },
			Order:    "updated_at DESC",
			Editable: []string{"extended_deadline"},
			Preload:  []string{"Organization", "GrantCycle"},
		},
		Entity{
			Name:     "applications",
			New:      func() interface{} { return &model.GrantApplicationModel{} },
			NewSlice: func() interface{} { return &[]model.GrantApplicationModel{} },
			Order:    "submission_time DESC",
			Search:   []string{"project_title", "contact_person"},
			Editable: []string{"screening_status", "scoring_bonus_poc", "scoring_bonus_geo"},
			Preload:  []string{"Organization", "GrantCycle"},
		},
		Entity{
			Name:     "project_apps",
			New:      func() interface{} { return &model.ProjectAppModel{} },
			NewSlice: func() interface{} { return &[]model.ProjectAppModel{} },
			Order:    "id DESC",
			Editable: []string{"screening_status"},
		},
		Entity{
			Name:     "awards",
			New:      func() interface{} { return &model.GrantAwardModel{} },
			NewSlice: func() interface{} { return &[]model.GrantAwardModel{} },
			Order:    "id DESC",
			Editable: []string{"amount", "check_mailed", "agreement_mailed", "approved"},
		},
		Entity{
			Name:     "emails",
			New:      func() interface{} { return &model.EmailMessageModel{} },
			NewSlice: func() interface{} { return &[]model.EmailMessageModel{} },
			Order:    "id DESC",
			Search:   []string{"to", "subject"},
			Editable: []string{"status", "attempts"},
		},
	)
}
