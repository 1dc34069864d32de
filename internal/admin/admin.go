package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zekeo/sjfnw/internal/logger"
	"gorm.io/gorm"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrNotFound      = errors.New("record not found")
	ErrNotEditable   = errors.New("field is not editable")
)

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// Admin 通用后台表格
type Admin struct {
	db       *gorm.DB
	registry *Registry
}

// New 创建后台
func New(db *gorm.DB, registry *Registry) *Admin {
	return &Admin{db: db, registry: registry}
}

// Registry 注册表
func (a *Admin) Registry() *Registry {
	return a.registry
}

func (a *Admin) entity(name string) (Entity, error) {
	e, ok := a.registry.Get(name)
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e, nil
}

// List 分页列表，search 对 Search 列做模糊匹配
func (a *Admin) List(name, search string, page, pageSize int) (interface{}, *Pagination, error) {
	e, err := a.entity(name)
	if err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := a.db.Model(e.New())
	if search = strings.TrimSpace(search); search != "" && len(e.Search) > 0 {
		conds := make([]string, 0, len(e.Search))
		args := make([]interface{}, 0, len(e.Search))
		for _, col := range e.Search {
			conds = append(conds, fmt.Sprintf("%q LIKE ?", col))
			args = append(args, "%"+search+"%")
		}
		query = query.Where(strings.Join(conds, " OR "), args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("统计 %s 失败: %w", name, err)
	}

	items := e.NewSlice()
	q := query.Session(&gorm.Session{})
	for _, p := range e.Preload {
		q = q.Preload(p)
	}
	offset := (page - 1) * pageSize
	if err := q.Order(e.Order).Offset(offset).Limit(pageSize).Find(items).Error; err != nil {
		return nil, nil, fmt.Errorf("获取 %s 列表失败: %w", name, err)
	}

	return items, &Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: int64(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Get 获取单条记录
func (a *Admin) Get(name string, id int64) (interface{}, error) {
	e, err := a.entity(name)
	if err != nil {
		return nil, err
	}
	obj := e.New()
	q := a.db
	for _, p := range e.Preload {
		q = q.Preload(p)
	}
	if err := q.First(obj, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取 %s 失败: %w", name, err)
	}
	return obj, nil
}

// Update 只修改白名单字段
func (a *Admin) Update(name string, id int64, values map[string]interface{}) (interface{}, error) {
	e, err := a.entity(name)
	if err != nil {
		return nil, err
	}
	for field := range values {
		if !e.CanEdit(field) {
			return nil, fmt.Errorf("%w: %s", ErrNotEditable, field)
		}
	}
	obj, err := a.Get(name, id)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return obj, nil
	}
	if err := a.db.Model(obj).Updates(normalize(values)).Error; err != nil {
		return nil, fmt.Errorf("更新 %s 失败: %w", name, err)
	}
	logger.Info("Admin updated %s %d: %v", name, id, keys(values))
	return a.Get(name, id)
}

// Delete 删除记录
func (a *Admin) Delete(name string, id int64) error {
	e, err := a.entity(name)
	if err != nil {
		return err
	}
	res := a.db.Delete(e.New(), id)
	if res.Error != nil {
		return fmt.Errorf("删除 %s 失败: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logger.Info("Admin deleted %s %d", name, id)
	return nil
}

// normalize JSON 数字转为整数
func normalize(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				out[k] = i
			} else if f, err := n.Float64(); err == nil {
				out[k] = f
			} else {
				out[k] = n.String()
			}
		case float64:
			if n == math.Trunc(n) {
				out[k] = int64(n)
			} else {
				out[k] = n
			}
		default:
			out[k] = v
		}
	}
	return out
}

func keys(values map[string]interface{}) []string {
	out := make([]string, 0, len(values))
	for k := range values {
		out = append(out, k)
	}
	return out
}
