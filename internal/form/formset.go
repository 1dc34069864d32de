package form

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
)

// DefaultPrefix formset 字段前缀，字段名形如 form-0-firstname
const DefaultPrefix = "form"

var rowKey = regexp.MustCompile(`^([A-Za-z_]+)-(\d+)-(.+)$`)

// Row formset 中的一行
type Row struct {
	Index  int
	Values url.Values
}

// Blank 除忽略字段外都为空
func (r Row) Blank(ignore ...string) bool {
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}
	for name, vals := range r.Values {
		if skip[name] {
			continue
		}
		for _, v := range vals {
			if strings.TrimSpace(v) != "" {
				return false
			}
		}
	}
	return true
}

// Decode 解析到表单结构体
func (r Row) Decode(ptr interface{}) error {
	if err := binding.MapFormWithTag(ptr, r.Values, "form"); err != nil {
		return fmt.Errorf("failed to decode row %d: %w", r.Index, err)
	}
	return nil
}

// FieldPrefix 行内字段错误使用的前缀
func (r Row) FieldPrefix(prefix string) string {
	return fmt.Sprintf("%s-%d-", prefix, r.Index)
}

// ParseFormset 按行拆分 formset 提交的数据，行号升序
func ParseFormset(values url.Values, prefix string) []Row {
	rows := map[int]url.Values{}
	for key, vals := range values {
		m := rowKey.FindStringSubmatch(key)
		if m == nil || m[1] != prefix {
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if rows[idx] == nil {
			rows[idx] = url.Values{}
		}
		rows[idx][m[3]] = vals
	}

	// 丢弃超出 TOTAL_FORMS 的行
	if total, err := strconv.Atoi(values.Get(prefix + "-TOTAL_FORMS")); err == nil {
		for idx := range rows {
			if idx >= total {
				delete(rows, idx)
			}
		}
	}

	result := make([]Row, 0, len(rows))
	for idx, vals := range rows {
		result = append(result, Row{Index: idx, Values: vals})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}

// RowValues 生成某行的初始值，重新渲染 formset 使用
func RowValues(prefix string, index int, fields map[string]string) url.Values {
	values := url.Values{}
	for name, v := range fields {
		values.Set(fmt.Sprintf("%s-%d-%s", prefix, index, name), v)
	}
	return values
}
