package logic

import (
	"github.com/zekeo/sjfnw/internal/model"
)

// ContactRow 复制联系人时的一行
type ContactRow struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Notes     string `json:"notes"`
}

// isDuplicate 名相同，且姓、电话或邮箱之一非空且相同
func (r *ContactRow) isDuplicate(d *model.DonorModel) bool {
	if d.Firstname != r.Firstname {
		return false
	}
	return (d.Lastname != "" && d.Lastname == r.Lastname) ||
		(d.Phone != "" && d.Phone == r.Phone) ||
		(d.Email != "" && d.Email == r.Email)
}

// MergeContacts 合并相邻的重复联系人。
// donors 需按 firstname, lastname, added 倒序排列；只比较相邻的行，
// 不相邻的重复项不会被合并。
func MergeContacts(donors []model.DonorModel, notesLimit int) []ContactRow {
	rows := make([]ContactRow, 0, len(donors))
	for i := range donors {
		d := &donors[i]
		if n := len(rows); n > 0 && rows[n-1].isDuplicate(d) {
			last := &rows[n-1]
			if last.Lastname == "" {
				last.Lastname = d.Lastname
			}
			if last.Phone == "" {
				last.Phone = d.Phone
			}
			if last.Email == "" {
				last.Email = d.Email
			}
			last.Notes = truncate(joinNotes(last.Notes, d.Notes), notesLimit)
			continue
		}
		rows = append(rows, ContactRow{
			Firstname: d.Firstname,
			Lastname:  d.Lastname,
			Phone:     d.Phone,
			Email:     d.Email,
			Notes:     truncate(d.Notes, notesLimit),
		})
	}
	return rows
}

func joinNotes(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// truncate 按字符截断
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
