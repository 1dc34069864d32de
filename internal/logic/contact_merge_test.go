package logic

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/zekeo/sjfnw/internal/model"
)

func TestMergeContacts(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		donors []model.DonorModel
		want   []ContactRow
	}{
		{
			name: "same first and last name merge with unioned contact fields",
			donors: []model.DonorModel{
				{Firstname: "Ana", Lastname: "Lopez", Phone: "206-555-0100", Notes: "met at rally", Added: now},
				{Firstname: "Ana", Lastname: "Lopez", Email: "ana@example.org", Notes: "nurse", Added: now.Add(-time.Hour)},
			},
			want: []ContactRow{
				{Firstname: "Ana", Lastname: "Lopez", Phone: "206-555-0100", Email: "ana@example.org", Notes: "met at rally nurse"},
			},
		},
		{
			name: "matching phone merges and fills last name",
			donors: []model.DonorModel{
				{Firstname: "Bo", Phone: "555"},
				{Firstname: "Bo", Lastname: "Kim", Phone: "555"},
			},
			want: []ContactRow{{Firstname: "Bo", Lastname: "Kim", Phone: "555"}},
		},
		{
			name: "matching email merges",
			donors: []model.DonorModel{
				{Firstname: "Cy", Email: "cy@example.org"},
				{Firstname: "Cy", Lastname: "Ng", Email: "cy@example.org", Phone: "1"},
			},
			want: []ContactRow{{Firstname: "Cy", Lastname: "Ng", Email: "cy@example.org", Phone: "1"}},
		},
		{
			name: "blank fields never count as a match",
			donors: []model.DonorModel{
				{Firstname: "Di"},
				{Firstname: "Di"},
			},
			want: []ContactRow{{Firstname: "Di"}, {Firstname: "Di"}},
		},
		{
			name: "different first names stay separate",
			donors: []model.DonorModel{
				{Firstname: "Ed", Lastname: "Park"},
				{Firstname: "Eve", Lastname: "Park"},
			},
			want: []ContactRow{{Firstname: "Ed", Lastname: "Park"}, {Firstname: "Eve", Lastname: "Park"}},
		},
		{
			name: "non-adjacent duplicates are not merged",
			donors: []model.DonorModel{
				{Firstname: "Fay", Lastname: "Li", Email: "fay@example.org"},
				{Firstname: "Fay", Lastname: "Mo"},
				{Firstname: "Fay", Lastname: "Zed", Email: "fay@example.org"},
			},
			want: []ContactRow{
				{Firstname: "Fay", Lastname: "Li", Email: "fay@example.org"},
				{Firstname: "Fay", Lastname: "Mo"},
				{Firstname: "Fay", Lastname: "Zed", Email: "fay@example.org"},
			},
		},
		{
			name: "runs of three collapse into one row",
			donors: []model.DonorModel{
				{Firstname: "Gus", Lastname: "Ray", Notes: "a"},
				{Firstname: "Gus", Lastname: "Ray", Phone: "2", Notes: "b"},
				{Firstname: "Gus", Lastname: "Ray", Email: "g@example.org"},
			},
			want: []ContactRow{{Firstname: "Gus", Lastname: "Ray", Phone: "2", Email: "g@example.org", Notes: "a b"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeContacts(tt.donors, 253)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeContacts() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeContactsCapsNotes(t *testing.T) {
	donors := []model.DonorModel{
		{Firstname: "Hal", Lastname: "Oz", Notes: strings.Repeat("a", 200)},
		{Firstname: "Hal", Lastname: "Oz", Notes: strings.Repeat("b", 200)},
	}
	rows := MergeContacts(donors, 253)
	assert.Len(t, rows, 1)
	assert.Len(t, rows[0].Notes, 253)
	assert.True(t, strings.HasPrefix(rows[0].Notes, strings.Repeat("a", 200)+" b"))
}
