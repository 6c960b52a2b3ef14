package sliceutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type alias struct {
	Code string
	Name string
}

func byCode(a alias) string { return a.Code }

func TestDeduplicate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		items []alias
		want  []alias
	}{
		{
			name:  "no duplicates",
			items: []alias{{"CS-A1110", "Programming 1"}, {"CS-A1120", "Programming 2"}},
			want:  []alias{{"CS-A1110", "Programming 1"}, {"CS-A1120", "Programming 2"}},
		},
		{
			name: "first occurrence wins",
			items: []alias{
				{"CS-A1110", "Programming 1"},
				{"ELEC-C1320", "Robotics"},
				{"CS-A1110", "Programming 1 (summer)"},
			},
			want: []alias{{"CS-A1110", "Programming 1"}, {"ELEC-C1320", "Robotics"}},
		},
		{
			name:  "all the same",
			items: []alias{{"X", "a"}, {"X", "b"}, {"X", "c"}},
			want:  []alias{{"X", "a"}},
		},
		{
			name:  "empty",
			items: []alias{},
			want:  []alias{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Deduplicate(tt.items, byCode))
		})
	}
}

func TestDeduplicate_NilStaysNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Deduplicate[alias](nil, byCode))
}

func TestDeduplicate_KeepsInputIntact(t *testing.T) {
	t.Parallel()
	items := []alias{{"A", "1"}, {"A", "2"}}
	_ = Deduplicate(items, byCode)
	assert.Equal(t, []alias{{"A", "1"}, {"A", "2"}}, items)
}
