package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"redistrict/pkg/domain"
)

func TestLabelAllocator(t *testing.T) {
	tests := []struct {
		name    string
		present []domain.District
		want    []domain.District
	}{
		{
			name:    "numeric continues after max",
			present: []domain.District{"1", "2", "5"},
			want:    []domain.District{"6", "7", "8"},
		},
		{
			name:    "numeric with leading zeros",
			present: []domain.District{"01", "02"},
			want:    []domain.District{"3", "4"},
		},
		{
			name:    "non-numeric uses prefix",
			present: []domain.District{"north", "south"},
			want:    []domain.District{"D1", "D2"},
		},
		{
			name:    "mixed skips taken prefixed labels",
			present: []domain.District{"1", "D1", "D3"},
			want:    []domain.District{"D2", "D4", "D5"},
		},
		{
			name:    "no labels",
			present: nil,
			want:    []domain.District{"1", "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewLabelAllocator(tt.present)

			var got []domain.District
			for range tt.want {
				d := a.Peek()
				assert.Equal(t, d, a.Peek(), "peek must not reserve")
				a.Commit(d)
				got = append(got, d)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
