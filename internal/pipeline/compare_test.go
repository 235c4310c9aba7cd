package pipeline

import (
	"encoding/json"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b interface{}
		want int
	}{
		{nil, nil, 0},
		{nil, false, -1},
		{false, true, -1},
		{true, 0, -1},
		{int64(1), 1.0, 0},
		{2, 1.5, 1},
		{json.Number("3"), 4, -1},
		{10, "1", -1},
		{"a", "b", -1},
		{"b", "a", 1},
		{"x", []int{1}, -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%#v, %#v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Compare(tt.b, tt.a); got != -tt.want {
			t.Errorf("Compare(%#v, %#v) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}
