package cmd

import (
	"reflect"
	"testing"
)

func TestParseAllocations(t *testing.T) {
	tests := []struct {
		in      string
		want    map[string]float64
		wantErr bool
	}{
		{"", nil, false},
		{"d1=60, d2=40", map[string]float64{"d1": 60, "d2": 40}, false},
		{"d1=30,d1=20", map[string]float64{"d1": 50}, false},
		{"d1=70,d2=40", nil, true},
		{"d1=-5", nil, true},
		{"d1", nil, true},
		{"=50", nil, true},
		{"d1=half", nil, true},
	}
	for _, tt := range tests {
		got, err := parseAllocations(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseAllocations(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAllocations(%q) error = %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseAllocations(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"a, b ,,c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := splitTags(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitTags(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
