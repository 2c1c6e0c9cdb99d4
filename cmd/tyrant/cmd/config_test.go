package cmd

import (
	"reflect"
	"testing"
)

func TestParseValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want interface{}
	}{
		{"true", true},
		{"false", false},
		{"1", 1},
		{"0", 0},
		{"7", 7},
		{"T", "T"},
		{"0.4", 0.4},
		{"fitness,sleep", []string{"fitness", "sleep"}},
		{"anthropic", "anthropic"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := parseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFlattenMap(t *testing.T) {
	t.Parallel()

	got := flattenMap("", map[string]interface{}{
		"tyrant": map[string]interface{}{
			"sass_level":  7,
			"focus_areas": []interface{}{"fitness", "sleep"},
		},
		"server": map[string]interface{}{"addr": ":3001"},
	})

	want := map[string]interface{}{
		"tyrant.sass_level":  7,
		"tyrant.focus_areas": "fitness, sleep",
		"server.addr":        ":3001",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flattenMap() = %v, want %v", got, want)
	}
}

func TestMask(t *testing.T) {
	t.Parallel()

	if got := mask("sk-abcdefghijkl"); got != "sk-a*******ijkl" {
		t.Errorf("mask() = %q", got)
	}
	if got := mask("short"); got != "*****" {
		t.Errorf("mask(short) = %q", got)
	}
}
