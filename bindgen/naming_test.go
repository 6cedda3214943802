package bindgen

import "testing"

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"HasPrefix", "has_prefix"},
		{"ParseURL", "parse_url"},
		{"URLPath", "url_path"},
		{"MaxInt64", "max_int64"},
		{"String", "string"},
		{"ID", "id"},
		{"x", "x"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := SnakeCase(tc.input); got != tc.want {
			t.Errorf("SnakeCase(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"strings", "go::strings"},
		{"encoding/json", "go::encoding::json"},
		{"gopkg.in/yaml.v3", "go::gopkg_in::yaml_v3"},
		{"github.com/a/go-lib", "go::github_com::a::go_lib"},
	}
	for _, tc := range tests {
		if got := ModuleName(tc.input); got != tc.want {
			t.Errorf("ModuleName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestConstantAndVarNames(t *testing.T) {
	if got := ConstantName("MaxRune"); got != "MAX_RUNE" {
		t.Errorf("ConstantName = %q", got)
	}
	if got := VarName("go-yaml"); got != "GoYaml" {
		t.Errorf("VarName = %q", got)
	}
}
