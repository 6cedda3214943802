package manifest

import "testing"

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"models", "models"},
		{"my-app", "my_app"},
		{"my_app", "my_app"},
		{"myApp", "my_app"},
		{"Models", "models"},
		{"geo2D", "geo2_d"},
		{"", ""},
		{"foo--bar", "foo_bar"},
		{"_leading", "leading"},
		{"trailing-", "trailing"},
	}

	for _, tc := range tests {
		got := ToSnakeCase(tc.input)
		if got != tc.want {
			t.Errorf("ToSnakeCase(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestIsReservedPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   bool
	}{
		{"core", true},
		{"core::extra", true},
		{"vendor::core", false},
		{"geo", false},
	}
	for _, tc := range tests {
		if got := IsReservedPrefix(tc.prefix); got != tc.want {
			t.Errorf("IsReservedPrefix(%q) = %v, want %v", tc.prefix, got, tc.want)
		}
	}
}

func TestValidPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   bool
	}{
		{"geo", true},
		{"vendor::geo_2", true},
		{"", false},
		{"a::", false},
		{"::a", false},
		{"2d", false},
		{"my-lib", false},
	}
	for _, tc := range tests {
		if got := ValidPrefix(tc.prefix); got != tc.want {
			t.Errorf("ValidPrefix(%q) = %v, want %v", tc.prefix, got, tc.want)
		}
	}
}
