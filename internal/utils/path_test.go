package utils

import "testing"

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parts    []string
		expected string
	}{
		{nil, "/"},
		{[]string{"/"}, "/"},
		{[]string{"/CI", "T1"}, "/CI/T1"},
		{[]string{"/CI/", "/T1/"}, "/CI/T1"},
		{[]string{"", "CI", "", "report.pdf"}, "/CI/report.pdf"},
		{[]string{"/Sites/ops/documentLibrary", "T1", "a.txt"}, "/Sites/ops/documentLibrary/T1/a.txt"},
	}

	for _, tt := range tests {
		if got := JoinPath(tt.parts...); got != tt.expected {
			t.Errorf("JoinPath(%q) = %q, want %q", tt.parts, got, tt.expected)
		}
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		name   string
	}{
		{"/", "/", ""},
		{"", "/", ""},
		{"/CI", "/", "CI"},
		{"/CI/T1", "/CI", "T1"},
		{"CI/T1/report.pdf/", "/CI/T1", "report.pdf"},
	}

	for _, tt := range tests {
		parent, name := SplitPath(tt.path)
		if parent != tt.parent || name != tt.name {
			t.Errorf("SplitPath(%q) = (%q, %q), want (%q, %q)", tt.path, parent, name, tt.parent, tt.name)
		}
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		path, root string
		expected   bool
	}{
		{"/CI/T1", "/CI", true},
		{"/CI", "/CI", true},
		{"/CIX", "/CI", false},
		{"/anything", "/", true},
		{"/CI", "/CI/T1", false},
	}

	for _, tt := range tests {
		if got := IsWithin(tt.path, tt.root); got != tt.expected {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.path, tt.root, got, tt.expected)
		}
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.pdf", true},
		{"T1", true},
		{"..hidden", true},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
	}

	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHasDotSegment(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/CI", false},
		{"/CI/..hidden", false},
		{"/CI/..", true},
		{"/CI/../Sites", true},
		{"./CI", true},
		{"/", false},
	}

	for _, tt := range tests {
		if got := HasDotSegment(tt.path); got != tt.want {
			t.Errorf("HasDotSegment(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
