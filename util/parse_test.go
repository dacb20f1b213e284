package util

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"10MB", 10 << 20},
		{"512KB", 512 << 10},
		{"2GB", 2 << 30},
		{"1024", 1024},
		{"64B", 64},
		{"  1 MB ", 1 << 20},
		{"10mb", 10 << 20},
		{"", 7},
		{"lots", 7},
		{"-1MB", 7},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseSize(tc.input, 7); got != tc.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input   string
		visible int
		want    string
	}{
		{"dev-secret-key-change-in-production", 4, "dev-***"},
		{"abc", 4, "***"},
		{"abcd", 4, "***"},
		{"", 2, "***"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := MaskSecret(tc.input, tc.visible); got != tc.want {
				t.Errorf("MaskSecret(%q, %d) = %q, want %q", tc.input, tc.visible, got, tc.want)
			}
		})
	}
}
