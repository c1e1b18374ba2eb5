package sanitize

import (
	"strings"
	"testing"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "normal filename",
			input:    "document.pdf",
			expected: "document.pdf",
		},
		{
			name:     "filename with path traversal",
			input:    "../../../etc/passwd",
			expected: "etcpasswd",
		},
		{
			name:     "filename with null byte",
			input:    "file\x00.txt",
			expected: "file.txt",
		},
		{
			name:     "filename with newlines",
			input:    "file\nname.txt",
			expected: "filename.txt",
		},
		{
			name:     "filename with quotes",
			input:    `file"name.txt`,
			expected: "filename.txt",
		},
		{
			name:     "backslashes stripped",
			input:    `..\..\windows\system32`,
			expected: "windowssystem32",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "download",
		},
		{
			name:     "only dots",
			input:    "...",
			expected: "download",
		},
		{
			name:     "overlong name capped",
			input:    strings.Repeat("a", 300) + ".txt",
			expected: strings.Repeat("a", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.input); got != tt.expected {
				t.Errorf("Filename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestForHeader(t *testing.T) {
	if got := ForHeader("résumé.pdf"); got != "r_sum_.pdf" {
		t.Errorf("ForHeader non-ASCII = %q", got)
	}
	if got := ForHeader("plain.txt"); got != "plain.txt" {
		t.Errorf("ForHeader plain = %q", got)
	}
}
