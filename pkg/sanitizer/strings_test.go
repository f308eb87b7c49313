package sanitizer

import "testing"

func TestNormalizeFreeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "projector needed", "projector needed"},
		{"surrounding whitespace", "  team offsite  ", "team offsite"},
		{"internal runs", "whiteboard\n\nand  markers\t please", "whiteboard and markers please"},
		{"control characters stripped", "quiet\x00 room\x1b", "quiet room"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFreeText(tt.input); got != tt.expected {
				t.Errorf("NormalizeFreeText(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
			if again := NormalizeFreeText(tt.expected); again != tt.expected {
				t.Errorf("NormalizeFreeText is not idempotent for %q", tt.input)
			}
		})
	}
}
