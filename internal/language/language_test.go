package language

import (
	"testing"
)

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// 2-letter codes pass through
		{"en", "en"},
		{"EN", "en"},
		{"hi", "hi"},
		// 3-letter codes convert
		{"eng", "en"},
		{"hin", "hi"},
		{"fra", "fr"},
		{"fre", "fr"},
		{"tam", "ta"},
		{"tel", "te"},
		{"chi", "zh"},
		// Word forms
		{"english", "en"},
		{"Hindi", "hi"},
		{"MARATHI", "mr"},
		// Unknown 2-letter passes through
		{"xy", "xy"},
		// Unknown 3-letter returns empty
		{"xyz", ""},
		// Empty
		{"", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ToISO2(tt.input)
			if result != tt.expected {
				t.Errorf("ToISO2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"eng", "English"},
		{"hi", "Hindi"},
		{"hin", "Hindi"},
		{"hi-IN", "Hindi"},
		{"ta", "Tamil"},
		{"bn", "Bengali"},
		{"zh", "Chinese"},
		{"chi", "Chinese"},
		{"", "Unknown"},
		{"xyz", "XYZ"},
		{"hindi", "Hindi"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := DisplayName(tt.input)
			if result != tt.expected {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
