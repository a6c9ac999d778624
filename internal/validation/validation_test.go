package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"mom@example.com", false},
		{"grandma.smith+family@mail.co.uk", false},
		{"", true},
		{"not-an-email", true},
		{"missing@tld", true},
		{"@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Error("short password accepted")
	}
	if err := ValidatePassword(""); err == nil {
		t.Error("empty password accepted")
	}
	if err := ValidatePassword("longenough1"); err != nil {
		t.Errorf("valid password rejected: %v", err)
	}
}

func TestValidateMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		wantErr bool
	}{
		{"normal message", "hi grandma!", 2000, false},
		{"empty", "", 2000, true},
		{"whitespace only", "   \n\t ", 2000, true},
		{"at limit", strings.Repeat("a", 2000), 2000, false},
		{"over limit", strings.Repeat("a", 2001), 2000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageContent(tt.content, tt.maxLen)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessageContent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
