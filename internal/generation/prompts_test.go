package generation

import (
	"strings"
	"testing"
)

func TestLanguageName(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"id", "Indonesian"},
		{"zh-CN", "Chinese"},
		{"ja_JP", "Japanese"},
		{"", "English"},
		{"xx", "English"},
	}
	for _, tc := range tests {
		if got := languageName(tc.locale); got != tc.want {
			t.Errorf("languageName(%q) = %q, want %q", tc.locale, got, tc.want)
		}
	}
}

func TestScriptSystemPromptCarriesLanguage(t *testing.T) {
	if p := scriptSystemPrompt("zh"); !strings.Contains(p, "Chinese") {
		t.Errorf("prompt = %q", p)
	}
}

func TestSessionNameTruncates(t *testing.T) {
	long := strings.Repeat("推荐这款耳机", 20)
	name := sessionName(long)
	if got := len([]rune(name)); got != 40 {
		t.Errorf("name length = %d runes", got)
	}
	if sessionName("   ") != "New conversation" {
		t.Errorf("blank prompt name = %q", sessionName("   "))
	}
}
