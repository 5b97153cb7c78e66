package app

import (
	"strings"
	"testing"

	"github.com/rivo/tview"
)

func TestColoredEscapesText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain", "Message sent."},
		{"colour tag", "not allowed [red]0x7C5d[-]"},
		{"region tag", `decrypt ["0x783a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := colored("red", tt.text)
			want := "[red]" + tview.Escape(tt.text) + "[-]"
			if got != want {
				t.Errorf("colored() = %q, want %q", got, want)
			}
			if tt.text != tview.Escape(tt.text) && strings.Contains(got, tt.text) {
				t.Errorf("colored() kept %q unescaped", tt.text)
			}
		})
	}
}
