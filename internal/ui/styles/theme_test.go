// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/muesli/termenv"
)

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		profile termenv.Profile
		dark    bool
		want    string
	}{
		{termenv.Ascii, true, "notty"},
		{termenv.TrueColor, true, "dark"},
		{termenv.ANSI256, false, "light"},
	}
	for _, tt := range tests {
		th := &Theme{ColorProfile: tt.profile, IsDark: tt.dark}
		if got := th.GlamourStyle(); got != tt.want {
			t.Errorf("GlamourStyle(%v, dark=%v) = %q, want %q", tt.profile, tt.dark, got, tt.want)
		}
	}
}

func TestNewTheme_SetSize(t *testing.T) {
	th := NewTheme()
	th.SetSize(120, 40)
	if th.Width != 120 || th.Height != 40 {
		t.Errorf("SetSize: got %dx%d, want 120x40", th.Width, th.Height)
	}
	if th.GhostText.Render("x") == "" {
		t.Error("GhostText style renders nothing")
	}
}
