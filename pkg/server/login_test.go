package server

import (
	"testing"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

func TestParseConnect(t *testing.T) {
	tests := []struct {
		in                      string
		command, user, password string
	}{
		{"connect Finn hunter2", "connect", "Finn", "hunter2"},
		{"CONNECT Finn hunter2", "connect", "Finn", "hunter2"},
		{"co Finn hunter2", "co", "Finn", "hunter2"},
		{`connect "Wandering Minstrel" lute`, "connect", "Wandering Minstrel", "lute"},
		{`connect "Finn" hunter2`, "connect", "Finn", "hunter2"},
		{`connect "Wandering Minstrel`, "connect", "Wandering Minstrel", ""},
		{"connect Finn", "connect", "Finn", ""},
		{"connect", "connect", "", ""},
		{"", "", "", ""},
		{"   ", "", "", ""},
		{"create Jake secret extra", "create", "Jake", "secret"},
	}
	for _, tt := range tests {
		command, user, password := ParseConnect(tt.in)
		if command != tt.command || user != tt.user || password != tt.password {
			t.Errorf("ParseConnect(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.in, command, user, password, tt.command, tt.user, tt.password)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	player := &gamedb.Object{Type: gamedb.TypePlayer, Name: "Finn"}

	if CheckPassword(player, "anything") {
		t.Error("a player with no stored hash must never authenticate")
	}

	if err := SetPassword(player, "hunter2", 4); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if !CheckPassword(player, "hunter2") {
		t.Error("the right password should verify")
	}
	if CheckPassword(player, "hunter3") {
		t.Error("a wrong password must not verify")
	}

	// An out-of-range cost clamps to the default rather than failing.
	if err := SetPassword(player, "hunter2", 99); err != nil {
		t.Fatalf("SetPassword with out-of-range cost: %v", err)
	}
	if !CheckPassword(player, "hunter2") {
		t.Error("the clamped-cost hash should still verify")
	}
}

func TestBadPlayerName(t *testing.T) {
	bad := []string{
		"X", "", "me", "HERE", "Home", "god",
		"two words", "semi;colon", "hash#tag", "star*name",
		"br[ackets]", "pct%name", "eq=name",
		"averyveryverylongplayernameover30chars",
	}
	for _, name := range bad {
		if !badPlayerName(name) {
			t.Errorf("badPlayerName(%q) = false, want true", name)
		}
	}
	good := []string{"Finn", "Jake", "xy", "Wandering-Minstrel", "O'Brien"}
	for _, name := range good {
		if badPlayerName(name) {
			t.Errorf("badPlayerName(%q) = true, want false", name)
		}
	}
}

func TestStripTelnet(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"look", "look"},
		{"", ""},
		{"\xff\xfb\x01look", "look"},
		{"lo\xff\xfd\x18ok", "look"},
		// Control characters ride along with the negotiation bytes.
		{"\xff\xfd\x18lo\x07ok", "look"},
		// A truncated negotiation at end of line is dropped, not echoed.
		{"look\xff", "look"},
		{"look\xff\xfb", "look"},
	}
	for _, tt := range tests {
		if got := stripTelnet(tt.in); got != tt.want {
			t.Errorf("stripTelnet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
