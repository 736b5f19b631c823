package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"devctx/internal/config"
)

// TestRootCommand tests that the root command is properly configured
func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}
	if rootCmd.Use != "devctx" {
		t.Errorf("expected Use 'devctx', got %q", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Short description should not be empty")
	}
	if rootCmd.Version != Version {
		t.Errorf("expected Version %q, got %q", Version, rootCmd.Version)
	}
}

// TestAllCommandsRegistered verifies every user-facing command is
// attached to the root.
func TestAllCommandsRegistered(t *testing.T) {
	want := []string{
		"init", "start", "end", "note", "status", "list",
		"history", "resume", "summary", "doctor", "mcp-serve",
	}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

// TestCommandsHaveRunE verifies each leaf command actually executes
// something.
func TestCommandsHaveRunE(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		switch c.Name() {
		case "help", "completion":
			continue
		}
		if c.RunE == nil {
			t.Errorf("command %q has no RunE", c.Name())
		}
	}
}

// TestHistoryLimitFlag tests the history command flag defaults
func TestHistoryLimitFlag(t *testing.T) {
	flag := historyCmd.Flags().Lookup("limit")
	if flag == nil {
		t.Fatal("history should have a --limit flag")
	}
	if flag.DefValue != "5" {
		t.Errorf("expected default limit 5, got %q", flag.DefValue)
	}
	if flag.Shorthand != "l" {
		t.Errorf("expected shorthand 'l', got %q", flag.Shorthand)
	}
}

// TestInitNameFlag tests the init command flag configuration
func TestInitNameFlag(t *testing.T) {
	flag := initCmd.Flags().Lookup("name")
	if flag == nil {
		t.Fatal("init should have a --name flag")
	}
	if flag.Shorthand != "n" {
		t.Errorf("expected shorthand 'n', got %q", flag.Shorthand)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 100); got != "short" {
		t.Errorf("clip under limit: got %q", got)
	}

	long := strings.Repeat("é", 110)
	got := clip(long, 100)
	if !utf8.ValidString(got) {
		t.Fatalf("clip produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 100)+"..." {
		t.Errorf("clip over limit: got %q", got)
	}
}

func TestEmojiHelper(t *testing.T) {
	a := &app{cfg: config.Defaults()}
	if got := a.e("✅", "[OK]"); got != "✅" {
		t.Errorf("emoji enabled: got %q", got)
	}

	a.cfg.Display.Emoji = false
	if got := a.e("✅", "[OK]"); got != "[OK]" {
		t.Errorf("emoji disabled: got %q", got)
	}
}
