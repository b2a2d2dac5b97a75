package main

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	t.Parallel()

	day, err := parseDay("2024-05-15", time.UTC)
	if err != nil {
		t.Fatalf("parseDay: %v", err)
	}
	if day.Format("Mon, 02 Jan 06") != "Wed, 15 May 24" {
		t.Fatalf("unexpected day: %s", day)
	}

	zero, err := parseDay("", time.UTC)
	if err != nil || !zero.IsZero() {
		t.Fatalf("empty date should be zero, got %s %v", zero, err)
	}

	if _, err := parseDay("15/05/2024", time.UTC); err == nil {
		t.Fatal("expected error for bad layout")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"run", "schedule"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("missing subcommand %s: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatal("missing --config flag")
	}
}
