package cmd

import (
	"strings"
	"testing"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{"version", "history"}

	commands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		commands[cmd.Name()] = true
	}
	for _, name := range expected {
		if !commands[name] {
			t.Errorf("expected subcommand %q not found on root", name)
		}
	}
}

func TestRootCommand_HasFlags(t *testing.T) {
	expected := []string{
		"root", "force", "compile-c", "no-default", "keep", "no-world",
		"dry-run", "verbose", "acl", "no-acl", "username", "password",
		"module-home", "module-dir", "python", "product", "product-file",
	}
	for _, name := range expected {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s not found", name)
		}
	}
}

func TestLoadOverridesFlagParsing(t *testing.T) {
	flagProducts = []string{"mything=https://github.com/elsewhere/mything"}
	flagProductFile = ""
	defer func() { flagProducts = nil }()

	overrides, err := loadOverrides()
	if err != nil {
		t.Fatalf("loadOverrides: %v", err)
	}
	if overrides["mything"] != "https://github.com/elsewhere/mything" {
		t.Errorf("overrides = %v", overrides)
	}
}

func TestLoadOverridesRejectsBadEntry(t *testing.T) {
	flagProducts = []string{"missing-separator"}
	flagProductFile = ""
	defer func() { flagProducts = nil }()

	if _, err := loadOverrides(); err == nil {
		t.Error("expected error for entry without '='")
	} else if !strings.Contains(err.Error(), "name=url") {
		t.Errorf("unhelpful error: %v", err)
	}
}

func TestLedgerPath(t *testing.T) {
	got := ledgerPath("/aur/root")
	if got != "/aur/root/.aurinstall/ledger.db" {
		t.Errorf("ledgerPath = %q", got)
	}
}
