package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	original := version
	version = "1.2.3"
	defer func() { version = original }()

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if got := out.String(); !strings.Contains(got, "fixlore 1.2.3") {
		t.Errorf("version output = %q, want it to contain %q", got, "fixlore 1.2.3")
	}
}

func TestRootRegistersSubcommands(t *testing.T) {
	want := map[string]bool{
		"hints":   false,
		"index":   false,
		"search":  false,
		"show":    false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestIndexRequiresExactlyOneArg(t *testing.T) {
	if err := indexCmd.Args(indexCmd, []string{}); err == nil {
		t.Error("index must reject zero arguments")
	}
	if err := indexCmd.Args(indexCmd, []string{"a.ndjson", "b.ndjson"}); err == nil {
		t.Error("index must reject more than one argument")
	}
	if err := indexCmd.Args(indexCmd, []string{"a.ndjson"}); err != nil {
		t.Errorf("index rejected a single argument: %v", err)
	}
}
