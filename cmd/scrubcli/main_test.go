package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"pii-scrubber/internal/config"
)

func TestReadInputFromArgFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "scrubcli-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := "Email me at jane@example.com, this is long enough to scrub."
	if _, err := f.WriteString(want); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := readInput([]string{f.Name()})
	if err != nil {
		t.Fatalf("readInput: %v", err)
	}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadInputMissingFile(t *testing.T) {
	if _, err := readInput([]string{"/nonexistent/path.txt"}); err == nil {
		t.Error("want error for missing file")
	}
}

func TestPrintJSONEncodesIndented(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("printJSON: %v", err)
	}
	if !strings.Contains(buf.String(), "\"hello\": \"world\"") {
		t.Errorf("unexpected output: %q", buf.String())
	}
	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}

func TestLoadConfigDefaultsWhenPathEmpty(t *testing.T) {
	cfg := loadConfig("")
	if cfg.Scrubber.Model == "" {
		t.Error("expected a non-empty default model")
	}
}

func TestLoadConfigFromExplicitPath(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "scrubber-config-*.json")
	if err != nil {
		t.Fatal(err)
	}
	data, marshalErr := json.Marshal(map[string]any{
		"scrubber": map[string]any{"model": "custom-model"},
	})
	if marshalErr != nil {
		t.Fatal(marshalErr)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(f.Name())
	if cfg.Scrubber.Model != "custom-model" {
		t.Errorf("Model: got %s, want custom-model", cfg.Scrubber.Model)
	}
}

func TestBuildScrubberWithLLMDisabled(t *testing.T) {
	cfg := &config.Config{Scrubber: config.Defaults()}
	cfg.Scrubber.EnableLLM = false

	s := buildScrubber(cfg)
	if s == nil {
		t.Fatal("buildScrubber returned nil")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	if !names["scrub"] || !names["test"] {
		t.Errorf("expected scrub and test subcommands, got %v", names)
	}
}

func TestScrubCommandEndToEndWithLLMDisabled(t *testing.T) {
	t.Setenv("ENABLE_LLM", "false")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"scrub", "--data-type", "transcript"})

	f, err := os.CreateTemp(t.TempDir(), "in-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("Email me at jane@example.com, long enough to scrub."); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	root.SetArgs([]string{"scrub", "--data-type", "transcript", f.Name()})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.String())
	}
	if _, ok := result["content"]; !ok {
		t.Errorf("missing content field: %s", out.String())
	}
	if _, ok := result["audit"]; !ok {
		t.Errorf("missing audit field: %s", out.String())
	}
}
