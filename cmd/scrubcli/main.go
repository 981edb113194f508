// Command scrubcli is a thin command-line driver around the PII scrubbing
// pipeline, for one-shot use outside whatever service embeds the core
// package directly. It reads a file or stdin, runs Scrub, and prints the
// resulting {content, audit} as JSON.
//
// Usage:
//
//	scrubcli scrub --data-type transcript --strategy mask < session.txt
//	scrubcli scrub --data-type transcript notes.txt > redacted.json
//	scrubcli test
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pii-scrubber/internal/config"
	"pii-scrubber/internal/expense"
	"pii-scrubber/internal/llmcache"
	"pii-scrubber/internal/llmclient"
	"pii-scrubber/internal/logger"
	"pii-scrubber/internal/metrics"
	"pii-scrubber/internal/scrubber"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scrubcli",
		Short: "Hybrid PII detection and redaction pipeline",
		Long: "scrubcli drives the regex + LLM PII scrubbing pipeline from the command line:\n" +
			"it reads free-form text, runs Scrub, and prints the resulting {content, audit} JSON.",
	}
	root.AddCommand(newScrubCmd(), newTestCmd())
	return root
}

func newScrubCmd() *cobra.Command {
	var dataType, strategy, configPath string

	cmd := &cobra.Command{
		Use:   "scrub [file]",
		Short: "Scrub PII from a file (or stdin) and print {content, audit} as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args)
			if err != nil {
				return err
			}

			cfg := loadConfig(configPath)
			s := buildScrubber(cfg)

			var overlay *scrubber.Overlay
			if strategy != "" {
				overlay = &scrubber.Overlay{Strategy: &strategy}
			}

			result := s.Scrub(cmd.Context(), text, dataType, overlay)
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&dataType, "data-type", "transcript", "caller-supplied label for the scrubbed content")
	cmd.Flags().StringVar(&strategy, "strategy", "", "override the configured redaction strategy (replace|hash|mask|remove)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a scrubber-config.json (defaults to ./scrubber-config.json if present)")
	return cmd
}

func newTestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the scrubber against a synthetic sample covering every entity type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(configPath)
			s := buildScrubber(cfg)
			report := s.Test(cmd.Context())
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a scrubber-config.json")
	return cmd
}

func loadConfig(explicitPath string) *config.Config {
	if explicitPath == "" {
		return config.Load()
	}
	return config.LoadFrom(explicitPath)
}

func buildScrubber(cfg *config.Config) *scrubber.Scrubber {
	log := logger.New(logger.ModuleScrubber, cfg.LogLevel)
	m := metrics.New()
	cache := llmcache.New(cfg.CacheFile)
	tracker := expense.NewInMemoryTracker()

	var client llmclient.Client
	if cfg.Scrubber.EnableLLM {
		client = llmclient.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL)
	}

	return scrubber.New(cfg.Scrubber, client, tracker, cache, log, m)
}

func readInput(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0]) //nolint:gosec // G304: operator-supplied CLI argument, not untrusted network input
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
