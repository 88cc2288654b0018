package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yharby/langflow-ollama-pixi/internal/backend"
	"github.com/yharby/langflow-ollama-pixi/internal/convert"
)

var convertFlags struct {
	output  string
	timeout int
	workers int
}

var convertCmd = &cobra.Command{
	Use:   "convert [patterns...]",
	Short: "Convert PDF documents to markdown through the detected backend",
	Long: "Convert detects the conversion backend, expands the given glob patterns\n" +
		"(default: every PDF in the configured input directory) and converts each\n" +
		"document, appending per-document results to a JSONL log in the workspace.",
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.output, "output", "o", "", "Write combined markdown of all successful conversions to this file")
	f.IntVar(&convertFlags.timeout, "timeout", 0, "Per-document timeout in seconds (default from config)")
	f.IntVar(&convertFlags.workers, "workers", 0, "Concurrent conversions for the remote backend (default from config)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	decision := backend.NewDetector().Detect(ctx, cfg.ServerURL, cfg.APIKey)
	if decision.Kind == backend.Unconfigured {
		backend.Summary(cmd.OutOrStdout(), decision)
		printUnconfiguredHelp(cmd.OutOrStdout())
		os.Exit(2)
	}

	inputs, err := convert.CollectInputs(args, cfg.PDFDir)
	if err != nil {
		return err
	}

	converter, workers := buildConverter(decision)
	log.Info().
		Str("backend", decision.Kind.String()).
		Int("documents", len(inputs)).
		Int("workers", workers).
		Msg("starting conversion batch")

	timeout := cfg.Timeout()
	if convertFlags.timeout > 0 {
		timeout = time.Duration(convertFlags.timeout) * time.Second
	}
	jobs := make([]convert.Job, len(inputs))
	for i, input := range inputs {
		jobs[i] = convert.Job{InputPath: input, Timeout: timeout}
	}

	batchID := uuid.NewString()
	logPath := filepath.Join(cfg.Workspace, "results", batchID+".jsonl")
	resultLog, err := convert.OpenResultLog(logPath)
	if err != nil {
		return err
	}
	defer func() { _ = resultLog.Close() }()

	results := convert.NewDispatcher(converter, workers, resultLog).Dispatch(ctx, jobs)

	succeeded := 0
	for _, res := range results {
		if res.Succeeded() {
			succeeded++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "converted %d/%d documents, results in %s\n",
		succeeded, len(results), logPath)

	if convertFlags.output != "" && succeeded > 0 {
		if err := writeCombinedFile(convertFlags.output, results); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "combined markdown written to %s\n", convertFlags.output)
	}

	if succeeded == 0 {
		return fmt.Errorf("all %d conversions failed, see %s", len(results), logPath)
	}
	return nil
}

// buildConverter maps the decision to a converter and its concurrency cap.
// The accelerator serializes local inference, so the local backend always
// runs one job at a time.
func buildConverter(decision backend.Decision) (convert.Converter, int) {
	if decision.Kind == backend.RemoteAPI {
		workers := cfg.Workers
		if convertFlags.workers > 0 {
			workers = convertFlags.workers
		}
		return backend.NewRemote(decision.Endpoint, decision.Credential, cfg.Model), workers
	}
	return backend.NewLocal(cfg.Workspace), 1
}

func writeCombinedFile(path string, results []convert.Result) error {
	f, err := os.Create(path) //nolint:gosec // output path comes from the operator's flag
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := convert.WriteCombined(f, results); err != nil {
		return err
	}
	return nil
}
