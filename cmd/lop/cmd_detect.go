package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yharby/langflow-ollama-pixi/internal/backend"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Probe the host and report which conversion backend would be used",
	RunE:  runDetect,
}

func runDetect(cmd *cobra.Command, _ []string) error {
	decision := backend.NewDetector().Detect(cmd.Context(), cfg.ServerURL, cfg.APIKey)
	backend.Summary(cmd.OutOrStdout(), decision)

	if decision.Kind == backend.Unconfigured {
		printUnconfiguredHelp(cmd.OutOrStdout())
		os.Exit(2)
	}
	return nil
}

// printUnconfiguredHelp renders the Unconfigured decision as actionable
// guidance. Not an error path: the decision is a normal outcome the
// operator has to act on.
func printUnconfiguredHelp(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "No conversion backend is available. Configure one of the following:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Self-hosted vLLM server:")
	fmt.Fprintln(w, "   export OLMOCR_SERVER_URL=http://your-server:8000")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "2. Hosted provider (DeepInfra or compatible):")
	fmt.Fprintln(w, "   export OLMOCR_SERVER_URL=https://api.deepinfra.com/v1/openai")
	fmt.Fprintln(w, "   export OLMOCR_API_KEY=your-api-key")
	fmt.Fprintln(w, "   export OLMOCR_MODEL=allenai/olmOCR-7B-0825")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "3. Local GPU: install an NVIDIA accelerator with at least 15 GiB of memory.")
}
