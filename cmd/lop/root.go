// lop provisions the filebrowser binary and routes PDF-to-markdown
// conversion to a local accelerator or a remote olmOCR API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yharby/langflow-ollama-pixi/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	debug      bool
}

// cfg is loaded once before any subcommand runs and never re-read.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "lop",
	Short: "Provision filebrowser and convert PDFs to markdown via olmOCR",
	Long: "lop installs and runs the filebrowser binary for the current platform,\n" +
		"and converts PDF documents to markdown through a local accelerator\n" +
		"or a remote OpenAI-compatible olmOCR endpoint.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if rootFlags.debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}

		var err error
		cfg, err = config.Load(rootFlags.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "lop.yml", "Path to the lop config file")
	pf.BoolVar(&rootFlags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
