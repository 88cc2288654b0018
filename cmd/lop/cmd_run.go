package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yharby/langflow-ollama-pixi/internal/install"
	"github.com/yharby/langflow-ollama-pixi/internal/launch"
	"github.com/yharby/langflow-ollama-pixi/internal/platform"
	"github.com/yharby/langflow-ollama-pixi/internal/release"
)

var runFlags struct {
	dir          string
	configSource string
	dataDir      string
}

var runCmd = &cobra.Command{
	Use:   "run [-- args...]",
	Short: "Run the installed filebrowser binary, installing it first if missing",
	Long: "Run starts the managed filebrowser binary, forwarding everything after\n" +
		"\"--\" to it verbatim. A missing binary is installed at its latest release\n" +
		"first. The process exits with the child's exit code.",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.dir, "dir", "", "Install directory (default from config)")
	f.StringVar(&runFlags.configSource, "config-source", "config.yaml", "Config seeded into the working directory on first run")
	f.StringVar(&runFlags.dataDir, "data-dir", "", "Data directory for the binary's database (default <install dir>)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir := runFlags.dir
	if dir == "" {
		dir = cfg.InstallDir
	}

	tag, err := platform.Identify()
	if err != nil {
		return err
	}

	rec, ok := install.Installed(dir, tag)
	if !ok {
		log.Info().Str("dir", dir).Msg("binary not installed, installing latest")
		rec, err = ensureInstalled(ctx, release.Latest, dir)
		if err != nil {
			return err
		}
	}

	dataDir := runFlags.dataDir
	if dataDir == "" {
		dataDir = dir
	}

	// Seed only when no runtime config exists; a missing source file just
	// means the binary starts with its own defaults.
	configSource := runFlags.configSource
	if _, err := os.Stat(configSource); err != nil {
		log.Debug().Str("path", configSource).Msg("no config source, child starts unseeded")
		configSource = ""
	}

	status, err := launch.NewLauncher().Run(ctx, launch.Spec{
		BinaryPath:   rec.BinaryPath,
		ConfigSource: configSource,
		DataDir:      dataDir,
		Args:         args,
	})
	if err != nil {
		return err
	}
	if !status.Success() {
		log.Warn().Int("code", status.Code).Msg("child exited with non-zero status")
		os.Exit(status.Code)
	}
	return nil
}
