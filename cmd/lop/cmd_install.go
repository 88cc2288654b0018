package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yharby/langflow-ollama-pixi/internal/install"
	"github.com/yharby/langflow-ollama-pixi/internal/platform"
	"github.com/yharby/langflow-ollama-pixi/internal/release"
)

var installFlags struct {
	version string
	dir     string
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the filebrowser binary for this platform",
	RunE:  runInstall,
}

func init() {
	f := installCmd.Flags()
	f.StringVar(&installFlags.version, "version", release.Latest, "Release tag to install, or \"latest\"")
	f.StringVar(&installFlags.dir, "dir", "", "Install directory (default from config)")
}

func runInstall(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, err := ensureInstalled(ctx, installFlags.version, installDir())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "installed %s %s\n", rec.BinaryPath, rec.Version)
	return nil
}

func installDir() string {
	if installFlags.dir != "" {
		return installFlags.dir
	}
	return cfg.InstallDir
}

// ensureInstalled runs the full identify → resolve → install → verify
// chain. Resolution gets one retry when the failure is transient; every
// other error is terminal for the invocation.
func ensureInstalled(ctx context.Context, selector, dir string) (install.Record, error) {
	tag, err := platform.Identify()
	if err != nil {
		return install.Record{}, err
	}
	log.Info().Str("platform", tag.String()).Str("version", selector).Msg("resolving release")

	var resolverOpts []release.Option
	if cfg.ReleaseBaseURL != "" {
		resolverOpts = append(resolverOpts, release.WithBaseURL(cfg.ReleaseBaseURL))
	}
	resolver := release.NewResolver(resolverOpts...)

	artifact, err := resolver.Resolve(ctx, selector, tag)
	if errors.Is(err, release.ErrResolution) {
		log.Warn().Err(err).Msg("release index query failed, retrying once")
		artifact, err = resolver.Resolve(ctx, selector, tag)
	}
	if err != nil {
		return install.Record{}, err
	}

	installer := install.NewInstaller()
	rec, err := installer.Install(ctx, artifact, dir)
	if err != nil {
		return install.Record{}, err
	}

	if out, err := installer.Verify(ctx, rec.BinaryPath); err != nil {
		log.Warn().Err(err).Msg("installed binary failed the version probe")
	} else if out != "" {
		log.Debug().Str("output", out).Msg("binary verified")
	}
	return rec, nil
}
