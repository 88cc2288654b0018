// Package launch prepares a working directory and runs the installed
// filebrowser binary as a child process.
package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/yharby/langflow-ollama-pixi/internal/file"
)

// runtimeConfigName is the file the binary reads from its working directory.
const runtimeConfigName = "config.yaml"

// Spec describes one launch of the managed binary.
type Spec struct {
	// BinaryPath is the executable to run.
	BinaryPath string
	// ConfigSource, when set, seeds the runtime config. An existing
	// config.yaml in WorkDir is never overwritten.
	ConfigSource string
	// WorkDir is the child's working directory. Empty means the current
	// directory.
	WorkDir string
	// DataDir is created before launch when absent. The binary keeps its
	// database there.
	DataDir string
	// Args are forwarded to the child verbatim.
	Args []string
}

// ExitStatus is the outcome of a finished child process.
type ExitStatus struct {
	Code int
	// Interrupted records that a termination signal reached the parent
	// while the child ran. An interrupted run counts as a clean stop.
	Interrupted bool
}

// Success reports whether the run should be treated as clean.
func (s ExitStatus) Success() bool { return s.Code == 0 || s.Interrupted }

// Option configures a Launcher.
type Option func(*Launcher)

// WithStdio redirects the child's standard streams.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(l *Launcher) {
		l.stdin = stdin
		l.stdout = stdout
		l.stderr = stderr
	}
}

// Launcher runs the binary with its working directory prepared.
type Launcher struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	signals chan os.Signal
}

// NewLauncher builds a Launcher that inherits the parent's streams.
func NewLauncher(opts ...Option) *Launcher {
	l := &Launcher{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// UseSignalChannel allows tests to inject termination signals instead of
// subscribing to the real ones. Intended for test setup only.
func (l *Launcher) UseSignalChannel(ch chan os.Signal) {
	l.signals = ch
}

// Run prepares the working directory, starts the child and waits for it.
// Termination signals received while the child runs are forwarded to it and
// the returned status carries Interrupted. The child's exit code is passed
// through without interpretation.
func (l *Launcher) Run(ctx context.Context, spec Spec) (ExitStatus, error) {
	if err := prepareWorkDir(spec); err != nil {
		return ExitStatus{}, err
	}

	cmd := exec.Command(spec.BinaryPath, spec.Args...)
	cmd.Dir = spec.WorkDir
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	if err := cmd.Start(); err != nil {
		return ExitStatus{}, fmt.Errorf("start %s: %w", spec.BinaryPath, err)
	}
	log.Info().
		Str("binary", spec.BinaryPath).
		Strs("args", spec.Args).
		Msg("child process started")

	sigCh := l.signals
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	interrupted := false
	done := ctx.Done()
	for {
		select {
		case sig := <-sigCh:
			interrupted = true
			log.Info().Str("signal", sig.String()).Msg("forwarding signal to child")
			_ = cmd.Process.Signal(sig)
		case <-done:
			interrupted = true
			done = nil
			_ = cmd.Process.Signal(syscall.SIGTERM)
		case waitErr := <-waitCh:
			return exitStatus(waitErr, interrupted)
		}
	}
}

func exitStatus(waitErr error, interrupted bool) (ExitStatus, error) {
	if waitErr == nil {
		return ExitStatus{Code: 0, Interrupted: interrupted}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode(), Interrupted: interrupted}, nil
	}
	return ExitStatus{}, fmt.Errorf("wait for child: %w", waitErr)
}

// prepareWorkDir creates the directories the binary expects and seeds its
// runtime config.
func prepareWorkDir(spec Spec) error {
	if spec.WorkDir != "" {
		if err := file.EnsureDir(spec.WorkDir); err != nil {
			return err
		}
	}
	if spec.DataDir != "" {
		if err := file.EnsureDir(spec.DataDir); err != nil {
			return err
		}
	}
	return seedRuntimeConfig(spec.ConfigSource, filepath.Join(spec.WorkDir, runtimeConfigName))
}

// seedRuntimeConfig copies the source config next to the binary's working
// directory. An operator-edited config already in place always wins.
func seedRuntimeConfig(source, target string) error {
	if _, err := os.Stat(target); err == nil {
		log.Debug().Str("path", target).Msg("runtime config present, keeping it")
		return nil
	}
	if source == "" {
		return nil
	}

	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open config source: %w", err)
	}
	defer func() { _ = in.Close() }()

	if err := file.CopyAtomic(target, in); err != nil {
		return fmt.Errorf("seed runtime config: %w", err)
	}
	log.Info().Str("from", source).Str("to", target).Msg("runtime config seeded")
	return nil
}
