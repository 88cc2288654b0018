// Package backend decides where conversion work runs and implements the
// two conversion backends.
//
// The decision is a fixed table over two independent facts: whether the
// host has a usable accelerator and whether a remote endpoint is
// configured. A configured endpoint always wins, so hardware coming and
// going never silently changes where documents are sent. Both facts absent
// is not an error, it is the Unconfigured decision the caller must render
// as configuration guidance.
package backend

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// UnconfiguredReason is the reason attached to the Unconfigured decision.
const UnconfiguredReason = "no accelerator detected and no server URL configured"

const (
	probeTimeout = 5 * time.Second

	// olmOCR documents 15 GiB of accelerator memory as the working minimum.
	minVRAMMiB = 15 * 1024
)

// Kind enumerates the routing outcomes.
type Kind int

const (
	Unconfigured Kind = iota
	LocalAccelerated
	RemoteAPI
)

func (k Kind) String() string {
	switch k {
	case LocalAccelerated:
		return "local-accelerated"
	case RemoteAPI:
		return "remote-api"
	default:
		return "unconfigured"
	}
}

// Device describes a detected accelerator.
type Device struct {
	Name    string
	VRAMMiB int
	Count   int
}

// Decision is the routing outcome for one invocation. It is produced fresh
// per call and never cached: hardware and environment may change between runs.
type Decision struct {
	Kind Kind
	// Device holds the probed accelerator even when the decision is
	// RemoteAPI, so summaries can show what the host has.
	Device     Device
	Endpoint   string
	Credential string
	Reason     string
}

// Output is one converted document as produced by a backend.
type Output struct {
	Markdown string
	Metadata map[string]string
}

// ProbeFunc reports the host accelerator, if any.
type ProbeFunc func(ctx context.Context) (Device, bool)

// Detector applies the routing table.
type Detector struct {
	probe ProbeFunc
}

// NewDetector builds a Detector backed by the nvidia-smi probe.
func NewDetector() *Detector {
	return &Detector{probe: probeNvidia}
}

// UseProbe allows tests to inject a fake accelerator probe.
// Intended for test setup only.
func (d *Detector) UseProbe(fn ProbeFunc) {
	if fn != nil {
		d.probe = fn
	}
}

// Detect probes the host and combines the result with the configured
// endpoint into a Decision.
func (d *Detector) Detect(ctx context.Context, endpoint, credential string) Decision {
	device, hasAccelerator := d.probe(ctx)
	if hasAccelerator {
		log.Debug().
			Str("name", device.Name).
			Int("vram_mib", device.VRAMMiB).
			Int("count", device.Count).
			Msg("local accelerator detected")
		if device.VRAMMiB > 0 && device.VRAMMiB < minVRAMMiB {
			log.Warn().
				Int("vram_mib", device.VRAMMiB).
				Msg("accelerator has less than the recommended 15 GiB of memory")
		}
	}

	endpoint = strings.TrimSpace(endpoint)
	switch {
	case endpoint != "":
		if hasAccelerator {
			log.Debug().Msg("endpoint configured, remote API takes precedence over local accelerator")
		}
		if strings.TrimSpace(credential) == "" {
			log.Warn().
				Str("endpoint", endpoint).
				Msg("no credential configured, assuming unauthenticated endpoint")
		}
		return Decision{Kind: RemoteAPI, Device: device, Endpoint: endpoint, Credential: credential}
	case hasAccelerator:
		return Decision{Kind: LocalAccelerated, Device: device}
	default:
		return Decision{Kind: Unconfigured, Reason: UnconfiguredReason}
	}
}

// Summary renders the detection outcome as a block for the terminal.
func Summary(w io.Writer, d Decision) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Backend Detection Summary")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Platform: %s %s\n", runtime.GOOS, runtime.GOARCH)
	if d.Device.Name != "" {
		fmt.Fprintf(w, "Accelerator: %s (%d MiB, count %d)\n", d.Device.Name, d.Device.VRAMMiB, d.Device.Count)
	} else {
		fmt.Fprintln(w, "Accelerator: none")
	}
	if d.Endpoint != "" {
		fmt.Fprintf(w, "Remote endpoint: %s\n", d.Endpoint)
	} else {
		fmt.Fprintln(w, "Remote endpoint: not configured")
	}
	fmt.Fprintf(w, "Decision: %s\n", d.Kind)
	if d.Kind == Unconfigured {
		fmt.Fprintf(w, "Reason: %s\n", d.Reason)
	}
	fmt.Fprintln(w, rule)
}

// probeNvidia asks nvidia-smi for the installed devices. Any failure,
// including the tool being absent, means no accelerator.
func probeNvidia(ctx context.Context) (Device, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx,
		"nvidia-smi", "--query-gpu=name,memory.total", "--format=csv,noheader,nounits",
	).Output()
	if err != nil {
		log.Debug().Err(err).Msg("accelerator probe found nothing")
		return Device{}, false
	}
	return parseNvidiaQuery(string(out))
}

// parseNvidiaQuery reads "name, memory" CSV lines, one per device.
func parseNvidiaQuery(out string) (Device, bool) {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return Device{}, false
	}

	fields := strings.SplitN(lines[0], ",", 2)
	device := Device{Name: strings.TrimSpace(fields[0]), Count: len(lines)}
	if len(fields) == 2 {
		if vram, err := strconv.Atoi(strings.TrimSpace(fields[1])); err == nil {
			device.VRAMMiB = vram
		}
	}
	return device, device.Name != ""
}
