// Package platform maps the running machine onto the canonical (os, arch)
// tag used to name filebrowser release artifacts.
package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// OS is a canonical operating system name as it appears in artifact names.
type OS string

const (
	Darwin  OS = "darwin"
	Linux   OS = "linux"
	Windows OS = "windows"
	FreeBSD OS = "freebsd"
)

// Arch is a canonical CPU architecture name as it appears in artifact names.
type Arch string

const (
	AMD64 Arch = "amd64"
	ARM64 Arch = "arm64"
	ARMv7 Arch = "armv7"
	ARMv6 Arch = "armv6"
)

// ErrUnsupported marks an OS or architecture outside the release matrix.
// It is terminal: there is no fallback guess.
var ErrUnsupported = errors.New("unsupported platform")

// Tag is the immutable platform pair derived once per process.
type Tag struct {
	OS   OS
	Arch Arch
}

func (t Tag) String() string {
	return string(t.OS) + "/" + string(t.Arch)
}

// Identifier derives the Tag for the host. The os/arch sources are func
// fields so tests can exercise every supported and unsupported pair.
type Identifier struct {
	goos   func() string
	goarch func() string
}

// NewIdentifier creates an Identifier backed by the Go runtime.
func NewIdentifier() *Identifier {
	return &Identifier{
		goos:   func() string { return runtime.GOOS },
		goarch: func() string { return runtime.GOARCH },
	}
}

// Identify returns the canonical platform tag for the host, or
// ErrUnsupported when either dimension is outside the supported set.
func (i *Identifier) Identify() (Tag, error) {
	osName, ok := normalizeOS(i.goos())
	if !ok {
		return Tag{}, fmt.Errorf("%w: operating system %q", ErrUnsupported, i.goos())
	}
	arch, ok := normalizeArch(i.goarch())
	if !ok {
		return Tag{}, fmt.Errorf("%w: architecture %q", ErrUnsupported, i.goarch())
	}
	return Tag{OS: osName, Arch: arch}, nil
}

// Identify derives the host tag using the Go runtime.
func Identify() (Tag, error) {
	return NewIdentifier().Identify()
}

func normalizeOS(name string) (OS, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "darwin":
		return Darwin, true
	case "linux":
		return Linux, true
	case "windows":
		return Windows, true
	case "freebsd":
		return FreeBSD, true
	default:
		return "", false
	}
}

// normalizeArch accepts both Go arch names and kernel machine aliases so a
// tag can be derived from either source. Go reports 32-bit ARM as plain
// "arm"; release binaries for it are built with GOARM=7, so that maps to
// armv7.
func normalizeArch(name string) (Arch, bool) {
	machine := strings.ToLower(strings.TrimSpace(name))
	switch machine {
	case "amd64", "x86_64":
		return AMD64, true
	case "arm64", "aarch64":
		return ARM64, true
	case "arm":
		return ARMv7, true
	}
	switch {
	case strings.HasPrefix(machine, "armv7"):
		return ARMv7, true
	case strings.HasPrefix(machine, "armv6"):
		return ARMv6, true
	}
	return "", false
}
