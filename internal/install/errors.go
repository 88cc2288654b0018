package install

import "errors"

var (
	// ErrDownload marks a failed artifact transfer. The target path is left
	// untouched when this is returned.
	ErrDownload = errors.New("artifact download failed")
	// ErrWrite marks a failure to place the binary or its manifest on disk.
	ErrWrite = errors.New("install write failed")
)
