package binary

import (
	"errors"
	"fmt"

	"nplserver/internal/registry"
)

var (
	// ErrBinaryNotFound means the server binary is missing or cannot be read.
	ErrBinaryNotFound = errors.New("server binary not found")
	// ErrReleaseResolution means "latest" could not be mapped to a release tag.
	ErrReleaseResolution = errors.New("could not resolve latest server release")
)

// DownloadError wraps any failure to obtain a server binary.
type DownloadError struct {
	Cause error
}

func (e *DownloadError) Error() string {
	var platformErr *registry.UnsupportedPlatformError
	if errors.As(e.Cause, &platformErr) {
		return fmt.Sprintf("failed to download server binary: platform %s/%s is not compatible with the language server (supported: windows/amd64, darwin/amd64, darwin/arm64, linux/amd64, linux/arm64)",
			platformErr.OS, platformErr.Arch)
	}
	return "failed to download server binary: " + e.Cause.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}

// PlatformIncompatible reports whether err was caused by an unsupported
// os/arch pair.
func PlatformIncompatible(err error) bool {
	var platformErr *registry.UnsupportedPlatformError
	return errors.As(err, &platformErr)
}
