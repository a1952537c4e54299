// Package errmsg labels failures with the operation that produced them and
// maps error classes onto process exit codes.
package errmsg

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ProjectAnni/anni-go/internal/provider"
)

// Op names an operation that can fail.
type Op string

const (
	// Startup operations.
	OpLoadConfig     Op = "load configuration"
	OpBuildProviders Op = "build providers"
	OpOpenRepoDB     Op = "open repo database"
	OpListen         Op = "listen"

	// Provider operations.
	OpListAlbums Op = "list albums"
	OpReload     Op = "reload providers"

	// Cache operations.
	OpAcquireCache Op = "acquire cache entry"
	OpImportCache  Op = "import cache entry"
)

// Format renders a user-facing failure message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("failed to %s: %v", op, err)
}

// Process exit codes.
const (
	ExitOK       = 0
	ExitConfig   = 1
	ExitIO       = 2
	ExitUpstream = 3
)

// ExitCode classifies an error into the exit-code contract: 1 for
// configuration problems, 2 for local I/O, 3 for upstream failures.
func ExitCode(op Op, err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case op == OpLoadConfig:
		return ExitConfig
	case errors.Is(err, provider.ErrRequest):
		return ExitUpstream
	case errors.Is(err, provider.ErrNotFound),
		errors.Is(err, provider.ErrFlac),
		errors.Is(err, provider.ErrInvalidPath),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return ExitIO
	default:
		return ExitIO
	}
}
