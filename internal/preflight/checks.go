package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// MinFreeBytes is the free space the data directory must have before a pass.
const MinFreeBytes = 64 << 20

// Pinger checks that a remote service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckSource verifies the source platform is reachable. It allows 10 seconds
// and makes a single attempt.
func CheckSource(ctx context.Context, baseURL string, pinger Pinger) Result {
	const name = "Source platform"

	if pinger == nil {
		return Result{Name: name, Detail: "no client configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pinger.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", baseURL, summarizeNetError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", baseURL)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckManifestWritable verifies the manifest's directory accepts the temp
// file written on every persist.
func CheckManifestWritable(manifestPath string) Result {
	result := CheckDirectoryAccess("Manifest directory", filepath.Dir(manifestPath))
	if !result.Passed {
		return result
	}
	info, err := os.Stat(manifestPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Result{Name: result.Name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", manifestPath)}
	case err != nil:
		return Result{Name: result.Name, Detail: fmt.Sprintf("%s (error: stat: %v)", manifestPath, err)}
	case info.IsDir():
		return Result{Name: result.Name, Detail: fmt.Sprintf("%s (error: is a directory)", manifestPath)}
	}
	return Result{Name: result.Name, Passed: true, Detail: fmt.Sprintf("%s (writable)", manifestPath)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes free.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s (%d MiB free)", path, free>>20)
	if free < minBytes {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %d MiB", minBytes>>20)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
