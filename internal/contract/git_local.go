package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"os/user"
	"strings"
)

// UnknownHash is stamped into generated files when no git revision is available.
const UnknownHash = "unknown"

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command and returns its stdout output.
func (c *LocalGitClient) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git command failed in %q: %s", dir, stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// GetShortHash implements the GitClient interface.
func (c *LocalGitClient) GetShortHash(ctx context.Context, dir string) (string, error) {
	out, err := c.Run(ctx, dir, "log", "--pretty=format:%h", "-n", "1")
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(string(out))
	if hash == "" {
		return "", fmt.Errorf("no commits found in %q", dir)
	}
	return hash, nil
}

// ShortHashOrUnknown returns the short hash of dir, or UnknownHash on failure.
func ShortHashOrUnknown(ctx context.Context, client GitClient, dir string) string {
	if client == nil {
		return UnknownHash
	}
	hash, err := client.GetShortHash(ctx, dir)
	if err != nil {
		return UnknownHash
	}
	return hash
}

// CurrentUser returns the login name of the user generating the files.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// LocalShellRunner implements the ShellRunner interface with /bin/sh.
type LocalShellRunner struct{}

var _ ShellRunner = &LocalShellRunner{} // Compile-time check

// NewLocalShellRunner creates a new shell runner.
func NewLocalShellRunner() *LocalShellRunner {
	return &LocalShellRunner{}
}

// RunScript implements the ShellRunner interface.
func (r *LocalShellRunner) RunScript(ctx context.Context, path string, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", path)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("script %s failed: %w", path, err)
	}
	return out, nil
}
