package cli

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI provides a clean interface for running CLI commands in tests.
// It manages a temp directory and environment variables.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI creates a new test CLI with a temp directory. The environment
// starts empty, so no global config leaks in from the host.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{
		t:   t,
		Dir: t.TempDir(),
		Env: map[string]string{},
	}
}

// Run executes the CLI with the given args and returns stdout, stderr, and exit code.
// Args should not include "gribarc" or "--cwd" - those are added automatically.
func (r *CLI) Run(args ...string) (string, string, int) {
	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"gribarc", "--cwd", r.Dir}, args...)
	code := Run(nil, &outBuf, &errBuf, fullArgs, r.Env)

	return outBuf.String(), errBuf.String(), code
}

// MustRun executes the CLI and fails the test if the command returns non-zero.
// Returns trimmed stdout on success.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 {
		r.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}

// WriteArchive writes records back to back under the test directory
// and returns the file's absolute path.
func (r *CLI) WriteArchive(name string, records ...[]byte) string {
	r.t.Helper()

	path := filepath.Join(r.Dir, name)

	err := os.WriteFile(path, bytes.Join(records, nil), 0o600)
	if err != nil {
		r.t.Fatalf("write archive %s: %v", name, err)
	}

	return path
}

// Grib2Record builds a well formed edition 2 record of the given total
// length. The payload is filler; only the framing matters here.
func Grib2Record(total int) []byte {
	b := bytes.Repeat([]byte{0xEE}, total)
	copy(b, "GRIB")
	b[7] = 2
	binary.BigEndian.PutUint64(b[8:16], uint64(total))

	return b
}

// Grib1Record builds a well formed edition 1 record in the small form,
// total below the large-form threshold.
func Grib1Record(total int) []byte {
	b := bytes.Repeat([]byte{0xEE}, total)
	copy(b, "GRIB")
	b[4] = byte(total >> 16)
	b[5] = byte(total >> 8)
	b[6] = byte(total)
	b[7] = 1

	return b
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
