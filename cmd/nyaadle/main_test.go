package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/sigman78/nyaadle/internal/nyaadle"
)

// subprocessEnv is set in the re-executed subprocess so it knows to call main()
// directly instead of spawning another child. argsEnv carries the command
// line, separated by unit separators.
const (
	subprocessEnv = "NYAADLE_TEST_SUBPROCESS"
	argsEnv       = "NYAADLE_TEST_ARGS"
)

func init() {
	if os.Getenv(subprocessEnv) != "1" {
		return
	}
	os.Args = append([]string{"nyaadle"}, strings.Split(os.Getenv(argsEnv), "\x1f")...)
	main()
}

// runNyaadle re-executes the test binary as nyaadle with args. HOME and
// the config dir point at dir so nothing outside it is touched. It returns
// stdout and the exit code.
func runNyaadle(t *testing.T, dir string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(),
		subprocessEnv+"=1",
		argsEnv+"="+strings.Join(args, "\x1f"),
		"HOME="+dir,
		"XDG_CONFIG_HOME="+filepath.Join(dir, "config"),
		"APPDATA="+filepath.Join(dir, "config"),
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return stdout.String(), 0
	case errors.As(err, &exitErr):
		return stdout.String(), exitErr.ExitCode()
	default:
		t.Fatalf("run %v: %v", args, err)
		return "", -1
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "nyaadle.db")
	cases := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"--help"}, 0},
		{"version", []string{"version"}, 0},
		{"unknown flag", []string{"--this-flag-does-not-exist"}, 2},
		{"stray argument", []string{"frobnicate"}, 2},
		{"parse option without title", []string{"--db", db, "parse", "-o", "720"}, 2},
		{"parse title without option", []string{"--db", db, "parse", "-t", "Show"}, 2},
		{"parse bad feed", []string{"--db", db, "parse", "-f", "ftp://x"}, 2},
		{"download nothing", []string{"--db", db, "dl"}, 2},
		{"watchlist bad option", []string{"--db", db, "wle", "-a", "-t", "Show", "-o", "480"}, 2},
		{"watchlist two actions", []string{"--db", db, "wle", "-a", "-p"}, 2},
		{"watchlist bad id", []string{"--db", db, "wle", "-d", "-i", "abc"}, 2},
		{"settings empty value", []string{"--db", db, "settings", "--set-dl-dir="}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, got := runNyaadle(t, dir, tc.args...); got != tc.want {
				t.Errorf("nyaadle %v exited %d, want %d", tc.args, got, tc.want)
			}
		})
	}
}

func TestFeedUnreachableExitsOne(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "nyaadle.db")
	// Port 1 on loopback refuses connections.
	if _, code := runNyaadle(t, dir, "--db", db, "parse", "-f", "http://127.0.0.1:1/rss"); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestWatchlistAndSettings(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "nyaadle.db")

	out, code := runNyaadle(t, dir, "--db", db, "wle", "-a", "-t", "Show X", "-o", "720")
	if code != 0 {
		t.Fatalf("add exited %d: %s", code, out)
	}
	if !strings.Contains(out, "nyaadle.db created.") {
		t.Errorf("first run did not report database creation:\n%s", out)
	}

	out, code = runNyaadle(t, dir, "--db", db, "wle", "-p")
	if code != 0 {
		t.Fatalf("print exited %d", code)
	}
	if strings.Contains(out, "nyaadle.db created.") {
		t.Error("database reported as created twice")
	}
	// The placeholder is dropped once a real entry exists.
	if !strings.Contains(out, "| Show X | 720") || strings.Contains(out, "|  | non-vid") {
		t.Errorf("watchlist output:\n%s", out)
	}

	ingest := filepath.Join(dir, "ingest")
	if out, code = runNyaadle(t, dir, "--db", db, "set", "--set-dl-dir", ingest); code != 0 {
		t.Fatalf("set exited %d: %s", code, out)
	}
	out, _ = runNyaadle(t, dir, "--db", db, "set", "--get-dl-dir")
	if want := fmt.Sprintf("Download Directory: %s", ingest); !strings.Contains(out, want) {
		t.Errorf("get-dl-dir output %q, want %q", out, want)
	}

	export := filepath.Join(dir, "list.yaml")
	if _, code = runNyaadle(t, dir, "--db", db, "wle", "--export", export); code != 0 {
		t.Fatalf("export exited %d", code)
	}
	f, err := os.Open(export)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	entries, err := nyaadle.ImportWatchList(f)
	if err != nil {
		t.Fatalf("exported file does not import: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Show X" {
		t.Errorf("exported entries = %+v", entries)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{nyaadle.ErrFeedUnreachable, 1},
		{usageErrorf("bad flag"), 2},
		{fmt.Errorf("wrapped: %w", usageErrorf("bad flag")), 2},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestParseIDs(t *testing.T) {
	got, err := parseIDs([]string{"1", " 20 "})
	if err != nil || len(got) != 2 || got[0] != 1 || got[1] != 20 {
		t.Errorf("parseIDs = %v, %v", got, err)
	}
	for _, bad := range [][]string{nil, {"0"}, {"-3"}, {"x"}} {
		if _, err := parseIDs(bad); exitCode(err) != 2 {
			t.Errorf("parseIDs(%q) err = %v, want usage error", bad, err)
		}
	}
}

func TestShowProgress(t *testing.T) {
	t.Cleanup(viper.Reset)
	cases := []struct {
		quiet   bool
		workers int
		want    bool
	}{
		{false, 1, true},
		{false, 0, true},
		{true, 1, false},
		{false, 4, false},
	}
	for _, tc := range cases {
		viper.Set("quiet", tc.quiet)
		viper.Set("workers", tc.workers)
		if got := showProgress(); got != tc.want {
			t.Errorf("showProgress(quiet=%v, workers=%d) = %v, want %v", tc.quiet, tc.workers, got, tc.want)
		}
	}
}
