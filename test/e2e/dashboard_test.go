package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

// buildYarnstash builds the dashboard binary for testing.
func buildYarnstash(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "yarnstash")

	rootDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// we are in test/e2e
	rootDir = filepath.Join(rootDir, "..", "..")

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/yarnstash")
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

func TestE2E_SearchFiltersTable(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and drives the binary")
	}
	binPath := buildYarnstash(t)

	// Fresh HOME so the test never touches a real ~/.yarnstash
	homeDir := t.TempDir()
	csvPath, err := writeFixtureCSV(homeDir)
	if err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cmd := exec.Command(binPath)
	cmd.Env = append(os.Environ(),
		"HOME="+homeDir,
		"YARNSTASH_SOURCE="+csvPath,
		"YARNSTASH_LOOKUP_ENABLED=false",
		"YARNSTASH_FALLBACK=false",
	)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		t.Fatalf("failed to start pty: %v", err)
	}
	defer func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
	}()
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: 140, Rows: 40}); err != nil {
		t.Fatalf("failed to set pty size: %v", err)
	}

	var outputBuf bytes.Buffer
	console, err := expect.NewConsole(
		expect.WithStdin(ptmx),
		expect.WithStdout(&outputBuf),
		expect.WithDefaultTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create console: %v", err)
	}
	defer console.Close()

	// 1. Wait for the first load
	t.Log("Waiting for records...")
	if _, err := console.ExpectString("Fixturewool"); err != nil {
		logs, _ := filepath.Glob(filepath.Join(homeDir, ".yarnstash", "logs", "*.log"))
		for _, l := range logs {
			if data, err := os.ReadFile(l); err == nil {
				t.Logf("%s:\n%s", filepath.Base(l), data)
			}
		}
		t.Fatalf("startup failed: %v\nScreen:\n%s%s", err, outputBuf.String(), readSnapshot(ptmx))
	}

	// 2. Open search
	time.Sleep(300 * time.Millisecond) // let the UI settle
	if _, err := console.Send("/"); err != nil {
		t.Fatalf("failed to send slash: %v", err)
	}
	if _, err := console.ExpectString("search ›"); err != nil {
		t.Fatalf("search prompt not found: %v\nOutput buffer:\n%s", err, outputBuf.String())
	}

	// 3. Filter live by typing
	if _, err := console.Send("alpaca"); err != nil {
		t.Fatalf("failed to send query: %v", err)
	}
	if _, err := console.ExpectString("1 of 3 records"); err != nil {
		// the count may be split by styling; fall back to the row itself
		if _, err := console.ExpectString("Alpaca Co"); err != nil {
			t.Fatalf("filtered table not shown: %v\nOutput buffer:\n%s", err, outputBuf.String())
		}
	}

	// 4. Close the prompt and quit
	if _, err := console.Send("\r"); err != nil {
		t.Fatalf("failed to send Enter: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if _, err := console.Send("q"); err != nil {
		t.Fatalf("failed to send q: %v", err)
	}

	done := make(chan error)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
		t.Log("Process exited successfully")
	case <-time.After(3 * time.Second):
		t.Error("Process did not exit after 'q'")
	}
}
