package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

const daemonConfig = `
api:
  port: %d
log:
  level: debug
workers:
  mailer:
    sleep: 100ms
  indexer:
    cmd: "echo indexed"
    interval: 200ms
`

// startDaemon runs horn run -d and stops the daemon when the test ends
func startDaemon(t *testing.T, binary string, port int) (string, State) {
	t.Helper()

	cfg := writeConfig(t, fmt.Sprintf(daemonConfig, port))

	output, err := runCLI(t, binary, cfg, "run", "-d")
	if err != nil {
		t.Fatalf("failed to start daemon: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "horn started (pid") {
		t.Errorf("expected daemon start message, got: %s", output)
	}

	state := waitForStateFile(t, cfg, 10*time.Second)
	t.Cleanup(func() {
		if p, err := os.FindProcess(state.PID); err == nil {
			_ = p.Kill()
		}
	})
	return cfg, state
}

func TestDaemon_StateFiles(t *testing.T) {
	skipShort(t)

	binary := buildBinary(t)
	cfg, state := startDaemon(t, binary, 15621)
	dir := filepath.Join(filepath.Dir(cfg), ".horn")

	if state.Port != 15621 || state.Host == "" {
		t.Errorf("unexpected state address %s:%d", state.Host, state.Port)
	}
	if state.ConfigFile != cfg {
		t.Errorf("expected config %s, got %s", cfg, state.ConfigFile)
	}
	if strings.Join(state.Workers, ",") != "mailer,indexer" {
		t.Errorf("unexpected workers %v", state.Workers)
	}

	pidData, err := os.ReadFile(filepath.Join(dir, "horn.pid"))
	requireNoError(t, err, "PID file not found")
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	requireNoError(t, err, "invalid PID in file")
	if pid != state.PID {
		t.Errorf("PID mismatch: file has %d, state has %d", pid, state.PID)
	}

	if _, err := os.Stat(filepath.Join(dir, "token")); !os.IsNotExist(err) {
		t.Error("localhost api should not write a token")
	}

	output, err := runCLI(t, binary, cfg, "stop")
	requireNoError(t, err, "stop failed: "+output)
	waitForNoStateFile(t, cfg, 20*time.Second)

	if _, err := os.Stat(filepath.Join(dir, "horn.pid")); !os.IsNotExist(err) {
		t.Error("expected PID file to be removed")
	}
	logData, err := os.ReadFile(filepath.Join(dir, "horn.log"))
	requireNoError(t, err, "daemon log not kept")
	if !strings.Contains(string(logData), "starting horn") {
		t.Errorf("expected daemon log to contain startup line, got: %s", logData)
	}
}

func TestDaemon_ClientCommands(t *testing.T) {
	skipShort(t)

	binary := buildBinary(t)
	cfg, state := startDaemon(t, binary, 15622)
	waitForAPI(t, apiAddr(state), 10*time.Second)
	waitForWorker(t, apiAddr(state), "indexer", 10*time.Second, running)

	output, err := runCLI(t, binary, cfg, "status")
	requireNoError(t, err, "status failed: "+output)
	for _, want := range []string{"running (pid " + strconv.Itoa(state.PID) + ")", "mailer", "indexer"} {
		if !strings.Contains(output, want) {
			t.Errorf("status output missing %q:\n%s", want, output)
		}
	}

	output, err = runCLI(t, binary, cfg, "logs", "indexer")
	requireNoError(t, err, "logs failed: "+output)
	if !strings.Contains(output, "launched") {
		t.Errorf("expected the master's launch record for indexer, got:\n%s", output)
	}
	if strings.Contains(output, "mailer") {
		t.Errorf("expected only indexer records, got:\n%s", output)
	}

	// worker output goes to the daemon log file
	logPath := filepath.Join(filepath.Dir(cfg), ".horn", "horn.log")
	deadline := time.Now().Add(10 * time.Second)
	for {
		data, _ := os.ReadFile(logPath)
		if strings.Contains(string(data), "indexed") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("indexer output never reached %s", logPath)
		}
		time.Sleep(200 * time.Millisecond)
	}

	output, err = runCLI(t, binary, cfg, "reload")
	requireNoError(t, err, "reload failed: "+output)
	if !strings.Contains(output, "Reload initiated") {
		t.Errorf("unexpected reload output: %s", output)
	}

	output, err = runCLI(t, binary, cfg, "stop", "--force")
	requireNoError(t, err, "stop failed: "+output)
	waitForNoStateFile(t, cfg, 20*time.Second)

	output, err = runCLI(t, binary, cfg, "status")
	if err == nil {
		t.Fatalf("expected status to fail once stopped, got: %s", output)
	}
	if !strings.Contains(output, "Is horn running?") {
		t.Errorf("expected not running hint, got: %s", output)
	}
}

func TestDaemon_RejectsSecondInstance(t *testing.T) {
	skipShort(t)

	binary := buildBinary(t)
	cfg, _ := startDaemon(t, binary, 15623)

	output, err := runCLI(t, binary, cfg, "run", "-d")
	if err == nil {
		t.Fatalf("expected second daemon to fail, but it succeeded\noutput: %s", output)
	}
	if !strings.Contains(output, "already running") {
		t.Errorf("expected 'already running' error, got: %s", output)
	}

	// a foreground master is refused as well
	cmd := exec.Command(binary, "run", "-c", cfg)
	output2, err := cmd.CombinedOutput()
	if err == nil || !strings.Contains(string(output2), "already running") {
		t.Errorf("expected foreground run to be refused, got %v: %s", err, output2)
	}

	_, _ = runCLI(t, binary, cfg, "stop")
	waitForNoStateFile(t, cfg, 20*time.Second)
}
