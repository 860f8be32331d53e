package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type StatusResponse struct {
	Status     string `json:"status"`
	PID        int    `json:"pid"`
	ConfigFile string `json:"config_file,omitempty"`
	APIVersion string `json:"api_version"`
	Workers    int    `json:"workers"`
	Running    int    `json:"running"`
}

type WorkerInfo struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	PID      int    `json:"pid"`
	Launches int    `json:"launches"`
	Restarts int    `json:"restarts"`
	Liveness string `json:"liveness"`
	LastExit string `json:"last_exit"`
}

type WorkerListResponse struct {
	Workers []WorkerInfo `json:"workers"`
}

type State struct {
	PID        int      `json:"pid"`
	API        bool     `json:"api"`
	Port       int      `json:"port"`
	Host       string   `json:"host"`
	ConfigFile string   `json:"config_file"`
	Workers    []string `json:"workers"`
}

var (
	buildOnce   sync.Once
	builtBinary string
	buildErr    error
)

// buildBinary builds the horn binary once per test run and returns its path
func buildBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			buildErr = err
			return
		}
		projectRoot := filepath.Join(wd, "..", "..")

		dir, err := os.MkdirTemp("", "horn-integration")
		if err != nil {
			buildErr = err
			return
		}
		builtBinary = filepath.Join(dir, "horn")

		cmd := exec.Command("go", "build", "-o", builtBinary, "./cmd/horn")
		cmd.Dir = projectRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			buildErr = fmt.Errorf("%v\n%s", err, output)
		}
	})
	if buildErr != nil {
		t.Fatalf("failed to build binary: %v", buildErr)
	}
	return builtBinary
}

// writeConfig writes horn.yaml into a fresh directory and returns its path
func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "horn.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// startHorn starts horn in the foreground and kills it when the test ends
func startHorn(t *testing.T, binary, configPath string, args ...string) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(binary, append([]string{"run", "-c", configPath}, args...)...)
	cmd.Dir = filepath.Dir(configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start horn: %v", err)
	}
	t.Cleanup(func() { killHorn(cmd) })

	return cmd
}

// runCLI runs a horn client command and returns its combined output
func runCLI(t *testing.T, binary, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := exec.Command(binary, append(args, "-c", configPath)...)
	cmd.Dir = filepath.Dir(configPath)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// killHorn forcefully kills the horn process
func killHorn(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil && cmd.ProcessState == nil {
		cmd.Process.Kill()
		cmd.Wait()
	}
}

// waitExit waits for horn to exit and returns its exit error
func waitExit(t *testing.T, cmd *exec.Cmd, timeout time.Duration) error {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		cmd.Process.Kill()
		t.Fatalf("horn did not exit within %v", timeout)
		return nil
	}
}

// waitForAPI waits for the API to be ready
func waitForAPI(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("API did not become ready within %v", timeout)
}

// waitForStateFile waits for the master to publish its state and returns it
func waitForStateFile(t *testing.T, configPath string, timeout time.Duration) State {
	t.Helper()

	path := filepath.Join(filepath.Dir(configPath), ".horn", "horn.state")
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil {
			var state State
			if err := json.Unmarshal(data, &state); err == nil && state.PID > 0 {
				return state
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("state file %s not written within %v", path, timeout)
	return State{}
}

// waitForNoStateFile waits for the master to remove its state file
func waitForNoStateFile(t *testing.T, configPath string, timeout time.Duration) {
	t.Helper()

	path := filepath.Join(filepath.Dir(configPath), ".horn", "horn.state")
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("state file %s still present after %v", path, timeout)
}

// getJSON decodes a GET response into v
func getJSON(t *testing.T, url string, v any) {
	t.Helper()

	resp, err := http.Get(url)
	requireNoError(t, err, "GET "+url)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: expected status 200, got %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("GET %s: failed to decode: %v", url, err)
	}
}

// post sends an empty POST and returns the status code
func post(t *testing.T, url string) int {
	t.Helper()

	resp, err := http.Post(url, "application/json", nil)
	requireNoError(t, err, "POST "+url)
	resp.Body.Close()
	return resp.StatusCode
}

// waitForWorker polls a worker until cond holds
func waitForWorker(t *testing.T, addr, name string, timeout time.Duration, cond func(WorkerInfo) bool) WorkerInfo {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var last WorkerInfo
	for time.Now().Before(deadline) {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/workers/%s", addr, name))
		if err == nil {
			var info WorkerInfo
			if err := json.NewDecoder(resp.Body).Decode(&info); err == nil {
				last = info
				if cond(info) {
					resp.Body.Close()
					return info
				}
			}
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("worker %s did not reach the expected state within %v (last: %+v)", name, timeout, last)
	return WorkerInfo{}
}

func running(w WorkerInfo) bool {
	return w.Status == "running" && w.PID > 0
}

// requireNoError fails the test if err is not nil
func requireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// skipShort skips the test if -short flag is provided
func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
