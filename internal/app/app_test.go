package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// archicadReplies maps a wire command name to the envelope served for it.
type archicadReplies map[string]string

func startArchicad(t *testing.T, replies archicadReplies) int {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Command string `json:"command"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		reply, ok := replies[req.Command]
		if !ok {
			reply = `{"succeeded": false, "error": {"code": 404, "message": "Unknown command"}}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)
	return server.Listener.Addr().(*net.TCPAddr).Port
}

func healthyArchicad(t *testing.T) int {
	return startArchicad(t, archicadReplies{
		"API.IsAlive":              `{"succeeded": true, "result": {"isAlive": true}}`,
		"API.GetProductInfo":       `{"succeeded": true, "result": {"version": 27, "buildNumber": 3001, "languageCode": "INT"}}`,
		"API.GetAllElements":       `{"succeeded": true, "result": {"elements": [{"elementId": {"guid": "7A3C"}}]}}`,
		"API.GetPublisherSetNames": `{"succeeded": true}`,
	})
}

func closedPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

type runnerPaths struct {
	configPath string
}

// setupRunnerEnv isolates state and config dirs and writes a config pointing
// at port with a documented range that contains it.
func setupRunnerEnv(t *testing.T, port int) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	configPath := filepath.Join(configHome, "archiconnect", "config.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0o700))
	content := fmt.Sprintf(`{
  // test endpoint
  "host": "127.0.0.1",
  "port": %d,
  "port_range": { "start": %d, "end": %d },
  "scan": { "rate_per_second": 1000, "timeout_ms": 500 },
}
`, port, port, port+1)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return runnerPaths{configPath: configPath}
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), args)
	return exitCode, stdout.String(), stderr.String()
}

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Contains(t, stdout.String(), "GetAllClassificationSystems")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "archiconnect")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownFlag(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--definitely-not-a-flag"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown flag")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerConnectVerified(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "127.0.0.1", strconv.Itoa(port))
	require.Equal(t, 0, exitCode, stderr)
	require.Contains(t, stdout, fmt.Sprintf("Connecting to 127.0.0.1:%d …", port))
	require.Contains(t, stdout, "Is alive: true\n")
	require.Contains(t, stdout, "Host version: Archicad 27 3001 INT\n")
	require.Empty(t, stderr)
}

func TestRunnerNoArgsShowsBannerAndConnectsToConfiguredDefault(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t)
	require.Equal(t, 0, exitCode, stderr)
	require.Contains(t, stdout, "[archiconnect]")
	require.Contains(t, stdout, "Usage:")
	require.Contains(t, stdout, "Host version: Archicad 27 3001 INT")
}

func TestRunnerConnectDeadEndpoint(t *testing.T) {
	port := closedPort(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "127.0.0.1", strconv.Itoa(port))
	require.Equal(t, 2, exitCode)
	require.Contains(t, stdout, "Is alive: false\n")
	require.NotContains(t, stdout, "Host version")
	require.Contains(t, stderr, "Connection failed.")
}

func TestRunnerConnectWithoutProductInfo(t *testing.T) {
	port := startArchicad(t, archicadReplies{
		"API.IsAlive": `{"succeeded": true, "result": {"isAlive": true}}`,
	})
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "127.0.0.1", strconv.Itoa(port))
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout, "Is alive: true")
	require.Contains(t, stderr, "warning: host product info unavailable")
}

func TestRunnerPortAdvisory(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port+1)

	exitCode, _, stderr := run(t, "127.0.0.1", strconv.Itoa(port))
	require.Equal(t, 0, exitCode)
	require.Contains(t, stderr, fmt.Sprintf("warning: port %d is not in default range %d-%d", port, port+1, port+2))
}

func TestRunnerInvalidPort(t *testing.T) {
	setupRunnerEnv(t, 19723)

	exitCode, _, stderr := run(t, "127.0.0.1", "abc")
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr, `invalid port: "abc" is not an integer`)
}

func TestRunnerRunsCustomCommand(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "127.0.0.1", strconv.Itoa(port), "GetAllElements")
	require.Equal(t, 0, exitCode, stderr)
	require.Equal(t, "{\n"+
		"\t\"elements\": [\n"+
		"\t\t{\n"+
		"\t\t\t\"elementId\": {\n"+
		"\t\t\t\t\"guid\": \"7A3C\"\n"+
		"\t\t\t}\n"+
		"\t\t}\n"+
		"\t]\n"+
		"}\n", stdout)
}

func TestRunnerKnownCommandFirstUsesConfiguredEndpoint(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, _ := run(t, "GetAllElements")
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout, `"guid": "7A3C"`)
}

func TestRunnerLaunchedWithPortFlag(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, _ := run(t, "--port", strconv.Itoa(port), "GetAllElements")
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout, `"guid": "7A3C"`)
}

func TestRunnerRendersYAML(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, _ := run(t, "--output", "yaml", "127.0.0.1", strconv.Itoa(port), "GetAllElements")
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout, "elements:\n")
	require.Contains(t, stdout, "- elementId:\n")
	require.Contains(t, stdout, "guid: 7A3C\n")
	require.NotContains(t, stdout, "{")
}

func TestRunnerRejectsUnknownOutputFormat(t *testing.T) {
	setupRunnerEnv(t, 19723)

	exitCode, _, stderr := run(t, "--output", "xml", "IsAlive")
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr, "unsupported output format")
}

func TestRunnerCustomCommandAPIFailure(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "127.0.0.1", strconv.Itoa(port), "GetSelectedElements")
	require.Equal(t, 3, exitCode)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "Error 404\n\tUnknown command\n")
}

func TestRunnerCustomCommandWithoutResult(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "127.0.0.1", strconv.Itoa(port), "GetPublisherSetNames")
	require.Equal(t, 0, exitCode)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "command succeeded without a result")
}

func TestRunnerCustomCommandTransportFailure(t *testing.T) {
	port := closedPort(t)
	setupRunnerEnv(t, port)

	exitCode, _, stderr := run(t, "127.0.0.1", strconv.Itoa(port), "GetAllElements")
	require.Equal(t, 3, exitCode)
	require.Contains(t, stderr, "error: transport failure:")
}

func TestRunnerCustomCommandProtocolError(t *testing.T) {
	port := startArchicad(t, archicadReplies{"API.GetAllElements": `not json`})
	setupRunnerEnv(t, port)

	exitCode, _, stderr := run(t, "127.0.0.1", strconv.Itoa(port), "GetAllElements")
	require.Equal(t, 3, exitCode)
	require.Contains(t, stderr, "error: protocol error:")
}

func TestRunnerDebugEchoesRequestAndEnvelope(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, _, stderr := run(t, "--debug", "127.0.0.1", strconv.Itoa(port), "GetPublisherSetNames")
	require.Equal(t, 0, exitCode)
	require.Contains(t, stderr, `{"command":"API.GetPublisherSetNames"}`)
	require.Contains(t, stderr, "{\n\t\"succeeded\": true\n}\n")
}

func TestRunnerDoctor(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "doctor")
	require.Equal(t, 0, exitCode, stdout+stderr)
	require.Contains(t, stdout, "[OK] config: loaded")
	require.Contains(t, stdout, "[OK] api.product_info: Archicad 27 3001 INT")
}

func TestRunnerDoctorFailsWhenUnreachable(t *testing.T) {
	port := closedPort(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, _ := run(t, "doctor")
	require.Equal(t, 2, exitCode)
	require.Contains(t, stdout, "[FAIL] api.alive:")
}

func TestRunnerScanListsInstances(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "scan", "127.0.0.1")
	require.Equal(t, 0, exitCode, stderr)
	require.Equal(t, fmt.Sprintf("%d  Archicad 27 3001 INT\n", port), stdout)
}

func TestRunnerScanFindsNothing(t *testing.T) {
	port := closedPort(t)
	setupRunnerEnv(t, port)

	exitCode, stdout, stderr := run(t, "scan")
	require.Equal(t, 2, exitCode)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "no Archicad instances found")
}

func TestRunnerShellReadsCommandsFromStdin(t *testing.T) {
	port := healthyArchicad(t)
	setupRunnerEnv(t, port)

	input := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(input, []byte("GetAllElements\nexit\nIsAlive\n"), 0o600))
	stdin, err := os.Open(input)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stdin.Close() })

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Stdin: stdin}
	exitCode := runner.Execute(context.Background(), []string{"shell"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "Is alive: true")
	require.Contains(t, stdout.String(), `"guid": "7A3C"`)
	require.NotContains(t, stdout.String(), `"isAlive"`)
}

func TestRunnerConfigError(t *testing.T) {
	paths := setupRunnerEnv(t, 19723)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"bogus": true}`), 0o600))

	exitCode, _, stderr := run(t, "IsAlive")
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr, "parse config")
}
