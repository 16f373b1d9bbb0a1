package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/eventstream"
	"github.com/rbright/glassbridge/internal/ipc"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "glassbridge")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteRejectsInvalidConfig(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"events": {"queue_size": 0}}`), 0o600))

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "queue_size")
}

func TestRunnerStatusStoppedWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "stopped\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerStatusPrintsBridgeState(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		require.Equal(t, ipc.CommandStatus, req.Command)
		return ipc.Response{OK: true, Result: map[string]any{"state": "running"}}
	})
	defer shutdown()

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.JSONEq(t, `{"state":"running"}`, stdout.String())
}

func TestRunnerCallForwardsArguments(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 1)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		return ipc.Response{OK: true, Result: "Ada"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath, "call", "resolveCallerName", `{"phoneNumber":"+15550100"}`,
	})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "\"Ada\"\n", stdout.String())

	req := <-requests
	require.Equal(t, "resolveCallerName", req.Command)
	require.Equal(t, map[string]any{"phoneNumber": "+15550100"}, req.Arguments)
	require.NotEmpty(t, req.ID)
}

func TestRunnerCallReportsFailures(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		if req.Command == "unknownMethod" {
			return ipc.Response{NotImplemented: true}
		}
		return ipc.Response{OK: false, Code: "CONNECT_ERROR", Error: "no paired glasses found for channel 9"}
	})
	defer shutdown()

	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr string
	}{
		{name: "error result", args: []string{"call", "connectToGlasses", `{"deviceName":"Pair_9"}`}, want: 1, wantErr: "CONNECT_ERROR: no paired glasses"},
		{name: "not implemented", args: []string{"call", "unknownMethod"}, want: 1, wantErr: "method not implemented: unknownMethod"},
		{name: "bad json", args: []string{"call", "send", `[1,2]`}, want: 2, wantErr: "arguments must be a JSON object"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
			exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, tc.args...))
			require.Equal(t, tc.want, exitCode)
			require.Contains(t, stderr.String(), tc.wantErr)
		})
	}
}

func TestRunnerCallWithoutBridge(t *testing.T) {
	paths := setupRunnerEnv(t)
	writeConfig(t, paths.configPath, `{"events": {"listen": "127.0.0.1:1"}}`)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "call", "startScan"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no running glassbridge")
}

func TestRunnerCallFallsBackToWebsocket(t *testing.T) {
	paths := setupRunnerEnv(t)

	methods := ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{ID: req.ID, OK: true, Result: req.Command == "checkBleConnectionStatus"}
	})
	server := eventstream.NewServer(bridge.NewBroadcaster(nil), methods, 8, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serverCtx, stopServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- server.ServeListener(serverCtx, listener) }()
	t.Cleanup(func() {
		stopServer()
		require.NoError(t, <-serverDone)
	})

	writeConfig(t, paths.configPath, fmt.Sprintf(`{"events": {"listen": %q}}`, listener.Addr().String()))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "call", "checkBleConnectionStatus"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "true\n", stdout.String())
}

func TestRunnerListenRejectsUnknownChannel(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "listen", "eventNope"})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown channel")
}

func TestRunnerListenPrintsEvents(t *testing.T) {
	paths := setupRunnerEnv(t)

	events := bridge.NewBroadcaster(nil)
	server := eventstream.NewServer(events, nil, 8, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serverCtx, stopServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- server.ServeListener(serverCtx, listener) }()
	t.Cleanup(func() {
		stopServer()
		require.NoError(t, <-serverDone)
	})

	writeConfig(t, paths.configPath, fmt.Sprintf(`{"events": {"listen": %q}}`, listener.Addr().String()))

	stdout := &syncBuffer{}
	runner := Runner{Stdout: stdout, Stderr: &bytes.Buffer{}}
	ctx, cancel := context.WithCancel(context.Background())
	exitCh := make(chan int, 1)
	go func() {
		exitCh <- runner.Execute(ctx, []string{"--config", paths.configPath, "listen", string(bridge.ChannelBleStatus)})
	}()

	require.Eventually(t, func() bool { return events.Active(bridge.ChannelBleStatus) }, 2*time.Second, 10*time.Millisecond)
	events.BleStatus("connected")
	require.Eventually(t, func() bool { return strings.Contains(stdout.String(), `"connected"`) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Equal(t, 0, <-exitCh)
}

func TestRunnerContactAddAndList(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "contact", "add", "+1 555 0100", "Ada"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "saved Ada\n", stdout.String())

	stdout.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "contact", "list"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "+1 555 0100\tAda\n", stdout.String())

	stderr.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "contact", "add", "no digits", "Bob"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "has no digits")
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PATH", t.TempDir())
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "[FAIL] busctl")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerServeAnswersMethodsUntilCancelled(t *testing.T) {
	paths := setupRunnerEnv(t)
	writeConfig(t, paths.configPath, `{
		// ephemeral port keeps parallel runs apart
		"events": {"listen": "127.0.0.1:0"},
		"audio": {"cues": false}
	}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := &syncBuffer{}
	exitCh := make(chan int, 1)
	go func() {
		runner := Runner{Stdout: &bytes.Buffer{}, Stderr: serveErr}
		exitCh <- runner.Execute(ctx, []string{"--config", paths.configPath, "serve"})
	}()

	require.Eventually(t, func() bool {
		alive, _ := ipc.Ping(context.Background(), paths.socketPath(), 100*time.Millisecond)
		return alive
	}, 3*time.Second, 20*time.Millisecond, serveErr.String())

	var stdout bytes.Buffer
	client := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	require.Equal(t, 0, client.Execute(context.Background(), []string{"--config", paths.configPath, "status"}))
	require.Contains(t, stdout.String(), `"state":"running"`)
	require.Contains(t, stdout.String(), `"glassesConnected":false`)
	require.Contains(t, stdout.String(), `"link":"idle"`)

	stdout.Reset()
	require.Equal(t, 0, client.Execute(context.Background(), []string{"--config", paths.configPath, "call", "checkBleConnectionStatus"}))
	require.Equal(t, "false\n", stdout.String())

	stdout.Reset()
	require.Equal(t, 0, client.Execute(context.Background(), []string{"--config", paths.configPath, "call", "stopEvenAI"}))
	require.Equal(t, "null\n", stdout.String())

	cancel()
	require.Equal(t, 0, <-exitCh, serveErr.String())

	_, statErr := os.Stat(paths.socketPath())
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerServeRefusesSecondOwner(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true, Result: map[string]any{"state": "running"}}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "serve"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "already running")
}

func TestOwnerHandlerAnswersStatusItself(t *testing.T) {
	var forwarded []string
	h := ownerHandler{
		methods: ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
			forwarded = append(forwarded, req.Command)
			return ipc.Response{OK: true}
		}),
		status: func() map[string]any { return map[string]any{"state": "running"} },
	}

	resp := h.Handle(context.Background(), ipc.Request{ID: "1", Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "1", resp.ID)
	require.Equal(t, map[string]any{"state": "running"}, resp.Result)

	h.Handle(context.Background(), ipc.Request{Command: "startScan"})
	require.Equal(t, []string{"startScan"}, forwarded)
}

func TestReadCredentials(t *testing.T) {
	logger := discardLogger()
	require.Nil(t, readCredentials("  ", logger))
	require.Nil(t, readCredentials(filepath.Join(t.TempDir(), "missing.json"), logger))

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))
	require.Equal(t, `{"type":"service_account"}`, string(readCredentials(path, logger)))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func (p runnerPaths) socketPath() string {
	return filepath.Join(p.runtimeDir, "glassbridge.sock")
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("GLASSBRIDGE_LOG_LEVEL", "")

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	writeConfig(t, configPath, "{}\n")

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func writeConfig(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
