package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/glassbridge/internal/audio"
	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/config"
	"github.com/rbright/glassbridge/internal/eventstream"
	"github.com/rbright/glassbridge/internal/glasses"
	"github.com/rbright/glassbridge/internal/ipc"
	"github.com/rbright/glassbridge/internal/platform"
	"github.com/rbright/glassbridge/internal/speech"
	"github.com/rbright/glassbridge/internal/store"
)

const (
	acquirePingTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	shutdownTimeout     = 3 * time.Second
)

// runtime is the set of collaborators one serve process owns.
type runtime struct {
	store      *store.Store
	events     *bridge.Broadcaster
	server     *eventstream.Server
	session    *glasses.Session
	speech     *speech.Manager
	forwarder  *platform.Forwarder
	dispatcher *bridge.Dispatcher
	dump       io.Closer
}

func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger, logPath string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, acquirePingTimeout, acquireRetries)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: %v (socket %s)\n", err, socketPath)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	rt, err := buildRuntime(cfg, logger, logPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("bridge startup failed", "error", err.Error())
		return 1
	}
	defer rt.close(logger)

	handler := ownerHandler{methods: rt.dispatcher, status: rt.status}
	rt.server.SetMethods(handler)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- ipc.Serve(serveCtx, listener, handler) }()
	go func() { errCh <- rt.server.Serve(serveCtx, cfg.Events.Listen) }()

	logger.Info("bridge serving", "socket", socketPath, "events", cfg.Events.Listen)

	var serveErr error
	for range 2 {
		if err := <-errCh; err != nil && serveErr == nil {
			serveErr = err
		}
		cancel()
	}

	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", serveErr)
		logger.Error("bridge stopped", "error", serveErr.Error())
		return 1
	}
	logger.Info("bridge stopped")
	return 0
}

func buildRuntime(cfg config.Config, logger *slog.Logger, logPath string) (*runtime, error) {
	storePath, err := store.DefaultPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(storePath)
	if err != nil {
		return nil, err
	}

	rt := &runtime{store: db}
	rt.events = bridge.NewBroadcaster(logger)
	rt.server = eventstream.NewServer(rt.events, nil, cfg.Events.QueueSize, logger)

	rt.session = glasses.NewSession(glasses.CLI{Adapter: cfg.BLE.Adapter}, bridge.NewHost(rt.server), rt.events, glasses.Options{
		NamePrefix:   cfg.BLE.NamePrefix,
		SendInterval: time.Duration(cfg.BLE.SendIntervalMS) * time.Millisecond,
		ScanInterval: time.Duration(cfg.BLE.ScanIntervalMS) * time.Millisecond,
		Logger:       logger,
	})

	recognizer := speech.Cloud{Endpoint: cfg.Speech.Endpoint, Insecure: cfg.Speech.Insecure}
	if cfg.Debug.SpeechDump {
		dump, dumpErr := openSpeechDump(logPath)
		if dumpErr != nil {
			logger.Warn("speech dump disabled", "error", dumpErr.Error())
		} else {
			recognizer.Debug = dump
			rt.dump = dump
		}
	}

	var speechCues speech.CuePlayer
	var notifyCues platform.CuePlayer
	if cfg.Audio.Cues {
		speechCues = audio.Player{}
		notifyCues = audio.Player{}
	}

	rt.speech = speech.NewManager(speech.Options{
		Recognizer:      recognizer,
		Audio:           audio.Recorder{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: logger},
		Cues:            speechCues,
		Events:          rt.events,
		Credentials:     readCredentials(cfg.Speech.CredentialsFile, logger),
		BreakerFailures: uint32(cfg.Speech.BreakerFailures),
		Logger:          logger,
	})

	notifier := &platform.Notifier{AppName: cfg.Notifications.AppName, Channels: db, Cues: notifyCues, Logger: logger}
	launcher := platform.Launcher{SettingsCommand: cfg.Host.SettingsCmd.Argv, Logger: logger}
	rt.forwarder = platform.NewForwarder(platform.ForwarderOptions{
		Component: cfg.Host.ListenerComponent,
		AppName:   cfg.Notifications.AppName,
		Events:    rt.events,
		Settings:  db,
		Notifier:  notifier,
		Launcher:  launcher,
		Logger:    logger,
	})

	rt.dispatcher = bridge.NewDispatcher(bridge.Platform{
		SDKLevel:          cfg.Host.SDKLevel,
		HostPackage:       cfg.Host.Package,
		HostActivity:      cfg.Host.Activity,
		ListenerComponent: cfg.Host.ListenerComponent,
		SpeechLanguage:    cfg.Speech.Language,
	}, bridge.Collaborators{
		Devices:       rt.session,
		Speech:        rt.speech,
		Calls:         db,
		Listener:      rt.forwarder,
		Foreground:    rt.forwarder,
		Settings:      db,
		Launcher:      launcher,
		Packages:      platform.Apps{Dirs: cfg.Apps.Dirs, Logger: logger},
		Notifications: notifier,
		Permissions:   platform.Permissions{Logger: logger},
		Battery:       platform.Power{},
	}, logger)

	return rt, nil
}

// status answers bridge.status for clients and socket pings.
func (rt *runtime) status() map[string]any {
	return map[string]any{
		"state":            "running",
		"events":           rt.server.Addr(),
		"hostConnected":    rt.server.HostConnected(),
		"glassesConnected": rt.session.Connected(),
		"link":             string(rt.session.State()),
		"recognizing":      rt.speech.Running(),
		"forwarding":       rt.forwarder.Running(),
	}
}

func (rt *runtime) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = rt.speech.StopRecognition(ctx)
	if err := rt.speech.Wait(ctx); err != nil {
		logger.Warn("speech recognition still finishing on shutdown", "error", err.Error())
	}
	if err := rt.forwarder.Stop(ctx); err != nil {
		logger.Warn("stop forwarder on shutdown", "error", err.Error())
	}
	if err := rt.session.Close(ctx); err != nil {
		logger.Warn("close glasses session on shutdown", "error", err.Error())
	}
	if rt.dump != nil {
		_ = rt.dump.Close()
	}
	if err := rt.store.Close(); err != nil {
		logger.Warn("close store", "error", err.Error())
	}
}

// ownerHandler answers bridge.status itself and forwards everything else to
// the method surface.
type ownerHandler struct {
	methods ipc.Handler
	status  func() map[string]any
}

func (h ownerHandler) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	if req.Command == ipc.CommandStatus {
		return ipc.Response{ID: req.ID, OK: true, Result: h.status()}
	}
	return h.methods.Handle(ctx, req)
}

// readCredentials loads the service-account JSON named by path. Recognition
// can still be configured later through setGoogleCloudCredentials, so
// failures only warn.
func readCredentials(path string, logger *slog.Logger) []byte {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("speech credentials unreadable", "path", path, "error", err.Error())
		return nil
	}
	return data
}

func openSpeechDump(logPath string) (*os.File, error) {
	path := filepath.Join(filepath.Dir(logPath), "speech.jsonl")
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}
