package platform

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/busctl"
)

const (
	ongoingNotificationID = 1
	monitorRetryDelay     = time.Second
)

const notifyMatch = "type='method_call',interface='org.freedesktop.Notifications',member='Notify'"

// ListenerEvents receives forwarded notifications and listener state.
type ListenerEvents interface {
	NotificationReceived(payload any)
	NotificationListenerStatus(enabled bool)
}

// ListSettings records enabled listener components.
type ListSettings interface {
	AppendListSetting(ctx context.Context, name string, entry string) error
}

// OngoingNotifier shows and clears the running-service notification.
type OngoingNotifier interface {
	Notify(ctx context.Context, id int, n bridge.Notification) error
	Cancel(ctx context.Context, id int) error
}

// MonitorFunc streams session-bus messages matching the given rules.
type MonitorFunc func(ctx context.Context, matches []string, fn func(busctl.Message)) error

// Forwarder is the notification forwarding service. While running it watches
// the session bus for Notify calls and publishes them to the host.
type Forwarder struct {
	component string
	appName   string
	events    ListenerEvents
	settings  ListSettings
	notifier  OngoingNotifier
	launcher  bridge.ActivityLauncher
	logger    *slog.Logger
	monitor   MonitorFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// ForwarderOptions configures a Forwarder.
type ForwarderOptions struct {
	// Component is the listener component name recorded as enabled.
	Component string
	// AppName marks this bridge's own notifications, which are not forwarded.
	AppName  string
	Events   ListenerEvents
	Settings ListSettings
	Notifier OngoingNotifier
	Launcher bridge.ActivityLauncher
	Logger   *slog.Logger
	Monitor  MonitorFunc
}

// NewForwarder builds a stopped forwarder.
func NewForwarder(opts ForwarderOptions) *Forwarder {
	monitor := opts.Monitor
	if monitor == nil {
		monitor = func(ctx context.Context, matches []string, fn func(busctl.Message)) error {
			return busctl.Monitor(ctx, busctl.User, matches, fn)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Forwarder{
		component: opts.Component,
		appName:   opts.AppName,
		events:    opts.Events,
		settings:  opts.Settings,
		notifier:  opts.Notifier,
		launcher:  opts.Launcher,
		logger:    logger,
		monitor:   monitor,
	}
}

// Start begins forwarding. Starting a running forwarder is a no-op.
func (f *Forwarder) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	f.running = true
	done := f.done
	f.mu.Unlock()

	if f.settings != nil && f.component != "" {
		if err := f.settings.AppendListSetting(ctx, bridge.EnabledListenersSetting, f.component); err != nil {
			f.logger.Warn("record enabled listener failed", "error", err.Error())
		}
	}
	if f.notifier != nil {
		if err := f.notifier.Notify(ctx, ongoingNotificationID, bridge.Notification{
			Title: "Glasses bridge running",
			Text:  "Forwarding notifications to your glasses",
		}); err != nil {
			f.logger.Warn("show service notification failed", "error", err.Error())
		}
	}

	go f.run(runCtx, done)
	f.logger.Info("notification forwarder started")
	f.publishStatus(true)
	return nil
}

// Stop ends forwarding and waits for the monitor to exit.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	cancel, done := f.cancel, f.done
	f.running = false
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if f.notifier != nil {
		if err := f.notifier.Cancel(ctx, ongoingNotificationID); err != nil {
			f.logger.Warn("clear service notification failed", "error", err.Error())
		}
	}
	f.logger.Info("notification forwarder stopped")
	f.publishStatus(false)
	return nil
}

// Running reports whether the forwarder is active.
func (f *Forwarder) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Instance returns the forwarder as the listener service while it runs.
func (f *Forwarder) Instance() bridge.ListenerService {
	if !f.Running() {
		return nil
	}
	return f
}

// AccessEnabled reports whether notifications are being observed.
func (f *Forwarder) AccessEnabled(context.Context) (bool, error) {
	return f.Running(), nil
}

// OpenAccessSettings opens the notification access settings page.
func (f *Forwarder) OpenAccessSettings(ctx context.Context) error {
	if f.launcher == nil {
		return nil
	}
	return f.launcher.StartActivity(ctx, bridge.Intent{
		Action: bridge.ActionListenerSettings,
		Flags:  bridge.FlagActivityNewTask,
	})
}

func (f *Forwarder) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		err := f.monitor(ctx, []string{notifyMatch}, f.handle)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			f.logger.Warn("notification monitor failed; retrying", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(monitorRetryDelay):
		}
	}
}

func (f *Forwarder) handle(msg busctl.Message) {
	if msg.Member != "Notify" {
		return
	}
	payload, ok := notificationPayload(msg)
	if !ok {
		f.logger.Debug("undecodable Notify call", "sender", msg.Sender)
		return
	}
	if f.appName != "" && payload["appName"] == f.appName {
		return
	}
	if f.events != nil {
		f.events.NotificationReceived(payload)
	}
}

// notificationPayload extracts app name, summary and body from Notify's
// susssasa{sv}i arguments.
func notificationPayload(msg busctl.Message) (map[string]any, bool) {
	var args []any
	if err := msg.Payload.Decode(&args); err != nil || len(args) < 5 {
		return nil, false
	}
	appName, ok1 := args[0].(string)
	title, ok2 := args[3].(string)
	body, ok3 := args[4].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	return map[string]any{
		"appName": strings.TrimSpace(appName),
		"title":   title,
		"body":    body,
	}, true
}

func (f *Forwarder) publishStatus(enabled bool) {
	if f.events != nil {
		f.events.NotificationListenerStatus(enabled)
	}
}
