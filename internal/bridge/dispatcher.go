package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Collaborators are the external components the dispatcher delegates to.
// Nil collaborators make the matching commands fail with an exception result,
// except Battery, whose absence is reported as false.
type Collaborators struct {
	Devices       DeviceSession
	Speech        Speech
	Calls         CallState
	Listener      ListenerRegistry
	Foreground    ForegroundService
	Settings      SecureSettings
	Launcher      ActivityLauncher
	Packages      PackageManager
	Notifications NotificationManager
	Permissions   Permissions
	Battery       BatteryOptimizer
}

type handlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Dispatcher executes exactly one handler per command and converts every
// outcome into a Result.
type Dispatcher struct {
	logger   *slog.Logger
	platform Platform
	caps     Capabilities
	c        Collaborators
	now      func() time.Time

	mu sync.Mutex
}

// NewDispatcher wires collaborators for one host platform.
func NewDispatcher(platform Platform, collaborators Collaborators, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		logger:   logger,
		platform: platform,
		caps:     CapabilitiesFor(platform.SDKLevel),
		c:        collaborators,
		now:      time.Now,
	}
}

// Dispatch runs the handler for cmd. Commands are handled one at a time, the
// way the host's method channel delivers them.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (result Result) {
	handler := d.route(cmd.Name)
	if handler == nil {
		return NotImplemented()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("method call panicked", "method", cmd.Name, "panic", fmt.Sprint(r))
			result = Failure(KindException, fmt.Sprintf("Error calling %s: %v", cmd.Name, r))
		}
	}()

	value, err := handler(ctx, cmd.Arguments)
	result = toResult(cmd.Name, value, err)
	if result.Err != nil && result.Err.Kind == KindException {
		d.logger.Error("method call failed", "method", cmd.Name, "error", result.Err.Message)
	}
	return result
}

// route maps a method name onto its handler; unknown names return nil.
func (d *Dispatcher) route(name string) handlerFunc {
	switch name {
	case "startScan":
		return d.startScan
	case "stopScan":
		return d.stopScan
	case "connectToGlasses":
		return d.connectToGlasses
	case "disconnectFromGlasses":
		return d.disconnectFromGlasses
	case "send":
		return d.send
	case "startEvenAI":
		return d.startEvenAI
	case "stopEvenAI":
		return d.stopEvenAI
	case "checkNotificationPermission":
		return d.checkNotificationPermission
	case "openNotificationSettings":
		return d.openNotificationSettings
	case "getInstalledApps":
		return d.getInstalledApps
	case "startForegroundService":
		return d.startForegroundService
	case "stopForegroundService":
		return d.stopForegroundService
	case "checkBleConnectionStatus":
		return d.checkBleConnectionStatus
	case "requestNotificationPermission":
		return d.requestNotificationPermission
	case "requestBatteryOptimization":
		return d.requestBatteryOptimization
	case "checkBatteryOptimization":
		return d.checkBatteryOptimization
	case "showWeatherNotification":
		return d.showWeatherNotification
	case "resolveCallerName":
		return d.resolveCallerName
	case "setGoogleCloudCredentials":
		return d.setGoogleCloudCredentials
	default:
		return nil
	}
}

// errUnavailable reports a collaborator that was not wired for this host.
func errUnavailable(name string) error {
	return fmt.Errorf("%s unavailable", name)
}
