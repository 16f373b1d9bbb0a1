package bridge

import (
	"context"
	"fmt"
	"strings"
)

// DefaultSpeechLanguage is the language startEvenAI captures in unless the
// platform names another.
const DefaultSpeechLanguage = "EN"

func (d *Dispatcher) startScan(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Devices == nil {
		return nil, errUnavailable("device session")
	}
	return nil, d.c.Devices.StartScan(ctx)
}

func (d *Dispatcher) stopScan(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Devices == nil {
		return nil, errUnavailable("device session")
	}
	return nil, d.c.Devices.StopScan(ctx)
}

func (d *Dispatcher) connectToGlasses(ctx context.Context, args map[string]any) (any, error) {
	deviceName, _ := stringArg(args, "deviceName")
	if deviceName == "" {
		return nil, invalidArguments("Invalid arguments")
	}
	if d.c.Devices == nil {
		return nil, errUnavailable("device session")
	}
	return nil, d.c.Devices.Connect(ctx, strings.ReplaceAll(deviceName, PairPrefix, ""))
}

func (d *Dispatcher) disconnectFromGlasses(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Devices == nil {
		return nil, errUnavailable("device session")
	}
	return nil, d.c.Devices.Disconnect(ctx)
}

// send without a link succeeds and drops the payload, as the host expects
// writes to be fire-and-forget.
func (d *Dispatcher) send(ctx context.Context, args map[string]any) (any, error) {
	if d.c.Devices == nil {
		return nil, errUnavailable("device session")
	}
	if !d.c.Devices.Connected() {
		d.logger.Warn("send dropped; glasses not connected")
		return nil, nil
	}
	return nil, d.c.Devices.Send(ctx, args)
}

func (d *Dispatcher) startEvenAI(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Speech == nil {
		return nil, errUnavailable("speech recognition")
	}
	language := d.platform.SpeechLanguage
	if language == "" {
		language = DefaultSpeechLanguage
	}
	return nil, d.c.Speech.StartRecognition(ctx, language)
}

func (d *Dispatcher) stopEvenAI(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Speech == nil {
		return nil, errUnavailable("speech recognition")
	}
	return nil, d.c.Speech.StopRecognition(ctx)
}

func (d *Dispatcher) startForegroundService(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Foreground == nil {
		return nil, errUnavailable("foreground service")
	}
	if err := d.c.Foreground.Start(ctx); err != nil {
		return nil, fmt.Errorf("start foreground service: %w", err)
	}
	return true, nil
}

func (d *Dispatcher) stopForegroundService(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Foreground == nil {
		return nil, errUnavailable("foreground service")
	}
	if err := d.c.Foreground.Stop(ctx); err != nil {
		return nil, fmt.Errorf("stop foreground service: %w", err)
	}
	return true, nil
}

func (d *Dispatcher) checkBleConnectionStatus(context.Context, map[string]any) (any, error) {
	if d.c.Devices == nil {
		return nil, errUnavailable("device session")
	}
	return d.c.Devices.Connected(), nil
}

func (d *Dispatcher) requestNotificationPermission(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Permissions == nil {
		return nil, errUnavailable("permissions")
	}
	return d.c.Permissions.NotificationPermissionGranted(ctx)
}

func (d *Dispatcher) requestBatteryOptimization(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Battery == nil {
		d.logger.Warn("battery optimization unsupported by host context; cannot request")
		return false, nil
	}
	if err := d.c.Battery.RequestIgnoreOptimization(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

func (d *Dispatcher) checkBatteryOptimization(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Battery == nil {
		d.logger.Warn("battery optimization unsupported by host context; cannot check")
		return false, nil
	}
	return d.c.Battery.OptimizationDisabled(ctx)
}

func (d *Dispatcher) resolveCallerName(ctx context.Context, args map[string]any) (any, error) {
	phoneNumber, _ := stringArg(args, "phoneNumber")
	if phoneNumber == "" {
		return nil, invalidArguments("phoneNumber is required")
	}
	if d.c.Calls == nil {
		return nil, errUnavailable("call state")
	}

	name, found, err := d.c.Calls.CallerDisplayName(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return name, nil
}

func (d *Dispatcher) setGoogleCloudCredentials(ctx context.Context, args map[string]any) (any, error) {
	credentialsJSON, _ := stringArg(args, "credentialsJson")
	if credentialsJSON == "" {
		d.logger.Debug("no speech credentials provided; default credentials stay in effect")
		return false, nil
	}
	if d.c.Speech == nil {
		return nil, errUnavailable("speech recognition")
	}
	if err := d.c.Speech.Initialize(ctx, credentialsJSON); err != nil {
		return nil, err
	}
	d.logger.Debug("speech credentials installed from host")
	return true, nil
}
