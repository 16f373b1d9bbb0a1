package bridge

import (
	"context"
	"fmt"
	"strings"
)

const (
	// EnabledListenersSetting is the secure setting holding enabled listener components.
	EnabledListenersSetting = "enabled_notification_listeners"
	// ActionListenerSettings opens the platform notification-access page.
	ActionListenerSettings = "android.settings.ACTION_NOTIFICATION_LISTENER_SETTINGS"

	weatherChannelID      = "weather_updates_channel"
	weatherChannelName    = "Weather Updates"
	weatherChannelDesc    = "Weather update notifications"
	weatherNotificationID = 1001
	weatherTitle          = "Weather Updated"
	weatherSmallIcon      = "ic_dialog_info"
)

func (d *Dispatcher) checkNotificationPermission(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Listener != nil {
		if service := d.c.Listener.Instance(); service != nil {
			return service.AccessEnabled(ctx)
		}
	}
	if d.c.Settings == nil {
		return nil, errUnavailable("secure settings")
	}

	flat, _, err := d.c.Settings.SecureString(ctx, EnabledListenersSetting)
	if err != nil {
		return nil, err
	}
	return listenerEnabled(flat, d.platform.ListenerComponent), nil
}

// listenerEnabled reports whether any entry of the colon-separated listener
// list contains component. Containment, not token equality, is intentional.
func listenerEnabled(flat string, component string) bool {
	if flat == "" {
		return false
	}
	for _, name := range strings.Split(flat, ":") {
		if strings.Contains(name, component) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) openNotificationSettings(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Listener != nil {
		if service := d.c.Listener.Instance(); service != nil {
			return nil, service.OpenAccessSettings(ctx)
		}
	}
	if d.c.Launcher == nil {
		return nil, errUnavailable("activity launcher")
	}
	return nil, d.c.Launcher.StartActivity(ctx, Intent{
		Action: ActionListenerSettings,
		Flags:  FlagActivityNewTask,
	})
}

func (d *Dispatcher) showWeatherNotification(ctx context.Context, args map[string]any) (any, error) {
	message, ok := stringArg(args, "message")
	if !ok {
		message = weatherTitle
	}
	d.logger.Debug("showWeatherNotification called", "message", message)

	if d.c.Notifications == nil {
		return nil, errUnavailable("notification manager")
	}

	if d.caps.NotificationChannels {
		if err := d.ensureWeatherChannel(ctx); err != nil {
			d.logger.Error("create or check notification channel failed", "error", err.Error())
		}
	}

	notification := Notification{
		ChannelID: weatherChannelID,
		SmallIcon: weatherSmallIcon,
		Title:     weatherTitle,
		Text:      message,
		BigText:   message,
		Priority:  PriorityHigh,
		ContentIntent: &PendingIntent{
			Intent: Intent{
				Component: d.hostComponent(),
				Flags:     FlagActivityNewTask | FlagActivityClearTask,
			},
			Flags: d.caps.pendingIntentFlags(),
		},
		AutoCancel: true,
		ShowWhen:   true,
		When:       d.now(),
	}

	if err := d.c.Notifications.Notify(ctx, weatherNotificationID, notification); err != nil {
		return nil, fmt.Errorf("failed to display notification: %w", err)
	}
	d.logger.Debug("weather notification shown", "message", message, "id", weatherNotificationID)
	return true, nil
}

// ensureWeatherChannel creates the weather channel, or recreates it at high
// importance when an existing channel sits below that level.
func (d *Dispatcher) ensureWeatherChannel(ctx context.Context) error {
	existing, found, err := d.c.Notifications.NotificationChannel(ctx, weatherChannelID)
	if err != nil {
		return err
	}
	if found && existing.Importance >= ImportanceHigh {
		d.logger.Debug("weather notification channel already exists")
		return nil
	}

	if err := d.c.Notifications.CreateNotificationChannel(ctx, weatherChannel()); err != nil {
		return err
	}
	if found {
		d.logger.Debug("weather notification channel raised to high importance")
	} else {
		d.logger.Debug("weather notification channel created")
	}
	return nil
}

func weatherChannel() NotificationChannel {
	return NotificationChannel{
		ID:          weatherChannelID,
		Name:        weatherChannelName,
		Description: weatherChannelDesc,
		Importance:  ImportanceHigh,
		Vibration:   true,
		Lights:      true,
		ShowBadge:   true,
		Silent:      true,
	}
}

func (d *Dispatcher) hostComponent() string {
	if d.platform.HostActivity == "" {
		return d.platform.HostPackage
	}
	return d.platform.HostPackage + "/" + d.platform.HostActivity
}
