package platform

import (
	"context"
	"log/slog"
)

// Permissions treats a reachable notification server as granted permission.
type Permissions struct {
	Logger *slog.Logger
}

// NotificationPermissionGranted asks the notification server to identify itself.
func (p Permissions) NotificationPermissionGranted(ctx context.Context) (bool, error) {
	name, vendor, err := ServerInformation(ctx)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("notification server unavailable", "error", err.Error())
		}
		return false, nil
	}
	if p.Logger != nil {
		p.Logger.Debug("notification server found", "name", name, "vendor", vendor)
	}
	return true, nil
}
