package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/rbright/glassbridge/internal/logging"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	if cfg.Host.Package == "" {
		return nil, fmt.Errorf("host.package must not be empty")
	}
	if cfg.Host.SDKLevel <= 0 {
		return nil, fmt.Errorf("host.sdk_level must be > 0")
	}
	if cfg.Host.ListenerComponent == "" {
		return nil, fmt.Errorf("host.listener_component must not be empty")
	}
	if len(cfg.Host.SettingsCmd.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "host.settings_cmd is empty; openNotificationSettings will fail"})
	}

	if _, _, err := net.SplitHostPort(cfg.Events.Listen); err != nil {
		return nil, fmt.Errorf("events.listen must be host:port: %w", err)
	}
	if host, _, _ := net.SplitHostPort(cfg.Events.Listen); !isLoopback(host) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("events.listen %q is not a loopback address", cfg.Events.Listen)})
	}
	if cfg.Events.QueueSize <= 0 {
		return nil, fmt.Errorf("events.queue_size must be > 0")
	}

	if cfg.BLE.Adapter == "" {
		return nil, fmt.Errorf("ble.adapter must not be empty")
	}
	if cfg.BLE.NamePrefix == "" {
		return nil, fmt.Errorf("ble.name_prefix must not be empty")
	}
	if cfg.BLE.SendIntervalMS <= 0 {
		return nil, fmt.Errorf("ble.send_interval_ms must be > 0")
	}
	if cfg.BLE.ScanIntervalMS <= 0 {
		return nil, fmt.Errorf("ble.scan_interval_ms must be > 0")
	}

	if cfg.Speech.Language == "" {
		return nil, fmt.Errorf("speech.language must not be empty")
	}
	if cfg.Speech.BreakerFailures <= 0 {
		return nil, fmt.Errorf("speech.breaker_failures must be > 0")
	}
	if cfg.Speech.Insecure && cfg.Speech.Endpoint == "" {
		return nil, fmt.Errorf("speech.insecure requires speech.endpoint")
	}
	if path := cfg.Speech.CredentialsFile; path != "" {
		if _, err := os.Stat(path); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("speech.credentials_file %q is not readable; default credentials will be used", path)})
		}
	}

	if cfg.Notifications.AppName == "" {
		return nil, fmt.Errorf("notifications.app_name must not be empty")
	}

	if _, err := logging.ParseLevel(cfg.Debug.LogLevel); err != nil {
		return nil, fmt.Errorf("debug.log_level: %w", err)
	}

	return warnings, nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
