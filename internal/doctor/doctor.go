// Package doctor runs readiness diagnostics for config, D-Bus tools, the
// Bluetooth adapter, audio, notifications, speech, and local state.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/glassbridge/internal/audio"
	"github.com/rbright/glassbridge/internal/config"
	"github.com/rbright/glassbridge/internal/glasses"
	"github.com/rbright/glassbridge/internal/platform"
	"github.com/rbright/glassbridge/internal/speech"
	"github.com/rbright/glassbridge/internal/store"
)

// checkTimeout bounds each external readiness check.
var checkTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	checks = append(checks, checkEnv("DBUS_SESSION_BUS_ADDRESS", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "session bus address set", "DBUS_SESSION_BUS_ADDRESS is empty; notifications need the session bus"))

	busctlCheck := checkBinary("busctl", "BlueZ and notification calls")
	checks = append(checks, busctlCheck)

	if len(cfg.Config.Host.SettingsCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.Host.SettingsCmd.Argv, "host.settings_cmd"))
	}

	if busctlCheck.Pass {
		checks = append(checks, checkAdapter(ctx, cfg.Config))
		checks = append(checks, checkNotificationServer(ctx))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkSpeechCredentials(cfg.Config))
	checks = append(checks, checkSpeechEndpoint(ctx, cfg.Config))
	checks = append(checks, checkStore(ctx))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkAdapter(ctx context.Context, cfg config.Config) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	name := "ble.adapter"
	powered, err := glasses.CLI{Adapter: cfg.BLE.Adapter}.AdapterPowered(ctx)
	switch {
	case err != nil:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("adapter %s unavailable: %v", cfg.BLE.Adapter, err)}
	case !powered:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("adapter %s is powered off", cfg.BLE.Adapter)}
	default:
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("adapter %s powered", cfg.BLE.Adapter)}
	}
}

func checkNotificationServer(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	serverName, vendor, err := platform.ServerInformation(ctx)
	if err != nil {
		return Check{Name: "notifications", Pass: false, Message: err.Error()}
	}
	return Check{Name: "notifications", Pass: true, Message: fmt.Sprintf("%s (%s)", serverName, vendor)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSpeechCredentials passes without a file: the host may still hand
// credentials over at runtime.
func checkSpeechCredentials(cfg config.Config) Check {
	name := "speech.credentials"
	switch {
	case cfg.Speech.Insecure:
		return Check{Name: name, Pass: true, Message: "not required for insecure endpoint"}
	case strings.TrimSpace(cfg.Speech.CredentialsFile) == "":
		return Check{Name: name, Pass: true, Message: "no credentials_file; waiting for setGoogleCloudCredentials"}
	}

	data, err := os.ReadFile(cfg.Speech.CredentialsFile)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if err := speech.ValidateCredentials(data); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Speech.CredentialsFile)}
}

func checkSpeechEndpoint(ctx context.Context, cfg config.Config) Check {
	endpoint := cfg.Speech.Endpoint
	if strings.TrimSpace(endpoint) == "" {
		endpoint = speech.DefaultEndpoint
	}
	if err := speech.CheckEndpoint(ctx, endpoint, cfg.Speech.Insecure, checkTimeout); err != nil {
		return Check{Name: "speech.endpoint", Pass: false, Message: err.Error()}
	}
	return Check{Name: "speech.endpoint", Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}

func checkStore(ctx context.Context) Check {
	path, err := store.DefaultPath()
	if err != nil {
		return Check{Name: "store", Pass: false, Message: err.Error()}
	}
	db, err := store.Open(path)
	if err != nil {
		return Check{Name: "store", Pass: false, Message: err.Error()}
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return Check{Name: "store", Pass: false, Message: err.Error()}
	}
	return Check{Name: "store", Pass: true, Message: fmt.Sprintf("opened %s", path)}
}
