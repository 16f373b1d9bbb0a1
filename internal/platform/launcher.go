package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/rbright/glassbridge/internal/bridge"
)

// Launcher starts desktop programs for bridge intents.
type Launcher struct {
	// SettingsCommand opens the notification-access settings page.
	SettingsCommand []string
	Logger          *slog.Logger
}

// StartActivity launches intent without waiting for the program to exit.
func (l Launcher) StartActivity(_ context.Context, intent bridge.Intent) error {
	argv, err := l.command(intent)
	if err != nil {
		return err
	}

	// The launched program outlives the request, so it is not bound to ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", argv[0], err)
	}
	go func() {
		if err := cmd.Wait(); err != nil && l.Logger != nil {
			l.Logger.Debug("launched program exited", "argv", strings.Join(argv, " "), "error", err.Error())
		}
	}()
	return nil
}

func (l Launcher) command(intent bridge.Intent) ([]string, error) {
	switch {
	case intent.Action == bridge.ActionListenerSettings:
		if len(l.SettingsCommand) == 0 {
			return nil, errors.New("no settings launcher configured")
		}
		return l.SettingsCommand, nil
	case intent.Component != "":
		pkg, _, _ := strings.Cut(intent.Component, "/")
		return []string{"gtk-launch", pkg}, nil
	default:
		return nil, fmt.Errorf("unsupported intent action %q", intent.Action)
	}
}
