package platform

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const powerSaverProfile = "power-saver"

// Power maps battery optimization onto power-profiles-daemon.
type Power struct{}

// OptimizationDisabled reports whether the active profile is not power-saver.
func (Power) OptimizationDisabled(ctx context.Context) (bool, error) {
	profile, err := activeProfile(ctx)
	if err != nil {
		return false, err
	}
	return profile != powerSaverProfile, nil
}

// RequestIgnoreOptimization leaves power-saver for the balanced profile.
func (Power) RequestIgnoreOptimization(ctx context.Context) error {
	profile, err := activeProfile(ctx)
	if err != nil {
		return err
	}
	if profile != powerSaverProfile {
		return nil
	}
	_, err = runPowerProfiles(ctx, "set", "balanced")
	return err
}

func activeProfile(ctx context.Context) (string, error) {
	out, err := runPowerProfiles(ctx, "get")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func runPowerProfiles(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "powerprofilesctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("powerprofilesctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("powerprofilesctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
