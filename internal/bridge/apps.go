package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

func (d *Dispatcher) getInstalledApps(ctx context.Context, _ map[string]any) (any, error) {
	if d.c.Packages == nil {
		return nil, errUnavailable("package manager")
	}

	flags := d.caps.PackageQuery
	packages, err := d.c.Packages.InstalledPackages(ctx, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to get installed apps: %w", err)
	}
	d.logger.Debug("querying installed apps", "flags", uint32(flags), "sdk_level", d.platform.SDKLevel)

	apps := make([]InstalledApp, 0, len(packages))
	for _, pkg := range packages {
		if pkg.Application == nil {
			continue
		}
		if pkg.Err != nil {
			d.logger.Warn("skipping app", "package", pkg.PackageName, "error", pkg.Err.Error())
			continue
		}
		if pkg.PackageName == d.platform.HostPackage {
			continue
		}

		appName, labelErr := d.c.Packages.ApplicationLabel(ctx, pkg)
		if labelErr != nil {
			appName = pkg.PackageName
		}
		if strings.TrimSpace(appName) == "" || strings.TrimSpace(pkg.PackageName) == "" {
			continue
		}

		apps = append(apps, InstalledApp{PackageName: pkg.PackageName, AppName: appName})
	}

	sortAppsByName(apps)
	d.logger.Debug("found installed apps", "count", len(apps))
	return apps, nil
}

// sortAppsByName orders apps by case-insensitive display name, keeping the
// package manager's order for equal names.
func sortAppsByName(apps []InstalledApp) {
	sort.SliceStable(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].AppName) < strings.ToLower(apps[j].AppName)
	})
}
