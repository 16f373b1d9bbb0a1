// Package platform implements the bridge collaborators on a Linux desktop:
// desktop entries as installed apps, freedesktop notifications, power
// profiles, and a session-bus notification forwarder.
package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rbright/glassbridge/internal/bridge"
)

// Apps lists XDG desktop entries as installed packages.
type Apps struct {
	// Dirs are searched in precedence order; the first entry for an id wins.
	// Empty means DefaultAppDirs.
	Dirs   []string
	Logger *slog.Logger
}

// DefaultAppDirs returns the XDG application directories.
func DefaultAppDirs() []string {
	var dirs []string
	dataHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME"))
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}

	dataDirs := strings.TrimSpace(os.Getenv("XDG_DATA_DIRS"))
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, dir := range strings.Split(dataDirs, ":") {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, filepath.Join(dir, "applications"))
		}
	}
	return dirs
}

// InstalledPackages walks the configured directories. Hidden and NoDisplay
// entries are only included when flags ask for uninstalled or all packages.
func (a Apps) InstalledPackages(ctx context.Context, flags bridge.PackageQueryFlags) ([]bridge.PackageInfo, error) {
	includeHidden := flags.Has(bridge.MatchUninstalledPackages) || flags.Has(bridge.MatchAll)
	seen := make(map[string]bool)
	var packages []bridge.PackageInfo

	dirs := a.Dirs
	if len(dirs) == 0 {
		dirs = DefaultAppDirs()
	}
	for _, root := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := desktopFiles(root, a.logger())
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			pkgName := strings.TrimSuffix(id.id, ".desktop")
			if seen[pkgName] {
				continue
			}
			seen[pkgName] = true

			entry, parseErr := parseDesktopEntry(id.path)
			if parseErr != nil {
				packages = append(packages, bridge.PackageInfo{
					PackageName: pkgName,
					Application: &bridge.ApplicationInfo{SourceDir: id.path},
					Err:         parseErr,
				})
				continue
			}
			if entry.kind != "Application" {
				packages = append(packages, bridge.PackageInfo{PackageName: pkgName})
				continue
			}
			if entry.hidden && !includeHidden {
				continue
			}
			packages = append(packages, bridge.PackageInfo{
				PackageName: pkgName,
				Application: &bridge.ApplicationInfo{
					Label:     entry.name,
					SourceDir: id.path,
					Hidden:    entry.hidden,
				},
			})
		}
	}
	return packages, nil
}

func (a Apps) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

// ApplicationLabel returns the entry's Name.
func (Apps) ApplicationLabel(_ context.Context, pkg bridge.PackageInfo) (string, error) {
	if pkg.Application == nil || strings.TrimSpace(pkg.Application.Label) == "" {
		return "", fmt.Errorf("no label for %s", pkg.PackageName)
	}
	return pkg.Application.Label, nil
}

type desktopFile struct {
	id   string
	path string
}

// desktopFiles returns desktop-file ids under root sorted by id. Subdirectory
// separators become '-', matching freedesktop desktop-file ids.
func desktopFiles(root string, logger *slog.Logger) ([]desktopFile, error) {
	var files []desktopFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return skipUnreadable(root, path, err, logger)
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".desktop") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, desktopFile{id: strings.ReplaceAll(filepath.ToSlash(rel), "/", "-"), path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].id < files[j].id })
	return files, nil
}

// skipUnreadable leaves out a directory that cannot be listed so one bad
// directory does not hide every other app. A missing root is silent.
func skipUnreadable(root string, path string, err error, logger *slog.Logger) error {
	if path == root && errors.Is(err, fs.ErrNotExist) {
		return fs.SkipAll
	}
	logger.Warn("skipping unreadable application directory", "path", path, "error", err.Error())
	if path == root {
		return fs.SkipAll
	}
	return fs.SkipDir
}

type desktopEntry struct {
	kind   string
	name   string
	hidden bool
}

// parseDesktopEntry reads the [Desktop Entry] group of one file.
func parseDesktopEntry(path string) (desktopEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return desktopEntry{}, err
	}
	defer f.Close()

	var (
		entry    desktopEntry
		inGroup  bool
		sawGroup bool
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inGroup = line == "[Desktop Entry]"
			sawGroup = sawGroup || inGroup
			continue
		}
		if !inGroup {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Type":
			entry.kind = value
		case "Name":
			entry.name = value
		case "NoDisplay", "Hidden":
			entry.hidden = entry.hidden || value == "true"
		}
	}
	if err := scanner.Err(); err != nil {
		return desktopEntry{}, err
	}
	if !sawGroup {
		return desktopEntry{}, fmt.Errorf("%s: missing [Desktop Entry] group", filepath.Base(path))
	}
	return entry, nil
}
