package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/glassbridge/internal/audio"
	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/busctl"
)

var notificationsMethod = busctl.Method{
	Service:   "org.freedesktop.Notifications",
	Path:      "/org/freedesktop/Notifications",
	Interface: "org.freedesktop.Notifications",
}

func notificationsCall(member string) busctl.Method {
	m := notificationsMethod
	m.Member = member
	return m
}

// ChannelStore persists notification channels.
type ChannelStore interface {
	NotificationChannel(ctx context.Context, id string) (bridge.NotificationChannel, bool, error)
	SaveNotificationChannel(ctx context.Context, ch bridge.NotificationChannel) error
}

// CuePlayer plays an audible cue.
type CuePlayer interface {
	Play(ctx context.Context, cue audio.Cue) error
}

// Notifier posts notifications to the freedesktop notification server.
// Each bridge notification id maps onto the server id it was last shown
// under, so reposting an id replaces the visible notification.
type Notifier struct {
	AppName  string
	Channels ChannelStore
	Cues     CuePlayer
	Logger   *slog.Logger

	mu        sync.Mutex
	serverIDs map[int]uint32
	soundMu   sync.Mutex
}

// NotificationChannel loads a channel from the store.
func (n *Notifier) NotificationChannel(ctx context.Context, id string) (bridge.NotificationChannel, bool, error) {
	return n.Channels.NotificationChannel(ctx, id)
}

// CreateNotificationChannel persists ch, replacing any channel with its id.
func (n *Notifier) CreateNotificationChannel(ctx context.Context, ch bridge.NotificationChannel) error {
	return n.Channels.SaveNotificationChannel(ctx, ch)
}

// Notify shows notification under id. Posting to an unknown channel uses
// default importance.
func (n *Notifier) Notify(ctx context.Context, id int, notification bridge.Notification) error {
	channel := bridge.NotificationChannel{Importance: bridge.ImportanceDefault}
	if notification.ChannelID != "" {
		stored, found, err := n.Channels.NotificationChannel(ctx, notification.ChannelID)
		if err != nil {
			return err
		}
		if found {
			channel = stored
		}
	}
	if channel.Importance == bridge.ImportanceNone {
		n.debug("notification suppressed by channel importance", "channel", channel.ID, "id", id)
		return nil
	}

	n.mu.Lock()
	replaceID := n.serverIDs[id]
	n.mu.Unlock()

	serverID, err := desktopNotify(ctx, n.appName(), replaceID, notification, channel)
	if err != nil {
		return err
	}

	n.mu.Lock()
	if n.serverIDs == nil {
		n.serverIDs = make(map[int]uint32)
	}
	n.serverIDs[id] = serverID
	n.mu.Unlock()

	if !channel.Silent && channel.Importance >= bridge.ImportanceDefault {
		n.chime()
	}
	return nil
}

// Cancel closes the notification last shown under id.
func (n *Notifier) Cancel(ctx context.Context, id int) error {
	n.mu.Lock()
	serverID, ok := n.serverIDs[id]
	delete(n.serverIDs, id)
	n.mu.Unlock()

	if !ok {
		return nil
	}
	_, err := busctl.Call(ctx, busctl.User, notificationsCall("CloseNotification"), "u", strconv.FormatUint(uint64(serverID), 10))
	if err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

// ServerInformation returns the notification server's name and vendor.
func ServerInformation(ctx context.Context) (name string, vendor string, err error) {
	var info []string
	if err := busctl.CallJSON(ctx, busctl.User, notificationsCall("GetServerInformation"), &info, ""); err != nil {
		return "", "", err
	}
	if len(info) < 2 {
		return "", "", fmt.Errorf("unexpected server information %v", info)
	}
	return info[0], info[1], nil
}

func (n *Notifier) appName() string {
	if name := strings.TrimSpace(n.AppName); name != "" {
		return name
	}
	return "glassbridge"
}

// chime plays the notification cue without blocking the caller.
func (n *Notifier) chime() {
	if n.Cues == nil {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.Cues.Play(ctx, audio.CueNotification); err != nil {
			n.debug("notification cue failed", "error", err.Error())
		}
	}()
}

func (n *Notifier) debug(msg string, args ...any) {
	if n.Logger != nil {
		n.Logger.Debug(msg, args...)
	}
}

// urgency maps channel importance onto the freedesktop urgency byte.
func urgency(importance bridge.Importance) int {
	switch {
	case importance <= bridge.ImportanceLow:
		return 0
	case importance >= bridge.ImportanceMax:
		return 2
	default:
		return 1
	}
}

// desktopNotify calls Notify and returns the id assigned by the server.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, n bridge.Notification, ch bridge.NotificationChannel) (uint32, error) {
	body := n.Text
	if n.BigText != "" {
		body = n.BigText
	}

	hints := []string{"urgency", "y", strconv.Itoa(urgency(ch.Importance))}
	if n.ContentIntent != nil {
		pkg, _, _ := strings.Cut(n.ContentIntent.Intent.Component, "/")
		if pkg != "" {
			hints = append(hints, "desktop-entry", "s", pkg)
		}
	}

	timeout := "-1"
	if !n.AutoCancel {
		timeout = "0"
	}

	args := []string{
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		n.SmallIcon,
		n.Title,
		body,
		"0",
		strconv.Itoa(len(hints) / 3),
	}
	args = append(args, hints...)
	args = append(args, timeout)

	out, err := busctl.Call(ctx, busctl.User, notificationsCall("Notify"), "susssasa{sv}i", args...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify failed: %w", err)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(string(out)))
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}
