package platform

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/busctl"
)

type recordingEvents struct {
	mu       sync.Mutex
	received []any
	statuses []bool
}

func (r *recordingEvents) NotificationReceived(payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, payload)
}

func (r *recordingEvents) NotificationListenerStatus(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, enabled)
}

func (r *recordingEvents) snapshot() ([]any, []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.received...), append([]bool(nil), r.statuses...)
}

type recordingListSettings struct {
	entries []string
}

func (r *recordingListSettings) AppendListSetting(_ context.Context, name string, entry string) error {
	r.entries = append(r.entries, name+"="+entry)
	return nil
}

type recordingOngoing struct {
	posted    []int
	cancelled []int
}

func (r *recordingOngoing) Notify(_ context.Context, id int, _ bridge.Notification) error {
	r.posted = append(r.posted, id)
	return nil
}

func (r *recordingOngoing) Cancel(_ context.Context, id int) error {
	r.cancelled = append(r.cancelled, id)
	return nil
}

func notifyMessage(t *testing.T, appName string, title string, body string) busctl.Message {
	t.Helper()
	data, err := json.Marshal([]any{appName, 0, "", title, body, []any{}, map[string]any{}, -1})
	require.NoError(t, err)
	return busctl.Message{Type: "method_call", Member: "Notify", Payload: busctl.Value{Type: "susssasa{sv}i", Data: data}}
}

func TestForwarderLifecycle(t *testing.T) {
	events := &recordingEvents{}
	settings := &recordingListSettings{}
	ongoing := &recordingOngoing{}
	var gotMatches []string

	forwarder := NewForwarder(ForwarderOptions{
		Component: "glassbridge/.NotificationListener",
		AppName:   "glassbridge",
		Events:    events,
		Settings:  settings,
		Notifier:  ongoing,
		Monitor: func(ctx context.Context, matches []string, fn func(busctl.Message)) error {
			gotMatches = matches
			fn(notifyMessage(t, "Mail", "New message", "Lunch?"))
			fn(notifyMessage(t, "glassbridge", "Weather Updated", "Sunny"))
			fn(busctl.Message{Member: "CloseNotification"})
			fn(busctl.Message{Member: "Notify", Payload: busctl.Value{Type: "s", Data: json.RawMessage(`"x"`)}})
			<-ctx.Done()
			return nil
		},
	})
	ctx := context.Background()

	require.Nil(t, forwarder.Instance())
	require.NoError(t, forwarder.Start(ctx))
	require.NoError(t, forwarder.Start(ctx))
	require.NotNil(t, forwarder.Instance())

	enabled, err := forwarder.AccessEnabled(ctx)
	require.NoError(t, err)
	require.True(t, enabled)

	require.Eventually(t, func() bool {
		received, _ := events.snapshot()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, forwarder.Stop(ctx))
	require.NoError(t, forwarder.Stop(ctx))
	require.Nil(t, forwarder.Instance())

	received, statuses := events.snapshot()
	require.Equal(t, []any{map[string]any{"appName": "Mail", "title": "New message", "body": "Lunch?"}}, received)
	require.Equal(t, []bool{true, false}, statuses)
	require.Equal(t, []string{notifyMatch}, gotMatches)
	require.Equal(t, []string{"enabled_notification_listeners=glassbridge/.NotificationListener"}, settings.entries)
	require.Equal(t, []int{ongoingNotificationID}, ongoing.posted)
	require.Equal(t, []int{ongoingNotificationID}, ongoing.cancelled)
}

func TestForwarderRetriesMonitorFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	forwarder := NewForwarder(ForwarderOptions{
		Monitor: func(ctx context.Context, _ []string, _ func(busctl.Message)) error {
			mu.Lock()
			attempts++
			mu.Unlock()
			return errors.New("bus gone")
		},
	})

	require.NoError(t, forwarder.Start(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, forwarder.Stop(context.Background()))
}

func TestForwarderAsDispatcherCollaborator(t *testing.T) {
	forwarder := NewForwarder(ForwarderOptions{
		Monitor: func(ctx context.Context, _ []string, _ func(busctl.Message)) error {
			<-ctx.Done()
			return nil
		},
	})
	d := bridge.NewDispatcher(bridge.Platform{SDKLevel: 34, ListenerComponent: "glassbridge/.L"}, bridge.Collaborators{
		Foreground: forwarder,
		Listener:   forwarder,
		Settings:   emptySettings{},
	}, nil)
	ctx := context.Background()

	result := d.Dispatch(ctx, bridge.Command{Name: "checkNotificationPermission"})
	require.Equal(t, false, result.Value)

	result = d.Dispatch(ctx, bridge.Command{Name: "startForegroundService"})
	require.Equal(t, true, result.Value)

	result = d.Dispatch(ctx, bridge.Command{Name: "checkNotificationPermission"})
	require.Equal(t, true, result.Value)

	result = d.Dispatch(ctx, bridge.Command{Name: "stopForegroundService"})
	require.Equal(t, true, result.Value)
}

type emptySettings struct{}

func (emptySettings) SecureString(context.Context, string) (string, bool, error) {
	return "", false, nil
}
