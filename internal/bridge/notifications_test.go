package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenerEnabled(t *testing.T) {
	const component = "com.example.glasses/.NotificationListener"

	tests := []struct {
		name string
		flat string
		want bool
	}{
		{name: "empty", flat: "", want: false},
		{name: "exact", flat: component, want: true},
		{name: "among others", flat: "a/.B:" + component + ":c/.D", want: true},
		{name: "containment", flat: "x" + component + "Extra", want: true},
		{name: "absent", flat: "a/.B:c/.D", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, listenerEnabled(tc.flat, component))
		})
	}
}

func TestCheckNotificationPermissionPrefersRunningListener(t *testing.T) {
	service := &fakeListenerService{enabled: true}
	d := newTestDispatcher(Collaborators{
		Listener: fakeListenerRegistry{service: service},
		Settings: fakeSettings{},
	})

	result := d.Dispatch(context.Background(), Command{Name: "checkNotificationPermission"})
	require.True(t, result.OK())
	require.Equal(t, true, result.Value)
}

func TestCheckNotificationPermissionFallsBackToSettings(t *testing.T) {
	d := newTestDispatcher(Collaborators{
		Listener: fakeListenerRegistry{},
		Settings: fakeSettings{EnabledListenersSetting: "other/.L:com.example.glasses/.NotificationListener"},
	})
	result := d.Dispatch(context.Background(), Command{Name: "checkNotificationPermission"})
	require.Equal(t, true, result.Value)

	d = newTestDispatcher(Collaborators{Settings: fakeSettings{}})
	result = d.Dispatch(context.Background(), Command{Name: "checkNotificationPermission"})
	require.True(t, result.OK())
	require.Equal(t, false, result.Value)
}

func TestOpenNotificationSettings(t *testing.T) {
	service := &fakeListenerService{}
	d := newTestDispatcher(Collaborators{Listener: fakeListenerRegistry{service: service}})
	require.True(t, d.Dispatch(context.Background(), Command{Name: "openNotificationSettings"}).OK())
	require.Equal(t, 1, service.opened)

	launcher := &fakeLauncher{}
	d = newTestDispatcher(Collaborators{Launcher: launcher})
	result := d.Dispatch(context.Background(), Command{Name: "openNotificationSettings"})
	require.True(t, result.OK())
	require.Nil(t, result.Value)
	require.Equal(t, []Intent{{Action: ActionListenerSettings, Flags: FlagActivityNewTask}}, launcher.intents)
}

func TestShowWeatherNotificationCreatesChannelOnce(t *testing.T) {
	notifications := newFakeNotifications()
	d := newTestDispatcher(Collaborators{Notifications: notifications})
	fixed := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	for range 2 {
		result := d.Dispatch(context.Background(), Command{
			Name:      "showWeatherNotification",
			Arguments: map[string]any{"message": "Sunny, 21C"},
		})
		require.True(t, result.OK())
		require.Equal(t, true, result.Value)
	}

	require.Len(t, notifications.created, 1)
	require.Equal(t, weatherChannel(), notifications.created[0])
	require.Equal(t, []int{1001, 1001}, notifications.postedIDs)

	posted := notifications.posted[0]
	require.Equal(t, "weather_updates_channel", posted.ChannelID)
	require.Equal(t, "Weather Updated", posted.Title)
	require.Equal(t, "Sunny, 21C", posted.Text)
	require.Equal(t, "Sunny, 21C", posted.BigText)
	require.Equal(t, PriorityHigh, posted.Priority)
	require.True(t, posted.AutoCancel)
	require.Equal(t, fixed, posted.When)
	require.NotNil(t, posted.ContentIntent)
	require.Equal(t, "com.example.glasses/MainActivity", posted.ContentIntent.Intent.Component)
	require.Equal(t, FlagActivityNewTask|FlagActivityClearTask, posted.ContentIntent.Intent.Flags)
	require.Equal(t, PendingIntentImmutable|PendingIntentUpdateCurrent, posted.ContentIntent.Flags)
}

func TestShowWeatherNotificationRaisesLowImportanceChannel(t *testing.T) {
	notifications := newFakeNotifications()
	notifications.channels[weatherChannelID] = NotificationChannel{ID: weatherChannelID, Importance: ImportanceLow}
	d := newTestDispatcher(Collaborators{Notifications: notifications})

	result := d.Dispatch(context.Background(), Command{Name: "showWeatherNotification"})
	require.True(t, result.OK())
	require.Len(t, notifications.created, 1)
	require.Equal(t, ImportanceHigh, notifications.channels[weatherChannelID].Importance)
	require.Equal(t, "Weather Updated", notifications.posted[0].Text)
}

func TestShowWeatherNotificationKeepsExplicitEmptyMessage(t *testing.T) {
	notifications := newFakeNotifications()
	d := newTestDispatcher(Collaborators{Notifications: notifications})

	result := d.Dispatch(context.Background(), Command{
		Name:      "showWeatherNotification",
		Arguments: map[string]any{"message": ""},
	})
	require.True(t, result.OK())
	require.Equal(t, "", notifications.posted[0].Text)
}

func TestShowWeatherNotificationChannelErrorIsNotFatal(t *testing.T) {
	notifications := newFakeNotifications()
	notifications.lookupErr = errBoom
	d := newTestDispatcher(Collaborators{Notifications: notifications})

	result := d.Dispatch(context.Background(), Command{Name: "showWeatherNotification"})
	require.True(t, result.OK())
	require.Len(t, notifications.posted, 1)
}

func TestShowWeatherNotificationPostFailure(t *testing.T) {
	notifications := newFakeNotifications()
	notifications.notifyErr = errBoom
	d := newTestDispatcher(Collaborators{Notifications: notifications})

	result := d.Dispatch(context.Background(), Command{Name: "showWeatherNotification"})
	require.NotNil(t, result.Err)
	require.Equal(t, KindException, result.Err.Kind)
	require.Contains(t, result.Err.Message, "failed to display notification")
}

func TestShowWeatherNotificationLegacyPlatform(t *testing.T) {
	notifications := newFakeNotifications()
	d := NewDispatcher(Platform{SDKLevel: 22, HostPackage: "com.example.glasses"}, Collaborators{Notifications: notifications}, nil)

	result := d.Dispatch(context.Background(), Command{Name: "showWeatherNotification"})
	require.True(t, result.OK())
	require.Empty(t, notifications.created)
	require.Equal(t, PendingIntentUpdateCurrent, notifications.posted[0].ContentIntent.Flags)
	require.Equal(t, "com.example.glasses", notifications.posted[0].ContentIntent.Intent.Component)
}
