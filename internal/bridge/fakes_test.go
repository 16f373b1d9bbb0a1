package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/rbright/glassbridge/internal/ipc"
)

type fakeDevices struct {
	mu         sync.Mutex
	calls      []string
	connected  string
	sent       []map[string]any
	isUp       bool
	connectErr error
}

func (f *fakeDevices) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeDevices) StartScan(context.Context) error { f.record("startScan"); return nil }
func (f *fakeDevices) StopScan(context.Context) error  { f.record("stopScan"); return nil }

func (f *fakeDevices) Connect(_ context.Context, channel string) error {
	f.record("connect")
	f.connected = channel
	return f.connectErr
}

func (f *fakeDevices) Disconnect(context.Context) error { f.record("disconnect"); return nil }

func (f *fakeDevices) Send(_ context.Context, args map[string]any) error {
	f.record("send")
	f.sent = append(f.sent, args)
	return nil
}

func (f *fakeDevices) Connected() bool { return f.isUp }

type fakeSpeech struct {
	started     []string
	stopped     int
	credentials []string
	initErr     error
}

func (f *fakeSpeech) StartRecognition(_ context.Context, language string) error {
	f.started = append(f.started, language)
	return nil
}

func (f *fakeSpeech) StopRecognition(context.Context) error {
	f.stopped++
	return nil
}

func (f *fakeSpeech) Initialize(_ context.Context, credentialsJSON string) error {
	f.credentials = append(f.credentials, credentialsJSON)
	return f.initErr
}

type fakeCalls map[string]string

func (f fakeCalls) CallerDisplayName(_ context.Context, number string) (string, bool, error) {
	name, ok := f[number]
	return name, ok, nil
}

type fakeListenerService struct {
	enabled bool
	opened  int
}

func (f *fakeListenerService) AccessEnabled(context.Context) (bool, error) { return f.enabled, nil }

func (f *fakeListenerService) OpenAccessSettings(context.Context) error {
	f.opened++
	return nil
}

type fakeListenerRegistry struct {
	service ListenerService
}

func (f fakeListenerRegistry) Instance() ListenerService { return f.service }

type fakeSettings map[string]string

func (f fakeSettings) SecureString(_ context.Context, name string) (string, bool, error) {
	value, ok := f[name]
	return value, ok, nil
}

type fakeLauncher struct {
	intents []Intent
}

func (f *fakeLauncher) StartActivity(_ context.Context, intent Intent) error {
	f.intents = append(f.intents, intent)
	return nil
}

type fakePackages struct {
	packages  []PackageInfo
	lastFlags PackageQueryFlags
	labelErr  map[string]error
}

func (f *fakePackages) InstalledPackages(_ context.Context, flags PackageQueryFlags) ([]PackageInfo, error) {
	f.lastFlags = flags
	return f.packages, nil
}

func (f *fakePackages) ApplicationLabel(_ context.Context, pkg PackageInfo) (string, error) {
	if err := f.labelErr[pkg.PackageName]; err != nil {
		return "", err
	}
	return pkg.Application.Label, nil
}

type fakeNotifications struct {
	channels  map[string]NotificationChannel
	created   []NotificationChannel
	posted    []Notification
	postedIDs []int
	notifyErr error
	lookupErr error
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{channels: make(map[string]NotificationChannel)}
}

func (f *fakeNotifications) NotificationChannel(_ context.Context, id string) (NotificationChannel, bool, error) {
	if f.lookupErr != nil {
		return NotificationChannel{}, false, f.lookupErr
	}
	channel, ok := f.channels[id]
	return channel, ok, nil
}

func (f *fakeNotifications) CreateNotificationChannel(_ context.Context, channel NotificationChannel) error {
	f.created = append(f.created, channel)
	f.channels[channel.ID] = channel
	return nil
}

func (f *fakeNotifications) Notify(_ context.Context, id int, notification Notification) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.postedIDs = append(f.postedIDs, id)
	f.posted = append(f.posted, notification)
	return nil
}

type fakeForeground struct {
	running bool
	err     error
}

func (f *fakeForeground) Start(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.running = true
	return nil
}

func (f *fakeForeground) Stop(context.Context) error {
	f.running = false
	return nil
}

type fakeBattery struct {
	disabled  bool
	requested int
}

func (f *fakeBattery) RequestIgnoreOptimization(context.Context) error {
	f.requested++
	return nil
}

func (f *fakeBattery) OptimizationDisabled(context.Context) (bool, error) { return f.disabled, nil }

type panickingDevices struct{ fakeDevices }

func (p *panickingDevices) StartScan(context.Context) error { panic("adapter exploded") }

// blockingDevices holds StartScan until release is closed.
type blockingDevices struct {
	fakeDevices
	entered chan struct{}
	release chan struct{}
}

func (b *blockingDevices) StartScan(context.Context) error {
	close(b.entered)
	<-b.release
	b.record("startScan")
	return nil
}

var errBoom = errors.New("boom")

func ipcRequest(id string, command string, args map[string]any) ipc.Request {
	return ipc.Request{ID: id, Command: command, Arguments: args}
}
